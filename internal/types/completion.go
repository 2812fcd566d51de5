package types

import (
	"math"
	"strings"
)

// sectionWeight pairs a completion predicate with the weight it contributes.
type sectionWeight struct {
	name     string
	weight   float64
	complete func(*CVDocument) bool
}

// completionWeights sum to 100. A section contributes its full weight or nothing.
var completionWeights = []sectionWeight{
	{name: "personalInfo", weight: 25, complete: func(d *CVDocument) bool {
		return strings.TrimSpace(d.PersonalInfo.FirstName) != "" && strings.TrimSpace(d.PersonalInfo.LastName) != ""
	}},
	{name: "education", weight: 20, complete: func(d *CVDocument) bool { return len(d.Education) > 0 }},
	{name: "experience", weight: 25, complete: func(d *CVDocument) bool { return len(d.WorkExperience) > 0 }},
	{name: "skills", weight: 15, complete: func(d *CVDocument) bool { return len(d.Skills) > 0 }},
	{name: "projects", weight: 10, complete: func(d *CVDocument) bool { return len(d.Projects) > 0 }},
	{name: "languages", weight: 5, complete: func(d *CVDocument) bool { return len(d.Languages) > 0 }},
}

// Completion computes the weighted completion percentage of a document.
func Completion(doc CVDocument) int {
	total := 0.0
	for _, sw := range completionWeights {
		if sw.complete(&doc) {
			total += sw.weight
		}
	}
	return int(math.Round(total))
}

// IncompleteSections lists the weighted sections that do not yet count towards completion.
func IncompleteSections(doc CVDocument) []string {
	var missing []string
	for _, sw := range completionWeights {
		if !sw.complete(&doc) {
			missing = append(missing, sw.name)
		}
	}
	return missing
}

// Recompute returns doc with nil sequences replaced and CompletionPercentage refreshed.
func Recompute(doc CVDocument) CVDocument {
	if doc.Education == nil {
		doc.Education = []Education{}
	}
	if doc.WorkExperience == nil {
		doc.WorkExperience = []WorkExperience{}
	}
	if doc.Projects == nil {
		doc.Projects = []Project{}
	}
	if doc.Skills == nil {
		doc.Skills = []Skill{}
	}
	if doc.Languages == nil {
		doc.Languages = []Language{}
	}
	if doc.SocialLinks == nil {
		doc.SocialLinks = []SocialLink{}
	}
	if doc.Interests == nil {
		doc.Interests = []string{}
	}
	doc.CompletionPercentage = Completion(doc)
	return doc
}
