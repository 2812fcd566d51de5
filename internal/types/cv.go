// Package types provides type definitions for the CV document and the sync state shared across the engine.
package types

import (
	"time"
)

// Section names a top-level, independently addressable part of a CVDocument.
// The value is the JSON field name used on the wire and in partial updates.
type Section string

const (
	SectionPersonalInfo   Section = "personalInfo"
	SectionEducation      Section = "education"
	SectionWorkExperience Section = "workExperience"
	SectionProjects       Section = "projects"
	SectionSkills         Section = "skills"
	SectionLanguages      Section = "languages"
	SectionSocialLinks    Section = "socialLinks"
	SectionInterests      Section = "interests"
	SectionProfileImage   Section = "profileImage"
)

// AllSections returns every editable section in document order.
func AllSections() []Section {
	return []Section{
		SectionPersonalInfo,
		SectionEducation,
		SectionWorkExperience,
		SectionProjects,
		SectionSkills,
		SectionLanguages,
		SectionSocialLinks,
		SectionInterests,
		SectionProfileImage,
	}
}

// IsList reports whether the section holds an ordered sequence.
// List sections are replaced wholesale when partial updates are merged.
func (s Section) IsList() bool {
	switch s {
	case SectionEducation, SectionWorkExperience, SectionProjects, SectionSkills,
		SectionLanguages, SectionSocialLinks, SectionInterests:
		return true
	default:
		return false
	}
}

// Valid reports whether s names a known section.
func (s Section) Valid() bool {
	for _, known := range AllSections() {
		if s == known {
			return true
		}
	}
	return false
}

// SkillLevel is the self-assessed proficiency for a skill.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// PersonalInfo holds the contact and summary block of a CV.
type PersonalInfo struct {
	FirstName   string `json:"firstName" validate:"max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location    string `json:"location,omitempty" validate:"omitempty,max=200"`
	Summary     string `json:"summary,omitempty" validate:"omitempty,max=2000"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

// Education is one entry in the education history.
type Education struct {
	Institution  string `json:"institution" validate:"required"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	Current      bool   `json:"current,omitempty"`
	Description  string `json:"description,omitempty"`
}

// WorkExperience is one entry in the work history.
type WorkExperience struct {
	Company      string   `json:"company" validate:"required"`
	Position     string   `json:"position" validate:"required"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Current      bool     `json:"current,omitempty"`
	Description  string   `json:"description,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

// Project is a personal or professional project.
type Project struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty" validate:"omitempty,url"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
}

// Skill is keyed by Name; operations addressing a skill act on the first match.
type Skill struct {
	Name  string     `json:"name" validate:"required"`
	Level SkillLevel `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

// Language is a spoken language with a proficiency label.
type Language struct {
	Name        string `json:"name" validate:"required"`
	Proficiency string `json:"proficiency,omitempty" validate:"omitempty,oneof=basic conversational fluent native"`
}

// SocialLink points at an external profile.
type SocialLink struct {
	Platform string `json:"platform" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
}

// CVDocument is the canonical CV record.
// LastUpdated and CompletionPercentage are derived and are refreshed by every transition.
type CVDocument struct {
	PersonalInfo         PersonalInfo     `json:"personalInfo"`
	Education            []Education      `json:"education" validate:"dive"`
	WorkExperience       []WorkExperience `json:"workExperience" validate:"dive"`
	Projects             []Project        `json:"projects" validate:"dive"`
	Skills               []Skill          `json:"skills" validate:"dive"`
	Languages            []Language       `json:"languages" validate:"dive"`
	SocialLinks          []SocialLink     `json:"socialLinks" validate:"dive"`
	Interests            []string         `json:"interests" validate:"dive,max=100"`
	ProfileImage         string           `json:"profileImage,omitempty"`
	LastUpdated          time.Time        `json:"lastUpdated"`
	CompletionPercentage int              `json:"completionPercentage"`
}

// NewCVDocument returns an empty document with non-nil sequences.
func NewCVDocument(now time.Time) CVDocument {
	doc := CVDocument{
		Education:      []Education{},
		WorkExperience: []WorkExperience{},
		Projects:       []Project{},
		Skills:         []Skill{},
		Languages:      []Language{},
		SocialLinks:    []SocialLink{},
		Interests:      []string{},
		LastUpdated:    now,
	}
	doc.CompletionPercentage = Completion(doc)
	return doc
}

// Clone returns a deep copy so that callers never share backing arrays.
func (d CVDocument) Clone() CVDocument {
	out := d
	out.Education = append([]Education{}, d.Education...)
	out.WorkExperience = make([]WorkExperience, len(d.WorkExperience))
	for i, w := range d.WorkExperience {
		w.Achievements = cloneStrings(w.Achievements)
		out.WorkExperience[i] = w
	}
	out.Projects = make([]Project, len(d.Projects))
	for i, p := range d.Projects {
		p.Technologies = cloneStrings(p.Technologies)
		out.Projects[i] = p
	}
	out.Skills = append([]Skill{}, d.Skills...)
	out.Languages = append([]Language{}, d.Languages...)
	out.SocialLinks = append([]SocialLink{}, d.SocialLinks...)
	out.Interests = append([]string{}, d.Interests...)
	return out
}

// Normalize replaces nil sequences with empty ones and recomputes derived fields.
func (d CVDocument) Normalize() CVDocument {
	out := d.Clone()
	return Recompute(out)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
