package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Partial is a partial CVDocument keyed by top-level JSON field name.
// Each value carries the complete new value of that field.
type Partial map[string]json.RawMessage

// PartialError reports a partial update that cannot be applied to a document.
type PartialError struct {
	Field   string
	Message string
	Cause   error
}

func (e *PartialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("partial update field %q: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("partial update field %q: %s", e.Field, e.Message)
}

func (e *PartialError) Unwrap() error {
	return e.Cause
}

// PartialOf extracts the named sections of doc into a Partial.
// With no sections, every editable section is included.
func PartialOf(doc CVDocument, sections ...Section) (Partial, error) {
	if len(sections) == 0 {
		sections = AllSections()
	}
	doc = Recompute(doc)

	p := make(Partial, len(sections))
	for _, s := range sections {
		var value any
		switch s {
		case SectionPersonalInfo:
			value = doc.PersonalInfo
		case SectionEducation:
			value = doc.Education
		case SectionWorkExperience:
			value = doc.WorkExperience
		case SectionProjects:
			value = doc.Projects
		case SectionSkills:
			value = doc.Skills
		case SectionLanguages:
			value = doc.Languages
		case SectionSocialLinks:
			value = doc.SocialLinks
		case SectionInterests:
			value = doc.Interests
		case SectionProfileImage:
			value = doc.ProfileImage
		default:
			return nil, &PartialError{Field: string(s), Message: "unknown section"}
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, &PartialError{Field: string(s), Message: "failed to encode", Cause: err}
		}
		p[string(s)] = raw
	}
	return p, nil
}

// Merge returns a new Partial holding p overlaid with next.
// Fields present in next win; list fields are replaced, never concatenated.
func (p Partial) Merge(next Partial) Partial {
	out := make(Partial, len(p)+len(next))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

// Sections returns the sections named by p in sorted order.
func (p Partial) Sections() []Section {
	out := make([]Section, 0, len(p))
	for k := range p {
		out = append(out, Section(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether both partials carry byte-identical values for the same fields.
func (p Partial) Equal(other Partial) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		ov, ok := other[k]
		if !ok || string(v) != string(ov) {
			return false
		}
	}
	return true
}

// ApplyPartial overlays p onto doc and returns the result with derived fields recomputed.
// Derived fields and unknown keys are rejected.
func ApplyPartial(doc CVDocument, p Partial) (CVDocument, error) {
	out := doc.Clone()
	for _, s := range p.Sections() {
		raw := p[string(s)]
		var err error
		switch s {
		case SectionPersonalInfo:
			var v PersonalInfo
			err = json.Unmarshal(raw, &v)
			out.PersonalInfo = v
		case SectionEducation:
			var v []Education
			err = json.Unmarshal(raw, &v)
			out.Education = v
		case SectionWorkExperience:
			var v []WorkExperience
			err = json.Unmarshal(raw, &v)
			out.WorkExperience = v
		case SectionProjects:
			var v []Project
			err = json.Unmarshal(raw, &v)
			out.Projects = v
		case SectionSkills:
			var v []Skill
			err = json.Unmarshal(raw, &v)
			out.Skills = v
		case SectionLanguages:
			var v []Language
			err = json.Unmarshal(raw, &v)
			out.Languages = v
		case SectionSocialLinks:
			var v []SocialLink
			err = json.Unmarshal(raw, &v)
			out.SocialLinks = v
		case SectionInterests:
			var v []string
			err = json.Unmarshal(raw, &v)
			out.Interests = v
		case SectionProfileImage:
			var v string
			err = json.Unmarshal(raw, &v)
			out.ProfileImage = v
		case "lastUpdated", "completionPercentage":
			return doc, &PartialError{Field: string(s), Message: "derived field cannot be set"}
		default:
			return doc, &PartialError{Field: string(s), Message: "unknown field"}
		}
		if err != nil {
			return doc, &PartialError{Field: string(s), Message: "invalid value", Cause: err}
		}
	}
	return Recompute(out), nil
}
