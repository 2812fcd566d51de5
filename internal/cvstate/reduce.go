package cvstate

import (
	"time"

	"github.com/jonathan/cv-sync/internal/types"
)

// Reduce applies a to doc and returns the new document plus the sections it touched.
//
// doc is never modified. When the action changes nothing (an index outside the
// current sequence, or a natural key that does not exist) the input is returned
// as is with no touched sections. Every other transition refreshes LastUpdated
// and recomputes CompletionPercentage.
func Reduce(doc types.CVDocument, a Action, now time.Time) (types.CVDocument, []types.Section) {
	next := doc.Clone()
	var touched []types.Section

	switch act := a.(type) {
	case UpdatePersonalInfo:
		next.PersonalInfo = applyPersonalInfo(next.PersonalInfo, act.Patch)
		if next.PersonalInfo != doc.PersonalInfo {
			touched = sections(types.SectionPersonalInfo)
		}

	case AddEducation:
		next.Education = append(next.Education, act.Education)
		touched = sections(types.SectionEducation)
	case UpdateEducation:
		if replaceAt(next.Education, act.Index, act.Education) {
			touched = sections(types.SectionEducation)
		}
	case RemoveEducation:
		var ok bool
		if next.Education, ok = removeAt(next.Education, act.Index); ok {
			touched = sections(types.SectionEducation)
		}

	case AddExperience:
		next.WorkExperience = append(next.WorkExperience, act.Experience)
		touched = sections(types.SectionWorkExperience)
	case UpdateExperience:
		if replaceAt(next.WorkExperience, act.Index, act.Experience) {
			touched = sections(types.SectionWorkExperience)
		}
	case RemoveExperience:
		var ok bool
		if next.WorkExperience, ok = removeAt(next.WorkExperience, act.Index); ok {
			touched = sections(types.SectionWorkExperience)
		}

	case AddSkill:
		next.Skills = append(next.Skills, act.Skill)
		touched = sections(types.SectionSkills)
	case RemoveSkill:
		if i := skillIndex(next.Skills, act.Name); i >= 0 {
			next.Skills, _ = removeAt(next.Skills, i)
			touched = sections(types.SectionSkills)
		}
	case UpdateSkillLevel:
		if i := skillIndex(next.Skills, act.Name); i >= 0 && next.Skills[i].Level != act.Level {
			next.Skills[i].Level = act.Level
			touched = sections(types.SectionSkills)
		}

	case AddProject:
		next.Projects = append(next.Projects, act.Project)
		touched = sections(types.SectionProjects)
	case UpdateProject:
		if replaceAt(next.Projects, act.Index, act.Project) {
			touched = sections(types.SectionProjects)
		}
	case RemoveProject:
		var ok bool
		if next.Projects, ok = removeAt(next.Projects, act.Index); ok {
			touched = sections(types.SectionProjects)
		}

	case AddLanguage:
		next.Languages = append(next.Languages, act.Language)
		touched = sections(types.SectionLanguages)
	case UpdateLanguage:
		if replaceAt(next.Languages, act.Index, act.Language) {
			touched = sections(types.SectionLanguages)
		}
	case RemoveLanguage:
		var ok bool
		if next.Languages, ok = removeAt(next.Languages, act.Index); ok {
			touched = sections(types.SectionLanguages)
		}

	case AddSocialLink:
		next.SocialLinks = append(next.SocialLinks, act.Link)
		touched = sections(types.SectionSocialLinks)
	case RemoveSocialLink:
		var ok bool
		if next.SocialLinks, ok = removeAt(next.SocialLinks, act.Index); ok {
			touched = sections(types.SectionSocialLinks)
		}

	case SetInterests:
		next.Interests = append([]string{}, act.Interests...)
		touched = sections(types.SectionInterests)

	case SetProfileImage:
		if next.ProfileImage != act.URL {
			next.ProfileImage = act.URL
			touched = sections(types.SectionProfileImage)
		}

	case LoadDocument:
		// A loaded document is not an edit: it keeps its own timestamp and touches nothing.
		loaded := act.Document.Normalize()
		if loaded.LastUpdated.IsZero() {
			loaded.LastUpdated = now
		}
		return loaded, nil

	case ResetDocument:
		return types.NewCVDocument(now), types.AllSections()
	}

	if len(touched) == 0 {
		return doc, nil
	}
	next.LastUpdated = now
	return types.Recompute(next), touched
}

func applyPersonalInfo(info types.PersonalInfo, p PersonalInfoPatch) types.PersonalInfo {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&info.FirstName, p.FirstName)
	set(&info.LastName, p.LastName)
	set(&info.Email, p.Email)
	set(&info.Phone, p.Phone)
	set(&info.Location, p.Location)
	set(&info.Summary, p.Summary)
	set(&info.DateOfBirth, p.DateOfBirth)
	return info
}

func skillIndex(skills []types.Skill, name string) int {
	for i, s := range skills {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func replaceAt[T any](list []T, i int, v T) bool {
	if i < 0 || i >= len(list) {
		return false
	}
	list[i] = v
	return true
}

func removeAt[T any](list []T, i int) ([]T, bool) {
	if i < 0 || i >= len(list) {
		return list, false
	}
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...), true
}

func sections(s ...types.Section) []types.Section {
	return s
}
