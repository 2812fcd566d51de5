package cvstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-sync/internal/types"
)

var (
	t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func strPtr(s string) *string { return &s }

func TestReduce_EducationAndSkillGives35(t *testing.T) {
	doc := types.NewCVDocument(t0)

	doc, _ = Reduce(doc, AddEducation{Education: types.Education{Institution: "UNAM", Degree: "BSc"}}, t1)
	doc, _ = Reduce(doc, AddSkill{Skill: types.Skill{Name: "Go", Level: types.SkillIntermediate}}, t1)

	assert.Equal(t, 35, doc.CompletionPercentage)
}

func TestReduce_RemoveOnlyEducationLowersCompletion(t *testing.T) {
	doc := types.NewCVDocument(t0)
	doc, _ = Reduce(doc, AddEducation{Education: types.Education{Institution: "UNAM"}}, t0)
	before := doc.CompletionPercentage

	doc, touched := Reduce(doc, RemoveEducation{Index: 0}, t1)

	assert.Empty(t, doc.Education)
	assert.NotNil(t, doc.Education)
	assert.Less(t, doc.CompletionPercentage, before)
	assert.Equal(t, []types.Section{types.SectionEducation}, touched)
	assert.Equal(t, t1, doc.LastUpdated)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	doc := types.NewCVDocument(t0)
	doc.Skills = []types.Skill{{Name: "Go", Level: types.SkillBeginner}}

	next, _ := Reduce(doc, UpdateSkillLevel{Name: "Go", Level: types.SkillExpert}, t1)

	assert.Equal(t, types.SkillBeginner, doc.Skills[0].Level)
	assert.Equal(t, types.SkillExpert, next.Skills[0].Level)
	assert.Equal(t, t0, doc.LastUpdated)
}

func TestReduce_Transitions(t *testing.T) {
	base := types.NewCVDocument(t0)
	base.Education = []types.Education{{Institution: "A"}, {Institution: "B"}}
	base.WorkExperience = []types.WorkExperience{{Company: "Acme", Position: "Intern"}}
	base.Skills = []types.Skill{{Name: "Go"}, {Name: "SQL"}, {Name: "Go", Level: types.SkillExpert}}
	base.Projects = []types.Project{{Name: "p1"}}
	base.Languages = []types.Language{{Name: "Spanish", Proficiency: "native"}}
	base.SocialLinks = []types.SocialLink{{Platform: "github", URL: "https://github.com/ana"}}

	tests := []struct {
		name    string
		action  Action
		touched []types.Section
		check   func(t *testing.T, d types.CVDocument)
	}{
		{
			name:    "update personal info merges patch",
			action:  UpdatePersonalInfo{Patch: PersonalInfoPatch{FirstName: strPtr("Ana"), LastName: strPtr("Diaz")}},
			touched: []types.Section{types.SectionPersonalInfo},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "Ana", d.PersonalInfo.FirstName)
				assert.Equal(t, "Diaz", d.PersonalInfo.LastName)
			},
		},
		{
			name:    "update education by index",
			action:  UpdateEducation{Index: 1, Education: types.Education{Institution: "C"}},
			touched: []types.Section{types.SectionEducation},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "C", d.Education[1].Institution)
				assert.Equal(t, "A", d.Education[0].Institution)
			},
		},
		{
			name:    "remove education keeps order",
			action:  RemoveEducation{Index: 0},
			touched: []types.Section{types.SectionEducation},
			check: func(t *testing.T, d types.CVDocument) {
				require.Len(t, d.Education, 1)
				assert.Equal(t, "B", d.Education[0].Institution)
			},
		},
		{
			name:    "add experience",
			action:  AddExperience{Experience: types.WorkExperience{Company: "Globex", Position: "Dev"}},
			touched: []types.Section{types.SectionWorkExperience},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Len(t, d.WorkExperience, 2)
			},
		},
		{
			name:    "update experience",
			action:  UpdateExperience{Index: 0, Experience: types.WorkExperience{Company: "Acme", Position: "Engineer"}},
			touched: []types.Section{types.SectionWorkExperience},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "Engineer", d.WorkExperience[0].Position)
			},
		},
		{
			name:    "remove experience",
			action:  RemoveExperience{Index: 0},
			touched: []types.Section{types.SectionWorkExperience},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Empty(t, d.WorkExperience)
			},
		},
		{
			name:    "remove skill acts on first match",
			action:  RemoveSkill{Name: "Go"},
			touched: []types.Section{types.SectionSkills},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, []types.Skill{{Name: "SQL"}, {Name: "Go", Level: types.SkillExpert}}, d.Skills)
			},
		},
		{
			name:    "update skill level acts on first match",
			action:  UpdateSkillLevel{Name: "Go", Level: types.SkillAdvanced},
			touched: []types.Section{types.SectionSkills},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, types.SkillAdvanced, d.Skills[0].Level)
				assert.Equal(t, types.SkillExpert, d.Skills[2].Level)
			},
		},
		{
			name:    "update project",
			action:  UpdateProject{Index: 0, Project: types.Project{Name: "p2"}},
			touched: []types.Section{types.SectionProjects},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "p2", d.Projects[0].Name)
			},
		},
		{
			name:    "remove project",
			action:  RemoveProject{Index: 0},
			touched: []types.Section{types.SectionProjects},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Empty(t, d.Projects)
			},
		},
		{
			name:    "add language",
			action:  AddLanguage{Language: types.Language{Name: "English", Proficiency: "fluent"}},
			touched: []types.Section{types.SectionLanguages},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Len(t, d.Languages, 2)
			},
		},
		{
			name:    "update language",
			action:  UpdateLanguage{Index: 0, Language: types.Language{Name: "Spanish", Proficiency: "fluent"}},
			touched: []types.Section{types.SectionLanguages},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "fluent", d.Languages[0].Proficiency)
			},
		},
		{
			name:    "remove language",
			action:  RemoveLanguage{Index: 0},
			touched: []types.Section{types.SectionLanguages},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Empty(t, d.Languages)
			},
		},
		{
			name:    "add social link",
			action:  AddSocialLink{Link: types.SocialLink{Platform: "linkedin", URL: "https://linkedin.com/in/ana"}},
			touched: []types.Section{types.SectionSocialLinks},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Len(t, d.SocialLinks, 2)
			},
		},
		{
			name:    "remove social link",
			action:  RemoveSocialLink{Index: 0},
			touched: []types.Section{types.SectionSocialLinks},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Empty(t, d.SocialLinks)
			},
		},
		{
			name:    "set interests",
			action:  SetInterests{Interests: []string{"chess", "running"}},
			touched: []types.Section{types.SectionInterests},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, []string{"chess", "running"}, d.Interests)
			},
		},
		{
			name:    "set profile image",
			action:  SetProfileImage{URL: "https://cdn.example.com/ana.png"},
			touched: []types.Section{types.SectionProfileImage},
			check: func(t *testing.T, d types.CVDocument) {
				assert.Equal(t, "https://cdn.example.com/ana.png", d.ProfileImage)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, touched := Reduce(base, tt.action, t1)
			assert.Equal(t, tt.touched, touched)
			assert.Equal(t, t1, got.LastUpdated)
			assert.Equal(t, types.Completion(got), got.CompletionPercentage)
			tt.check(t, got)
		})
	}
}

func TestReduce_NoOps(t *testing.T) {
	base := types.NewCVDocument(t0)
	base.Skills = []types.Skill{{Name: "Go", Level: types.SkillExpert}}
	base.Education = []types.Education{{Institution: "A"}}
	base.PersonalInfo.FirstName = "Ana"
	base.ProfileImage = "https://cdn.example.com/a.png"

	tests := []struct {
		name   string
		action Action
	}{
		{name: "remove missing skill", action: RemoveSkill{Name: "Cobol"}},
		{name: "level of missing skill", action: UpdateSkillLevel{Name: "Cobol", Level: types.SkillBeginner}},
		{name: "same skill level", action: UpdateSkillLevel{Name: "Go", Level: types.SkillExpert}},
		{name: "education index out of range", action: RemoveEducation{Index: 3}},
		{name: "negative index", action: UpdateEducation{Index: -1, Education: types.Education{Institution: "X"}}},
		{name: "empty personal patch", action: UpdatePersonalInfo{}},
		{name: "same personal value", action: UpdatePersonalInfo{Patch: PersonalInfoPatch{FirstName: strPtr("Ana")}}},
		{name: "same profile image", action: SetProfileImage{URL: "https://cdn.example.com/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, touched := Reduce(base, tt.action, t1)
			assert.Nil(t, touched)
			assert.Equal(t, base, got)
		})
	}
}

func TestReduce_LoadDocumentIsIdempotent(t *testing.T) {
	remote := types.CVDocument{
		PersonalInfo:         types.PersonalInfo{FirstName: "Ana", LastName: "Diaz"},
		Skills:               []types.Skill{{Name: "Go"}},
		LastUpdated:          t0,
		CompletionPercentage: 99,
	}

	once, touched := Reduce(types.NewCVDocument(t0), LoadDocument{Document: remote}, t1)
	twice, _ := Reduce(once, LoadDocument{Document: remote}, t1)

	assert.Nil(t, touched)
	assert.Equal(t, once, twice)
	assert.Equal(t, 40, once.CompletionPercentage, "derived field is recomputed, not trusted")
	assert.Equal(t, t0, once.LastUpdated)
	assert.NotNil(t, once.Languages)
}

func TestReduce_LoadDocumentWithoutTimestamp(t *testing.T) {
	got, _ := Reduce(types.NewCVDocument(t0), LoadDocument{Document: types.CVDocument{}}, t1)
	assert.Equal(t, t1, got.LastUpdated)
}

func TestReduce_ResetDocument(t *testing.T) {
	base := types.NewCVDocument(t0)
	base.Skills = []types.Skill{{Name: "Go"}}
	base.ProfileImage = "https://cdn.example.com/a.png"

	got, touched := Reduce(base, ResetDocument{}, t1)
	assert.Equal(t, types.NewCVDocument(t1), got)
	assert.Equal(t, types.AllSections(), touched)
}

func TestReduce_CompletionIndependentOfOrder(t *testing.T) {
	actions := []Action{
		AddSkill{Skill: types.Skill{Name: "Go"}},
		AddLanguage{Language: types.Language{Name: "Spanish"}},
		AddProject{Project: types.Project{Name: "p"}},
		UpdatePersonalInfo{Patch: PersonalInfoPatch{FirstName: strPtr("Ana"), LastName: strPtr("Diaz")}},
	}

	forward := types.NewCVDocument(t0)
	for _, a := range actions {
		forward, _ = Reduce(forward, a, t1)
	}
	backward := types.NewCVDocument(t0)
	for i := len(actions) - 1; i >= 0; i-- {
		backward, _ = Reduce(backward, actions[i], t1)
	}

	assert.Equal(t, 55, forward.CompletionPercentage)
	assert.Equal(t, forward.CompletionPercentage, backward.CompletionPercentage)
}
