// Package cvstate holds the canonical in-memory CV document and the only code allowed to change it.
//
// Every edit is expressed as an Action value. The set of actions is closed: the
// unexported marker method keeps other packages from adding new kinds, and Reduce
// handles each kind in a single type switch.
package cvstate

import "github.com/jonathan/cv-sync/internal/types"

// Action is one named transition of the document.
type Action interface {
	action()
}

// PersonalInfoPatch carries the personal info fields to overwrite. Nil fields are left as they are.
type PersonalInfoPatch struct {
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=200"`
	Summary     *string `json:"summary,omitempty" validate:"omitempty,max=2000"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
}

type UpdatePersonalInfo struct {
	Patch PersonalInfoPatch `json:"patch"`
}

type AddEducation struct {
	Education types.Education `json:"education"`
}

type UpdateEducation struct {
	Index     int             `json:"index"`
	Education types.Education `json:"education"`
}

type RemoveEducation struct {
	Index int `json:"index"`
}

type AddExperience struct {
	Experience types.WorkExperience `json:"experience"`
}

type UpdateExperience struct {
	Index      int                  `json:"index"`
	Experience types.WorkExperience `json:"experience"`
}

type RemoveExperience struct {
	Index int `json:"index"`
}

type AddSkill struct {
	Skill types.Skill `json:"skill"`
}

// RemoveSkill removes the first skill named Name.
type RemoveSkill struct {
	Name string `json:"name" validate:"required"`
}

// UpdateSkillLevel changes the level of the first skill named Name.
type UpdateSkillLevel struct {
	Name  string           `json:"name" validate:"required"`
	Level types.SkillLevel `json:"level" validate:"required,oneof=beginner intermediate advanced expert"`
}

type AddProject struct {
	Project types.Project `json:"project"`
}

type UpdateProject struct {
	Index   int           `json:"index"`
	Project types.Project `json:"project"`
}

type RemoveProject struct {
	Index int `json:"index"`
}

type AddLanguage struct {
	Language types.Language `json:"language"`
}

type UpdateLanguage struct {
	Index    int            `json:"index"`
	Language types.Language `json:"language"`
}

type RemoveLanguage struct {
	Index int `json:"index"`
}

type AddSocialLink struct {
	Link types.SocialLink `json:"link"`
}

type RemoveSocialLink struct {
	Index int `json:"index"`
}

// SetInterests replaces the interest list.
type SetInterests struct {
	Interests []string `json:"interests" validate:"dive,required,max=100"`
}

type SetProfileImage struct {
	URL string `json:"url" validate:"omitempty,url"`
}

// LoadDocument replaces the whole document, typically with a fetched or cached copy.
type LoadDocument struct {
	Document types.CVDocument `json:"document"`
}

// ResetDocument restores empty defaults.
type ResetDocument struct{}

func (UpdatePersonalInfo) action() {}
func (AddEducation) action()       {}
func (UpdateEducation) action()    {}
func (RemoveEducation) action()    {}
func (AddExperience) action()      {}
func (UpdateExperience) action()   {}
func (RemoveExperience) action()   {}
func (AddSkill) action()           {}
func (RemoveSkill) action()        {}
func (UpdateSkillLevel) action()   {}
func (AddProject) action()         {}
func (UpdateProject) action()      {}
func (RemoveProject) action()      {}
func (AddLanguage) action()        {}
func (UpdateLanguage) action()     {}
func (RemoveLanguage) action()     {}
func (AddSocialLink) action()      {}
func (RemoveSocialLink) action()   {}
func (SetInterests) action()       {}
func (SetProfileImage) action()    {}
func (LoadDocument) action()       {}
func (ResetDocument) action()      {}
