package cvstate

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-sync/internal/types"
)

func newTestContainer() *Container {
	return NewContainer(clockwork.NewFakeClockAt(t0), types.NewCVDocument(t0))
}

func TestContainer_DispatchMarksDirty(t *testing.T) {
	c := newTestContainer()
	assert.False(t, c.Session().HasUnsavedChanges)

	snap := c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})

	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, []types.Section{types.SectionSkills}, snap.Dirty)
	assert.True(t, c.Session().HasUnsavedChanges)
	assert.Equal(t, 15, c.Document().CompletionPercentage)
}

func TestContainer_NoOpDoesNotBumpRevision(t *testing.T) {
	c := newTestContainer()
	var calls int
	c.Subscribe(func(Snapshot) { calls++ })

	snap := c.Dispatch(RemoveSkill{Name: "missing"})

	assert.Equal(t, uint64(0), snap.Revision)
	assert.Equal(t, 0, calls)
	assert.False(t, c.Session().HasUnsavedChanges)
}

func TestContainer_MarkSyncedKeepsNewerEditsDirty(t *testing.T) {
	c := newTestContainer()
	first := c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})
	c.Dispatch(AddLanguage{Language: types.Language{Name: "Spanish"}})

	c.MarkSynced(first.Revision)

	snap := c.Snapshot()
	assert.Equal(t, []types.Section{types.SectionLanguages}, snap.Dirty)
	assert.True(t, c.Session().HasUnsavedChanges)

	c.MarkSynced(snap.Revision)
	assert.Empty(t, c.Snapshot().Dirty)
	assert.False(t, c.Session().HasUnsavedChanges)
}

func TestContainer_MarkSyncedIgnoresOlderRevision(t *testing.T) {
	c := newTestContainer()
	c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})
	c.MarkSynced(1)
	c.MarkSynced(0)
	assert.Empty(t, c.Snapshot().Dirty)
}

func TestContainer_LoadDocumentResetsBaseline(t *testing.T) {
	c := newTestContainer()
	c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})

	remote := types.NewCVDocument(t0)
	remote.Languages = []types.Language{{Name: "Spanish"}}
	snap := c.Dispatch(LoadDocument{Document: remote})

	assert.Empty(t, snap.Dirty)
	assert.False(t, c.Session().HasUnsavedChanges)
	assert.Equal(t, remote.Languages, c.Document().Languages)
}

func TestContainer_ApplyRejectsInvalidPayload(t *testing.T) {
	c := newTestContainer()

	_, err := c.Apply(AddSkill{Skill: types.Skill{Name: ""}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "skill.name")
	assert.Empty(t, c.Document().Skills)
	assert.Equal(t, verr.Fields, c.Session().ValidationErrors)
	assert.Equal(t, uint64(0), c.Snapshot().Revision)
}

func TestContainer_ApplyClearsPreviousErrors(t *testing.T) {
	c := newTestContainer()
	_, _ = c.Apply(AddSkill{})

	_, err := c.Apply(AddSkill{Skill: types.Skill{Name: "Go"}})

	require.NoError(t, err)
	assert.Empty(t, c.Session().ValidationErrors)
	assert.Len(t, c.Document().Skills, 1)
}

func TestContainer_SubscribersSeeEverySnapshot(t *testing.T) {
	c := newTestContainer()
	var revisions []uint64
	c.Subscribe(func(s Snapshot) { revisions = append(revisions, s.Revision) })

	c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})
	c.Dispatch(AddSkill{Skill: types.Skill{Name: "SQL"}})

	assert.Equal(t, []uint64{1, 2}, revisions)
}

func TestContainer_SessionState(t *testing.T) {
	c := newTestContainer()

	c.SetActiveSection(types.SectionSkills)
	assert.True(t, c.ToggleSection(types.SectionEducation))
	assert.False(t, c.ToggleSection(types.SectionEducation))
	c.SetPreviewMode(true)

	s := c.Session()
	assert.Equal(t, types.SectionSkills, s.ActiveSection)
	assert.False(t, s.Collapsed[types.SectionEducation])
	assert.True(t, s.PreviewMode)

	s.Collapsed[types.SectionSkills] = true
	assert.False(t, c.Session().Collapsed[types.SectionSkills], "session copies are detached")
}

func TestContainer_DocumentIsACopy(t *testing.T) {
	c := newTestContainer()
	c.Dispatch(AddSkill{Skill: types.Skill{Name: "Go"}})

	doc := c.Document()
	doc.Skills[0].Name = "changed"

	assert.Equal(t, "Go", c.Document().Skills[0].Name)
}
