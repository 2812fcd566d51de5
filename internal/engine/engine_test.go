package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-sync/internal/autosave"
	"github.com/jonathan/cv-sync/internal/cvstate"
	"github.com/jonathan/cv-sync/internal/netmon"
	"github.com/jonathan/cv-sync/internal/pdf"
	"github.com/jonathan/cv-sync/internal/queue"
	"github.com/jonathan/cv-sync/internal/remote"
	"github.com/jonathan/cv-sync/internal/storage"
	"github.com/jonathan/cv-sync/internal/types"
)

type fakeRemote struct {
	mu        sync.Mutex
	doc       *types.CVDocument
	fetches   int
	pushes    []types.Partial
	pushErr   error
	uploadURL string
	uploadErr error
	renderURL string
	renderErr error
	pingErr   error
}

func (f *fakeRemote) Fetch(context.Context) (*types.CVDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.doc == nil {
		return nil, &remote.HTTPError{Op: "fetch", StatusCode: http.StatusNotFound, Message: "not found"}
	}
	doc := f.doc.Clone()
	return &doc, nil
}

func (f *fakeRemote) Push(_ context.Context, data types.Partial) (*types.CVDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushes = append(f.pushes, data)
	return &types.CVDocument{}, nil
}

func (f *fakeRemote) UploadProfileImage(_ context.Context, _ string, r io.Reader, onProgress func(float64)) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if onProgress != nil {
		onProgress(1)
	}
	return f.uploadURL, nil
}

func (f *fakeRemote) RenderPDF(_ context.Context, _ types.RenderRequest, onProgress func(int)) (string, error) {
	onProgress(50)
	return f.renderURL, f.renderErr
}

func (f *fakeRemote) Ping(context.Context) error { return f.pingErr }

func (f *fakeRemote) setPushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErr = err
}

func (f *fakeRemote) pushed() []types.Partial {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Partial{}, f.pushes...)
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newEngine(t *testing.T, clock clockwork.Clock, rem *fakeRemote, cfg Config, store storage.Store) *Engine {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	e, err := New(Deps{Clock: clock, Store: store, Remote: rem, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	return e
}

func skillsOf(t *testing.T, p types.Partial) []string {
	t.Helper()
	var skills []types.Skill
	require.NoError(t, json.Unmarshal(p["skills"], &skills))
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return names
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{Remote: &fakeRemote{}})
	assert.Error(t, err)
	_, err = New(Deps{Store: storage.NewMemoryStore()})
	assert.Error(t, err)
}

func TestOfflineEditsSyncAsOneConsolidatedPush(t *testing.T) {
	rem := &fakeRemote{}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{}, nil)
	require.False(t, e.Status().IsOnline)

	edits := []cvstate.Action{
		cvstate.AddSkill{Skill: types.Skill{Name: "Go"}},
		cvstate.AddLanguage{Language: types.Language{Name: "Spanish", Proficiency: "basic"}},
		cvstate.AddSkill{Skill: types.Skill{Name: "SQL"}},
		cvstate.UpdateLanguage{Index: 0, Language: types.Language{Name: "Spanish", Proficiency: "fluent"}},
		cvstate.RemoveSkill{Name: "Go"},
	}
	for i, a := range edits {
		_, err := e.Apply(a)
		require.NoError(t, err)
		clock.Advance(autosave.DefaultDelay)
		n := i + 1
		require.Eventually(t, func() bool { return len(e.PendingUpdates()) == n }, time.Second, 5*time.Millisecond)
	}
	assert.Empty(t, rem.pushed())
	assert.Equal(t, "offline, pending sync", e.Status().Label())
	assert.True(t, e.Session().HasUnsavedChanges)

	e.Monitor().Set(true)
	clock.Advance(netmon.DefaultSettle)

	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.Status().PendingCount == 0 }, time.Second, 5*time.Millisecond)

	push := rem.pushed()[0]
	assert.Equal(t, []string{"SQL"}, skillsOf(t, push), "latest list value wins")
	var languages []types.Language
	require.NoError(t, json.Unmarshal(push["languages"], &languages))
	assert.Equal(t, []types.Language{{Name: "Spanish", Proficiency: "fluent"}}, languages)
	assert.Equal(t, []types.Section{types.SectionLanguages, types.SectionSkills}, push.Sections())

	status := e.Status()
	assert.NotNil(t, status.LastSyncTime)
	assert.Equal(t, "saved", status.Label())
	assert.False(t, e.Session().HasUnsavedChanges)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rem.pushed(), 1, "exactly one push")
}

func TestOnlineEditPushesDirtySectionsDirectly(t *testing.T) {
	server := types.NewCVDocument(time.Now())
	server.PersonalInfo.FirstName = "Ada"
	rem := &fakeRemote{doc: &server}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	assert.Equal(t, 1, rem.fetchCount())
	assert.Equal(t, "Ada", e.Document().PersonalInfo.FirstName)
	assert.False(t, e.Session().HasUnsavedChanges)

	_, err := e.Apply(cvstate.AddEducation{Education: types.Education{Institution: "Cambridge"}})
	require.NoError(t, err)
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.Section{types.SectionEducation}, rem.pushed()[0].Sections())
	require.Eventually(t, func() bool { return !e.Session().HasUnsavedChanges }, time.Second, 5*time.Millisecond)
	assert.Zero(t, e.Status().PendingCount)
}

func TestRapidEditsProduceOnePersistAndPush(t *testing.T) {
	rem := &fakeRemote{}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	for _, name := range []string{"A", "Ad", "Ada"} {
		n := name
		e.Dispatch(cvstate.UpdatePersonalInfo{Patch: cvstate.PersonalInfoPatch{FirstName: &n}})
		clock.Advance(time.Second)
	}
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rem.pushed(), 1)
	assert.JSONEq(t, `{"firstName":"Ada","lastName":""}`, string(rem.pushed()[0]["personalInfo"]))
}

func TestRejectedUpdateParksQueue(t *testing.T) {
	rem := &fakeRemote{pushErr: &remote.HTTPError{Op: "push", StatusCode: http.StatusUnprocessableEntity, Message: "bad skill"}}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	_, err := e.Apply(cvstate.AddSkill{Skill: types.Skill{Name: "Go"}})
	require.NoError(t, err)
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return e.Status().Parked }, time.Second, 5*time.Millisecond)
	status := e.Status()
	assert.Equal(t, 1, status.PendingCount, "data is preserved")
	assert.Contains(t, status.SyncError, "bad skill")
	assert.Equal(t, "sync error", status.Label())
	assert.True(t, status.IsOnline, "a rejection is not a connectivity problem")

	// a reconnect does not retry a parked queue
	rem.setPushErr(nil)
	e.Monitor().Set(false)
	e.Monitor().Set(true)
	clock.Advance(netmon.DefaultSettle)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rem.pushed())

	require.NoError(t, e.ForceSync(context.Background()))
	assert.Len(t, rem.pushed(), 1)
	status = e.Status()
	assert.False(t, status.Parked)
	assert.Empty(t, status.SyncError)
	assert.Zero(t, status.PendingCount)
	assert.False(t, e.Session().HasUnsavedChanges)
}

func TestNextEditUnparks(t *testing.T) {
	rem := &fakeRemote{pushErr: &remote.HTTPError{Op: "push", StatusCode: http.StatusBadRequest, Message: "nope"}}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	e.Dispatch(cvstate.AddSkill{Skill: types.Skill{Name: "Go"}})
	clock.Advance(autosave.DefaultDelay)
	require.Eventually(t, func() bool { return e.Status().Parked }, time.Second, 5*time.Millisecond)

	rem.setPushErr(nil)
	e.Dispatch(cvstate.AddSkill{Skill: types.Skill{Name: "SQL"}})
	assert.False(t, e.Status().Parked)
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Go", "SQL"}, skillsOf(t, rem.pushed()[0]))
	require.Eventually(t, func() bool { return e.Status().PendingCount == 0 }, time.Second, 5*time.Millisecond)
}

func TestNetworkFailureQueuesAndGoesOffline(t *testing.T) {
	rem := &fakeRemote{pushErr: &remote.NetworkError{Op: "push", URL: "http://x", Cause: errors.New("connection refused")}}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	e.Dispatch(cvstate.SetInterests{Interests: []string{"chess"}})
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return !e.Status().IsOnline }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.Status().PendingCount == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, e.Status().Parked)
	assert.Empty(t, e.Status().SyncError)

	rem.setPushErr(nil)
	e.Monitor().Set(true)
	clock.Advance(netmon.DefaultSettle)
	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `["chess"]`, string(rem.pushed()[0]["interests"]))
}

func TestStartPrefersLocalCopyWhenQueueIsNotEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	local := storage.NewLocal(store)

	cached := types.NewCVDocument(time.Now())
	cached.Skills = []types.Skill{{Name: "Go"}}
	require.NoError(t, local.SaveDocument(ctx, cached))
	q := queue.New(local)
	data, err := types.PartialOf(cached, types.SectionSkills)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(data, "previous-run", 4)))

	server := types.NewCVDocument(time.Now())
	rem := &fakeRemote{doc: &server}
	e := newEngine(t, clockwork.NewFakeClock(), rem, Config{StartOnline: true}, store)

	assert.Zero(t, rem.fetchCount(), "local edits are not overwritten by the server copy")
	assert.Equal(t, []types.Skill{{Name: "Go"}}, e.Document().Skills)
	require.Len(t, rem.pushed(), 1, "queued updates are flushed on start")
	assert.Zero(t, e.Status().PendingCount)
}

func TestStartFallsBackToLocalThenDefaults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cached := types.NewCVDocument(time.Now())
	cached.PersonalInfo.FirstName = "Cached"
	require.NoError(t, storage.NewLocal(store).SaveDocument(ctx, cached))

	rem := &fakeRemote{pingErr: errors.New("down")}
	e := newEngine(t, clockwork.NewFakeClock(), rem, Config{}, store)
	assert.Equal(t, "Cached", e.Document().PersonalInfo.FirstName)

	empty := newEngine(t, clockwork.NewFakeClock(), &fakeRemote{}, Config{}, nil)
	assert.Equal(t, 0, empty.Document().CompletionPercentage)
	assert.NotNil(t, empty.Document().Skills)
}

func TestStopFlushesPendingAutosave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	e, err := New(Deps{Clock: clock, Store: store, Remote: &fakeRemote{}})
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))

	e.Dispatch(cvstate.AddLanguage{Language: types.Language{Name: "French"}})
	require.NoError(t, e.Stop(ctx))

	doc, err := storage.NewLocal(store).LoadDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Language{{Name: "French"}}, doc.Languages)
}

func TestFlushSavesWithoutWaitingForTheDebounce(t *testing.T) {
	rem := &fakeRemote{}
	e := newEngine(t, clockwork.NewFakeClock(), rem, Config{StartOnline: true}, nil)

	assert.False(t, e.Flush(), "nothing scheduled")

	e.Dispatch(cvstate.AddSkill{Skill: types.Skill{Name: "Go"}})
	assert.True(t, e.Flush())

	require.Len(t, rem.pushed(), 1, "the push runs before Flush returns")
	assert.Equal(t, []string{"Go"}, skillsOf(t, rem.pushed()[0]))
	assert.False(t, e.Session().HasUnsavedChanges)
}

func TestUploadProfileImage(t *testing.T) {
	rem := &fakeRemote{uploadURL: "https://cdn.example/me.png"}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{StartOnline: true}, nil)

	u, err := e.UploadProfileImage(context.Background(), "me.png", strings.NewReader("img"), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/me.png", u)
	assert.Equal(t, u, e.Document().ProfileImage)

	clock.Advance(autosave.DefaultDelay)
	require.Eventually(t, func() bool { return len(rem.pushed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `"https://cdn.example/me.png"`, string(rem.pushed()[0]["profileImage"]))
}

func TestUploadProfileImage_OfflineIsQueuedAsImageUpdate(t *testing.T) {
	rem := &fakeRemote{uploadURL: "https://cdn.example/me.png"}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{}, nil)

	_, err := e.UploadProfileImage(context.Background(), "me.png", strings.NewReader("img"), nil)
	require.NoError(t, err)
	clock.Advance(autosave.DefaultDelay)

	require.Eventually(t, func() bool { return len(e.PendingUpdates()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, queue.TypeProfileImage, e.PendingUpdates()[0].Type)
}

func TestResetKeepsTemplateAndNetworkState(t *testing.T) {
	e := newEngine(t, clockwork.NewFakeClock(), &fakeRemote{}, Config{StartOnline: true}, nil)
	require.NoError(t, e.SelectTemplate(types.TemplateClassic))
	e.Dispatch(cvstate.AddSkill{Skill: types.Skill{Name: "Go"}})

	snap := e.Reset()
	assert.Empty(t, snap.Document.Skills)
	assert.Equal(t, types.TemplateClassic, e.PDFJob().Template)
	assert.True(t, e.Status().IsOnline)
}

func TestGeneratePDF(t *testing.T) {
	rem := &fakeRemote{renderURL: "https://cdn.example/cv.pdf"}
	e := newEngine(t, clockwork.NewFakeClock(), rem, Config{StartOnline: true}, nil)

	var jobs []pdf.Job
	e.SubscribePDF(func(j pdf.Job) { jobs = append(jobs, j) })

	u, err := e.GeneratePDF(context.Background(), "", pdf.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/cv.pdf", u)
	assert.Equal(t, 100, e.PDFJob().Progress)
	require.NotEmpty(t, jobs)

	rem.renderURL = ""
	rem.renderErr = &remote.NetworkError{Op: "render pdf", URL: "http://x", Cause: errors.New("reset")}
	_, err = e.GeneratePDF(context.Background(), types.TemplateMinimal, pdf.Options{})
	require.Error(t, err)

	job := e.PDFJob()
	assert.False(t, job.IsGenerating)
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "https://cdn.example/cv.pdf", job.LastGeneratedURI)
	assert.False(t, e.Status().IsOnline)
}

func TestDiscardPending(t *testing.T) {
	rem := &fakeRemote{}
	clock := clockwork.NewFakeClock()
	e := newEngine(t, clock, rem, Config{}, nil)

	e.Dispatch(cvstate.AddSkill{Skill: types.Skill{Name: "Go"}})
	clock.Advance(autosave.DefaultDelay)
	require.Eventually(t, func() bool { return e.Status().PendingCount == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.DiscardPending(context.Background()))
	assert.Zero(t, e.Status().PendingCount)
}

func TestApplyValidationError(t *testing.T) {
	e := newEngine(t, clockwork.NewFakeClock(), &fakeRemote{}, Config{}, nil)

	_, err := e.Apply(cvstate.AddSkill{Skill: types.Skill{}})
	var ve *cvstate.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, e.Document().Skills)
	assert.NotEmpty(t, e.Session().ValidationErrors)
}
