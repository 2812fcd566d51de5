package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-sync/internal/storage"
	"github.com/jonathan/cv-sync/internal/types"
)

func partial(t *testing.T, fields map[string]any) types.Partial {
	t.Helper()
	p := types.Partial{}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		p[k] = raw
	}
	return p
}

func newQueue(t *testing.T, opts ...Option) (*Queue, *storage.Local) {
	t.Helper()
	local := storage.NewLocal(storage.NewMemoryStore())
	opts = append([]Option{WithClock(clockwork.NewFakeClock())}, opts...)
	return New(local, opts...), local
}

func TestConsolidate(t *testing.T) {
	updates := []PendingUpdate{
		{Data: partial(t, map[string]any{
			"skills":       []types.Skill{{Name: "Go"}},
			"personalInfo": types.PersonalInfo{FirstName: "Ada"},
		})},
		{Data: partial(t, map[string]any{
			"skills": []types.Skill{{Name: "Go"}, {Name: "SQL"}},
		})},
		{Data: partial(t, map[string]any{
			"skills":    []types.Skill{{Name: "SQL"}},
			"education": []types.Education{{Institution: "MIT"}},
		})},
	}

	got := Consolidate(updates)

	assert.Equal(t, []types.Section{"education", "personalInfo", "skills"}, got.Sections())
	assert.JSONEq(t, `[{"name":"SQL"}]`, string(got["skills"]), "lists are replaced, not concatenated")
	assert.JSONEq(t, `[{"institution":"MIT"}]`, string(got["education"]))
	assert.JSONEq(t, `{"firstName":"Ada","lastName":""}`, string(got["personalInfo"]))
}

func TestConsolidate_Empty(t *testing.T) {
	assert.Empty(t, Consolidate(nil))
}

func TestEnqueue_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	q, local := newQueue(t)

	u := q.NewUpdate(partial(t, map[string]any{"interests": []string{"chess"}}), "s1", 3)
	require.NoError(t, q.Enqueue(ctx, u))
	assert.Equal(t, 1, q.Len())

	restored := New(local)
	require.NoError(t, restored.Load(ctx))
	entries := restored.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, u.ID, entries[0].ID)
	assert.Equal(t, TypeCVUpdate, entries[0].Type)
	assert.Equal(t, uint64(3), entries[0].Revision)
	assert.True(t, u.Data.Equal(entries[0].Data))
}

func TestEnqueue_FillsDefaults(t *testing.T) {
	q, _ := newQueue(t)
	require.NoError(t, q.Enqueue(context.Background(), PendingUpdate{
		Data: partial(t, map[string]any{"profileImage": "https://img.example/a.png"}),
	}))

	got := q.Entries()[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, TypeCVUpdate, got.Type)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEnqueue_IgnoresEmptyPayload(t *testing.T) {
	q, _ := newQueue(t)
	require.NoError(t, q.Enqueue(context.Background(), PendingUpdate{}))
	assert.Zero(t, q.Len())
}

func TestEnqueue_DropsDuplicateTail(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	data := partial(t, map[string]any{"skills": []types.Skill{{Name: "Go"}}})

	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(data, "s1", 1)))
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(data, "s1", 2)))

	entries := q.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(2), entries[0].Revision, "revision advances on a duplicate")
}

func TestEnqueue_CompactsAboveMax(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, WithMaxEntries(3))

	for i := 1; i <= 4; i++ {
		data := partial(t, map[string]any{"interests": []string{string(rune('a' + i))}})
		if i == 1 {
			data = partial(t, map[string]any{"personalInfo": types.PersonalInfo{FirstName: "Ada"}})
		}
		require.NoError(t, q.Enqueue(ctx, q.NewUpdate(data, "s1", uint64(i))))
	}

	entries := q.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(4), entries[0].Revision)
	assert.JSONEq(t, `["e"]`, string(entries[0].Data["interests"]))
	assert.Contains(t, entries[0].Data, "personalInfo")
}

func TestDrain_Success(t *testing.T) {
	ctx := context.Background()
	q, local := newQueue(t)

	for i, skills := range [][]string{{"Go"}, {"Go", "SQL"}, {"Rust"}} {
		list := make([]types.Skill, 0, len(skills))
		for _, s := range skills {
			list = append(list, types.Skill{Name: s})
		}
		require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"skills": list}), "s1", uint64(i+1))))
	}

	var pushes []types.Partial
	drained, err := q.Drain(ctx, func(_ context.Context, p types.Partial) error {
		pushes = append(pushes, p)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, pushes, 1, "one consolidated push")
	assert.JSONEq(t, `[{"name":"Rust"}]`, string(pushes[0]["skills"]))
	assert.Len(t, drained, 3)
	assert.Zero(t, q.Len())

	restored := New(local)
	require.NoError(t, restored.Load(ctx))
	assert.Zero(t, restored.Len(), "acknowledged entries are removed from the store")
}

func TestDrain_FailureLeavesQueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"go"}}), "s1", 1)))
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"chess"}}), "s1", 2)))

	boom := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		drained, err := q.Drain(ctx, func(context.Context, types.Partial) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, drained)
		assert.Equal(t, 2, q.Len(), "failed drains never shrink the queue")
	}
}

func TestDrain_KeepsEntriesEnqueuedDuringPush(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"a"}}), "s1", 1)))

	late := q.NewUpdate(partial(t, map[string]any{"interests": []string{"b"}}), "s1", 2)
	drained, err := q.Drain(ctx, func(ctx context.Context, p types.Partial) error {
		return q.Enqueue(ctx, late)
	})
	require.NoError(t, err)
	assert.Len(t, drained, 1)

	entries := q.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, late.ID, entries[0].ID)
}

// gatedPersister blocks the first save of an empty queue until release is closed.
type gatedPersister struct {
	*storage.Local
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) Save(ctx context.Context, key string, v any) error {
	if entries, ok := v.([]PendingUpdate); ok && len(entries) == 0 {
		blocked := false
		g.once.Do(func() { blocked = true })
		if blocked {
			close(g.entered)
			<-g.release
		}
	}
	return g.Local.Save(ctx, key, v)
}

func TestDrain_PostAckSaveDoesNotEraseLaterEnqueue(t *testing.T) {
	ctx := context.Background()
	local := storage.NewLocal(storage.NewMemoryStore())
	gate := &gatedPersister{Local: local, entered: make(chan struct{}), release: make(chan struct{})}
	q := New(gate, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"a"}}), "s1", 1)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := q.Drain(ctx, func(context.Context, types.Partial) error { return nil })
		assert.NoError(t, err)
	}()
	<-gate.entered

	late := q.NewUpdate(partial(t, map[string]any{"interests": []string{"b"}}), "s1", 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, q.Enqueue(ctx, late))
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	require.Equal(t, 1, q.Len())

	restored := New(local)
	require.NoError(t, restored.Load(ctx))
	entries := restored.Entries()
	require.Len(t, entries, 1, "the later entry survives a restart")
	assert.Equal(t, late.ID, entries[0].ID)
}

func TestDrain_EmptyQueueDoesNotPush(t *testing.T) {
	q, _ := newQueue(t)
	called := false
	drained, err := q.Drain(context.Background(), func(context.Context, types.Partial) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, drained)
	assert.False(t, called)
}

func TestDrain_ConcurrentCallsShareOnePush(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"a"}}), "s1", 1)))

	var pushes atomic.Int32
	release := make(chan struct{})
	push := func(context.Context, types.Partial) error {
		pushes.Add(1)
		<-release
		return nil
	}

	var wg sync.WaitGroup
	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		_, _ = q.Drain(ctx, push)
	}()
	<-started
	require.Eventually(t, func() bool { return pushes.Load() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Drain(ctx, push)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), pushes.Load())
	assert.Zero(t, q.Len())
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	q, local := newQueue(t)
	require.NoError(t, q.Enqueue(ctx, q.NewUpdate(partial(t, map[string]any{"interests": []string{"a"}}), "s1", 1)))

	require.NoError(t, q.Discard(ctx))
	assert.Zero(t, q.Len())

	var entries []PendingUpdate
	assert.ErrorIs(t, local.Load(ctx, storage.KeyPendingUpdates, &entries), storage.ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Write(ctx, storage.KeyPendingUpdates, []byte(`[{"id": 5}]`)))

	q := New(storage.NewLocal(kv))
	err := q.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
	assert.Zero(t, q.Len())
}

func TestLoad_Missing(t *testing.T) {
	q, _ := newQueue(t)
	require.NoError(t, q.Load(context.Background()))
	assert.Zero(t, q.Len())
}
