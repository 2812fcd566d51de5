package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/db"
	"github.com/jonathan/cv-sync/internal/types"
)

// DBClient is the persistence the server needs. *db.DB satisfies it; MemoryDB
// backs the server when no DATABASE_URL is configured and in tests.
type DBClient interface {
	GetCV(ctx context.Context, userID uuid.UUID) (*db.StoredCV, error)
	UpdateCV(ctx context.Context, userID uuid.UUID, fn func(types.CVDocument) (types.CVDocument, error)) (*db.StoredCV, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	UpsertUser(ctx context.Context, email, passwordHash string) (*db.User, error)
	RecordArtifact(ctx context.Context, a *db.Artifact) error
}

var _ DBClient = (*db.DB)(nil)

// MemoryDB is an in-process DBClient. Data is lost on restart.
type MemoryDB struct {
	clock clockwork.Clock

	mu        sync.Mutex
	users     map[string]*db.User
	cvs       map[uuid.UUID]*db.StoredCV
	artifacts []db.Artifact
}

// NewMemoryDB creates an empty MemoryDB.
func NewMemoryDB(clock clockwork.Clock) *MemoryDB {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryDB{
		clock: clock,
		users: make(map[string]*db.User),
		cvs:   make(map[uuid.UUID]*db.StoredCV),
	}
}

func (m *MemoryDB) GetCV(_ context.Context, userID uuid.UUID) (*db.StoredCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cv, ok := m.cvs[userID]
	if !ok {
		return nil, nil
	}
	out := *cv
	out.Document = cv.Document.Clone()
	return &out, nil
}

// UpdateCV applies fn under the store lock, so concurrent updates serialize like the row lock in *db.DB.
func (m *MemoryDB) UpdateCV(_ context.Context, userID uuid.UUID, fn func(types.CVDocument) (types.CVDocument, error)) (*db.StoredCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	doc := types.NewCVDocument(now)
	var version int64
	if cv, ok := m.cvs[userID]; ok {
		doc = cv.Document.Clone()
		version = cv.Version
	}

	next, err := fn(doc)
	if err != nil {
		return nil, err
	}

	saved := &db.StoredCV{
		UserID:    userID,
		Document:  next.Normalize(),
		Version:   version + 1,
		UpdatedAt: now,
	}
	m.cvs[userID] = saved

	out := *saved
	out.Document = saved.Document.Clone()
	return &out, nil
}

func (m *MemoryDB) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (m *MemoryDB) UpsertUser(_ context.Context, email, passwordHash string) (*db.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	u, ok := m.users[email]
	if !ok {
		u = &db.User{ID: uuid.New(), Email: email, CreatedAt: now}
		m.users[email] = u
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	out := *u
	return &out, nil
}

func (m *MemoryDB) RecordArtifact(_ context.Context, a *db.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = m.clock.Now()
	m.artifacts = append(m.artifacts, *a)
	return nil
}

// Artifacts returns the recorded artifacts for userID, oldest first.
func (m *MemoryDB) Artifacts(userID uuid.UUID) []db.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Artifact
	for _, a := range m.artifacts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
