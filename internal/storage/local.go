package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/schemas"
	"github.com/jonathan/cv-sync/internal/types"
	embedded "github.com/jonathan/cv-sync/schemas"
)

// CurrentSchemaVersion is written into every envelope.
// Blobs without an envelope are treated as version 0.
const CurrentSchemaVersion = 1

// Envelope wraps every persisted value with its schema version and a checksum of Data.
type Envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SavedAt       time.Time       `json:"savedAt"`
	Checksum      string          `json:"checksum"`
	Data          json.RawMessage `json:"data"`
}

// Migration upgrades the payload stored under Key from version From to From+1.
type Migration struct {
	Key  string
	From int
	Up   func(json.RawMessage) (json.RawMessage, error)
}

// Local persists JSON values in a Store inside versioned envelopes.
type Local struct {
	kv         Store
	clock      clockwork.Clock
	schemas    map[string]string
	migrations map[string]map[int]func(json.RawMessage) (json.RawMessage, error)
}

// Option configures a Local.
type Option func(*Local)

// WithClock sets the clock used for SavedAt.
func WithClock(c clockwork.Clock) Option {
	return func(l *Local) { l.clock = c }
}

// WithMigration registers an additional payload migration.
func WithMigration(m Migration) Option {
	return func(l *Local) { l.addMigration(m) }
}

// WithSchema validates values loaded from key against the named embedded schema.
func WithSchema(key, schemaName string) Option {
	return func(l *Local) { l.schemas[key] = schemaName }
}

// NewLocal wraps kv. The document and queue keys are schema-checked and carry the built-in migrations.
func NewLocal(kv Store, opts ...Option) *Local {
	l := &Local{
		kv:    kv,
		clock: clockwork.NewRealClock(),
		schemas: map[string]string{
			KeyDocument:       embedded.CVDocument,
			KeyPendingUpdates: embedded.PendingUpdates,
		},
		migrations: make(map[string]map[int]func(json.RawMessage) (json.RawMessage, error)),
	}
	for _, m := range DefaultMigrations() {
		l.addMigration(m)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) addMigration(m Migration) {
	if l.migrations[m.Key] == nil {
		l.migrations[m.Key] = make(map[int]func(json.RawMessage) (json.RawMessage, error))
	}
	l.migrations[m.Key][m.From] = m.Up
}

// Save encodes v and writes it under key.
func (l *Local) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Key: key, Op: "save", Message: "failed to encode value", Cause: err}
	}
	env := Envelope{
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       l.clock.Now().UTC(),
		Checksum:      checksum(data),
		Data:          data,
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return &StorageError{Key: key, Op: "save", Message: "failed to encode envelope", Cause: err}
	}
	return l.kv.Write(ctx, key, blob)
}

// Load reads key into v, upgrading older payloads and validating the result.
// It returns ErrNotFound for a missing key and an error wrapping ErrCorrupt for unreadable data.
func (l *Local) Load(ctx context.Context, key string, v any) error {
	blob, err := l.kv.Read(ctx, key)
	if err != nil {
		return err
	}

	version, data, err := unwrap(blob)
	if err != nil {
		return &StorageError{Key: key, Op: "load", Message: "failed to decode envelope", Cause: err}
	}
	if version > CurrentSchemaVersion {
		return &StorageError{Key: key, Op: "load", Message: fmt.Sprintf("version %d", version), Cause: ErrUnsupportedVersion}
	}

	for ver := version; ver < CurrentSchemaVersion; ver++ {
		up, ok := l.migrations[key][ver]
		if !ok {
			return &StorageError{Key: key, Op: "migrate", Message: fmt.Sprintf("no migration from version %d", ver)}
		}
		if data, err = up(data); err != nil {
			return &StorageError{Key: key, Op: "migrate", Message: fmt.Sprintf("migration from version %d failed", ver), Cause: fmt.Errorf("%w: %v", ErrCorrupt, err)}
		}
	}

	if name, ok := l.schemas[key]; ok {
		if err := schemas.Validate(name, data); err != nil {
			return &StorageError{Key: key, Op: "load", Message: "schema validation failed", Cause: fmt.Errorf("%w: %v", ErrCorrupt, err)}
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &StorageError{Key: key, Op: "load", Message: "failed to decode value", Cause: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (l *Local) Remove(ctx context.Context, key string) error {
	return l.kv.Delete(ctx, key)
}

// SaveDocument persists the document snapshot.
func (l *Local) SaveDocument(ctx context.Context, doc types.CVDocument) error {
	return l.Save(ctx, KeyDocument, doc)
}

// LoadDocument returns the last persisted snapshot with derived fields recomputed.
func (l *Local) LoadDocument(ctx context.Context) (types.CVDocument, error) {
	var doc types.CVDocument
	if err := l.Load(ctx, KeyDocument, &doc); err != nil {
		return types.CVDocument{}, err
	}
	return doc.Normalize(), nil
}

// Close releases the underlying store.
func (l *Local) Close() error {
	return l.kv.Close()
}

// unwrap splits a stored blob into its version and payload.
func unwrap(blob []byte) (int, json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(blob, &probe); err != nil {
		// Legacy payloads may be bare arrays.
		if json.Valid(blob) {
			return 0, blob, nil
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	_, hasVersion := probe["schemaVersion"]
	_, hasData := probe["data"]
	if !hasVersion || !hasData {
		return 0, blob, nil
	}

	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Checksum != "" && env.Checksum != checksum(env.Data) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return env.SchemaVersion, env.Data, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsCorrupt reports whether err means the stored value could not be trusted.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
