// Package docstore provides a tenant-scoped document store with optimistic,
// retried read-modify-write transactions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a transaction lost a race with a concurrent writer.
	ErrConflict = errors.New("docstore: transaction conflict")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("docstore: store unavailable")
	// ErrInvalidPath is returned for empty or malformed path segments.
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Scope identifies the tenant partition every document lives in.
type Scope struct {
	WorkspaceID string `json:"workspaceId"`
	OrgID       string `json:"orgId"`
}

// Validate ensures both identifiers are present and contain no separators.
func (s Scope) Validate() error {
	if err := validSegment(s.WorkspaceID); err != nil {
		return fmt.Errorf("%w: workspace: %v", ErrInvalidPath, err)
	}
	if err := validSegment(s.OrgID); err != nil {
		return fmt.Errorf("%w: org: %v", ErrInvalidPath, err)
	}
	return nil
}

// String renders the scope prefix.
func (s Scope) String() string {
	return s.WorkspaceID + "/" + s.OrgID
}

// ParseScope reads the "{workspace}/{org}" form produced by String.
func ParseScope(raw string) (Scope, error) {
	ws, org, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return Scope{}, fmt.Errorf("%w: scope %q", ErrInvalidPath, raw)
	}
	scope := Scope{WorkspaceID: ws, OrgID: org}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// Doc addresses a document inside the scope.
func (s Scope) Doc(collection, id string) Path {
	return Path{Scope: s, Collection: collection, ID: id}
}

// Path addresses a single document as {workspace}/{org}/{collection}/{docId}.
type Path struct {
	Scope      Scope
	Collection string
	ID         string
}

func (p Path) String() string {
	return strings.Join([]string{p.Scope.WorkspaceID, p.Scope.OrgID, p.Collection, p.ID}, "/")
}

// Validate checks every path segment.
func (p Path) Validate() error {
	if err := p.Scope.Validate(); err != nil {
		return err
	}
	if err := validSegment(p.Collection); err != nil {
		return fmt.Errorf("%w: collection: %v", ErrInvalidPath, err)
	}
	if err := validSegment(p.ID); err != nil {
		return fmt.Errorf("%w: id: %v", ErrInvalidPath, err)
	}
	return nil
}

func validSegment(s string) error {
	if s == "" {
		return errors.New("empty")
	}
	if strings.Contains(s, "/") {
		return errors.New("contains '/'")
	}
	return nil
}

// Snapshot is a raw document as read from the store.
type Snapshot struct {
	Path    Path
	Data    json.RawMessage
	Version int64
}

// DataTo decodes the document into dest.
func (s Snapshot) DataTo(dest any) error {
	return json.Unmarshal(s.Data, dest)
}

// Tx is the view of the store inside RunTransaction. Writes are buffered
// and become visible to other readers only when the transaction commits.
type Tx interface {
	Get(ctx context.Context, path Path, dest any) error
	Set(path Path, doc any) error
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, path Path, dest any) error
	Query(ctx context.Context, scope Scope, q Query) ([]Snapshot, error)
	// RunTransaction executes fn atomically. fn may run more than once when a
	// conflicting writer commits first, so it must not cause side effects
	// outside the Tx.
	RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error
	Close() error
}

// Options tune transaction retries.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	// OnConflict is invoked after every conflicting attempt.
	OnConflict func(attempt int, err error)
}

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 10 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Backoff == 0 {
		o.Backoff = defaultBackoff
	}
	return o
}

// staged buffers writes so a Tx reads its own writes before commit.
type staged struct {
	order []string
	docs  map[string]stagedDoc
}

type stagedDoc struct {
	path Path
	data []byte
}

func newStaged() *staged {
	return &staged{docs: make(map[string]stagedDoc)}
}

func (s *staged) set(path Path, doc any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", path, err)
	}
	key := path.String()
	if _, ok := s.docs[key]; !ok {
		s.order = append(s.order, key)
	}
	s.docs[key] = stagedDoc{path: path, data: data}
	return nil
}

func (s *staged) get(path Path) ([]byte, bool) {
	doc, ok := s.docs[path.String()]
	return doc.data, ok
}

func (s *staged) each(fn func(stagedDoc) error) error {
	for _, key := range s.order {
		if err := fn(s.docs[key]); err != nil {
			return err
		}
	}
	return nil
}
