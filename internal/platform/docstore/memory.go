package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process store with optimistic concurrency control: every
// transaction records the version of each document it read and commits
// only if none of them changed in the meantime.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]memDoc
	opts Options

	hookMu     sync.Mutex
	commitHook func(attempt int)
	attempts   int
}

type memDoc struct {
	path    Path
	data    []byte
	version int64
}

// NewMemory constructs an empty Memory store.
func NewMemory(opts Options) *Memory {
	return &Memory{docs: make(map[string]memDoc), opts: opts}
}

// SetCommitHook registers fn to run between a transaction body and its commit
// check. Tests use it to interleave a concurrent writer.
func (m *Memory) SetCommitHook(fn func(attempt int)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.commitHook = fn
	m.attempts = 0
}

// Get reads a committed document.
func (m *Memory) Get(_ context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	m.mu.RLock()
	doc, ok := m.docs[path.String()]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return json.Unmarshal(doc.data, dest)
}

// Query scans committed documents of the collection.
func (m *Memory) Query(_ context.Context, scope Scope, q Query) ([]Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	prefix := scope.Doc(q.Collection, "x").String()
	prefix = strings.TrimSuffix(prefix, "x")
	m.mu.RLock()
	candidates := make([]Snapshot, 0)
	for key, doc := range m.docs {
		if strings.HasPrefix(key, prefix) {
			candidates = append(candidates, Snapshot{Path: doc.path, Data: append([]byte(nil), doc.data...), Version: doc.version})
		}
	}
	m.mu.RUnlock()
	return applyQuery(candidates, q)
}

// RunTransaction executes fn with optimistic validation and retries on conflict.
func (m *Memory) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	return runWithRetry(ctx, m.opts, func(ctx context.Context) error {
		tx := &memTx{store: m, reads: make(map[string]int64), writes: newStaged()}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		m.runCommitHook()
		return m.commit(tx)
	})
}

func (m *Memory) runCommitHook() {
	m.hookMu.Lock()
	hook := m.commitHook
	m.attempts++
	attempt := m.attempts
	m.hookMu.Unlock()
	if hook != nil {
		hook(attempt)
	}
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, version := range tx.reads {
		if m.docs[key].version != version {
			return fmt.Errorf("%w: %s changed", ErrConflict, key)
		}
	}
	return tx.writes.each(func(doc stagedDoc) error {
		key := doc.path.String()
		m.docs[key] = memDoc{path: doc.path, data: doc.data, version: m.docs[key].version + 1}
		return nil
	})
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type memTx struct {
	store  *Memory
	reads  map[string]int64
	writes *staged
}

func (t *memTx) Get(_ context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if data, ok := t.writes.get(path); ok {
		return json.Unmarshal(data, dest)
	}
	key := path.String()
	t.store.mu.RLock()
	doc, ok := t.store.docs[key]
	t.store.mu.RUnlock()
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = doc.version
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return json.Unmarshal(doc.data, dest)
}

func (t *memTx) Set(path Path, doc any) error {
	return t.writes.set(path, doc)
}
