package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MemoryCollection keeps documents as JSON in process memory. Values are
// marshalled on write and decoded on read, so callers see the same
// schemaless shapes a remote store would return.
type MemoryCollection struct {
	name string

	mu          sync.RWMutex
	docs        map[string][]byte
	watchers    map[int]*memoryWatcher
	nextWatcher int
}

type memoryWatcher struct {
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (w *memoryWatcher) stop() {
	w.once.Do(func() { close(w.done) })
}

// NewMemoryCollection creates an empty collection
func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{
		name:     name,
		docs:     make(map[string][]byte),
		watchers: make(map[int]*memoryWatcher),
	}
}

// Name returns the collection name
func (m *MemoryCollection) Name() string {
	return m.name
}

// List returns every document ordered by id
func (m *MemoryCollection) List(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *MemoryCollection) snapshotLocked() ([]Document, error) {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := decodeDocument(id, m.docs[id])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Get returns one document
func (m *MemoryCollection) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	raw, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return Document{}, fmt.Errorf("get %s/%s: %w", m.name, id, ErrNotFound)
	}
	return decodeDocument(id, raw)
}

// Insert stores data under a new random id
func (m *MemoryCollection) Insert(ctx context.Context, data interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.docs[id] = raw
	m.broadcastLocked()
	m.mu.Unlock()

	return id, nil
}

// Put stores data under a caller-chosen id, creating or overwriting it
func (m *MemoryCollection) Put(ctx context.Context, id string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	m.mu.Lock()
	m.docs[id] = raw
	m.broadcastLocked()
	m.mu.Unlock()
	return nil
}

// Replace overwrites an existing document
func (m *MemoryCollection) Replace(ctx context.Context, id string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("replace %s/%s: %w", m.name, id, ErrNotFound)
	}
	m.docs[id] = raw
	m.broadcastLocked()
	return nil
}

// Remove deletes a document
func (m *MemoryCollection) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("remove %s/%s: %w", m.name, id, ErrNotFound)
	}
	delete(m.docs, id)
	m.broadcastLocked()
	return nil
}

// Len returns the number of stored documents
func (m *MemoryCollection) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Watch starts a watcher goroutine. Bursts of writes coalesce into one
// snapshot; the snapshot always reflects the latest state.
func (m *MemoryCollection) Watch(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	w := &memoryWatcher{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	key := m.nextWatcher
	m.nextWatcher++
	m.watchers[key] = w
	m.mu.Unlock()

	unregister := func() {
		w.stop()
		m.mu.Lock()
		delete(m.watchers, key)
		m.mu.Unlock()
	}

	go func() {
		defer unregister()
		for {
			m.mu.RLock()
			docs, err := m.snapshotLocked()
			m.mu.RUnlock()

			select {
			case <-w.done:
				return
			default:
			}

			if err != nil {
				log.Error().Err(err).Str("collection", m.name).Msg("Memory watcher failed to read snapshot")
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(docs)

			select {
			case <-w.notify:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return unregister
}

func (m *MemoryCollection) broadcastLocked() {
	for _, w := range m.watchers {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func decodeDocument(id string, raw []byte) (Document, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return Document{ID: id, Data: data}, nil
}
