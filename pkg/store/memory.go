package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps collections in process. Subscribers receive the latest
// snapshot; intermediate snapshots may be coalesced when a consumer is slow.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subscribers map[string]map[*memorySubscriber]struct{}
	closed      bool
}

type memorySubscriber struct {
	mu     sync.Mutex
	latest *Snapshot
	notify chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		subscribers: make(map[string]map[*memorySubscriber]struct{}),
	}
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscriber{notify: make(chan struct{}, 1)}
	if m.subscribers[path] == nil {
		m.subscribers[path] = make(map[*memorySubscriber]struct{})
	}
	m.subscribers[path][sub] = struct{}{}
	sub.offer(m.snapshotLocked(path))

	out := make(chan Event)
	go func() {
		defer close(out)
		defer m.unsubscribe(path, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.notify:
				if !ok {
					return
				}
			}
			snap := sub.take()
			if snap == nil {
				continue
			}
			select {
			case out <- Event{Snapshot: *snap}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *MemoryStore) unsubscribe(path string, sub *memorySubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers[path], sub)
}

func (m *MemoryStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := m.write(path, id, func(map[string]any, bool) (map[string]any, error) {
		return copyFields(fields), nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Set(ctx context.Context, path, id string, fields map[string]any) error {
	return m.write(path, id, func(map[string]any, bool) (map[string]any, error) {
		return copyFields(fields), nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	return m.write(path, id, func(current map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			return nil, fmt.Errorf("%s/%s: %w", path, id, ErrNotFound)
		}
		merged := copyFields(current)
		for k, v := range copyFields(fields) {
			merged[k] = v
		}
		return merged, nil
	})
}

func (m *MemoryStore) Delete(ctx context.Context, path, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.collections[path], id)
	m.publishLocked(path)
	return nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for path, subs := range m.subscribers {
		for sub := range subs {
			close(sub.notify)
		}
		delete(m.subscribers, path)
	}
	return nil
}

func (m *MemoryStore) write(path, id string, mutate func(map[string]any, bool) (map[string]any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	docs := m.collections[path]
	if docs == nil {
		docs = make(map[string]map[string]any)
		m.collections[path] = docs
	}
	current, exists := docs[id]
	next, err := mutate(current, exists)
	if err != nil {
		return err
	}
	docs[id] = next
	m.publishLocked(path)
	return nil
}

func (m *MemoryStore) publishLocked(path string) {
	snap := m.snapshotLocked(path)
	for sub := range m.subscribers[path] {
		sub.offer(snap)
	}
}

func (m *MemoryStore) snapshotLocked(path string) Snapshot {
	docs := make([]Document, 0, len(m.collections[path]))
	for id, data := range m.collections[path] {
		docs = append(docs, Document{ID: id, Data: copyFields(data)})
	}
	sortDocs(docs)
	return Snapshot{Path: path, Docs: docs}
}

func (s *memorySubscriber) offer(snap Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySubscriber) take() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.latest
	s.latest = nil
	return snap
}
