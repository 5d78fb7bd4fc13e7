package credstore

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Memory is the process-scoped credential store, the analog of tab-scoped
// sessionStorage: its contents end with the process, never outliving the
// console instance. It is safe for concurrent use and may be shared by
// several Stores to model multiple tabs over one medium.
type Memory struct {
	mu       sync.RWMutex
	token    string
	hasToken bool
	userJSON []byte

	subMu sync.Mutex
	subs  []chan Event
}

// NewMemory returns an empty in-memory credential store.
func NewMemory() *Memory {
	return &Memory{}
}

// SetToken stores the access token.
func (m *Memory) SetToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.hasToken = true
	m.mu.Unlock()
	m.emit(Event{Op: OpSet, Origin: originFromContext(ctx)})
	return nil
}

// Token returns the stored access token, or ErrNotFound when absent.
func (m *Memory) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasToken {
		return "", ErrNotFound
	}
	return m.token, nil
}

// SetUser stores the serialized operator profile.
func (m *Memory) SetUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.userJSON = data
	m.mu.Unlock()
	m.emit(Event{Op: OpSet, Origin: originFromContext(ctx)})
	return nil
}

// User returns the stored profile after validating it. Corruption purges
// both entries and reports ErrCorruptRecord.
func (m *Memory) User(ctx context.Context) (*User, error) {
	m.mu.RLock()
	data := m.userJSON
	m.mu.RUnlock()
	if data == nil {
		return nil, ErrNotFound
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, m.purgeCorrupt(ctx)
	}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return nil, m.purgeCorrupt(ctx)
	}
	return &u, nil
}

func (m *Memory) purgeCorrupt(ctx context.Context) error {
	log.Print("consoleauth: corrupt profile in credential store, purging session")
	m.mu.Lock()
	m.token = ""
	m.hasToken = false
	m.userJSON = nil
	m.mu.Unlock()
	m.emit(Event{Op: OpClear, Origin: originFromContext(ctx)})
	return ErrCorruptRecord
}

// Clear removes both entries.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.hasToken = false
	m.userJSON = nil
	m.mu.Unlock()
	m.emit(Event{Op: OpClear, Origin: originFromContext(ctx)})
	return nil
}

// Watch implements Watcher over an in-process subscriber list.
func (m *Memory) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 8)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		// close under subMu: emit sends under the same lock, so no writer
		// can reach the channel once it is closed
		m.subMu.Lock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		close(ch)
		m.subMu.Unlock()
	}()

	return ch, nil
}

func (m *Memory) emit(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// best-effort: a stalled watcher must not block writers
		}
	}
}
