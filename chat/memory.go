package chat

import (
	"sync"

	"github.com/upb/commerce-gateway/services/providers"
)

// DefaultMemoryWindow is the number of messages kept per conversation
const DefaultMemoryWindow = 10

// subjectKeyPrefix namespaces conversations of authenticated callers
const subjectKeyPrefix = "sub:"

// Memory keeps the most recent messages of each conversation in a
// fixed-capacity ring. Distinct keys never contend with each other.
type Memory struct {
	capacity int

	mu    sync.RWMutex
	rings map[string]*ring
}

type ring struct {
	mu    sync.Mutex
	buf   []providers.Message
	start int
	size  int
}

// NewMemory creates a memory holding up to window messages per key.
// A window of zero or less disables memory.
func NewMemory(window int) *Memory {
	if window < 0 {
		window = 0
	}
	return &Memory{
		capacity: window,
		rings:    make(map[string]*ring),
	}
}

// Window returns the per-key capacity
func (m *Memory) Window() int {
	return m.capacity
}

// Recent returns a copy of the stored messages for key, oldest first
func (m *Memory) Recent(key string) []providers.Message {
	r := m.lookup(key, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]providers.Message, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Append stores messages for key, evicting the oldest beyond capacity
func (m *Memory) Append(key string, msgs ...providers.Message) {
	if m.capacity == 0 || len(msgs) == 0 {
		return
	}
	r := m.lookup(key, true)
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range msgs {
		if r.size < len(r.buf) {
			r.buf[(r.start+r.size)%len(r.buf)] = msg
			r.size++
			continue
		}
		r.buf[r.start] = msg
		r.start = (r.start + 1) % len(r.buf)
	}
}

func (m *Memory) lookup(key string, create bool) *ring {
	m.mu.RLock()
	r := m.rings[key]
	m.mu.RUnlock()
	if r != nil || !create {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r = m.rings[key]; r == nil {
		r = &ring{buf: make([]providers.Message, m.capacity)}
		m.rings[key] = r
	}
	return r
}
