package store

import (
	"context"
	"sync"
	"time"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// MemoryConversations keeps histories in a process-local map. It is safe for
// concurrent use and suited to tests and single-instance deployments.
type MemoryConversations struct {
	mu    sync.RWMutex
	convs map[string]*memConversation
	opts  Options
	now   func() time.Time
}

type memConversation struct {
	messages []models.Message
	touched  time.Time
}

func NewMemoryConversations(opts Options) *MemoryConversations {
	return &MemoryConversations{
		convs: make(map[string]*memConversation),
		opts:  opts,
		now:   time.Now,
	}
}

// Get returns a copy of the history, or nil if the conversation is unknown or expired.
func (s *MemoryConversations) Get(_ context.Context, id string) ([]models.Message, error) {
	s.mu.RLock()
	conv, ok := s.convs[id]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}
	if s.expired(conv) {
		s.mu.RUnlock()
		s.mu.Lock()
		if conv, ok := s.convs[id]; ok && s.expired(conv) {
			delete(s.convs, id)
		}
		s.mu.Unlock()
		return nil, nil
	}
	out := make([]models.Message, len(conv.messages))
	copy(out, conv.messages)
	s.mu.RUnlock()
	return out, nil
}

func (s *MemoryConversations) Append(_ context.Context, id string, msgs ...models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.convs[id]
	if !ok || s.expired(conv) {
		conv = &memConversation{}
		s.convs[id] = conv
	}
	conv.messages = trimHistory(append(conv.messages, stamp(msgs, now)...), s.opts.MaxMessages)
	conv.touched = now
	return nil
}

func (s *MemoryConversations) Evict(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// Sweep removes every expired conversation and reports how many were dropped.
func (s *MemoryConversations) Sweep(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, conv := range s.convs {
		if s.expired(conv) {
			delete(s.convs, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored conversations, expired ones included.
func (s *MemoryConversations) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// expired must be called with s.mu held.
func (s *MemoryConversations) expired(conv *memConversation) bool {
	return s.opts.TTL > 0 && s.now().Sub(conv.touched) > s.opts.TTL
}
