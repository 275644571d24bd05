package store

import (
	"time"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// Options holds the expiry policy shared by every conversation backend.
type Options struct {
	// TTL evicts a conversation after this long without an append. Zero keeps
	// conversations forever.
	TTL time.Duration
	// MaxMessages caps the stored history per conversation. Zero is unbounded.
	MaxMessages int
}

// trimHistory keeps at most max messages and then drops leading entries until
// the history starts at a user message, so a tool result is never separated
// from the assistant message that requested it.
func trimHistory(msgs []models.Message, max int) []models.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return dropOrphans(msgs[len(msgs)-max:])
}

// dropOrphans removes leading messages until the history starts at a user turn.
func dropOrphans(msgs []models.Message) []models.Message {
	for len(msgs) > 0 && msgs[0].Role != models.RoleUser {
		msgs = msgs[1:]
	}
	return msgs
}

func stamp(msgs []models.Message, now time.Time) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		out[i] = m
	}
	return out
}
