package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/masa061580/pubmed-search-assistant/internal/llm"
	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// SystemPrompt describes the search → refine workflow to the model.
const SystemPrompt = `You are a helpful PubMed search assistant that helps users find medical literature.
Follow this workflow:
1. When the user asks to search for medical literature, use the searchPubMedWithQuery function.
2. After showing search results, ask if they want to refine the search to get more results, fewer results, or keep the current results.
3. Based on their response, use the refinePubMedSearch function with the appropriate refinementType.
4. Continue this process until the user is satisfied with the results.

When presenting search results:
- Show the total number of papers found
- List the representative papers with title, authors, journal, and publication date
- Include a brief description of each paper based on its abstract
- Format the results in a readable way with numbering

Be conversational, helpful, and knowledgeable about medical research.`

// ConversationStore persists conversation histories.
type ConversationStore interface {
	Get(ctx context.Context, id string) ([]models.Message, error)
	Append(ctx context.Context, id string, msgs ...models.Message) error
	Evict(ctx context.Context, id string) error
}

// TranscriptArchive keeps a copy of a conversation before it is evicted.
type TranscriptArchive interface {
	Archive(ctx context.Context, t models.Transcript) (string, error)
}

// Service runs chat turns: it threads the conversation through the model,
// executes the capabilities the model asks for and records everything in the
// conversation store.
type Service struct {
	model    llm.ChatModel
	searcher Searcher
	convs    ConversationStore
	archive  TranscriptArchive
	locks    *keyedMutex
	log      *slog.Logger
}

// NewService wires a Service. archive may be nil.
func NewService(model llm.ChatModel, searcher Searcher, convs ConversationStore, archive TranscriptArchive, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		model:    model,
		searcher: searcher,
		convs:    convs,
		archive:  archive,
		locks:    newKeyedMutex(),
		log:      log.With("component", "research"),
	}
}

// Chat handles one user message and returns the assistant's reply. Turns for
// the same conversation are serialised.
func (s *Service) Chat(ctx context.Context, conversationID, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("%w: message is required", ErrBadRequest)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	history, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}

	userMsg := models.Message{Role: models.RoleUser, Content: message, CreatedAt: time.Now()}
	if err := s.convs.Append(ctx, conversationID, userMsg); err != nil {
		return "", fmt.Errorf("save user message: %w", err)
	}
	history = append(history, userMsg)

	reply, err := s.model.Complete(ctx, llm.Request{System: SystemPrompt, Messages: history, Tools: Tools()})
	if err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	reply.CreatedAt = time.Now()

	if len(reply.ToolCalls) == 0 {
		if err := s.convs.Append(ctx, conversationID, reply); err != nil {
			return "", fmt.Errorf("save reply: %w", err)
		}
		return reply.Content, nil
	}

	results := make([]models.Message, 0, len(reply.ToolCalls))
	for _, call := range reply.ToolCalls {
		out, err := s.invoke(ctx, call)
		if err != nil {
			return "", err
		}
		results = append(results, out)
	}
	if err := s.convs.Append(ctx, conversationID, append([]models.Message{reply}, results...)...); err != nil {
		return "", fmt.Errorf("save tool results: %w", err)
	}
	history = append(history, reply)
	history = append(history, results...)

	final, err := s.model.Complete(ctx, llm.Request{System: SystemPrompt, Messages: history})
	if err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	final.CreatedAt = time.Now()
	if err := s.convs.Append(ctx, conversationID, final); err != nil {
		return "", fmt.Errorf("save reply: %w", err)
	}
	return final.Content, nil
}

// invoke executes one tool call and renders its result as a tool message.
func (s *Service) invoke(ctx context.Context, call models.ToolCall) (models.Message, error) {
	c, err := ParseCapability(call)
	if err != nil {
		return models.Message{}, err
	}

	start := time.Now()
	result, err := Execute(ctx, s.searcher, c)
	if err != nil {
		s.log.Error("capability failed", "capability", c.Name(), "error", err)
		return models.Message{}, fmt.Errorf("%s: %w", c.Name(), err)
	}
	s.log.Info("capability done",
		"capability", c.Name(),
		"terms", result.MeshTerms,
		"total", result.TotalResults,
		"duration_ms", time.Since(start).Milliseconds())

	payload, err := json.Marshal(result)
	if err != nil {
		return models.Message{}, fmt.Errorf("encode %s result: %w", c.Name(), err)
	}
	return models.Message{
		Role:       models.RoleTool,
		Name:       c.Name(),
		ToolCallID: call.ID,
		Content:    string(payload),
		CreatedAt:  time.Now(),
	}, nil
}

// History returns the stored conversation.
func (s *Service) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.convs.Get(ctx, conversationID)
}

// End archives the conversation (when an archive is configured) and evicts it.
// It returns the archive key, or "" when nothing was archived.
func (s *Service) End(ctx context.Context, conversationID string) (string, error) {
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	var key string
	if s.archive != nil {
		msgs, err := s.convs.Get(ctx, conversationID)
		if err != nil {
			return "", fmt.Errorf("load conversation: %w", err)
		}
		if len(msgs) > 0 {
			key, err = s.archive.Archive(ctx, models.Transcript{
				ConversationID: conversationID,
				Messages:       msgs,
				ArchivedAt:     time.Now(),
			})
			if err != nil {
				return "", fmt.Errorf("archive conversation: %w", err)
			}
		}
	}
	if err := s.convs.Evict(ctx, conversationID); err != nil {
		return "", fmt.Errorf("evict conversation: %w", err)
	}
	return key, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
