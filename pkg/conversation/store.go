// Package conversation keeps per-conversation message history in memory,
// bounded to a configured number of messages per conversation.
package conversation

import (
	"log"
	"sync"

	"github.com/luigisaetta/oraculum/pkg/models"
)

// Store holds conversation histories. Safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	conversations map[string][]models.Message
	maxMessages   int
	verbose       bool
}

// New creates a Store retaining at most maxMessages per conversation.
func New(maxMessages int, verbose bool) *Store {
	if maxMessages <= 0 {
		maxMessages = 10
	}
	return &Store{
		conversations: make(map[string][]models.Message),
		maxMessages:   maxMessages,
		verbose:       verbose,
	}
}

// Get returns a copy of the history for convID. Unknown ids yield an
// empty history, never an error.
func (s *Store) Get(convID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[convID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Append adds msg to the conversation, creating it if needed, and trims
// the oldest message when the history exceeds the configured maximum.
func (s *Store) Append(convID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.conversations[convID]
	if !ok && s.verbose {
		log.Printf("conversation: creating %s", convID)
	}

	msgs = append(msgs, msg)
	if len(msgs) > s.maxMessages {
		if s.verbose {
			log.Printf("conversation: trimming %s", convID)
		}
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	s.conversations[convID] = msgs
}

// Clear removes the conversation entirely and reports whether it existed.
// Clearing an unknown id is a no-op.
func (s *Store) Clear(convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[convID]; !ok {
		return false
	}
	delete(s.conversations, convID)
	return true
}

// Len returns the number of tracked conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
