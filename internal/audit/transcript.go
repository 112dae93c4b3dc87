package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TranscriptStore persists every jury prompt and raw juror response verbatim:
// <dir>/<session>/NNNN_prompt.txt and NNNN_<juror>.response.txt
type TranscriptStore struct {
	dir     string
	session string
	counter atomic.Int64
	mu      sync.Mutex // Serialises appends to response files
}

// NewTranscriptStore creates a store for one session. An empty session gets a new uuid.
func NewTranscriptStore(dir, session string) (*TranscriptStore, error) {
	if session == "" {
		session = uuid.NewString()
	}
	s := &TranscriptStore{dir: filepath.Join(dir, safeName(session)), session: session}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return s, nil
}

// Session returns the session id
func (s *TranscriptStore) Session() string {
	return s.session
}

// Dir returns the session directory
func (s *TranscriptStore) Dir() string {
	return s.dir
}

// RecordPrompt writes the prompt under the next index and returns that index
func (s *TranscriptStore) RecordPrompt(prompt string) (int, error) {
	index := int(s.counter.Add(1))
	path := filepath.Join(s.dir, fmt.Sprintf("%04d_prompt.txt", index))
	if err := os.WriteFile(path, []byte(prompt), 0644); err != nil {
		return index, fmt.Errorf("write prompt %d: %w", index, err)
	}
	return index, nil
}

// RecordResponse appends one raw response. Retried attempts land in the same file.
func (s *TranscriptStore) RecordResponse(index int, juror, raw string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%04d_%s.response.txt", index, safeName(juror)))

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open response %d: %w", index, err)
	}
	if _, err := f.WriteString(raw + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write response %d: %w", index, err)
	}
	return f.Close()
}
