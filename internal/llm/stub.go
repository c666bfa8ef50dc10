package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubClient is a VisionClient that returns canned replies keyed by page
// index. It is safe for concurrent use.
type StubClient struct {
	Replies map[int]string
	Errors  map[int]error

	mu      sync.Mutex
	calls   []int
	prompts []string
}

// NewStubClient creates a StubClient with empty reply and error tables
func NewStubClient() *StubClient {
	return &StubClient{
		Replies: make(map[int]string),
		Errors:  make(map[int]error),
	}
}

func (s *StubClient) Complete(ctx context.Context, prompt string, img Image) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, img.Page)
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := s.Errors[img.Page]; ok {
		return "", err
	}
	if reply, ok := s.Replies[img.Page]; ok {
		return reply, nil
	}
	return "", fmt.Errorf("stub: no reply for page %d", img.Page)
}

// Calls returns the page indexes requested so far, in call order
func (s *StubClient) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

// LastPrompt returns the most recent prompt, or "" if none was sent
func (s *StubClient) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}
