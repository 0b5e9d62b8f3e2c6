package detect

import (
	"context"
	"sync"
)

// stubClient 可编程的模型客户端替身
type stubClient struct {
	mu      sync.Mutex
	prompts []string
	images  [][]byte
	reply   func(prompt string) (string, error)
}

func (s *stubClient) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.images = append(s.images, image)
	s.mu.Unlock()
	return s.reply(prompt)
}

func (s *stubClient) ID() string { return "stub" }

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubClient) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func (s *stubClient) lastImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) == 0 {
		return nil
	}
	return s.images[len(s.images)-1]
}
