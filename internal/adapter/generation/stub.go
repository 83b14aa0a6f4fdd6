package generation

import (
	"context"
	"strings"
	"sync"
)

// StubGenerator is a deterministic Generator for tests and shadow mode. It
// answers by prompt marker: the first key found as a substring of the
// prompt selects the canned response.
type StubGenerator struct {
	mu        sync.Mutex
	Responses map[string]string
	Default   string
	Err       error
	FailFirst int // number of leading calls that return Err before succeeding

	Calls []string
}

// Generate records the call and returns the configured response.
func (s *StubGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, prompt)

	if s.Err != nil {
		if s.FailFirst == 0 || len(s.Calls) <= s.FailFirst {
			return "", s.Err
		}
	}

	for marker, response := range s.Responses {
		if strings.Contains(prompt, marker) {
			return response, nil
		}
	}
	return s.Default, nil
}

// CallCount returns how many times Generate was invoked.
func (s *StubGenerator) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
