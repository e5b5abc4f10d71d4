package testutil

import (
	"context"
	"image"
	"sync"
)

// StubRecognizer is a Recognizer for tests. It records every call and
// returns a fixed text or error without touching Tesseract.
type StubRecognizer struct {
	// Text is returned from every successful Recognize call.
	Text string
	// Err, when set, fails every Recognize call.
	Err error

	mu    sync.Mutex
	calls []RecognizeCall
}

// RecognizeCall records the arguments of one Recognize invocation.
type RecognizeCall struct {
	Bounds image.Rectangle
	Lang   string
}

func (s *StubRecognizer) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, RecognizeCall{Bounds: img.Bounds(), Lang: lang})
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

// Calls returns a copy of the recorded invocations.
func (s *StubRecognizer) Calls() []RecognizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecognizeCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times Recognize has been invoked.
func (s *StubRecognizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
