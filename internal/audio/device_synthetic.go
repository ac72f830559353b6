package audio

import (
	"context"
	"sync"
	"time"
)

// SyntheticDevice stands in for a microphone on hosts without capture
// hardware (terminals, CI). It emits silence frames at the negotiated chunk
// cadence so the rest of the capture pipeline behaves as in production.
type SyntheticDevice struct {
	// SupportedTypes overrides the containers the device claims to support;
	// empty means opus-in-webm only.
	SupportedTypes []string
	// Denied simulates the user rejecting the permission prompt.
	Denied bool
}

func (d *SyntheticDevice) Supports(mimeType string) bool {
	if len(d.SupportedTypes) == 0 {
		return mimeType == "audio/webm;codecs=opus"
	}
	for _, mt := range d.SupportedTypes {
		if mt == mimeType {
			return true
		}
	}
	return false
}

func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (Session, error) {
	if d.Denied {
		return nil, ErrPermissionDenied
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sampleRate := c.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &syntheticSession{sampleRate: sampleRate}, nil
}

type syntheticSession struct {
	mu         sync.Mutex
	sampleRate int
	paused     bool
	closed     bool
	stop       chan struct{}
	done       chan struct{}
}

func (s *syntheticSession) Start(chunkInterval time.Duration, emit func(chunk []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stop != nil {
		return ErrCaptureActive
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	// 16-bit mono silence sized to one chunk interval.
	chunkBytes := int(float64(s.sampleRate)*chunkInterval.Seconds()) * 2
	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(chunkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				paused := s.paused
				s.mu.Unlock()
				if !paused {
					emit(make([]byte, chunkBytes))
				}
			}
		}
	}(s.stop, s.done)
	return nil
}

func (s *syntheticSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *syntheticSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *syntheticSession) Stop() error {
	return s.Close()
}

func (s *syntheticSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
