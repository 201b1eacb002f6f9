package cli

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a short status line while a provider thinks or a
// command runs. It is only started when stdout is a terminal; piped
// output never sees animation frames.
type Spinner struct {
	frames   []string
	interval time.Duration
	writer   io.Writer
	label    string
	stop     chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewSpinner creates a spinner writing to w with the given status label.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		writer:   w,
		label:    label,
		stop:     make(chan struct{}),
	}
}

// Start begins the animation. A second Start is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		idx := 0
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				fmt.Fprint(s.writer, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(s.writer, "\r%s %s", s.frames[idx%len(s.frames)], s.label)
				idx++
			}
		}
	}()
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}
