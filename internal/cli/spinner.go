package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

const spinnerTick = 80 * time.Millisecond

// spinner animates a status line while layers load. The status can change
// while it runs, and the animation ends with the context passed to start.
type spinner struct {
	out io.Writer

	mu     sync.Mutex
	status string
	width  int
	idle   chan struct{}

	quit chan struct{}
	once sync.Once
}

func newSpinner(status string) *spinner {
	return &spinner{out: os.Stderr, status: status, quit: make(chan struct{})}
}

func (s *spinner) start(ctx context.Context) {
	idle := make(chan struct{})
	s.mu.Lock()
	s.idle = idle
	s.mu.Unlock()

	go func() {
		defer close(idle)
		tick := time.NewTicker(spinnerTick)
		defer tick.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-ctx.Done():
				return
			case <-s.quit:
				return
			case <-tick.C:
				s.draw(spinnerFrames[frame%len(spinnerFrames)])
			}
		}
	}()
}

// update replaces the status shown on the next frame.
func (s *spinner) update(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *spinner) draw(frame rune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = max(s.width, utf8.RuneCountInString(s.status)+2)
	fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(string(frame)), StyleDim.Render(s.status))
}

// stop ends the animation and erases the line. Safe to call repeatedly.
func (s *spinner) stop() {
	s.once.Do(func() { close(s.quit) })
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	if idle != nil {
		<-idle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.width))
		s.width = 0
	}
}

func (s *spinner) succeed(message string) {
	s.stop()
	printSuccess("%s", message)
}

func (s *spinner) fail(message string) {
	s.stop()
	printError("%s", message)
}
