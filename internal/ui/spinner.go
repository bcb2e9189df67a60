package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Spinner is a simple terminal spinner for the CLI's slow operations
// (connecting, creating warehouse objects).
type Spinner struct {
	message string
	frames  []string
	stop    chan struct{}
	done    sync.WaitGroup
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:    make(chan struct{}),
	}
}

// Start begins the animation. When stdout is not a terminal the spinner
// prints the message once and stays quiet.
func (s *Spinner) Start() {
	if !supportsColor {
		fmt.Printf("%s...\n", s.message)
		return
	}

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				fmt.Printf("\r%s %s", ColorInfo(s.frames[i%len(s.frames)]), s.message)
				i++
			}
		}
	}()
}

// Stop ends the animation and prints the outcome.
func (s *Spinner) Stop(success bool, message string) {
	if supportsColor {
		close(s.stop)
		s.done.Wait()
		fmt.Print("\r" + strings.Repeat(" ", len(s.message)+3) + "\r")
	}

	if success {
		fmt.Printf("%s %s\n", ColorSuccess("✓"), message)
	} else {
		fmt.Printf("%s %s\n", ColorError("✗"), message)
	}
}
