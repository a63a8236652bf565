package scanner

import (
	"fmt"
	"sync"
	"time"

	"imagedup/logging"
)

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	found      int
	skipped    int
	rawFound   int
	errors     int
	ticker     *time.Ticker
	done       chan bool
	mu         sync.Mutex
	totalFiles int
}

// NewProgressTracker initializes the progress tracker and starts the
// periodic display goroutine.
func NewProgressTracker(totalFiles int) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan bool),
		totalFiles: totalFiles,
	}

	go tracker.displayProgress()

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rScanning: %d/%d (Errors: %d, RAW: %d, Skipped: %d)",
					p.found, p.totalFiles, p.errors, p.rawFound, p.skipped)
			} else {
				fmt.Printf("\rScanning: %d/%d (RAW: %d, Skipped: %d)",
					p.found, p.totalFiles, p.rawFound, p.skipped)
			}
			p.mu.Unlock()
		}
	}
}

// FileFound records one image file added to the scan results.
func (p *ProgressTracker) FileFound(path string, isRaw bool) {
	p.mu.Lock()
	p.found++
	if isRaw {
		p.rawFound++
	}
	p.mu.Unlock()
}

// FileSkipped records a file passed over by the walk.
func (p *ProgressTracker) FileSkipped() {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
}

// FileError records a file the walk could not access.
func (p *ProgressTracker) FileError(path string, err error) {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
	logging.LogImageProcessed(path, false, err.Error())
}

// Stop ends the progress tracking
func (p *ProgressTracker) Stop() {
	p.ticker.Stop()
	p.done <- true
}

// Snapshot returns the current counters.
func (p *ProgressTracker) Snapshot() (found, skipped, errors int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.found, p.skipped, p.errors
}
