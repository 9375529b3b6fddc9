package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// CleanupCoordinator manages graceful cleanup of resources during signal
// handling. Resources register themselves when created, and the coordinator
// ensures they are released properly when signals are received, even when
// os.Exit() is called.
type CleanupCoordinator struct {
	mu      sync.Mutex
	session *Session
	logger  *RunLogger
	lock    *LockFile
	done    bool
}

// NewCleanupCoordinator creates a new cleanup coordinator.
func NewCleanupCoordinator() *CleanupCoordinator {
	return &CleanupCoordinator{}
}

// SetSession registers the browser session for cleanup.
func (c *CleanupCoordinator) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// ClearSession unregisters the session after it is closed normally.
func (c *CleanupCoordinator) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// SetLogger registers the run logger for cleanup.
func (c *CleanupCoordinator) SetLogger(l *RunLogger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// SetLock registers the lock file for cleanup.
func (c *CleanupCoordinator) SetLock(lf *LockFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock = lf
}

// Watch installs a signal handler that cleans up and exits on interrupt.
func (c *CleanupCoordinator) Watch() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		c.Cleanup()
		os.Exit(130)
	}()
}

// Cleanup performs graceful cleanup of all registered resources.
// Safe to call multiple times (idempotent).
func (c *CleanupCoordinator) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}
	c.done = true

	// Close the browser first so no observation keeps running.
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}

	// Log and close
	if c.logger != nil {
		c.logger.RunEnd(false, "interrupted by signal")
		c.logger.Close()
	}

	// Release lock last
	if c.lock != nil {
		c.lock.Release()
	}
}
