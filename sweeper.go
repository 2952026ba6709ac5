package auth

import (
	"context"
	"sync"
	"time"
)

// SweepResult reports how many records one sweep removed
type SweepResult struct {
	Sessions     int
	ActionTokens int
}

// ExpirySweeper periodically deletes expired sessions and action tokens.
// Sweeps never overlap: a sweep requested while another runs is skipped.
type ExpirySweeper struct {
	sessions     *SessionStore
	actionTokens *ActionTokenService
	interval     time.Duration
	logger       Logger

	running sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewExpirySweeper creates a sweeper running every interval. A zero
// interval disables the periodic loop, Sweep can still be called.
func NewExpirySweeper(sessions *SessionStore, actionTokens *ActionTokenService, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		sessions:     sessions,
		actionTokens: actionTokens,
		interval:     interval,
		logger:       defLogger{},
	}
}

// WithLogger sets the logger
func (s *ExpirySweeper) WithLogger(logger Logger) *ExpirySweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Start sweeps once and then on every interval until ctx is done or
// Stop is called. Calling Start on a running sweeper is a no op.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
}

// Stop ends the loop and waits for it to return
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *ExpirySweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.sweep(ctx)

	if s.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("expiry sweep failed: %v", err)
		return
	}
	if res.Sessions > 0 || res.ActionTokens > 0 {
		s.logger.Debug("expiry sweep removed %d sessions and %d action tokens", res.Sessions, res.ActionTokens)
	}
}

// Sweep deletes expired sessions and action tokens once. It returns a
// zero result without touching storage when another sweep is running.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	if !s.running.TryLock() {
		return SweepResult{}, nil
	}
	defer s.running.Unlock()

	var res SweepResult

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return res, err
	}
	res.Sessions = n

	n, err = s.actionTokens.Purge(ctx)
	if err != nil {
		return res, err
	}
	res.ActionTokens = n

	return res, nil
}
