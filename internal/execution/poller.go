package execution

import (
	"context"
	"sync"
	"time"

	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/plan"
)

// StatusSource is the backend view the Poller reads.
type StatusSource interface {
	Phases(ctx context.Context) ([]plan.Phase, error)
	Status(ctx context.Context) (plan.ExecutionStatus, error)
}

// Poller periodically merges backend phases into a Board and records the
// backend's execution status. Fetch failures are logged and retried on the
// next tick.
type Poller struct {
	source   StatusSource
	board    *plan.Board
	interval time.Duration
	logger   *logging.Logger

	mu       sync.RWMutex
	last     plan.ExecutionStatus
	haveLast bool
	polls    int
}

// NewPoller creates a Poller. logger may be nil.
func NewPoller(source StatusSource, board *plan.Board, interval time.Duration, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Poller{
		source:   source,
		board:    board,
		interval: interval,
		logger:   logger.WithComponent("status_poller"),
	}
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		_ = p.Poll(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one round: phases are reconciled into the board and the
// status is recorded. Both fetches are attempted even if one fails.
func (p *Poller) Poll(ctx context.Context) error {
	var errs []error

	phases, err := p.source.Phases(ctx)
	switch {
	case err != nil:
		p.logger.Debug("phase poll failed", "error", err)
		errs = append(errs, err)
	case len(phases) > 0:
		p.board.Reconcile(phases)
	}

	status, err := p.source.Status(ctx)
	if err != nil {
		p.logger.Debug("status poll failed", "error", err)
		errs = append(errs, err)
	}

	p.mu.Lock()
	p.polls++
	if err == nil {
		p.last = status
		p.haveLast = true
	}
	p.mu.Unlock()

	return errors.Join(errs...)
}

// Last returns the most recent backend status, if any poll has succeeded.
func (p *Poller) Last() (plan.ExecutionStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.haveLast
}

// Polls returns how many rounds have run.
func (p *Poller) Polls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.polls
}
