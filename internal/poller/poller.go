package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opsdeck/pairing-server-go/internal/config"
	"github.com/opsdeck/pairing-server-go/internal/model"
	"github.com/opsdeck/pairing-server-go/internal/util"
)

// Package poller implements the initiator-side polling loop: a cancellable
// fixed-interval task that queries pairing status until a terminal state
// is observed. Transient fetch failures never stop the loop; only a
// terminal status or an explicit Stop does.

// Status is one observation of a pairing.
type Status struct {
	Status     model.PairingStatus
	DeviceInfo *model.DeviceInfo
}

// FetchFunc performs one status read, typically GET /pair/status/{code}.
type FetchFunc func(ctx context.Context, code string) (*Status, error)

type Poller struct {
	fetch    FetchFunc
	interval time.Duration
}

func New(fetch FetchFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return &Poller{fetch: fetch, interval: interval}
}

// Result is delivered exactly once on Poll.Done when a terminal status is
// observed. A poll stopped before reaching a terminal status closes Done
// without delivering a Result.
type Result struct {
	Status     model.PairingStatus
	DeviceInfo *model.DeviceInfo
}

// Poll is the handle for one running polling loop. Stop is safe to call
// from any goroutine, multiple times, and on every exit path.
type Poll struct {
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan Result
}

func (p *Poll) Stop() {
	p.stopOnce.Do(p.cancel)
}

// Done yields the terminal Result, or closes without one if the poll was
// stopped first.
func (p *Poll) Done() <-chan Result {
	return p.done
}

// Start begins polling immediately and then on every interval tick. The
// returned handle owns the ticker: it is released on every exit path.
func (p *Poller) Start(ctx context.Context, code string) *Poll {
	ctx, cancel := context.WithCancel(ctx)
	poll := &Poll{
		cancel: cancel,
		done:   make(chan Result, 1),
	}

	go p.run(ctx, code, poll)
	return poll
}

func (p *Poller) run(ctx context.Context, code string, poll *Poll) {
	defer close(poll.done)
	defer poll.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if done := p.observe(ctx, code, poll); done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// observe performs one fetch. It reports true when polling should end,
// which happens only on a terminal status or a stopped poll. Fetch errors
// are transient by definition here: the next tick retries.
func (p *Poller) observe(ctx context.Context, code string, poll *Poll) bool {
	status, err := p.fetch(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		log.Warn().
			Err(err).
			Str("code", util.MaskCode(code)).
			Msg("pairing status poll failed, retrying on next tick")
		return false
	}

	if status.Status.IsTerminal() {
		poll.done <- Result{Status: status.Status, DeviceInfo: status.DeviceInfo}
		log.Debug().
			Str("code", util.MaskCode(code)).
			Str("status", string(status.Status)).
			Msg("pairing poll finished")
		return true
	}

	return false
}
