// Package poll periodically refreshes the event collection in the
// background on a cron schedule, retrying transient failures with capped
// exponential backoff within a tick. Results are delivered on a channel the
// UI drains; a tick whose result nobody consumed is superseded by the next.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"eventcal/internal/api"
	"eventcal/internal/auth"
)

// Fetch loads the current event collection.
type Fetch func(ctx context.Context) ([]api.Event, error)

// Result is the outcome of one scheduled refresh.
type Result struct {
	Events []api.Event
	Err    error
	At     time.Time
}

// Poller drives the schedule.
type Poller struct {
	cron    *cron.Cron
	fetch   Fetch
	updates chan Result
	log     zerolog.Logger

	tickTimeout time.Duration
	maxRetries  uint64
}

// New builds a Poller from a standard 5-field cron spec.
func New(spec string, fetch Fetch, log zerolog.Logger) (*Poller, error) {
	p := &Poller{
		cron:        cron.New(),
		fetch:       fetch,
		updates:     make(chan Result, 1),
		log:         log,
		tickTimeout: time.Minute,
		maxRetries:  3,
	}
	if _, err := p.cron.AddFunc(spec, p.tick); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins scheduling. Stop ends it; a running tick finishes.
func (p *Poller) Start() { p.cron.Start() }

func (p *Poller) Stop() { p.cron.Stop() }

// Updates is the stream of refresh results.
func (p *Poller) Updates() <-chan Result { return p.updates }

func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.tickTimeout)
	defer cancel()

	events, err := p.run(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("background refresh failed")
	} else {
		p.log.Debug().Int("events", len(events)).Msg("background refresh")
	}
	p.deliver(Result{Events: events, Err: err, At: time.Now()})
}

// run retries transient failures inside one tick. Failures that a retry
// cannot fix (an expired session, a client error) abort immediately.
func (p *Poller) run(ctx context.Context) ([]api.Event, error) {
	var events []api.Event

	op := func() error {
		var err error
		events, err = p.fetch(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return events, nil
}

func retryable(err error) bool {
	if errors.Is(err, auth.ErrSessionExpired) {
		return false
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Transport failures may be transient.
	return true
}

// deliver replaces a stale undelivered result rather than blocking the
// scheduler.
func (p *Poller) deliver(r Result) {
	for {
		select {
		case p.updates <- r:
			return
		default:
			select {
			case <-p.updates:
			default:
			}
		}
	}
}
