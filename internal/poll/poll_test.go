package poll

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"eventcal/internal/api"
	"eventcal/internal/auth"
)

func TestRunRetriesTransientFailures(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]api.Event, error) {
		calls++
		if calls < 3 {
			return nil, &api.NetworkError{Op: "GET /events/", Err: errors.New("connection refused")}
		}
		return []api.Event{{ID: 1, Title: "ok"}}, nil
	}

	p, err := New("* * * * *", fetch, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if calls != 3 {
		t.Errorf("fetch called %d times, want 3", calls)
	}
}

func TestRunDoesNotRetryExpiredSession(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]api.Event, error) {
		calls++
		return nil, auth.ErrSessionExpired
	}

	p, err := New("* * * * *", fetch, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.run(context.Background())
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1 (no retry on auth failure)", calls)
	}
}

func TestRunDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]api.Event, error) {
		calls++
		return nil, &api.APIError{StatusCode: http.StatusBadRequest, Message: "bad cursor"}
	}

	p, err := New("* * * * *", fetch, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]api.Event, error) {
		calls++
		return nil, &api.APIError{StatusCode: http.StatusBadGateway}
	}

	p, err := New("* * * * *", fetch, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if want := int(p.maxRetries) + 1; calls != want {
		t.Errorf("fetch called %d times, want %d", calls, want)
	}
}

func TestDeliverNeverBlocks(t *testing.T) {
	p, err := New("* * * * *", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Nobody is draining; delivering repeatedly must not block, and the
	// consumer sees the freshest result.
	for i := 0; i < 5; i++ {
		p.deliver(Result{Events: []api.Event{{ID: int64(i)}}})
	}
	r := <-p.Updates()
	if len(r.Events) != 1 || r.Events[0].ID != 4 {
		t.Errorf("got result %+v, want the latest", r)
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	if _, err := New("not a cron spec", nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}
