package door

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	closedState = State{Status: StatusClosed, Setpoint: SetpointClosed, Position: 0}
	movingState = State{Status: StatusMovingUp, Setpoint: SetpointOpen, Position: 0.1}
	openState   = State{Status: StatusOpen, Setpoint: SetpointOpen, Position: 1}
)

func TestPublisher_FirstNextIsCurrent(t *testing.T) {
	p := NewPublisher(closedState)
	sub := p.Subscribe()

	got, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != closedState {
		t.Errorf("Next() = %+v, want %+v", got, closedState)
	}
}

func TestPublisher_DuplicateNotPublished(t *testing.T) {
	p := NewPublisher(closedState)
	sub := p.Subscribe()
	_, _ = sub.Next(context.Background())

	if p.Publish(closedState) {
		t.Error("Publish() of an identical state returned true")
	}

	select {
	case <-sub.Ready():
		t.Error("Ready() fired without a distinct publish")
	default:
	}
}

func TestPublisher_CoalescesToLatest(t *testing.T) {
	p := NewPublisher(closedState)
	sub := p.Subscribe()
	_, _ = sub.Next(context.Background())

	p.Publish(movingState)
	p.Publish(openState)

	got, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != openState {
		t.Errorf("Next() = %+v, want latest %+v", got, openState)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded (no backlog)", err)
	}
}

func TestPublisher_WakesWaiters(t *testing.T) {
	p := NewPublisher(closedState)

	const n = 5
	results := make(chan State, n)
	for i := 0; i < n; i++ {
		sub := p.Subscribe()
		_, _ = sub.Next(context.Background())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			s, err := sub.Next(ctx)
			if err != nil {
				results <- State{}
				return
			}
			results <- s
		}()
	}

	time.Sleep(10 * time.Millisecond)
	p.Publish(movingState)

	for i := 0; i < n; i++ {
		if got := <-results; got != movingState {
			t.Errorf("subscriber %d got %+v, want %+v", i, got, movingState)
		}
	}
}

func TestPublisher_Ready(t *testing.T) {
	p := NewPublisher(closedState)
	sub := p.Subscribe()

	select {
	case <-sub.Ready():
	default:
		t.Fatal("Ready() not closed for a fresh subscription")
	}
	_, _ = sub.Next(context.Background())

	ready := sub.Ready()
	p.Publish(openState)

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("Ready() channel not closed after publish")
	}
	if p.Current() != openState {
		t.Errorf("Current() = %+v, want %+v", p.Current(), openState)
	}
}
