package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashd/models"
)

func TestTransactionalBusFlushDeliversToSubscribers(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangeEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		defer wg.Done()
		ev, ok := event.(BalanceChangeEvent)
		require.True(t, ok, "expected BalanceChangeEvent, got %T", event)
		received <- ev
	})

	testEvent := BalanceChangeEvent{
		UserID:        42,
		BalanceBefore: decimal.RequireFromString("100.00"),
		BalanceAfter:  decimal.RequireFromString("75.00"),
		ChangeAmount:  decimal.RequireFromString("-25.00"),
		EntryKind:     models.EntryKindBetStake,
	}

	// publish stashes, nothing reaches the main bus yet
	txBus.Publish(testEvent)
	select {
	case <-received:
		t.Fatal("event delivered before flush")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, txBus.Flush(context.Background()))
	wg.Wait()

	ev := <-received
	assert.Equal(t, int64(42), ev.UserID)
	assert.True(t, ev.ChangeAmount.Equal(decimal.RequireFromString("-25.00")))
	assert.Equal(t, models.EntryKindBetStake, ev.EntryKind)
}

func TestTransactionalBusDiscardDropsPending(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	delivered := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeBetPlaced, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	txBus.Publish(BetPlacedEvent{UserID: 1, RoundID: 2, BetID: 3, Amount: decimal.NewFromInt(10)})
	txBus.Discard()
	require.NoError(t, txBus.Flush(context.Background()))

	select {
	case <-delivered:
		t.Fatal("discarded event was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusEmitSurvivesHandlerPanic(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{}, 1)
	bus.Subscribe(EventTypeRoundCrashed, func(ctx context.Context, event Event) {
		panic("handler failure")
	})
	bus.Subscribe(EventTypeRoundCrashed, func(ctx context.Context, event Event) {
		done <- struct{}{}
	})

	bus.Emit(context.Background(), RoundCrashedEvent{
		RoundID:    7,
		CrashPoint: decimal.RequireFromString("2.41"),
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second handler never ran after first panicked")
	}
}

func TestBusEmitWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	// must not block or panic
	bus.Emit(context.Background(), CashedOutEvent{UserID: 1, RoundID: 1, BetID: 1})
}
