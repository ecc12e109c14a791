package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
)

func TestQuoteLifecycle(t *testing.T) {
	ctx := context.Background()
	l := New()

	q, err := l.InsertQuote(ctx, domain.Quote{
		FundingChain:     domain.ChainSolana,
		ExecutionChain:   domain.ChainNear,
		MaxFundingAmount: decimal.NewFromInt(100),
		Nonce:            "nonce-1",
		ExpiresAt:        time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}
	if q.Status != domain.QuoteStatusPending {
		t.Fatalf("expected pending status, got %s", q.Status)
	}

	if err := l.TransitionQuote(ctx, nil, q.ID, domain.QuoteStatusPending, domain.QuoteStatusCommitted); err != nil {
		t.Fatalf("transition to committed: %v", err)
	}

	// Re-committing from Pending is now illegal because the row moved.
	if err := l.TransitionQuote(ctx, nil, q.ID, domain.QuoteStatusPending, domain.QuoteStatusCommitted); err == nil {
		t.Fatal("expected invalid-state error for stale transition")
	}

	// An edge not present in the adjacency map is rejected before any lookup.
	if err := l.TransitionQuote(ctx, nil, q.ID, domain.QuoteStatusCommitted, domain.QuoteStatusPending); err == nil {
		t.Fatal("expected rejection of an illegal transition")
	}

	got, err := l.GetQuoteByNonce(ctx, "nonce-1")
	if err != nil {
		t.Fatalf("get by nonce: %v", err)
	}
	if got.Status != domain.QuoteStatusCommitted {
		t.Fatalf("expected committed, got %s", got.Status)
	}
}

func TestSweepExpiredQuotes(t *testing.T) {
	ctx := context.Background()
	l := New()

	past := domain.Quote{Nonce: "expired", ExpiresAt: time.Now().Add(-time.Minute)}
	q, _ := l.InsertQuote(ctx, past)

	future := domain.Quote{Nonce: "alive", ExpiresAt: time.Now().Add(time.Hour)}
	l.InsertQuote(ctx, future)

	ids, err := l.SweepExpiredQuotes(ctx, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(ids) != 1 || ids[0] != q.ID {
		t.Fatalf("expected exactly the expired quote to sweep, got %v", ids)
	}

	updated, _ := l.GetQuote(ctx, q.ID)
	if updated.Status != domain.QuoteStatusExpired {
		t.Fatalf("expected expired status, got %s", updated.Status)
	}
}

func TestInsertExecutionDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	l := New()

	q, _ := l.InsertQuote(ctx, domain.Quote{Nonce: "n", ExpiresAt: time.Now().Add(time.Hour)})

	if _, err := l.InsertExecution(ctx, nil, domain.Execution{QuoteID: q.ID, ExecutionChain: domain.ChainStellar}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := l.InsertExecution(ctx, nil, domain.Execution{QuoteID: q.ID, ExecutionChain: domain.ChainStellar}); err == nil {
		t.Fatal("expected duplicate execution error")
	}
}

func TestLockFundsRespectsAvailableBalance(t *testing.T) {
	ctx := context.Background()
	l := New()

	if err := l.SetBalance(ctx, domain.ChainSolana, "USDC", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	if err := l.LockFunds(ctx, nil, domain.ChainSolana, "USDC", decimal.NewFromInt(30)); err != nil {
		t.Fatalf("lock within balance: %v", err)
	}
	if err := l.LockFunds(ctx, nil, domain.ChainSolana, "USDC", decimal.NewFromInt(30)); err == nil {
		t.Fatal("expected insufficient treasury error for over-lock")
	}
}

func TestDailySpendingAccumulates(t *testing.T) {
	ctx := context.Background()
	l := New()
	day := time.Now()

	if err := l.IncrementDailySpending(ctx, nil, domain.ChainNear, day, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.IncrementDailySpending(ctx, nil, domain.ChainNear, day, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("increment: %v", err)
	}

	d, err := l.GetDailySpending(ctx, domain.ChainNear, day)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !d.AmountSpent.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected 15 spent, got %s", d.AmountSpent)
	}
	if d.TransactionCount != 2 {
		t.Fatalf("expected 2 transactions, got %d", d.TransactionCount)
	}
}

func TestCircuitBreakerTriggerAndResolve(t *testing.T) {
	ctx := context.Background()
	l := New()

	s, err := l.TriggerCircuitBreaker(ctx, domain.ChainStellar, "daily limit breached")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	open, err := l.GetOpenCircuitBreaker(ctx, domain.ChainStellar)
	if err != nil || open == nil {
		t.Fatalf("expected open breaker, got %v err=%v", open, err)
	}

	// Triggering again while open returns the same breaker rather than a second one.
	again, err := l.TriggerCircuitBreaker(ctx, domain.ChainStellar, "repeat")
	if err != nil || again.ID != s.ID {
		t.Fatalf("expected idempotent re-trigger, got %#v err=%v", again, err)
	}

	if err := l.ResolveCircuitBreaker(ctx, s.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	open, err = l.GetOpenCircuitBreaker(ctx, domain.ChainStellar)
	if err != nil || open != nil {
		t.Fatalf("expected no open breaker after resolve, got %v err=%v", open, err)
	}
}
