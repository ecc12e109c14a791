package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/risk"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage/memory"
)

type fakeExecutor struct {
	chain       domain.Chain
	txHash      string
	gasUsed     decimal.Decimal
	executeErr  error
	balance     decimal.Decimal
	waitErr     error
	transferErr error
}

func (f *fakeExecutor) Chain() domain.Chain { return f.chain }

func (f *fakeExecutor) Execute(ctx context.Context, q domain.Quote) (string, decimal.Decimal, error) {
	if f.executeErr != nil {
		return "", decimal.Zero, f.executeErr
	}
	return f.txHash, f.gasUsed, nil
}

func (f *fakeExecutor) CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error {
	if f.balance.LessThan(required) {
		return errInsufficientTreasury
	}
	return nil
}

func (f *fakeExecutor) GetTreasuryBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeExecutor) TransferToTreasury(ctx context.Context, asset string, amount decimal.Decimal) (string, error) {
	return "treasury-tx", f.transferErr
}

func (f *fakeExecutor) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error {
	return f.waitErr
}

var errInsufficientTreasury = errTestInsufficient("insufficient treasury balance")

type errTestInsufficient string

func (e errTestInsufficient) Error() string { return string(e) }

func seedCommittedQuote(t *testing.T, ledger storage.Ledger) domain.Quote {
	t.Helper()
	ctx := context.Background()
	q := domain.Quote{
		UserID:                "user-1",
		FundingChain:          domain.ChainSolana,
		ExecutionChain:        domain.ChainStellar,
		FundingAsset:          "USDC",
		ExecutionAsset:        "USDC",
		MaxFundingAmount:      decimal.NewFromInt(100),
		ExecutionCost:         decimal.NewFromInt(10),
		ServiceFee:            decimal.NewFromInt(1),
		ExecutionInstructions: []byte("payment-op"),
		Nonce:                 "nonce-" + t.Name(),
		Status:                domain.QuoteStatusPending,
		ExpiresAt:             time.Now().Add(time.Minute),
	}
	inserted, err := ledger.InsertQuote(ctx, q)
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}
	if err := ledger.TransitionQuote(ctx, nil, inserted.ID, domain.QuoteStatusPending, domain.QuoteStatusCommitted); err != nil {
		t.Fatalf("commit quote: %v", err)
	}
	inserted.Status = domain.QuoteStatusCommitted
	return inserted
}

func TestCoordinatorRunSucceeds(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	riskCtl := risk.New(ledger, config.RiskConfig{}.Normalized(), nil)
	router := NewRouter(nil)
	ex := &fakeExecutor{chain: domain.ChainStellar, txHash: "abc123", gasUsed: decimal.NewFromInt(5), balance: decimal.NewFromInt(1000)}
	router.Register(ex)

	coord := NewCoordinator(router, riskCtl, ledger, nil)
	q := seedCommittedQuote(t, ledger)

	if err := coord.Run(ctx, q); err != nil {
		t.Fatalf("run: %v", err)
	}

	updated, err := ledger.GetQuote(ctx, q.ID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if updated.Status != domain.QuoteStatusExecuted {
		t.Fatalf("expected executed, got %s", updated.Status)
	}

	exec, err := ledger.GetExecutionByQuoteID(ctx, q.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.TransactionHash != "abc123" {
		t.Fatalf("expected tx hash abc123, got %s", exec.TransactionHash)
	}
}

func TestCoordinatorRunDuplicateExecutionIsClean(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	riskCtl := risk.New(ledger, config.RiskConfig{}.Normalized(), nil)
	router := NewRouter(nil)
	ex := &fakeExecutor{chain: domain.ChainStellar, txHash: "abc123", balance: decimal.NewFromInt(1000)}
	router.Register(ex)

	coord := NewCoordinator(router, riskCtl, ledger, nil)
	q := seedCommittedQuote(t, ledger)

	if err := coord.Run(ctx, q); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Second attempt for the same quote must not fail: the reservation step
	// hits the idempotency fence and Run returns storage.ErrDuplicateExecution.
	err := coord.Run(ctx, q)
	if err != storage.ErrDuplicateExecution {
		t.Fatalf("expected ErrDuplicateExecution, got %v", err)
	}
}

func TestCoordinatorRunFailsOnExecuteError(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	riskCtl := risk.New(ledger, config.RiskConfig{}.Normalized(), nil)
	router := NewRouter(nil)
	ex := &fakeExecutor{chain: domain.ChainStellar, balance: decimal.NewFromInt(1000), executeErr: errTestInsufficient("rpc timeout")}
	router.Register(ex)

	coord := NewCoordinator(router, riskCtl, ledger, nil)
	q := seedCommittedQuote(t, ledger)

	if err := coord.Run(ctx, q); err == nil {
		t.Fatal("expected an error from Execute to propagate")
	}

	updated, err := ledger.GetQuote(ctx, q.ID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if updated.Status != domain.QuoteStatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
}
