package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution"
	"github.com/chigozirigeorge/omnixec-sub000/internal/oracle"
	"github.com/chigozirigeorge/omnixec-sub000/internal/quote"
	"github.com/chigozirigeorge/omnixec-sub000/internal/risk"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage/memory"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
	"github.com/chigozirigeorge/omnixec-sub000/internal/webhook"
)

// stubExecutor is a minimal execution.Executor with enough balance to clear
// the router's treasury pre-flight check.
type stubExecutor struct {
	chain   domain.Chain
	balance decimal.Decimal
}

func (s *stubExecutor) Chain() domain.Chain { return s.chain }
func (s *stubExecutor) Execute(ctx context.Context, q domain.Quote) (string, decimal.Decimal, error) {
	return "stub-tx", decimal.NewFromInt(1), nil
}
func (s *stubExecutor) CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error {
	if s.balance.LessThan(required) {
		return svcerrors.InsufficientTreasury(string(s.chain), required.String(), s.balance.String())
	}
	return nil
}
func (s *stubExecutor) GetTreasuryBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return s.balance, nil
}
func (s *stubExecutor) TransferToTreasury(ctx context.Context, asset string, amount decimal.Decimal) (string, error) {
	return "treasury-tx", nil
}
func (s *stubExecutor) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error {
	return nil
}

func newTestRouter(t *testing.T) (*mux.Router, *memory.Ledger) {
	t.Helper()
	cfg := config.New()
	ledger := memory.New()
	ledger.SetBalance(context.Background(), domain.ChainSolana, "USDC", decimal.NewFromInt(1_000_000))
	prices := oracle.NewStaticOracle(map[string]oracle.Price{
		"USDC:USDC": {Rate: 1.0, ConfidencePct: 0.3, PublishTime: time.Now()},
	})
	eng := quote.New(ledger, prices, cfg.ChainProfiles(), cfg.Allowlist(), cfg.Quote, nil)
	riskCtl := risk.New(ledger, cfg.Risk, nil)
	router := execution.NewRouter(nil)
	router.Register(&stubExecutor{chain: domain.ChainStellar, balance: decimal.NewFromInt(1_000_000)})
	coord := execution.NewCoordinator(router, riskCtl, ledger, nil)
	loop := webhook.NewLoop(coord, riskCtl, ledger, cfg.Retry, nil)
	ing := webhook.NewIngestor(eng, ledger, loop, nil)

	srv := NewServer("127.0.0.1:0", Deps{
		Engine:    eng,
		Ledger:    ledger,
		Webhook:   ing,
		RetryLoop: loop,
	})
	return srv.httpServer.Handler.(*mux.Router), ledger
}

func seedUserAndWallet(t *testing.T, ledger *memory.Ledger) domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := ledger.CreateUser(ctx, domain.User{})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := ledger.BindWallet(ctx, user.ID, domain.ChainStellar, "G..."); err != nil {
		t.Fatalf("bind wallet: %v", err)
	}
	return user
}

func doRequest(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateQuoteRejectsInvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/quote", []byte("not-json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateQuoteSucceeds(t *testing.T) {
	router, ledger := newTestRouter(t)
	user := seedUserAndWallet(t, ledger)

	body, _ := json.Marshal(createQuoteRequest{
		UserID:                user.ID,
		FundingChain:          string(domain.ChainSolana),
		ExecutionChain:        string(domain.ChainStellar),
		FundingAsset:          "USDC",
		ExecutionAsset:        "USDC",
		ExecutionInstructions: "payment-op",
	})
	rec := doRequest(router, http.MethodPost, "/quote", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var q domain.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.Status != domain.QuoteStatusPending {
		t.Fatalf("expected pending quote, got %s", q.Status)
	}
}

func TestCreateQuoteRejectsUnsupportedChainPair(t *testing.T) {
	router, ledger := newTestRouter(t)
	user := seedUserAndWallet(t, ledger)

	body, _ := json.Marshal(createQuoteRequest{
		UserID:                user.ID,
		FundingChain:          string(domain.ChainSolana),
		ExecutionChain:        string(domain.ChainSolana),
		FundingAsset:          "USDC",
		ExecutionAsset:        "USDC",
		ExecutionInstructions: "payment-op",
	})
	rec := doRequest(router, http.MethodPost, "/quote", body)
	if rec.Code == http.StatusCreated {
		t.Fatalf("expected an error status for an unsupported chain pair, got 201: %s", rec.Body.String())
	}
}

func TestCommitQuoteNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(commitRequest{QuoteID: "does-not-exist"})
	rec := doRequest(router, http.MethodPost, "/commit", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCommitQuoteSucceeds(t *testing.T) {
	router, ledger := newTestRouter(t)
	user := seedUserAndWallet(t, ledger)

	createBody, _ := json.Marshal(createQuoteRequest{
		UserID:                user.ID,
		FundingChain:          string(domain.ChainSolana),
		ExecutionChain:        string(domain.ChainStellar),
		FundingAsset:          "USDC",
		ExecutionAsset:        "USDC",
		ExecutionInstructions: "payment-op",
	})
	createRec := doRequest(router, http.MethodPost, "/quote", createBody)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create quote failed: %d %s", createRec.Code, createRec.Body.String())
	}
	var created domain.Quote
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created quote: %v", err)
	}

	commitBody, _ := json.Marshal(commitRequest{QuoteID: created.ID})
	rec := doRequest(router, http.MethodPost, "/commit", commitBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var committed domain.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &committed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if committed.Status != domain.QuoteStatusCommitted {
		t.Fatalf("expected committed status, got %s", committed.Status)
	}
}

func TestStatusReturnsNotFoundForUnknownQuote(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodGet, "/status/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusReturnsQuoteWithoutExecution(t *testing.T) {
	router, ledger := newTestRouter(t)
	ctx := context.Background()
	user := seedUserAndWallet(t, ledger)
	q, err := ledger.InsertQuote(ctx, domain.Quote{
		UserID:                user.ID,
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
	})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/status/"+q.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Quote.ID != q.ID {
		t.Fatalf("expected quote %s, got %s", q.ID, resp.Quote.ID)
	}
	if resp.Execution != nil {
		t.Fatalf("expected no execution yet, got %+v", resp.Execution)
	}
}

func TestWebhookPaymentRejectsInvalidAmount(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(webhookRequest{
		Chain: string(domain.ChainSolana), TransactionHash: "tx1", Amount: "not-a-number", Memo: "anything",
	})
	rec := doRequest(router, http.MethodPost, "/webhook/payment", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookPaymentAccepted(t *testing.T) {
	router, ledger := newTestRouter(t)
	ctx := context.Background()
	user := seedUserAndWallet(t, ledger)
	q, err := ledger.InsertQuote(ctx, domain.Quote{
		UserID:                user.ID,
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
	})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	body, _ := json.Marshal(webhookRequest{
		Chain:           string(domain.ChainSolana),
		TransactionHash: "tx1",
		Amount:          q.MaxFundingAmount.String(),
		Memo:            q.ID,
	})
	rec := doRequest(router, http.MethodPost, "/webhook/payment", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthReportsOkWithNoOpenBreakers(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %s", resp.Status)
	}
	for _, chain := range chainsForHealth {
		if resp.Chains[string(chain)] != "ok" {
			t.Fatalf("expected chain %s to report ok, got %s", chain, resp.Chains[string(chain)])
		}
	}
}

func TestHealthReportsDegradedWithOpenBreaker(t *testing.T) {
	router, ledger := newTestRouter(t)
	if _, err := ledger.TriggerCircuitBreaker(context.Background(), domain.ChainStellar, "too many failures"); err != nil {
		t.Fatalf("trigger circuit breaker: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %s", resp.Status)
	}
	if resp.Chains[string(domain.ChainStellar)] != "circuit_open" {
		t.Fatalf("expected stellar to report circuit_open, got %s", resp.Chains[string(domain.ChainStellar)])
	}
}
