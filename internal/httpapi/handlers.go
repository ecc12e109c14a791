package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/httpmw"
	"github.com/chigozirigeorge/omnixec-sub000/internal/quote"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
	"github.com/chigozirigeorge/omnixec-sub000/internal/webhook"
)

type handlers struct {
	deps Deps
}

type createQuoteRequest struct {
	UserID                string  `json:"user_id"`
	FundingChain          string  `json:"funding_chain"`
	ExecutionChain        string  `json:"execution_chain"`
	FundingAsset          string  `json:"funding_asset"`
	ExecutionAsset        string  `json:"execution_asset"`
	ExecutionInstructions string  `json:"execution_instructions"` // plain JSON string; its bytes are used as-is, not base64-decoded
	EstimatedComputeUnits *int64  `json:"estimated_compute_units,omitempty"`
}

func (h *handlers) createQuote(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, svcerrors.InvalidInput("body", "not valid JSON"))
		return
	}

	q, err := h.deps.Engine.GenerateQuote(r.Context(), quote.GenerateInput{
		UserID:                req.UserID,
		FundingChain:          domain.Chain(req.FundingChain),
		ExecutionChain:        domain.Chain(req.ExecutionChain),
		FundingAsset:          req.FundingAsset,
		ExecutionAsset:        req.ExecutionAsset,
		ExecutionInstructions: []byte(req.ExecutionInstructions),
		EstimatedComputeUnits: req.EstimatedComputeUnits,
	})
	if err != nil {
		httpmw.WriteError(w, err)
		return
	}
	httpmw.WriteJSON(w, http.StatusCreated, q)
}

type commitRequest struct {
	QuoteID string `json:"quote_id"`
}

func (h *handlers) commitQuote(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, svcerrors.InvalidInput("body", "not valid JSON"))
		return
	}

	q, err := h.deps.Engine.CommitQuote(r.Context(), req.QuoteID)
	if err != nil {
		httpmw.WriteError(w, err)
		return
	}
	if h.deps.RetryLoop != nil {
		h.deps.RetryLoop.Spawn(q.ID)
	}
	httpmw.WriteJSON(w, http.StatusOK, q)
}

type statusResponse struct {
	Quote     domain.Quote      `json:"quote"`
	Execution *domain.Execution `json:"execution,omitempty"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q, err := h.deps.Ledger.GetQuote(r.Context(), id)
	if err != nil {
		if err == storage.ErrNoRows {
			httpmw.WriteError(w, svcerrors.QuoteNotFound(id))
			return
		}
		httpmw.WriteError(w, svcerrors.DatabaseError("get_quote", err))
		return
	}

	resp := statusResponse{Quote: q}
	if exec, err := h.deps.Ledger.GetExecutionByQuoteID(r.Context(), id); err == nil {
		resp.Execution = &exec
	} else if err != storage.ErrNoRows {
		httpmw.WriteError(w, svcerrors.DatabaseError("get_execution_by_quote_id", err))
		return
	}
	httpmw.WriteJSON(w, http.StatusOK, resp)
}

type webhookRequest struct {
	Chain           string `json:"chain"`
	TransactionHash string `json:"transaction_hash"`
	Amount          string `json:"amount"`
	Memo            string `json:"memo"`
}

func (h *handlers) webhookPayment(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, svcerrors.InvalidInput("body", "not valid JSON"))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpmw.WriteError(w, svcerrors.InvalidInput("amount", "not a valid decimal"))
		return
	}

	if err := h.deps.Webhook.Ingest(r.Context(), webhook.Notification{
		Chain:           domain.Chain(req.Chain),
		TransactionHash: req.TransactionHash,
		Amount:          amount,
		Memo:            req.Memo,
	}); err != nil {
		httpmw.WriteError(w, err)
		return
	}
	httpmw.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type healthResponse struct {
	Status string            `json:"status"`
	Chains map[string]string `json:"chains"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Chains: make(map[string]string, len(chainsForHealth))}
	for _, chain := range chainsForHealth {
		breaker, err := h.deps.Ledger.GetOpenCircuitBreaker(r.Context(), chain)
		if err != nil {
			resp.Chains[string(chain)] = "unknown"
			continue
		}
		if breaker != nil {
			resp.Chains[string(chain)] = "circuit_open"
			resp.Status = "degraded"
			continue
		}
		resp.Chains[string(chain)] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httpmw.WriteJSON(w, status, resp)
}
