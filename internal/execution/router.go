package execution

import (
	"context"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// Router holds an injective mapping from Chain to Executor and performs the
// pre-flight checks shared by every execution attempt.
type Router struct {
	executors map[domain.Chain]Executor
	log       *logging.Logger
}

func NewRouter(log *logging.Logger) *Router {
	if log == nil {
		log = logging.NewDefault("execution-router")
	}
	return &Router{executors: make(map[domain.Chain]Executor), log: log}
}

// Register binds an Executor to its chain. Registering a second Executor
// for the same chain is a configuration error in the caller, not handled
// here — the mapping must stay injective by construction.
func (r *Router) Register(ex Executor) {
	r.executors[ex.Chain()] = ex
}

// Get returns the Executor registered for chain, if any. Used by
// components that need a chain's Executor outside the quote-execution
// pre-flight path, such as the settlement aggregator's transfer_to_treasury
// calls.
func (r *Router) Get(chain domain.Chain) (Executor, bool) {
	ex, ok := r.executors[chain]
	return ex, ok
}

// Resolve performs the Router's pre-flight checks (chain-pair validity,
// executor presence, chain identity, treasury balance) and returns the
// Executor ready for Execute.
func (r *Router) Resolve(ctx context.Context, q domain.Quote) (Executor, error) {
	if !q.HasValidChainPair() {
		return nil, svcerrors.SameChainFunding(string(q.FundingChain))
	}

	ex, ok := r.executors[q.ExecutionChain]
	if !ok {
		return nil, svcerrors.UnsupportedChainPair(string(q.FundingChain), string(q.ExecutionChain))
	}
	if ex.Chain() != q.ExecutionChain {
		return nil, svcerrors.ExecutorChainMismatch(string(q.ExecutionChain), string(ex.Chain()))
	}
	if err := ex.CheckTreasuryBalance(ctx, q.ExecutionAsset, q.ExecutionCost); err != nil {
		return nil, err
	}
	return ex, nil
}
