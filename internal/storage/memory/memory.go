// Package memory implements storage.Ledger with an in-process,
// mutex-guarded map store. It is intended for local development and fast
// unit tests that don't want a PostgreSQL dependency; it offers no
// durability across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// Ledger is a thread-safe in-memory implementation of storage.Ledger. A
// single mutex serializes all access, so BeginTx returns a no-op Tx: every
// method already observes a consistent snapshot without needing real
// transaction isolation.
type Ledger struct {
	mu sync.Mutex

	users       map[string]domain.User
	wallets     map[string]map[domain.Chain]string
	balances    map[string]domain.TreasuryBalance
	quotes      map[string]domain.Quote
	quotesNonce map[string]string
	executions  map[string]domain.Execution
	execByQuote map[string]string
	daily       map[string]domain.DailySpending
	breakers    map[string]domain.CircuitBreakerState
	settlements map[string]domain.Settlement
	audit       []domain.AuditLog
}

func New() *Ledger {
	return &Ledger{
		users:       make(map[string]domain.User),
		wallets:     make(map[string]map[domain.Chain]string),
		balances:    make(map[string]domain.TreasuryBalance),
		quotes:      make(map[string]domain.Quote),
		quotesNonce: make(map[string]string),
		executions:  make(map[string]domain.Execution),
		execByQuote: make(map[string]string),
		daily:       make(map[string]domain.DailySpending),
		breakers:    make(map[string]domain.CircuitBreakerState),
		settlements: make(map[string]domain.Settlement),
	}
}

var _ storage.Ledger = (*Ledger)(nil)

// noopTx satisfies storage.Tx without holding any lock of its own — the
// Ledger's single mutex already makes every individual call atomic.
type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

func (l *Ledger) BeginTx(ctx context.Context) (storage.Tx, error) {
	return noopTx{}, nil
}

func balanceKey(chain domain.Chain, asset string) string {
	return string(chain) + "|" + asset
}

func dailyKey(chain domain.Chain, date time.Time) string {
	return string(chain) + "|" + date.UTC().Format("2006-01-02")
}

func (l *Ledger) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	l.users[u.ID] = u
	l.wallets[u.ID] = make(map[domain.Chain]string)
	return u, nil
}

func (l *Ledger) GetUser(ctx context.Context, id string) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[id]
	if !ok {
		return domain.User{}, storage.ErrNoRows
	}
	u.Wallets = cloneWallets(l.wallets[id])
	return u, nil
}

func (l *Ledger) BindWallet(ctx context.Context, userID string, chain domain.Chain, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[userID]
	if !ok {
		w = make(map[domain.Chain]string)
		l.wallets[userID] = w
	}
	if _, exists := w[chain]; exists {
		return nil
	}
	w[chain] = address
	return nil
}

func (l *Ledger) InsertQuote(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.CreatedAt, q.UpdatedAt = now, now
	if q.Status == "" {
		q.Status = domain.QuoteStatusPending
	}
	l.quotes[q.ID] = q
	l.quotesNonce[q.Nonce] = q.ID
	return q, nil
}

func (l *Ledger) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.quotes[id]
	if !ok {
		return domain.Quote{}, storage.ErrNoRows
	}
	return q, nil
}

func (l *Ledger) GetQuoteByNonce(ctx context.Context, nonce string) (domain.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.quotesNonce[nonce]
	if !ok {
		return domain.Quote{}, storage.ErrNoRows
	}
	return l.quotes[id], nil
}

func (l *Ledger) TransitionQuote(ctx context.Context, tx storage.Tx, id string, from, to domain.QuoteStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !domain.ValidStateTransition(from, to) {
		return svcerrors.InvalidState(id, string(from), string(to))
	}
	q, ok := l.quotes[id]
	if !ok || q.Status != from {
		actual := "unknown"
		if ok {
			actual = string(q.Status)
		}
		return svcerrors.InvalidState(id, string(from), actual)
	}
	q.Status = to
	q.UpdatedAt = time.Now().UTC()
	l.quotes[id] = q
	return nil
}

func (l *Ledger) SweepExpiredQuotes(ctx context.Context, now time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	for id, q := range l.quotes {
		if (q.Status == domain.QuoteStatusPending || q.Status == domain.QuoteStatusCommitted) && now.After(q.ExpiresAt) {
			q.Status = domain.QuoteStatusExpired
			q.UpdatedAt = now
			l.quotes[id] = q
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Ledger) InsertExecution(ctx context.Context, tx storage.Tx, e domain.Execution) (domain.Execution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.execByQuote[e.QuoteID]; exists {
		return domain.Execution{}, storage.ErrDuplicateExecution
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = domain.ExecutionStatusPending
	}
	l.executions[e.ID] = e
	l.execByQuote[e.QuoteID] = e.ID
	return e, nil
}

func (l *Ledger) GetExecutionByQuoteID(ctx context.Context, quoteID string) (domain.Execution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.execByQuote[quoteID]
	if !ok {
		return domain.Execution{}, storage.ErrNoRows
	}
	return l.executions[id], nil
}

func (l *Ledger) GetExecutionByID(ctx context.Context, executionID string) (domain.Execution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.executions[executionID]
	if !ok {
		return domain.Execution{}, storage.ErrNoRows
	}
	return e, nil
}

func (l *Ledger) CompleteExecution(ctx context.Context, tx storage.Tx, executionID string, status domain.ExecutionStatus, txHash, errMessage string, gasUsed decimal.NullDecimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.executions[executionID]
	if !ok {
		return storage.ErrNoRows
	}
	e.Status = status
	e.TransactionHash = txHash
	e.ErrorMessage = errMessage
	e.GasUsed = gasUsed
	now := time.Now().UTC()
	e.CompletedAt = &now
	l.executions[executionID] = e
	return nil
}

func (l *Ledger) LockFunds(ctx context.Context, tx storage.Tx, chain domain.Chain, asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey(chain, asset)
	b, ok := l.balances[key]
	if !ok {
		b = domain.TreasuryBalance{Chain: chain, Asset: asset}
	}
	if b.Available().LessThan(amount) {
		return svcerrors.InsufficientTreasury(string(chain), amount.String(), b.Available().String())
	}
	b.LockedAmount = b.LockedAmount.Add(amount)
	l.balances[key] = b
	return nil
}

func (l *Ledger) GetBalance(ctx context.Context, chain domain.Chain, asset string) (domain.TreasuryBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.balances[balanceKey(chain, asset)]
	if !ok {
		return domain.TreasuryBalance{}, storage.ErrNoRows
	}
	return b, nil
}

func (l *Ledger) SetBalance(ctx context.Context, chain domain.Chain, asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey(chain, asset)
	b := l.balances[key]
	b.Chain, b.Asset = chain, asset
	b.Amount = amount
	b.ReconciledAt = time.Now().UTC()
	l.balances[key] = b
	return nil
}

func (l *Ledger) GetDailySpending(ctx context.Context, chain domain.Chain, date time.Time) (domain.DailySpending, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.daily[dailyKey(chain, date)]
	if !ok {
		return domain.DailySpending{Chain: chain, Date: date.UTC().Truncate(24 * time.Hour), AmountSpent: decimal.Zero}, nil
	}
	return d, nil
}

func (l *Ledger) IncrementDailySpending(ctx context.Context, tx storage.Tx, chain domain.Chain, date time.Time, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := dailyKey(chain, date)
	d, ok := l.daily[key]
	if !ok {
		d = domain.DailySpending{Chain: chain, Date: date.UTC().Truncate(24 * time.Hour)}
	}
	d.AmountSpent = d.AmountSpent.Add(amount)
	d.TransactionCount++
	l.daily[key] = d
	return nil
}

func (l *Ledger) GetOpenCircuitBreaker(ctx context.Context, chain domain.Chain) (*domain.CircuitBreakerState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.breakers {
		if b.Chain == chain && b.Open() {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

func (l *Ledger) TriggerCircuitBreaker(ctx context.Context, chain domain.Chain, reason string) (domain.CircuitBreakerState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.breakers {
		if b.Chain == chain && b.Open() {
			return b, nil
		}
	}
	s := domain.CircuitBreakerState{
		ID:          uuid.NewString(),
		Chain:       chain,
		Reason:      reason,
		TriggeredAt: time.Now().UTC(),
	}
	l.breakers[s.ID] = s
	return s, nil
}

func (l *Ledger) ResolveCircuitBreaker(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.breakers[id]
	if !ok || !b.Open() {
		return storage.ErrNoRows
	}
	now := time.Now().UTC()
	b.ResolvedAt = &now
	l.breakers[id] = b
	return nil
}

func (l *Ledger) InsertSettlement(ctx context.Context, s domain.Settlement) (domain.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SettledAt.IsZero() {
		s.SettledAt = time.Now().UTC()
	}
	l.settlements[s.ID] = s
	return s, nil
}

func (l *Ledger) SumUnverifiedSettlements(ctx context.Context, executionID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, s := range l.settlements {
		if s.ExecutionID == executionID && s.VerifiedAt == nil {
			total = total.Add(s.FundingAmount)
		}
	}
	return total, nil
}

func (l *Ledger) UnverifiedSettlementsByChain(ctx context.Context, chain domain.Chain) ([]domain.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Settlement
	for _, s := range l.settlements {
		if s.FundingChain == chain && s.VerifiedAt == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt.Before(out[j].SettledAt) })
	return out, nil
}

func (l *Ledger) SumSettlementsByExecution(ctx context.Context, executionID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, s := range l.settlements {
		if s.ExecutionID == executionID {
			total = total.Add(s.FundingAmount)
		}
	}
	return total, nil
}

func (l *Ledger) MarkSettlementsVerified(ctx context.Context, tx storage.Tx, ids []string, verifiedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for id, s := range l.settlements {
		if want[id] {
			t := verifiedAt
			s.VerifiedAt = &t
			l.settlements[id] = s
		}
	}
	return nil
}

func (l *Ledger) AppendAudit(ctx context.Context, tx storage.Tx, entry domain.AuditLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.audit = append(l.audit, entry)
	return nil
}

// Audit returns a snapshot of every audit entry recorded so far, oldest
// first. It exists for test assertions; callers that need a queryable
// audit trail in production should go through a real storage.Ledger.
func (l *Ledger) Audit() []domain.AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.AuditLog, len(l.audit))
	copy(out, l.audit)
	return out
}

func cloneWallets(src map[domain.Chain]string) map[domain.Chain]string {
	dst := make(map[domain.Chain]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
