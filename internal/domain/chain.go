// Package domain holds the entities shared by every component of the
// orchestrator: chains, quotes, executions, settlements and the ledger's
// auxiliary risk/audit rows.
package domain

// Chain is a closed enumeration of the blockchains the orchestrator can fund
// from or execute on.
type Chain string

const (
	ChainSolana Chain = "solana"
	ChainStellar Chain = "stellar"
	ChainNear   Chain = "near"
)

// Chains lists every chain known to the orchestrator, for validation and
// config iteration.
var Chains = []Chain{ChainSolana, ChainStellar, ChainNear}

func (c Chain) Valid() bool {
	for _, known := range Chains {
		if c == known {
			return true
		}
	}
	return false
}

// CostModel identifies how a chain prices execution.
type CostModel string

const (
	CostModelComputeMetered CostModel = "compute_metered"
	CostModelFixedFee       CostModel = "fixed_fee"
	CostModelGasMeter       CostModel = "gas_meter"
)

// PaymentScheme identifies how a chain's funding-side payment address is
// derived.
type PaymentScheme string

const (
	SchemeSharedAccount       PaymentScheme = "shared_account"
	SchemeSubaccount          PaymentScheme = "subaccount"
	SchemeProgrammaticAddress PaymentScheme = "programmatic_address"
)

// ChainProfile captures the static, per-chain configuration that the quote
// engine and executors consult: its cost model, payment scheme and the
// parameters each model needs.
type ChainProfile struct {
	Chain         Chain
	CostModel     CostModel
	PaymentScheme PaymentScheme

	// Compute-metered parameters (Solana).
	UnitPrice        float64
	FixedOverhead    float64
	PriorityBuffer   float64 // e.g. 0.20 for a 20% buffer
	MinComputeUnits  int64
	MaxComputeUnits  int64

	// Fixed-fee parameters (Stellar).
	BaseFee      float64
	FixedFeeMult float64 // e.g. 1.2

	// Gas-meter parameters (NEAR).
	BaseGas      float64
	ExpectedHops int
	GasPrice     float64
	GasScale     float64
	GasMeterMult float64 // e.g. 1.5

	// Treasury identity used by the shared-account / subaccount schemes.
	TreasuryAccount string
	EscrowRoot      string
	Network         string

	RPCURL string
}

// ChainPair identifies a funding chain and an execution chain; it is the key
// of the chain-pair allowlist. Same-chain pairs are always forbidden.
type ChainPair struct {
	Funding   Chain
	Execution Chain
}
