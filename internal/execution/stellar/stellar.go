// Package stellar implements the Executor contract for the fixed-fee,
// shared-account payment chain on top of github.com/stellar/go.
package stellar

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

const instructionVersion = 1

// Config configures the Stellar Executor.
type Config struct {
	HorizonURL         string
	NetworkPassphrase  string
	TreasurySecretSeed string
}

type paymentOp struct {
	destination string
	amount      int64 // stroops
	assetCode   string
	issuer      string
}

// Executor drives payments from the treasury account using the classic
// Stellar Payment operation, memo-tagged per the shared-account scheme.
type Executor struct {
	cfg     Config
	client  *horizonclient.Client
	kp      *keypair.Full
	log     *logging.Logger
}

func New(cfg Config, log *logging.Logger) (*Executor, error) {
	if log == nil {
		log = logging.NewDefault("stellar-executor")
	}
	kp, err := keypair.ParseFull(cfg.TreasurySecretSeed)
	if err != nil {
		return nil, fmt.Errorf("stellar: invalid treasury secret seed: %w", err)
	}
	if cfg.NetworkPassphrase == "" {
		cfg.NetworkPassphrase = network.PublicNetworkPassphrase
	}
	return &Executor{
		cfg:    cfg,
		client: &horizonclient.Client{HorizonURL: cfg.HorizonURL},
		kp:     kp,
		log:    log,
	}, nil
}

func (e *Executor) Chain() domain.Chain { return domain.ChainStellar }

// strkeyLen is the ASCII length of a strkey-encoded Stellar ed25519 public
// key: 1 version byte + 32 key bytes + 2 checksum bytes, base32 encoded.
const strkeyLen = 56

// parsePaymentOp decodes the wire format: 1-byte version, a strkey-encoded
// destination public key, 8-byte little-endian stroop amount, 4-byte asset
// code length, the code itself (<=12 bytes), and for non-native assets a
// trailing strkey-encoded issuer public key.
func parsePaymentOp(raw []byte) (paymentOp, error) {
	const minLen = 1 + strkeyLen + 8 + 4
	if len(raw) < minLen {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "too short for a payment operation")
	}
	cursor := 0
	version := raw[cursor]
	cursor++
	if version != instructionVersion {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "unsupported instruction version")
	}

	destination := string(raw[cursor : cursor+strkeyLen])
	cursor += strkeyLen
	if _, err := keypair.ParseAddress(destination); err != nil {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "invalid destination public key")
	}

	amount := int64(binary.LittleEndian.Uint64(raw[cursor : cursor+8]))
	cursor += 8
	if amount <= 0 {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "amount must be positive")
	}

	codeLen := int(binary.LittleEndian.Uint32(raw[cursor : cursor+4]))
	cursor += 4
	if codeLen == 0 || codeLen > 12 {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "asset code length out of range")
	}
	if cursor+codeLen > len(raw) {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "truncated asset code")
	}
	code := string(raw[cursor : cursor+codeLen])
	cursor += codeLen

	var issuer string
	if code != "XLM" {
		if cursor+strkeyLen > len(raw) {
			return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "non-native asset requires an issuer")
		}
		issuer = string(raw[cursor : cursor+strkeyLen])
		cursor += strkeyLen
		if _, err := keypair.ParseAddress(issuer); err != nil {
			return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "invalid issuer public key")
		}
	}

	if cursor != len(raw) {
		return paymentOp{}, svcerrors.InvalidInput("execution_instructions", "trailing bytes after payment operation")
	}
	return paymentOp{destination: destination, amount: amount, assetCode: code, issuer: issuer}, nil
}

func (op paymentOp) asset() txnbuild.Asset {
	if op.assetCode == "XLM" {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: op.assetCode, Issuer: op.issuer}
}

// amountString converts stroops (1e-7 XLM) to the decimal-string amount
// txnbuild.Payment expects.
func (op paymentOp) amountString() string {
	return decimal.NewFromInt(op.amount).Div(decimal.New(1, 7)).StringFixed(7)
}

func (e *Executor) Execute(ctx context.Context, q domain.Quote) (string, decimal.Decimal, error) {
	if q.ExecutionChain != domain.ChainStellar {
		return "", decimal.Zero, svcerrors.ExecutorChainMismatch(string(q.ExecutionChain), string(domain.ChainStellar))
	}
	op, err := parsePaymentOp(q.ExecutionInstructions)
	if err != nil {
		return "", decimal.Zero, err
	}

	source, err := e.client.AccountDetail(horizonclient.AccountRequest{AccountID: e.kp.Address()})
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("load_source_account", err)
	}

	payment := &txnbuild.Payment{
		Destination: op.destination,
		Amount:      op.amountString(),
		Asset:       op.asset(),
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{payment},
		BaseFee:              txnbuild.MinBaseFee,
		Memo:                 txnbuild.MemoText(q.Nonce),
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	})
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("build_transaction", err)
	}

	tx, err = tx.Sign(e.cfg.NetworkPassphrase, e.kp)
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("sign_transaction", err)
	}

	resp, err := e.client.SubmitTransaction(tx)
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("submit_transaction", err)
	}

	feeCharged, parseErr := strconv.ParseInt(resp.FeeCharged, 10, 64)
	if parseErr != nil {
		feeCharged = txnbuild.MinBaseFee
	}
	gasUsed := decimal.NewFromInt(feeCharged).Div(decimal.New(1, 7))
	return resp.Hash, gasUsed, nil
}

func (e *Executor) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		tx, err := e.client.TransactionDetail(txHash)
		if err == nil {
			if tx.Successful {
				return nil
			}
			return svcerrors.BlockchainError("confirm_transaction", fmt.Errorf("transaction %s did not succeed", txHash))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return svcerrors.BlockchainError("confirm_transaction", fmt.Errorf("timed out waiting for confirmation of %s", txHash))
}

func (e *Executor) GetTreasuryBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	account, err := e.client.AccountDetail(horizonclient.AccountRequest{AccountID: e.kp.Address()})
	if err != nil {
		return decimal.Zero, svcerrors.BlockchainError("load_source_account", err)
	}
	for _, bal := range account.Balances {
		if (asset == "XLM" && bal.Asset.Type == "native") || bal.Asset.Code == asset {
			amount, err := decimal.NewFromString(bal.Balance)
			if err != nil {
				return decimal.Zero, svcerrors.BlockchainError("parse_balance", err)
			}
			return amount, nil
		}
	}
	return decimal.Zero, svcerrors.InvalidInput("asset", "treasury account holds no trustline for this asset")
}

func (e *Executor) CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error {
	available, err := e.GetTreasuryBalance(ctx, asset)
	if err != nil {
		return err
	}
	if available.LessThan(required) {
		return svcerrors.InsufficientTreasury(string(domain.ChainStellar), required.String(), available.String())
	}
	return nil
}

// TransferToTreasury always returns a "not applicable" error and moves no
// funds. Under the shared-account scheme funds are already held in the
// treasury's own account, so settlement is a ledger reconciliation, not an
// on-chain movement.
func (e *Executor) TransferToTreasury(ctx context.Context, asset string, amount decimal.Decimal) (string, error) {
	return "", svcerrors.Internal("transfer_to_treasury is not applicable to the shared-account payment scheme", nil)
}
