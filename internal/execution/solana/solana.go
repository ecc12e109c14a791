// Package solana implements the Executor contract for the compute-metered,
// programmatic-address chain on top of github.com/gagliardetto/solana-go.
package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

const maxInstructions = 16
const maxAccountsPerInstruction = 32

// Config configures the Solana Executor. TreasuryPrivateKey is base58
// encoded, mirroring solana-go's own PrivateKey.String() format.
type Config struct {
	RPCURL              string
	Commitment          rpc.CommitmentType
	TreasuryPrivateKey  string
	MaxComputeUnits     int64
	ConfirmationTimeout time.Duration
}

// Executor drives on-chain execution against a single Solana cluster using
// the treasury keypair as fee payer and sole signer.
type Executor struct {
	cfg      Config
	client   *rpc.Client
	treasury solanago.PrivateKey
	payer    solanago.PublicKey
	log      *logging.Logger
}

func New(cfg Config, log *logging.Logger) (*Executor, error) {
	if log == nil {
		log = logging.NewDefault("solana-executor")
	}
	treasury, err := solanago.PrivateKeyFromBase58(cfg.TreasuryPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("solana: invalid treasury private key: %w", err)
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	return &Executor{
		cfg:      cfg,
		client:   rpc.New(cfg.RPCURL),
		treasury: treasury,
		payer:    treasury.PublicKey(),
		log:      log,
	}, nil
}

func (e *Executor) Chain() domain.Chain { return domain.ChainSolana }

// decodeInstructions parses the length-prefixed wire format: a 4-byte
// little-endian instruction count, followed per instruction by a
// length-prefixed program id, a count of (pubkey, is_signer, is_writable)
// account metas, and a length-prefixed opaque data blob. Any trailing bytes
// after the last instruction are rejected.
func decodeInstructions(raw []byte) ([]solanago.Instruction, error) {
	if len(raw) < 4 {
		return nil, svcerrors.InvalidInput("execution_instructions", "too short to contain an instruction count")
	}
	cursor := 0
	readU32 := func() (uint32, error) {
		if cursor+4 > len(raw) {
			return 0, svcerrors.InvalidInput("execution_instructions", "truncated length prefix")
		}
		v := binary.LittleEndian.Uint32(raw[cursor : cursor+4])
		cursor += 4
		return v, nil
	}
	readBytes := func(n int) ([]byte, error) {
		if n < 0 || cursor+n > len(raw) {
			return nil, svcerrors.InvalidInput("execution_instructions", "truncated field")
		}
		b := raw[cursor : cursor+n]
		cursor += n
		return b, nil
	}

	count, err := readU32()
	if err != nil {
		return nil, err
	}
	if count == 0 || count > maxInstructions {
		return nil, svcerrors.InvalidInput("execution_instructions", "instruction count out of range")
	}

	instructions := make([]solanago.Instruction, 0, count)
	for i := uint32(0); i < count; i++ {
		pidLen, err := readU32()
		if err != nil {
			return nil, err
		}
		pidBytes, err := readBytes(int(pidLen))
		if err != nil {
			return nil, err
		}
		programID := solanago.PublicKeyFromBytes(pidBytes)

		numAccounts, err := readU32()
		if err != nil {
			return nil, err
		}
		if numAccounts > maxAccountsPerInstruction {
			return nil, svcerrors.InvalidInput("execution_instructions", "account count out of range")
		}
		metas := make(solanago.AccountMetaSlice, 0, numAccounts)
		for a := uint32(0); a < numAccounts; a++ {
			keyBytes, err := readBytes(32)
			if err != nil {
				return nil, err
			}
			flags, err := readBytes(2)
			if err != nil {
				return nil, err
			}
			metas = append(metas, &solanago.AccountMeta{
				PublicKey:  solanago.PublicKeyFromBytes(keyBytes),
				IsSigner:   flags[0] != 0,
				IsWritable: flags[1] != 0,
			})
		}

		dataLen, err := readU32()
		if err != nil {
			return nil, err
		}
		data, err := readBytes(int(dataLen))
		if err != nil {
			return nil, err
		}

		instructions = append(instructions, solanago.NewInstruction(programID, metas, append([]byte(nil), data...)))
	}

	if cursor != len(raw) {
		return nil, svcerrors.InvalidInput("execution_instructions", "trailing bytes after last instruction")
	}
	return instructions, nil
}

func (e *Executor) Execute(ctx context.Context, q domain.Quote) (string, decimal.Decimal, error) {
	if q.ExecutionChain != domain.ChainSolana {
		return "", decimal.Zero, svcerrors.ExecutorChainMismatch(string(q.ExecutionChain), string(domain.ChainSolana))
	}
	if q.EstimatedComputeUnits != nil {
		units := *q.EstimatedComputeUnits
		if units <= 0 || units > e.cfg.MaxComputeUnits {
			return "", decimal.Zero, svcerrors.InvalidInput("estimated_compute_units", "out of range for this cluster")
		}
	}

	instructions, err := decodeInstructions(q.ExecutionInstructions)
	if err != nil {
		return "", decimal.Zero, err
	}

	recent, err := e.client.GetLatestBlockhash(ctx, e.cfg.Commitment)
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("get_latest_blockhash", err)
	}

	tx, err := solanago.NewTransaction(instructions, recent.Value.Blockhash, solanago.TransactionPayer(e.payer))
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("build_transaction", err)
	}
	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(e.payer) {
			return &e.treasury
		}
		return nil
	}); err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("sign_transaction", err)
	}

	simResult, err := e.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("simulate_transaction", err)
	}
	if simResult.Value.Err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("simulate_transaction", fmt.Errorf("transaction would fail: %v", simResult.Value.Err))
	}

	sig, err := e.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: true})
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("send_transaction", err)
	}

	gasUsed := e.fetchFee(ctx, sig)
	return sig.String(), gasUsed, nil
}

// fetchFee looks up the lamport fee actually charged; it falls back to a
// nominal 5000 lamports when the transaction details aren't available yet,
// mirroring the conservative estimate used elsewhere in this chain family.
func (e *Executor) fetchFee(ctx context.Context, sig solanago.Signature) decimal.Decimal {
	maxVersion := uint64(0)
	tx, err := e.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                   solanago.EncodingJSON,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil || tx == nil || tx.Meta == nil {
		return decimal.NewFromInt(5000)
	}
	return decimal.NewFromInt(int64(tx.Meta.Fee))
}

func (e *Executor) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error {
	sig, err := solanago.SignatureFromBase58(txHash)
	if err != nil {
		return svcerrors.InvalidInput("tx_hash", "not a valid signature")
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		statuses, err := e.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) == 1 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if st.Err != nil {
				return svcerrors.BlockchainError("confirm_transaction", fmt.Errorf("transaction failed: %v", st.Err))
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return svcerrors.BlockchainError("confirm_transaction", fmt.Errorf("timed out waiting for confirmation of %s", txHash))
}

func (e *Executor) GetTreasuryBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if asset != "SOL" {
		return decimal.Zero, svcerrors.InvalidInput("asset", "solana executor only tracks native SOL balance")
	}
	out, err := e.client.GetBalance(ctx, e.payer, e.cfg.Commitment)
	if err != nil {
		return decimal.Zero, svcerrors.BlockchainError("get_balance", err)
	}
	// Lamports -> SOL (9 decimals).
	return decimal.NewFromInt(int64(out.Value)).Div(decimal.New(1, 9)), nil
}

func (e *Executor) CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error {
	available, err := e.GetTreasuryBalance(ctx, asset)
	if err != nil {
		return err
	}
	if available.LessThan(required) {
		return svcerrors.InsufficientTreasury(string(domain.ChainSolana), required.String(), available.String())
	}
	return nil
}

// TransferToTreasury is a no-op for Solana: the programmatic-address
// payment scheme derives an escrow PDA that the treasury already controls,
// so settlement is an accounting reconciliation rather than an on-chain
// transfer. Kept to satisfy Executor; callers should skip it for this chain.
func (e *Executor) TransferToTreasury(ctx context.Context, asset string, amount decimal.Decimal) (string, error) {
	return "", svcerrors.Internal("transfer_to_treasury is not applicable to the programmatic-address payment scheme", nil)
}
