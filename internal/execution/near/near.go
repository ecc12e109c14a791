// Package near implements the Executor contract for the gas-metered,
// subaccount payment chain using a minimal JSON-RPC client: there is no NEAR
// Go SDK anywhere in this module's example corpus, so the transaction is
// hand-assembled with the same Borsh layout nearcore itself expects.
package near

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// yoctoPerNear is the number of yoctoNEAR (1e-24 NEAR) in one NEAR.
var yoctoPerNear = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// Config configures the NEAR Executor. TreasurySecretKey is the standard
// "ed25519:<base58>" encoding of a 64-byte (seed || public key) keypair,
// matching crypto/ed25519.PrivateKey's layout exactly.
type Config struct {
	RPCURL            string
	NetworkID         string
	TreasuryAccountID string
	TreasurySecretKey string
}

type transferAction struct {
	receiverID string
	amount     *big.Int // yoctoNEAR
}

// Executor drives NEAR transfer transactions signed by the treasury's
// full-access key. Escrow subaccounts created under the treasury's
// namespace inherit the same key, which is what lets TransferToTreasury
// sign on their behalf during settlement.
type Executor struct {
	cfg    Config
	rpc    *rpcClient
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	log    *logging.Logger
}

func New(cfg Config, log *logging.Logger) (*Executor, error) {
	if log == nil {
		log = logging.NewDefault("near-executor")
	}
	priv, err := parseSecretKey(cfg.TreasurySecretKey)
	if err != nil {
		return nil, err
	}
	return &Executor{
		cfg:  cfg,
		rpc:  newRPCClient(cfg.RPCURL),
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
		log:  log,
	}, nil
}

func parseSecretKey(encoded string) (ed25519.PrivateKey, error) {
	const prefix = "ed25519:"
	if len(encoded) <= len(prefix) || encoded[:len(prefix)] != prefix {
		return nil, fmt.Errorf("near: secret key missing ed25519: prefix")
	}
	raw, err := base58.Decode(encoded[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("near: invalid base58 secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("near: secret key has unexpected length %d", len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func (e *Executor) publicKeyString() string {
	return "ed25519:" + base58.Encode(e.pub)
}

func (e *Executor) Chain() domain.Chain { return domain.ChainNear }

// decodeTransferAction parses the wire format: a 4-byte little-endian
// receiver-id length, the receiver id itself (1-64 bytes, UTF-8), and a
// 16-byte little-endian yoctoNEAR amount. A trailing optional
// length-prefixed method name is accepted for forward compatibility with
// original_source's richer action encoding but is otherwise unused: this
// Executor only issues native Transfer actions.
func decodeTransferAction(raw []byte) (transferAction, error) {
	if len(raw) < 4+16 {
		return transferAction{}, svcerrors.InvalidInput("execution_instructions", "too short for a transfer action")
	}
	cursor := 0
	receiverLen := int(binary.LittleEndian.Uint32(raw[cursor : cursor+4]))
	cursor += 4
	if receiverLen == 0 || receiverLen > 64 {
		return transferAction{}, svcerrors.InvalidInput("execution_instructions", "receiver id length out of range")
	}
	if cursor+receiverLen+16 > len(raw) {
		return transferAction{}, svcerrors.InvalidInput("execution_instructions", "truncated receiver id or amount")
	}
	receiverID := string(raw[cursor : cursor+receiverLen])
	cursor += receiverLen

	amountLE := raw[cursor : cursor+16]
	cursor += 16
	amountBE := make([]byte, 16)
	for i := 0; i < 16; i++ {
		amountBE[i] = amountLE[15-i]
	}
	amount := new(big.Int).SetBytes(amountBE)
	if amount.Sign() <= 0 {
		return transferAction{}, svcerrors.InvalidInput("execution_instructions", "amount must be positive")
	}

	if cursor < len(raw) {
		if cursor+4 > len(raw) {
			return transferAction{}, svcerrors.InvalidInput("execution_instructions", "truncated method name length")
		}
		methodLen := int(binary.LittleEndian.Uint32(raw[cursor : cursor+4]))
		cursor += 4
		if methodLen != len(raw)-cursor {
			return transferAction{}, svcerrors.InvalidInput("execution_instructions", "trailing bytes after transfer action")
		}
	}

	return transferAction{receiverID: receiverID, amount: amount}, nil
}

func (e *Executor) accessKeyNonceAndBlockHash(ctx context.Context, accountID string) (uint64, []byte, error) {
	result, err := e.rpc.call(ctx, "query", map[string]interface{}{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   accountID,
		"public_key":   e.publicKeyString(),
	})
	if err != nil {
		return 0, nil, svcerrors.BlockchainError("view_access_key", err)
	}
	nonce := uint64(result.Get("nonce").Int()) + 1
	blockHashB58 := result.Get("block_hash").String()
	blockHash, err := base58.Decode(blockHashB58)
	if err != nil {
		return 0, nil, svcerrors.BlockchainError("view_access_key", fmt.Errorf("invalid block hash: %w", err))
	}
	return nonce, blockHash, nil
}

func (e *Executor) buildAndSign(signerID, receiverID string, amount *big.Int, nonce uint64, blockHash []byte) (signedBytes []byte, txHashB58 string) {
	tx := borshWriter{}
	tx.writeString(signerID)
	tx.writeU8(keyTypeED25519)
	tx.writeRaw(e.pub)
	tx.writeU64(nonce)
	tx.writeString(receiverID)
	tx.writeRaw(blockHash)
	tx.writeU32(1) // one action
	tx.writeU8(actionTransfer)
	tx.writeU128(amount.Bytes())

	txBytes := tx.Bytes()
	hash := sha256.Sum256(txBytes)
	sig := ed25519.Sign(e.priv, hash[:])

	signed := borshWriter{}
	signed.writeRaw(txBytes)
	signed.writeU8(keyTypeED25519)
	signed.writeRaw(sig)

	return signed.Bytes(), base58.Encode(hash[:])
}

func (e *Executor) Execute(ctx context.Context, q domain.Quote) (string, decimal.Decimal, error) {
	if q.ExecutionChain != domain.ChainNear {
		return "", decimal.Zero, svcerrors.ExecutorChainMismatch(string(q.ExecutionChain), string(domain.ChainNear))
	}
	action, err := decodeTransferAction(q.ExecutionInstructions)
	if err != nil {
		return "", decimal.Zero, err
	}

	nonce, blockHash, err := e.accessKeyNonceAndBlockHash(ctx, e.cfg.TreasuryAccountID)
	if err != nil {
		return "", decimal.Zero, err
	}

	signedBytes, txHash := e.buildAndSign(e.cfg.TreasuryAccountID, action.receiverID, action.amount, nonce, blockHash)

	result, err := e.rpc.call(ctx, "broadcast_tx_commit", []interface{}{base64.StdEncoding.EncodeToString(signedBytes)})
	if err != nil {
		return "", decimal.Zero, svcerrors.BlockchainError("broadcast_tx_commit", err)
	}

	gasBurnt := result.Get("transaction_outcome.outcome.gas_burnt").Int()
	gasUsed := decimal.NewFromInt(gasBurnt)
	return txHash, gasUsed, nil
}

func (e *Executor) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		result, err := e.rpc.call(ctx, "tx", []interface{}{txHash, e.cfg.TreasuryAccountID})
		if err == nil {
			if result.Get("status.SuccessValue").Exists() || result.Get("status.SuccessReceiptId").Exists() {
				return nil
			}
			if result.Get("status.Failure").Exists() {
				return svcerrors.BlockchainError("confirm_transaction", fmt.Errorf("transaction %s failed: %s", txHash, result.Get("status.Failure").Raw))
			}
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
	if asset != "NEAR" {
		return decimal.Zero, svcerrors.InvalidInput("asset", "near executor only tracks native NEAR balance")
	}
	result, err := e.rpc.call(ctx, "query", map[string]interface{}{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   e.cfg.TreasuryAccountID,
	})
	if err != nil {
		return decimal.Zero, svcerrors.BlockchainError("view_account", err)
	}
	yocto, ok := new(big.Int).SetString(result.Get("amount").String(), 10)
	if !ok {
		return decimal.Zero, svcerrors.BlockchainError("view_account", fmt.Errorf("unparseable balance %q", result.Get("amount").String()))
	}
	near := new(big.Rat).SetFrac(yocto, yoctoPerNear)
	f, _ := near.Float64()
	return decimal.NewFromFloat(f), nil
}

func (e *Executor) CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error {
	available, err := e.GetTreasuryBalance(ctx, asset)
	if err != nil {
		return err
	}
	if available.LessThan(required) {
		return svcerrors.InsufficientTreasury(string(domain.ChainNear), required.String(), available.String())
	}
	return nil
}

// TransferToTreasury sweeps a settled escrow subaccount's balance back to
// the treasury root during reconciliation. It reuses the treasury keypair
// as the subaccount's signer, which is valid because every escrow
// subaccount is created with that same full-access key.
func (e *Executor) TransferToTreasury(ctx context.Context, subaccountID string, amount decimal.Decimal) (string, error) {
	yoctoFloat := new(big.Float).Mul(new(big.Float).SetPrec(200).SetFloat64(mustFloat(amount)), new(big.Float).SetInt(yoctoPerNear))
	yocto, _ := yoctoFloat.Int(nil)

	nonce, blockHash, err := e.accessKeyNonceAndBlockHash(ctx, subaccountID)
	if err != nil {
		return "", err
	}
	signedBytes, txHash := e.buildAndSign(subaccountID, e.cfg.TreasuryAccountID, yocto, nonce, blockHash)

	if _, err := e.rpc.call(ctx, "broadcast_tx_commit", []interface{}{base64.StdEncoding.EncodeToString(signedBytes)}); err != nil {
		return "", svcerrors.BlockchainError("broadcast_tx_commit", err)
	}
	return txHash, nil
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
