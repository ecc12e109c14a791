package near

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

func buildTransferActionBytes(receiverID string, amountYocto *big.Int) []byte {
	buf := make([]byte, 0, 4+len(receiverID)+16)

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(receiverID)))
	buf = append(buf, lenBuf...)
	buf = append(buf, []byte(receiverID)...)

	amountBE := amountYocto.Bytes()
	amountLE := make([]byte, 16)
	for i := 0; i < len(amountBE) && i < 16; i++ {
		amountLE[i] = amountBE[len(amountBE)-1-i]
	}
	buf = append(buf, amountLE...)
	return buf
}

func TestDecodeTransferActionValid(t *testing.T) {
	raw := buildTransferActionBytes("bob.near", big.NewInt(5_000_000))

	action, err := decodeTransferAction(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action.receiverID != "bob.near" {
		t.Fatalf("expected receiver bob.near, got %q", action.receiverID)
	}
	if action.amount.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("expected amount 5000000, got %s", action.amount.String())
	}
}

func TestDecodeTransferActionRejectsTooShort(t *testing.T) {
	_, err := decodeTransferAction([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for undersized payload")
	}
	if se := svcerrors.As(err); se == nil || se.Code != svcerrors.CodeInvalidInput {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestDecodeTransferActionRejectsZeroLengthReceiver(t *testing.T) {
	raw := buildTransferActionBytes("", big.NewInt(1))
	_, err := decodeTransferAction(raw)
	if err == nil {
		t.Fatal("expected error for zero-length receiver id")
	}
}

func TestDecodeTransferActionRejectsOversizedReceiver(t *testing.T) {
	oversized := make([]byte, 65)
	for i := range oversized {
		oversized[i] = 'a'
	}
	raw := buildTransferActionBytes(string(oversized), big.NewInt(1))
	_, err := decodeTransferAction(raw)
	if err == nil {
		t.Fatal("expected error for receiver id longer than 64 bytes")
	}
}

func TestDecodeTransferActionRejectsTruncatedAmount(t *testing.T) {
	full := buildTransferActionBytes("bob.near", big.NewInt(1))
	truncated := full[:len(full)-4]
	_, err := decodeTransferAction(truncated)
	if err == nil {
		t.Fatal("expected error for truncated amount field")
	}
}

func TestDecodeTransferActionRejectsZeroAmount(t *testing.T) {
	raw := buildTransferActionBytes("bob.near", big.NewInt(0))
	_, err := decodeTransferAction(raw)
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestParseSecretKeyRoundTrip(t *testing.T) {
	// A 64-byte all-0xAB seed||pubkey blob is not a real signing key but
	// exercises the prefix and length validation deterministically.
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = 0xAB
	}
	encoded := "ed25519:" + base58.Encode(raw)

	priv, err := parseSecretKey(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(priv) != 64 {
		t.Fatalf("expected 64-byte private key, got %d", len(priv))
	}
}

func TestParseSecretKeyRejectsMissingPrefix(t *testing.T) {
	_, err := parseSecretKey("not-prefixed")
	if err == nil {
		t.Fatal("expected error for missing ed25519: prefix")
	}
}

func TestParseSecretKeyRejectsWrongLength(t *testing.T) {
	encoded := "ed25519:" + base58.Encode([]byte{1, 2, 3})
	_, err := parseSecretKey(encoded)
	if err == nil {
		t.Fatal("expected error for short secret key")
	}
}
