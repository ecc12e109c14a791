package quote

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// paymentAddress derives the funding-chain deposit address for a quote's
// nonce, deterministically and without any chain RPC call, per the
// payment-scheme contract. Webhook ingestion depends on being able to
// recompute this (or at least recognize the nonce in the payment memo).
func paymentAddress(profile domain.ChainProfile, nonce string) (string, error) {
	switch profile.PaymentScheme {
	case domain.SchemeSharedAccount:
		// Stellar: one treasury account, routed by memo.
		if profile.TreasuryAccount == "" {
			return "", svcerrors.Internal("shared-account scheme requires a treasury account", nil)
		}
		return fmt.Sprintf("%s?memo=%s", profile.TreasuryAccount, memoPrefix(nonce)), nil

	case domain.SchemeSubaccount:
		// NEAR: <nonce_prefix>.<escrow_root>.<network>
		if profile.EscrowRoot == "" {
			return "", svcerrors.Internal("subaccount scheme requires an escrow root", nil)
		}
		network := profile.Network
		if network == "" {
			network = "near"
		}
		return fmt.Sprintf("%s.%s.%s", noncePrefix(nonce), profile.EscrowRoot, network), nil

	case domain.SchemeProgrammaticAddress:
		// Solana: a program-derived address, seeded with "escrow" || nonce.
		seed := sha256.Sum256([]byte("escrow" + nonce))
		return hex.EncodeToString(seed[:]), nil

	default:
		return "", svcerrors.Internal(fmt.Sprintf("unknown payment scheme %q", profile.PaymentScheme), nil)
	}
}

// noncePrefix returns the portion of the nonce usable as a DNS-label-safe
// subaccount prefix: lowercase hex-ish, truncated to keep the full
// subaccount name within typical chain length limits.
func noncePrefix(nonce string) string {
	cleaned := strings.ToLower(strings.ReplaceAll(nonce, "-", ""))
	if len(cleaned) > 16 {
		cleaned = cleaned[:16]
	}
	return cleaned
}

// memoPrefix mirrors noncePrefix for memo-based routing.
func memoPrefix(nonce string) string {
	return noncePrefix(nonce)
}
