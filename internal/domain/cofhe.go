package domain

import (
	"context"
	"time"
)

// AmountScale converts between the contract's integer units and display
// units (six decimals, USDC-style).
const AmountScale = 1e6

// AmountFromUnits converts a decrypted integer amount to display units.
func AmountFromUnits(u uint64) float64 { return float64(u) / AmountScale }

// AmountToUnits converts a display amount to integer contract units.
func AmountToUnits(a float64) uint64 { return uint64(a*AmountScale + 0.5) }

// DecryptionPermit is a time-boxed authorization for the threshold network
// to decrypt handles scoped to one contract and one account. Signed by the
// account key; the network rejects expired or out-of-scope permits.
type DecryptionPermit struct {
	Contract  string    `json:"contract"`
	Account   string    `json:"account"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Signature string    `json:"signature"`
}

// Valid reports whether the permit is usable at the given instant.
func (p DecryptionPermit) Valid(now time.Time) bool {
	return p.Signature != "" && now.After(p.IssuedAt) && now.Before(p.ExpiresAt)
}

// PermitIssuer creates signed decryption permits for the engine's account.
type PermitIssuer interface {
	IssuePermit(ctx context.Context, contract string, ttl time.Duration) (DecryptionPermit, error)
	Account() string
}

// Decryptor is the threshold decryption capability. One call decrypts a
// whole batch of handles; decrypting handles one by one is both slower and
// more expensive and is never done.
type Decryptor interface {
	BatchDecrypt(ctx context.Context, permit DecryptionPermit, handles []Handle) (map[Handle]uint64, error)
}

// Encryptor produces contract-ready ciphertexts with input proofs.
type Encryptor interface {
	Encrypt(ctx context.Context, value uint64) (Ciphertext, error)
}
