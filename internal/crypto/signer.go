package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/veilbet/veilbet/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// Permit(address contract,address account,uint256 issuedAt,uint256 expiresAt)
	permitTypeHash = ethcrypto.Keccak256(
		[]byte("Permit(address contract,address account,uint256 issuedAt,uint256 expiresAt)"),
	)
)

// Signer holds the engine account's secp256k1 key and produces signed
// decryption permits and raw transaction signatures.
//
// It implements domain.PermitIssuer.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
	domainSep  []byte // cached EIP-712 domain separator hash
}

var _ domain.PermitIssuer = (*Signer)(nil)

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)

	s := &Signer{
		privateKey: pk,
		address:    addr,
		chainID:    chainID,
	}

	// Pre-compute domain separator for the permit domain.
	s.domainSep = s.buildDomainSeparator("VeilbetPermit", "1", chainID)

	return s, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Account returns the signer's address in checksummed hex form.
func (s *Signer) Account() string {
	return s.address.Hex()
}

// PrivateKey exposes the underlying ECDSA key for transaction signing.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.privateKey
}

// ChainID returns the chain the signer was configured for.
func (s *Signer) ChainID() int64 {
	return s.chainID
}

// IssuePermit signs a decryption permit scoped to the given contract and the
// signer's own account, valid from now until now+ttl. The threshold network
// verifies the signature before decrypting any handle the permit covers.
func (s *Signer) IssuePermit(ctx context.Context, contract string, ttl time.Duration) (domain.DecryptionPermit, error) {
	if err := ctx.Err(); err != nil {
		return domain.DecryptionPermit{}, err
	}

	now := time.Now().UTC()
	permit := domain.DecryptionPermit{
		Contract:  contract,
		Account:   s.address.Hex(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	contractAddr := common.HexToAddress(contract)

	structHash := ethcrypto.Keccak256(
		concatBytes(
			permitTypeHash,
			common.LeftPadBytes(contractAddr.Bytes(), 32),
			common.LeftPadBytes(s.address.Bytes(), 32),
			bigIntTo32Bytes(big.NewInt(permit.IssuedAt.Unix())),
			bigIntTo32Bytes(big.NewInt(permit.ExpiresAt.Unix())),
		),
	)

	digest := eip712Hash(s.domainSep, structHash)
	sig, err := s.signDigest(digest)
	if err != nil {
		return domain.DecryptionPermit{}, err
	}
	permit.Signature = sig

	return permit, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func (s *Signer) buildDomainSeparator(name, version string, chainID int64) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			bigIntTo32Bytes(big.NewInt(chainID)),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
