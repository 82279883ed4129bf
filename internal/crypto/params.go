package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Key derivation constructs.
const (
	ConstructArgon2id = "argon2id"
	ConstructArgon2i  = "argon2i"
)

const (
	// SaltSize is the per-purpose salt length.
	SaltSize = 16

	// SigningKeySize is the HMAC-SHA512 key length when signing is enabled.
	SigningKeySize = 64
)

// Cost tiers per construct. Memory is in KiB, matching the argon2
// package. These are deliberately expensive (seconds-scale): key
// derivation must never sit on a hot path.
const (
	argon2idOps uint32 = 4
	argon2idMem uint32 = 1024 * 1024 // 1 GiB

	argon2iOps uint32 = 8
	argon2iMem uint32 = 512 * 1024 // 512 MiB
)

// Errors
var (
	ErrUnsupportedConstruct = errors.New("key derivation construct not supported")
	ErrInvalidKeySize       = errors.New("invalid key size")
)

// KeyParams is the persisted key derivation parameter record. The same
// password and record always regenerate identical keys, so the record
// is what makes password-only recovery possible. It never contains key
// material and is safe to store next to the catalog.
type KeyParams struct {
	Construct         string `json:"construct"`
	Ops               uint32 `json:"ops"`
	Mem               uint32 `json:"mem"` // KiB
	EncryptionKeySize uint32 `json:"encryption_key_size"`
	SigningKeySize    uint32 `json:"signing_key_size"` // 0 disables signing
	EncryptionSalt    []byte `json:"encryption_salt"`
	SigningSalt       []byte `json:"signing_salt,omitempty"`
}

// DefaultParams creates a fresh parameter record at the sensitive cost
// tier, with new random salts. Each record gets its own salts; records
// are immutable once used and may only be superseded.
func DefaultParams(enableSigning bool) (*KeyParams, error) {
	return ParamsForConstruct(ConstructArgon2id, enableSigning)
}

// ParamsForConstruct creates a fresh record for a specific construct
// at its sensitive cost tier.
func ParamsForConstruct(construct string, enableSigning bool) (*KeyParams, error) {
	p := &KeyParams{
		Construct:         construct,
		EncryptionKeySize: KeySize,
	}

	switch construct {
	case ConstructArgon2id:
		p.Ops, p.Mem = argon2idOps, argon2idMem
	case ConstructArgon2i:
		p.Ops, p.Mem = argon2iOps, argon2iMem
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConstruct, construct)
	}

	p.EncryptionSalt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, p.EncryptionSalt); err != nil {
		return nil, fmt.Errorf("generate encryption salt: %w", err)
	}

	if enableSigning {
		p.SigningKeySize = SigningKeySize
		p.SigningSalt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, p.SigningSalt); err != nil {
			return nil, fmt.Errorf("generate signing salt: %w", err)
		}
	}

	return p, nil
}

// SigningEnabled reports whether the record derives a signing key.
func (p *KeyParams) SigningEnabled() bool {
	return p.SigningKeySize > 0
}

// Validate checks the record against the sizes the cipher primitives require.
func (p *KeyParams) Validate() error {
	switch p.Construct {
	case ConstructArgon2id, ConstructArgon2i:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedConstruct, p.Construct)
	}

	if p.EncryptionKeySize != KeySize {
		return fmt.Errorf("%w: encryption key must be %d bytes, record says %d",
			ErrInvalidKeySize, KeySize, p.EncryptionKeySize)
	}

	if p.SigningKeySize != 0 && p.SigningKeySize != SigningKeySize {
		return fmt.Errorf("%w: signing key must be %d bytes or disabled, record says %d",
			ErrInvalidKeySize, SigningKeySize, p.SigningKeySize)
	}

	if len(p.EncryptionSalt) != SaltSize {
		return fmt.Errorf("encryption salt must be %d bytes, got %d", SaltSize, len(p.EncryptionSalt))
	}

	if p.SigningKeySize > 0 && len(p.SigningSalt) != SaltSize {
		return fmt.Errorf("signing salt must be %d bytes, got %d", SaltSize, len(p.SigningSalt))
	}

	if p.Ops == 0 || p.Mem < 8 {
		return fmt.Errorf("cost parameters too low: ops=%d mem=%d", p.Ops, p.Mem)
	}

	return nil
}

// LoadParams reads a parameter record from disk.
func LoadParams(path string) (*KeyParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key params: %w", err)
	}

	var p KeyParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse key params: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Save writes the record to disk, private to the owner.
func (p *KeyParams) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key params: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key params: %w", err)
	}

	return nil
}
