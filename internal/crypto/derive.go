package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DerivationError reports a failed key derivation call.
type DerivationError struct {
	Construct string
	Err       error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derive keys: %s: %v", e.Construct, e.Err)
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}

// DerivedKeys holds key material regenerated from a password. It exists
// only in process memory; persistence is limited to the KeyParams record.
type DerivedKeys struct {
	EncryptionKey []byte
	SigningKey    []byte // nil when signing is disabled
	Params        *KeyParams
}

// DeriveKeys turns a password and a parameter record into symmetric key
// material. A nil params generates a fresh default record (signing
// disabled); pass the record from an earlier run to reproduce the same
// keys byte for byte.
func DeriveKeys(password []byte, params *KeyParams) (*DerivedKeys, error) {
	if params == nil {
		p, err := DefaultParams(false)
		if err != nil {
			return nil, err
		}
		params = p
	}

	if err := params.Validate(); err != nil {
		return nil, &DerivationError{Construct: params.Construct, Err: err}
	}

	kdf := argon2.IDKey
	if params.Construct == ConstructArgon2i {
		kdf = argon2.Key
	}

	keys := &DerivedKeys{
		EncryptionKey: kdf(password, params.EncryptionSalt, params.Ops, params.Mem, 1, params.EncryptionKeySize),
		Params:        params,
	}

	if params.SigningEnabled() {
		keys.SigningKey = kdf(password, params.SigningSalt, params.Ops, params.Mem, 1, params.SigningKeySize)
	}

	return keys, nil
}
