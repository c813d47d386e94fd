// Package gift encodes gift-card payloads into an opaque string that travels
// in a shared link. Payloads are sealed with AES-256-GCM; the key is generated
// per gift and shared out of band in the link fragment.
package gift

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// KeySize is the only accepted key length.
const KeySize = 32

// ErrKeySize is returned for any key that is not exactly 32 bytes.
var ErrKeySize = errors.New("Key must be exactly 32 bytes (AES-256)")

// Payload is the claimable content of one gift.
type Payload struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
	Message string `json:"message,omitempty"`
}

// NewKey generates a fresh AES-256 key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Encode seals the payload under the key. The random nonce is prepended to the
// ciphertext and the whole blob is base64url-encoded for use in a URL.
func Encode(p Payload, key []byte) (string, error) {
	gcm, err := sealer(key)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens an encoded gift with the key it was sealed under.
func Decode(encoded string, key []byte) (Payload, error) {
	gcm, err := sealer(key)
	if err != nil {
		return Payload{}, err
	}

	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("malformed gift encoding: %w", err)
	}
	if len(blob) < gcm.NonceSize() {
		return Payload{}, fmt.Errorf("malformed gift encoding: too short")
	}

	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to decrypt gift: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p, nil
}

func sealer(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
