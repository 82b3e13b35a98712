package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"jaterm_gateway/internal/utils"
)

const (
	ivSize  = 16
	tagSize = 16

	hkdfSalt = "jaterm-gateway"
	hkdfInfo = "provider-credentials"
)

var (
	// ErrEmptyMasterSecret is returned when a codec is built without a master secret
	ErrEmptyMasterSecret = errors.New("master secret cannot be empty")

	// ErrMalformedCiphertext is returned when a value is not in iv:tag:ciphertext form
	ErrMalformedCiphertext = errors.New("value is not in iv:tag:ciphertext format")

	// ErrDecryptionFailed is returned when authentication of the ciphertext fails
	ErrDecryptionFailed = errors.New("decryption failed")
)

// KDF selects how the AES key is derived from the master secret.
type KDF string

const (
	// KDFSHA256 hashes the master secret once. Compatible with existing stored credentials.
	KDFSHA256 KDF = "sha256"

	// KDFHKDF derives the key with HKDF-SHA256 and a fixed salt/info.
	KDFHKDF KDF = "hkdf"
)

// Codec encrypts provider credentials with AES-256-GCM.
// Ciphertexts are encoded as hex(iv):hex(authTag):hex(ciphertext).
type Codec struct {
	aead   cipher.AEAD
	logger *utils.Logger
}

// NewCodec derives the key as SHA-256(masterSecret).
func NewCodec(masterSecret string) (*Codec, error) {
	return NewCodecWithKDF(masterSecret, KDFSHA256)
}

// NewCodecWithKDF builds a codec using the given key derivation.
func NewCodecWithKDF(masterSecret string, kdf KDF) (*Codec, error) {
	if masterSecret == "" {
		return nil, ErrEmptyMasterSecret
	}

	key, err := deriveKey(masterSecret, kdf)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{
		aead:   aead,
		logger: utils.NewLogger("secret-codec"),
	}, nil
}

func deriveKey(masterSecret string, kdf KDF) ([]byte, error) {
	switch kdf {
	case KDFSHA256, "":
		sum := sha256.Sum256([]byte(masterSecret))
		return sum[:], nil
	case KDFHKDF:
		key := make([]byte, 32)
		r := hkdf.New(sha256.New, []byte(masterSecret), []byte(hkdfSalt), []byte(hkdfInfo))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported key derivation %q", kdf)
	}
}

// Encrypt encrypts plaintext and returns iv:authTag:ciphertext in hex.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt reverses Encrypt. Values that are not in codec format, or that fail
// authentication, are returned unchanged so legacy plaintext records keep working.
func (c *Codec) Decrypt(value string) string {
	plaintext, err := c.DecryptStrict(value)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			c.logger.Warn("Credential decryption failed, using stored value as-is", "error", err)
		}
		return value
	}
	return plaintext
}

// DecryptStrict is Decrypt with errors surfaced to the caller.
func (c *Codec) DecryptStrict(value string) (string, error) {
	iv, tag, ciphertext, ok := splitCiphertext(value)
	if !ok {
		return "", ErrMalformedCiphertext
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value has the iv:tag:ciphertext shape.
func IsEncrypted(value string) bool {
	_, _, _, ok := splitCiphertext(value)
	return ok
}

func splitCiphertext(value string) (iv, tag, ciphertext []byte, ok bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return nil, nil, nil, false
	}

	var err error
	if iv, err = hex.DecodeString(parts[0]); err != nil || len(iv) != ivSize {
		return nil, nil, nil, false
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != tagSize {
		return nil, nil, nil, false
	}
	if ciphertext, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, false
	}
	return iv, tag, ciphertext, true
}

// GenerateMasterSecret returns 32 random bytes, hex encoded, suitable for JATERM_MASTER_SECRET.
func GenerateMasterSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPrompt returns the SHA-256 hex digest stored in audit entries instead of the prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
