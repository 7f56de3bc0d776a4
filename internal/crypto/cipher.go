// Package crypto implements the passphrase-keyed cipher used to obscure
// persisted identifiers, plus hashing and random token helpers.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/and161185/immob/internal/errs"
)

// Argon2id parameters for deriving the cipher key from the passphrase.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = chacha20poly1305.KeySize

	// DefaultTokenBytes is the byte length used by GenerateToken for n <= 0.
	DefaultTokenBytes = 32

	formatV1 byte = 1
)

// keySalt is fixed: the key must be reproducible from the passphrase alone
// so ciphertexts survive restarts.
var keySalt = []byte("immob/cipher/v1")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Cipher encrypts short strings with XChaCha20-Poly1305 under a key derived
// from a passphrase. Output is base64(version || nonce || sealed).
type Cipher struct {
	key  []byte
	rand io.Reader
	log  *zap.Logger
}

// NewCipher derives the key for passphrase. A nil logger disables logging.
func NewCipher(passphrase string, log *zap.Logger) *Cipher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cipher{
		key:  argon2.IDKey([]byte(passphrase), keySalt, argonTime, argonMemory, argonThreads, argonKeyLen),
		rand: rand.Reader,
		log:  log,
	}
}

// Seal encrypts plaintext with a fresh random nonce, so equal plaintexts give
// different ciphertexts. Failures are reported as errs.ErrEncryptionUnavailable.
func (c *Cipher) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrEncryptionUnavailable, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", errs.ErrEncryptionUnavailable, err)
	}
	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, formatV1)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), []byte{formatV1})
	return base64.StdEncoding.EncodeToString(out), nil
}

// Encrypt is the fail-soft form of Seal: on failure it logs and returns
// plaintext unchanged. Callers that need confidentiality use Seal.
func (c *Cipher) Encrypt(plaintext string) string {
	ct, err := c.Seal(plaintext)
	if err != nil {
		c.log.Warn("encryption failed, returning input unchanged", zap.Error(err))
		return plaintext
	}
	return ct
}

// Open decrypts a ciphertext produced by Seal.
func (c *Cipher) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	if len(raw) < 1+chacha20poly1305.NonceSizeX {
		return "", errors.New("ciphertext too short")
	}
	if raw[0] != formatV1 {
		return "", fmt.Errorf("unknown ciphertext format %d", raw[0])
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	pt, err := aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], raw[:1])
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Decrypt is the fail-soft form of Open: malformed or foreign input yields "".
// An empty result means "undecryptable" whenever the plaintext could not be empty.
func (c *Cipher) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	pt, err := c.Open(ciphertext)
	if err != nil {
		c.log.Debug("decryption failed", zap.Error(err))
		return ""
	}
	return pt
}

// IsValidEncryptedData reports whether s decrypts to a non-empty string.
func (c *Cipher) IsValidEncryptedData(s string) bool {
	return c.Decrypt(s) != ""
}

// Hash returns the hex SHA-256 digest of data (64 characters).
func Hash(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// GenerateToken returns 2*n hex characters drawn from crypto/rand.
// n <= 0 selects DefaultTokenBytes.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
