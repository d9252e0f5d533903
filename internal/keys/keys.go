// Package keys handles BYOK provider credentials: format validation,
// display masking, and AES-GCM encryption at rest.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/catalog"
)

// maskedPlaceholder is returned for keys too short to mask meaningfully.
const maskedPlaceholder = "********"

// keyFormats holds the anchored per-provider key shape checks. Anthropic keys
// share the OpenAI "sk-" prefix, so it must be matched before OpenAI when
// inferring a provider from a bare key.
var keyFormats = map[string]*regexp.Regexp{
	catalog.ProviderAnthropic: regexp.MustCompile(`^sk-ant-[A-Za-z0-9_-]{24,}$`),
	catalog.ProviderOpenAI:    regexp.MustCompile(`^sk-(proj-)?[A-Za-z0-9_-]{20,}$`),
}

// ValidateKeyFormat reports whether key matches the expected shape for the
// provider. Unknown providers always fail.
func ValidateKeyFormat(provider, key string) bool {
	re, ok := keyFormats[provider]
	if !ok {
		return false
	}
	if provider == catalog.ProviderOpenAI && strings.HasPrefix(key, "sk-ant-") {
		return false
	}
	return re.MatchString(key)
}

// MaskKey returns a displayable form of key: the first 8 and last 4
// characters around a fixed-length mask. Keys shorter than 8 characters
// yield a fixed placeholder.
func MaskKey(key string) string {
	if len(key) < 8 {
		return maskedPlaceholder
	}
	if len(key) < 12 {
		return key[:8] + maskedPlaceholder
	}
	return key[:8] + maskedPlaceholder + key[len(key)-4:]
}

// Cipher encrypts and decrypts key material with AES-256-GCM.
type Cipher struct {
	key []byte
}

// NewCipher creates a Cipher. The key must be 16, 24, or 32 bytes.
func NewCipher(key []byte) (*Cipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, eris.Errorf("keys: invalid cipher key length %d", len(key))
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext, returning nonce-prefixed ciphertext.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, eris.Wrap(err, "keys: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, eris.Wrap(err, "keys: create gcm")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, eris.Wrap(err, "keys: generate nonce")
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens nonce-prefixed ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(data []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", eris.Wrap(err, "keys: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", eris.Wrap(err, "keys: create gcm")
	}

	if len(data) < gcm.NonceSize() {
		return "", eris.New("keys: ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", eris.Wrap(err, "keys: decrypt")
	}
	return string(plaintext), nil
}
