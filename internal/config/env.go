package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/scrypt"
)

const (
	EnvPrefix        = "AQSTN_"
	EncryptionKeyEnv = "AQSTN_ENCRYPTION_KEY"
	encryptedPrefix  = "ENC:"
	keySalt          = "aqstn-salt"
)

var ErrNoEncryptionKey = errors.New("encryption key not set")

// EnvManager reads prefixed environment variables and decrypts ENC: values.
type EnvManager struct {
	encryptionKey []byte
	prefix        string
}

// NewEnvManager derives the AES key from passphrase. An empty passphrase falls
// back to AQSTN_ENCRYPTION_KEY; if that is empty too, plain values still work
// but ENC: values cannot be read.
func NewEnvManager(passphrase string, prefix string) (*EnvManager, error) {
	if passphrase == "" {
		passphrase = os.Getenv(EncryptionKeyEnv)
	}
	if prefix == "" {
		prefix = EnvPrefix
	}

	em := &EnvManager{prefix: prefix}
	if passphrase == "" {
		return em, nil
	}

	key, err := scrypt.Key([]byte(passphrase), []byte(keySalt), 32768, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	em.encryptionKey = key
	return em, nil
}

func (em *EnvManager) envKey(key string) string {
	return em.prefix + strings.ToUpper(key)
}

// Lookup returns the raw value of the prefixed variable.
func (em *EnvManager) Lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(em.envKey(key))
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (em *EnvManager) GetString(key string, defaultValue string) string {
	if value, ok := em.Lookup(key); ok {
		return value
	}
	return defaultValue
}

func (em *EnvManager) GetInt(key string, defaultValue int) int {
	if value, ok := em.Lookup(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (em *EnvManager) GetFloat(key string, defaultValue float64) float64 {
	if value, ok := em.Lookup(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (em *EnvManager) GetBool(key string, defaultValue bool) bool {
	if value, ok := em.Lookup(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (em *EnvManager) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := em.Lookup(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetSecret returns the variable, decrypting it when it carries the ENC: prefix.
func (em *EnvManager) GetSecret(key string, defaultValue string) (string, error) {
	value, ok := em.Lookup(key)
	if !ok {
		return defaultValue, nil
	}
	plain, err := em.Decrypt(value)
	if err != nil {
		return defaultValue, fmt.Errorf("failed to decrypt %s: %w", em.envKey(key), err)
	}
	return plain, nil
}

// Encrypt returns plaintext as an ENC: value.
func (em *EnvManager) Encrypt(plaintext string) (string, error) {
	if em.encryptionKey == nil {
		return "", ErrNoEncryptionKey
	}
	gcm, err := em.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the ENC: prefix are returned as is.
func (em *EnvManager) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if em.encryptionKey == nil {
		return "", ErrNoEncryptionKey
	}

	data, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", err
	}
	gcm, err := em.aead()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (em *EnvManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(em.encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ValidateRequired checks that every listed variable is set.
func (em *EnvManager) ValidateRequired(required []string) error {
	var missing []string
	for _, key := range required {
		if _, ok := em.Lookup(key); !ok {
			missing = append(missing, em.envKey(key))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
