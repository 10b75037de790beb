package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	SecretKeyEnv    = "IPSEARCH_SECRET_KEY"
	EncryptedPrefix = "enc:"

	keyInfo = "ipsearch api key v1"
)

var ErrSecretKeyMissing = errors.New("secret key not set: " + SecretKeyEnv)

var (
	cipherOnce sync.Once
	cipherInst *secretCipher
	cipherErr  error
)

type secretCipher struct {
	gcm cipher.AEAD
}

func getCipher() (*secretCipher, error) {
	cipherOnce.Do(func() {
		raw := strings.TrimSpace(os.Getenv(SecretKeyEnv))
		if raw == "" {
			cipherErr = ErrSecretKeyMissing
			return
		}

		key, err := deriveKey(raw)
		if err != nil {
			cipherErr = fmt.Errorf("derive key: %w", err)
			return
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			cipherErr = fmt.Errorf("create cipher: %w", err)
			return
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			cipherErr = fmt.Errorf("create gcm: %w", err)
			return
		}

		cipherInst = &secretCipher{gcm: gcm}
	})

	return cipherInst, cipherErr
}

// deriveKey stretches the configured secret to an AES-256 key. A base64
// value is used as raw key material, anything else as a passphrase.
func deriveKey(raw string) ([]byte, error) {
	material, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(material) == 0 {
		material = []byte(raw)
	}

	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, material, nil, []byte(keyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Enabled reports whether a secret key is configured.
func Enabled() bool {
	_, err := getCipher()
	return err == nil
}

func EncryptAPIKey(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	sc, err := getCipher()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, sc.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := sc.gcm.Seal(nil, nonce, []byte(plain), nil)
	payload := append(nonce, sealed...)

	return EncryptedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptAPIKey returns the plain key. Values stored without the prefix are
// returned as they are, with plain set to true.
func DecryptAPIKey(value string) (key string, plain bool, err error) {
	if value == "" {
		return "", false, nil
	}
	if !IsEncrypted(value) {
		return value, true, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", false, fmt.Errorf("decode ciphertext: %w", err)
	}

	sc, err := getCipher()
	if err != nil {
		return "", false, err
	}

	nonceSize := sc.gcm.NonceSize()
	if len(data) <= nonceSize {
		return "", false, errors.New("ciphertext too short")
	}

	opened, err := sc.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", false, fmt.Errorf("decrypt ciphertext: %w", err)
	}
	return string(opened), false, nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

func ResetCipherForTests() {
	cipherOnce = sync.Once{}
	cipherInst = nil
	cipherErr = nil
}
