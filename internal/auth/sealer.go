package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoCookie is returned when the request carries no cookie of that name.
var ErrNoCookie = errors.New("cookie not found")

// sealer stores JSON values in AES-256-GCM encrypted cookies.
type sealer struct {
	aead   cipher.AEAD
	secure bool
}

func newSealer(key []byte, secure bool) (*sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cookie key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &sealer{aead: aead, secure: secure}, nil
}

func (s *sealer) seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cookie: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(s.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

func (s *sealer) open(value string, v any) error {
	ciphertext, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("failed to decode cookie: %w", err)
	}
	if len(ciphertext) < s.aead.NonceSize() {
		return fmt.Errorf("invalid cookie data")
	}
	nonce, body := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt cookie: %w", err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to unmarshal cookie: %w", err)
	}
	return nil
}

func (s *sealer) write(w http.ResponseWriter, name string, v any, maxAge int) error {
	value, err := s.seal(v)
	if err != nil {
		return err
	}
	http.SetCookie(w, s.cookie(name, value, maxAge))
	return nil
}

func (s *sealer) read(r *http.Request, name string, v any) error {
	c, err := r.Cookie(name)
	if err != nil {
		return ErrNoCookie
	}
	return s.open(c.Value, v)
}

func (s *sealer) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, s.cookie(name, "", -1))
}

func (s *sealer) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	}
}
