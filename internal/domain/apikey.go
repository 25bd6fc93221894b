package domain

import "time"

// APIKey authenticates an editor instance, or any other client, against the
// backend's JSON API. Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	KeyHash    string     `json:"-" db:"key_hash"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Used reports whether the key has authenticated a request.
func (k *APIKey) Used() bool {
	return k.LastUsedAt != nil
}

// CreateAPIKeyRequest names a new key, usually after the editor instance
// that will hold it. Names are unique.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=64,printascii"`
}

// CreateAPIKeyResponse carries the plaintext key. It is never shown again.
type CreateAPIKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}
