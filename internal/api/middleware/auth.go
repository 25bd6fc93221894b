package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
)

type contextKey string

const APIKeyContextKey contextKey = "api_key"

// Auth checks the bearer API key. The bootstrap key is accepted only while
// no keys have been created. An X-On-Behalf-Of header is carried into the
// request context as the acting user.
func Auth(store storage.Storage, bootstrapKey string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"code":401,"message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}
			apiKey := strings.TrimPrefix(authHeader, "Bearer ")
			if apiKey == "" {
				http.Error(w, `{"code":401,"message":"empty API key"}`, http.StatusUnauthorized)
				return
			}

			ctx := provisioning.WithActor(r.Context(), r.Header.Get(provisioning.ActorHeader))

			keyCount, err := store.CountAPIKeys(ctx)
			if err != nil {
				log.Error("counting api keys", logger.Err(err))
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			if keyCount == 0 && bootstrapKey != "" &&
				subtle.ConstantTimeCompare([]byte(apiKey), []byte(bootstrapKey)) == 1 {
				ctx = context.WithValue(ctx, APIKeyContextKey, &domain.APIKey{
					ID:   "bootstrap",
					Name: "Bootstrap Key",
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			storedKey, err := store.GetAPIKeyByHash(ctx, HashAPIKey(apiKey))
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					http.Error(w, `{"code":401,"message":"invalid API key"}`, http.StatusUnauthorized)
					return
				}
				log.Error("looking up api key", logger.Err(err))
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			go func(id string) {
				if err := store.UpdateAPIKeyLastUsed(context.Background(), id); err != nil {
					log.Warn("updating api key last use", logger.String("key_id", id), logger.Err(err))
				}
			}(storedKey.ID)

			ctx = context.WithValue(ctx, APIKeyContextKey, storedKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromContext returns the key that authenticated the request, or nil.
func APIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}

// HashAPIKey returns the hex SHA-256 of key. Keys are high-entropy random
// strings so a fast hash is enough for lookup.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GetAPIKeyFromContext retrieves the API key from the request context.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}
