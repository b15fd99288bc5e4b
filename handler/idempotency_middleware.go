package handler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"go-ledger-api/common"
	"go-ledger-api/logger"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"

	idempotencyKeyPrefix  = "idempotency:"
	idempotencyLockPrefix = "idempotency-lock:"
)

// IdempotencyStore is the subset of the Redis client the idempotency
// middleware needs. *redis.Client satisfies it.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cachedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	Body        string `json:"body"`
}

// RequestFingerprint identifies the method, path and body a stored response
// was produced for.
func RequestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseCapture copies the status code and body written by the handler.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.status = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key and
// rejects a repeat that arrives while the first request is still running.
// A key reused with a different method, path or body is rejected with 422.
// Only 2xx responses are stored, for ttl. Requests without the header pass
// through untouched.
//
// The stored response is looked up again after the in-flight lock is taken:
// a request that missed the cache may get the lock only after the first
// request stored its response and released the lock.
func Idempotency(store IdempotencyStore, ttl, lockTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := logger.FromContext(ctx).WithField("idempotency_key", key)
			cacheKey := idempotencyKeyPrefix + key
			lockKey := idempotencyLockPrefix + key

			body, err := io.ReadAll(r.Body)
			if err != nil {
				common.NewAppError(http.StatusBadRequest, "Could not read request body", err).Send(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := RequestFingerprint(r.Method, r.URL.Path, body)

			if replayStored(w, r, store, cacheKey, fingerprint, log) {
				return
			}

			acquired, err := store.SetNX(ctx, lockKey, "processing", lockTimeout).Result()
			if err != nil {
				common.NewAppError(http.StatusInternalServerError, "Idempotency store unavailable", err).Send(w, r)
				return
			}
			if !acquired {
				log.Warn("Concurrent request with the same idempotency key")
				common.NewAppError(http.StatusConflict, "A request with this idempotency key is currently being processed", nil).Send(w, r)
				return
			}
			// The client may go away; the lock must still be released.
			releaseCtx := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Del(releaseCtx, lockKey).Err(); err != nil {
					log.WithError(err).Error("Failed to release idempotency lock")
				}
			}()

			if replayStored(w, r, store, cacheKey, fingerprint, log) {
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status < 200 || capture.status >= 300 {
				return
			}
			data, err := json.Marshal(cachedResponse{
				Fingerprint: fingerprint,
				Status:      capture.status,
				Body:        capture.body.String(),
			})
			if err != nil {
				log.WithError(err).Error("Failed to encode response for idempotency store")
				return
			}
			if err := store.Set(releaseCtx, cacheKey, data, ttl).Err(); err != nil {
				log.WithError(err).Error("Failed to store response for idempotency key")
			}
		})
	}
}

// replayStored writes the response stored under cacheKey, or an error
// response, and reports whether it wrote anything.
func replayStored(w http.ResponseWriter, r *http.Request, store IdempotencyStore, cacheKey, fingerprint string, log *logrus.Entry) bool {
	raw, err := store.Get(r.Context(), cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		common.NewAppError(http.StatusInternalServerError, "Idempotency store unavailable", err).Send(w, r)
		return true
	}

	var cached cachedResponse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		common.NewAppError(http.StatusInternalServerError, "Corrupt idempotency record", err).Send(w, r)
		return true
	}
	if cached.Fingerprint != fingerprint {
		log.Warn("Idempotency key reused with a different request")
		common.NewAppError(http.StatusUnprocessableEntity, "Idempotency key was already used for a different request", nil).Send(w, r)
		return true
	}

	log.Info("Replaying stored response")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyHitHeader, "true")
	w.WriteHeader(cached.Status)
	w.Write([]byte(cached.Body))
	return true
}
