package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ftpledger/ledger-api/internal/api/shared"
	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key.
	IdempotencyKeyHeader = "Idempotency-Key"

	// IdempotencyReplayHeader is set on responses served from the cache.
	IdempotencyReplayHeader = "Idempotent-Replayed"

	idempotencyKeyPrefix = "ledger:idempotency:"

	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = 30 * time.Second

	maxIdempotencyKeyLen = 255

	// maxFingerprintBytes matches the body limit applied by the handlers.
	maxFingerprintBytes = 1 << 20
)

// idempotencyRecord is what Redis holds per key. Status 0 marks a request
// still in flight. Fingerprint identifies the request the key was first used
// with.
type idempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response recorded for a key.
type Idempotency struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotency creates the middleware. ttl is how long finished responses
// are kept.
func NewIdempotency(client redis.Cmdable, ttl time.Duration, l *slog.Logger) *Idempotency {
	if l == nil {
		l = slog.Default()
	}
	return &Idempotency{
		client: client,
		ttl:    ttl,
		logger: l.With(slog.String("component", "idempotency")),
	}
}

// redisKey scopes the client key to the authenticated caller so that two
// callers can never see each other's responses.
func redisKey(r *http.Request, key string) string {
	if subject, ok := shared.GetSubjectID(r.Context()); ok {
		return idempotencyKeyPrefix + subject.String() + ":" + key
	}
	return idempotencyKeyPrefix + key
}

// Handler wraps next. Requests without the header pass straight through.
// Responses with a 5xx status are not stored so the client may retry. If
// Redis is unreachable the request proceeds without protection.
func (m *Idempotency) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		log := logger.FromContextOrDefault(ctx, m.logger).With(slog.String("idempotency_key", key))

		if len(key) > maxIdempotencyKeyLen {
			shared.RespondWithError(w, r, http.StatusBadRequest, domain.CodeValidationFailed,
				"Idempotency-Key is too long")
			return
		}

		fingerprint, err := requestFingerprint(r)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, domain.CodeValidationFailed,
				"Could not read request body")
			return
		}

		rkey := redisKey(r, key)
		pending, _ := json.Marshal(idempotencyRecord{Fingerprint: fingerprint})
		claimed, err := m.client.SetNX(ctx, rkey, pending, pendingTTL).Result()
		if err != nil {
			log.Warn("idempotency store unavailable, continuing without it",
				slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		if !claimed {
			m.replay(w, r, rkey, fingerprint, log)
			return
		}

		// The outcome is recorded even if the client goes away.
		storeCtx := context.WithoutCancel(ctx)

		var buf bytes.Buffer
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&buf)
		completed := false
		defer func() {
			// Release the claim if the handler panicked or failed server-side.
			if !completed {
				if err := m.client.Del(storeCtx, rkey).Err(); err != nil {
					log.Warn("failed to release idempotency key", slog.String("error", err.Error()))
				}
			}
		}()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			return
		}

		record, err := json.Marshal(idempotencyRecord{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: ww.Header().Get("Content-Type"),
			Body:        buf.Bytes(),
		})
		if err != nil {
			log.Error("failed to encode idempotency record", slog.String("error", err.Error()))
			return
		}
		if err := m.client.Set(storeCtx, rkey, record, m.ttl).Err(); err != nil {
			log.Error("failed to store idempotent response", slog.String("error", err.Error()))
			return
		}
		completed = true
		log.Debug("idempotent response stored", slog.Int("status", status))
	})
}

// requestFingerprint hashes method, path and body, then restores the body
// for the next handler.
func requestFingerprint(r *http.Request) (string, error) {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	if r.Body == nil {
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBytes+1))
	if err != nil {
		return "", err
	}
	h.Write(body)
	// Anything past the limit is left for the handler's own size check.
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (m *Idempotency) replay(
	w http.ResponseWriter,
	r *http.Request,
	rkey, fingerprint string,
	log *slog.Logger,
) {
	raw, err := m.client.Get(r.Context(), rkey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The first request finished with a retryable failure in between.
			shared.RespondWithError(w, r, http.StatusConflict, domain.CodeIdempotencyInProgress,
				"Request with this Idempotency-Key is being processed, retry later")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, domain.CodeStoreUnavailable,
			"Service temporarily unavailable", err)
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, domain.CodeInternal,
			"An unexpected error occurred", err)
		return
	}

	if record.Fingerprint != fingerprint {
		log.Warn("idempotency key reused with a different request")
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, domain.CodeIdempotencyKeyReused,
			"Idempotency-Key was already used for a different request")
		return
	}

	if record.Status == 0 {
		log.Info("duplicate request while original in flight")
		shared.RespondWithError(w, r, http.StatusConflict, domain.CodeIdempotencyInProgress,
			"Request with this Idempotency-Key is being processed, retry later")
		return
	}

	log.Info("replaying stored response", slog.Int("status", record.Status))
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(record.Status)
	if _, err := w.Write(record.Body); err != nil {
		log.Warn("failed to write replayed response", slog.String("error", err.Error()))
	}
}
