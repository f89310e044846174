package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/infrastructure/cache"
	"stockledger/pkg/logger"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

const maxFingerprintBody = 1 << 20

const claimKey = "idempotency_claim"

// IdempotencyStore reserves keys and keeps final responses.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, subject, operation, requestHash string) (*cache.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

// claim is a key this request holds until CompleteIdempotency settles it.
type claim struct {
	store IdempotencyStore
	key   string
}

// Idempotency makes a mutating request carrying X-Idempotency-Key execute at
// most once per (actor, key). A repeat with the same method, URL and body
// replays the stored response; anything else reusing the key is a 409.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		hash, err := fingerprint(c.Request)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		subject := appctx.GetActorSubject(c.Request.Context())
		scoped := subject + ":" + key
		operation := c.Request.Method + " " + c.Request.URL.RequestURI()

		replay, err := store.AcquireKey(c.Request.Context(), scoped, subject, operation, hash)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			writeReplay(c, replay)
			return
		}

		c.Set(claimKey, claim{store: store, key: scoped})
		c.Next()
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// fingerprint hashes the body and puts it back for the handler.
func fingerprint(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody+1))
	if err != nil {
		return "", apperror.NewValidation("unreadable request body").WithCause(err)
	}
	if len(body) > maxFingerprintBody {
		tooLarge := apperror.NewValidation("request body too large for idempotency").
			WithDetail("max_bytes", maxFingerprintBody)
		tooLarge.HTTPStatus = http.StatusRequestEntityTooLarge
		return "", tooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func writeReplay(c *gin.Context, r *cache.IdempotencyReplay) {
	c.Header(HeaderReplayed, "true")
	if len(r.Body) == 0 {
		c.Status(r.StatusCode)
	} else {
		c.Data(r.StatusCode, r.ContentType, r.Body)
	}
	c.Abort()
}

// CompleteIdempotency stores the final response of a request holding a key.
// Requests without one are left alone.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	v, ok := c.Get(claimKey)
	if !ok {
		return
	}
	cl, ok := v.(claim)
	if !ok || cl.key == "" {
		return
	}
	// Settle the key even if the client has gone away.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := cl.store.CompleteKey(ctx, cl.key, statusCode, contentType, body); err != nil {
		logger.Warn(ctx, "complete idempotency key", "key", cl.key, "error", err)
	}
	c.Set(claimKey, claim{})
}
