// Package context carries request-scoped values (trace ids, acting principal)
// from the HTTP boundary down to logging and audit.
package context

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Request holds the identifiers of one inbound request. TraceID and SpanID
// use the W3C trace-context encoding so they line up with OpenTelemetry spans
// started further down the stack.
type Request struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type requestKey struct{}

// WithTrace stores req on ctx and installs a matching remote span context,
// so spans started by services join the request's trace.
func WithTrace(ctx context.Context, req *Request) context.Context {
	ctx = context.WithValue(ctx, requestKey{}, req)
	if sc := req.SpanContext(); sc.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return ctx
}

// GetTrace returns the request identifiers stored on ctx, or nil.
func GetTrace(ctx context.Context) *Request {
	req, _ := ctx.Value(requestKey{}).(*Request)
	return req
}

// GetRequestID returns the request id or "".
func GetRequestID(ctx context.Context) string {
	if req := GetTrace(ctx); req != nil {
		return req.RequestID
	}
	return ""
}

// GetTraceID prefers the stored request and falls back to an active span.
func GetTraceID(ctx context.Context) string {
	if req := GetTrace(ctx); req != nil && req.TraceID != "" {
		return req.TraceID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// NewRequest generates fresh identifiers.
func NewRequest() *Request {
	return &Request{
		TraceID:   newTraceID().String(),
		SpanID:    newSpanID().String(),
		RequestID: uuid.NewString(),
	}
}

// ParseTraceparent reads a W3C traceparent header
// ("00-<trace-id>-<parent-id>-<flags>"). The parent id becomes SpanID.
func ParseTraceparent(header string) (*Request, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[0]) != 2 || parts[0] == "ff" {
		return nil, false
	}
	tid, err := trace.TraceIDFromHex(parts[1])
	if err != nil {
		return nil, false
	}
	sid, err := trace.SpanIDFromHex(parts[2])
	if err != nil {
		return nil, false
	}
	if _, err := hex.DecodeString(parts[3]); err != nil || len(parts[3]) != 2 {
		return nil, false
	}
	return &Request{TraceID: tid.String(), SpanID: sid.String()}, true
}

// SpanContext converts the ids into a remote OpenTelemetry span context.
// Non-W3C ids (a free-form X-Trace-ID) yield an invalid context.
func (r *Request) SpanContext() trace.SpanContext {
	if r == nil {
		return trace.SpanContext{}
	}
	tid, err := trace.TraceIDFromHex(r.TraceID)
	if err != nil {
		return trace.SpanContext{}
	}
	sid, err := trace.SpanIDFromHex(r.SpanID)
	if err != nil {
		return trace.SpanContext{}
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
}

// Traceparent renders the W3C header for outbound propagation.
func (r *Request) Traceparent() string {
	sc := r.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + sc.TraceFlags().String()
}

func newTraceID() trace.TraceID {
	return trace.TraceID(uuid.New())
}

func newSpanID() trace.SpanID {
	u := uuid.New()
	var sid trace.SpanID
	copy(sid[:], u[8:])
	return sid
}
