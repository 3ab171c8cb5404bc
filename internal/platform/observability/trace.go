package observability

import (
	"encoding/binary"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shades-uz/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/shades-uz/api/internal/platform/observability")

// TraceMiddleware continues a trace from the X-Cloud-Trace-Context header
// when present, starts a server span for the request, and records the
// resulting trace metadata on the request context for log correlation.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if remote, ok := parseCloudTraceHeader(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, spanName(r), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			span.SetAttributes(requestAttributes(r)...)

			spanCtx := span.SpanContext()
			info := requestctx.TraceInfo{
				ProjectID: projectID,
				TraceID:   spanCtx.TraceID().String(),
				SpanID:    spanCtx.SpanID().String(),
				Sampled:   spanCtx.IsSampled(),
			}
			r = r.WithContext(requestctx.WithTrace(ctx, info))

			sampled := "0"
			if info.Sampled {
				sampled = "1"
			}
			w.Header().Set(cloudTraceHeader, info.TraceID+"/"+info.SpanID+";o="+sampled)

			next.ServeHTTP(w, r)
		})
	}
}

// parseCloudTraceHeader reads "TRACE_ID/SPAN_ID;o=1". Span IDs arrive
// either hex encoded or, from older GCP front ends, as decimal uint64.
func parseCloudTraceHeader(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	traceHex, rest, found := strings.Cut(header, "/")
	if !found || len(traceHex) != 32 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, optPart, _ := strings.Cut(rest, ";")
	spanID, ok := parseSpanID(strings.TrimSpace(spanPart))
	if !ok {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if traceOptionSampled(optPart) {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func parseSpanID(value string) (trace.SpanID, bool) {
	if value == "" {
		return trace.SpanID{}, false
	}

	if len(value) <= 16 {
		if _, err := hex.DecodeString(value); err == nil {
			padded := strings.Repeat("0", 16-len(value)) + value
			if spanID, err := trace.SpanIDFromHex(padded); err == nil {
				return spanID, true
			}
		}
	}

	if num, err := strconv.ParseUint(value, 10, 64); err == nil {
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], num)
		return spanID, spanID.IsValid()
	}
	return trace.SpanID{}, false
}

func traceOptionSampled(options string) bool {
	for _, segment := range strings.Split(options, ";") {
		segment = strings.TrimSpace(segment)
		if strings.HasPrefix(segment, "o=") {
			return segment == "o=1"
		}
	}
	return false
}

func spanName(r *http.Request) string {
	path := "/"
	if r.URL != nil && r.URL.Path != "" {
		path = r.URL.Path
	}
	return r.Method + " " + path
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
	}
	if r.URL != nil {
		if r.URL.Path != "" {
			attrs = append(attrs, attribute.String("url.path", r.URL.Path))
		}
		if target := r.URL.RequestURI(); target != "" {
			attrs = append(attrs, attribute.String("url.full", target))
		}
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}
