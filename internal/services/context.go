package services

import "context"

type contextKey string

const (
	candidateIDKey contextKey = "candidate_id"
	stepKey        contextKey = "step"
	keywordKey     contextKey = "keyword"
	requestIDKey   contextKey = "request_id"
)

// WithCandidateID annotates context with the candidate identifier.
func WithCandidateID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, candidateIDKey, id)
}

// CandidateIDFromContext extracts the candidate identifier if present.
func CandidateIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(candidateIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the pipeline step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithKeyword annotates context with the discovery keyword being processed.
func WithKeyword(ctx context.Context, keyword string) context.Context {
	if keyword == "" {
		return ctx
	}
	return context.WithValue(ctx, keywordKey, keyword)
}

// KeywordFromContext returns the discovery keyword if present.
func KeywordFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(keywordKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
