// Package bronze implements the raw-event layer: event envelopes, the
// content-derived dedupe key, and the idempotent writer that guarantees
// at-most-once persistence under retries and concurrent pollers.
package bronze

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/ids"
)

var (
	// ErrMissingTimestamp indicates an envelope without a usable
	// occurred_at instant. Caller bug; nothing is written.
	ErrMissingTimestamp = errors.New("occurred_at must be a non-zero UTC instant")

	// ErrUnsupportedPayload indicates a payload leaf that cannot be
	// represented as JSON. Caller bug; nothing is written.
	ErrUnsupportedPayload = errors.New("unsupported payload type")
)

// Envelope is the ingestion input: one external event to be persisted as
// a Bronze row.
type Envelope struct {
	SourceSystem   string
	EventType      string
	SourceEventID  string
	RepoExternalID string
	OccurredAt     time.Time
	Payload        map[string]any
}

// DedupeKey derives the content hash enforcing at-most-once persistence.
// Two envelopes agree iff they agree on source system, event type,
// source event id, repo id, instant (regardless of zone) and
// structurally-equal payload (regardless of key order).
func DedupeKey(env Envelope) (string, error) {
	if env.OccurredAt.IsZero() {
		return "", fmt.Errorf("dedupe key for %s: %w", env.EventType, ErrMissingTimestamp)
	}
	normalized, err := NormalizePayload(env.Payload)
	if err != nil {
		return "", err
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	payloadHash := ids.HashHexBytes(canonical)

	joined := strings.Join([]string{
		env.SourceSystem,
		env.EventType,
		env.SourceEventID,
		env.RepoExternalID,
		env.OccurredAt.UTC().Format(time.RFC3339Nano),
		payloadHash,
	}, "|")
	return ids.HashHex(joined), nil
}

// NormalizePayload deep-copies a payload, converting time values to UTC
// RFC 3339 strings and rejecting anything that is not JSON-shaped. The
// result is safe to persist: it shares no structure with the input.
func NormalizePayload(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("payload key %q: %w", key, err)
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string:
		return v, nil
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	case json.Number:
		return v, nil
	case time.Time:
		if v.IsZero() {
			return nil, ErrMissingTimestamp
		}
		return v.UTC().Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = normalized
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, value)
	}
}
