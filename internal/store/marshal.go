package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/framegraph/internal/ir"
)

// marshalTimeModel converts a time model to canonical JSON TEXT for storage.
func marshalTimeModel(m ir.TimeModel) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"kind":        int(m.Kind),
		"duration_ms": m.DurationMs,
		"period_a_ms": m.PeriodAMs,
		"period_b_ms": m.PeriodBMs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal time model: %w", err)
	}
	return string(data), nil
}

// unmarshalTimeModel parses the stored form back. The keys match
// ir.TimeModel's JSON tags.
func unmarshalTimeModel(data string) (ir.TimeModel, error) {
	var m ir.TimeModel
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return ir.TimeModel{}, fmt.Errorf("unmarshal time model: %w", err)
	}
	return m, nil
}
