package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows algorithm
// migration.
const (
	DomainProgram = "framegraph/program/v1"
	DomainFrame   = "framegraph/frame/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical hashes the canonical JSON form of v under domain.
func HashCanonical(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// ProgramHash computes a content hash over a schedule's observable structure:
// the time model, instances, step kinds and their stable keys. Two compiles of
// the same patch produce the same hash.
func ProgramHash(s *ScheduleIR) (string, error) {
	instances := make([]any, len(s.Instances))
	for i, inst := range s.Instances {
		instances[i] = map[string]any{
			"key":   inst.Key,
			"count": inst.Count,
		}
	}
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		entry := map[string]any{"kind": st.Kind().String()}
		switch v := st.(type) {
		case *EvalValue:
			entry["expr"] = int32(v.Expr)
			entry["post_event"] = v.PostEvent
		case *Materialize:
			entry["expr"] = int32(v.Field)
		case *ContinuityApply:
			entry["key"] = v.Key
			entry["policy"] = v.Policy.String()
		case *Render:
			entry["block"] = string(v.Block)
		case *StateWrite:
			entry["state"] = v.StateID
		case *ContinuityMapBuild:
			entry["instance"] = v.Key
		}
		steps[i] = entry
	}
	obj := map[string]any{
		"time": map[string]any{
			"kind":        int(s.Time.Kind),
			"duration_ms": s.Time.DurationMs,
			"period_a_ms": s.Time.PeriodAMs,
			"period_b_ms": s.Time.PeriodBMs,
		},
		"instances": instances,
		"steps":     steps,
		"events":    s.EventSlotCount,
		"states":    s.StateSlotCount,
	}
	return HashCanonical(DomainProgram, obj)
}
