package ir

import "fmt"

// Role is the semantic role of a continuity-managed buffer.
type Role string

const (
	RolePosition Role = "position"
	RoleRadius   Role = "radius"
	RoleOpacity  Role = "opacity"
	RoleColor    Role = "color"
	RoleCustom   Role = "custom"
)

// Roles lists every semantic role in table order.
var Roles = []Role{RolePosition, RoleRadius, RoleOpacity, RoleColor, RoleCustom}

// PolicyKind selects a continuity policy variant.
type PolicyKind uint8

const (
	PolicyNone PolicyKind = iota
	PolicyPreserve
	PolicySlew
	PolicyProject
	PolicyCrossfade
)

var policyNames = [...]string{"none", "preserve", "slew", "project", "crossfade"}

func (k PolicyKind) String() string {
	if int(k) < len(policyNames) {
		return policyNames[k]
	}
	return fmt.Sprintf("policy(%d)", k)
}

// ParsePolicyKind converts a policy name.
func ParsePolicyKind(s string) (PolicyKind, bool) {
	for i, n := range policyNames {
		if n == s {
			return PolicyKind(i), true
		}
	}
	return 0, false
}

// Gauge selects how a slew keeps its state.
type Gauge uint8

const (
	GaugeNone Gauge = iota
	GaugeAdd        // state is an additive offset over the base value
)

// Projector maps prior elements onto a new population.
type Projector uint8

const (
	ProjectByID Projector = iota
	ProjectNearest
)

// PostKind is the follow-up applied after projection.
type PostKind uint8

const (
	PostNone PostKind = iota
	PostSlew
)

// Curve shapes a crossfade.
type Curve uint8

const (
	CurveLinear Curve = iota
	CurveSmoothstep
)

// ContinuityPolicy is the smoothing rule applied to one buffer. Only the fields
// relevant to Kind are meaningful.
type ContinuityPolicy struct {
	Kind      PolicyKind `json:"kind"`
	Gauge     Gauge      `json:"gauge,omitempty"`
	Projector Projector  `json:"projector,omitempty"`
	Post      PostKind   `json:"post,omitempty"`
	TauMs     float64    `json:"tau_ms,omitempty"`
	WindowMs  float64    `json:"window_ms,omitempty"`
	Curve     Curve      `json:"curve,omitempty"`
}

// NoPolicy passes the base value through.
func NoPolicy() ContinuityPolicy {
	return ContinuityPolicy{Kind: PolicyNone}
}

// PreservePolicy holds effective values across discontinuities indefinitely.
func PreservePolicy() ContinuityPolicy {
	return ContinuityPolicy{Kind: PolicyPreserve, Gauge: GaugeAdd}
}

// SlewPolicy approaches the base value with time constant tauMs.
func SlewPolicy(g Gauge, tauMs float64) ContinuityPolicy {
	return ContinuityPolicy{Kind: PolicySlew, Gauge: g, TauMs: tauMs}
}

// ProjectPolicy projects prior outputs onto a changed population, then
// optionally slews the projection offset away.
func ProjectPolicy(p Projector, post PostKind, tauMs float64) ContinuityPolicy {
	return ContinuityPolicy{Kind: PolicyProject, Gauge: GaugeAdd, Projector: p, Post: post, TauMs: tauMs}
}

// CrossfadePolicy blends from a snapshot of prior output to the base value.
func CrossfadePolicy(windowMs float64, c Curve) ContinuityPolicy {
	return ContinuityPolicy{Kind: PolicyCrossfade, WindowMs: windowMs, Curve: c}
}

func (p ContinuityPolicy) String() string {
	switch p.Kind {
	case PolicySlew:
		return fmt.Sprintf("slew(tau=%gms)", p.TauMs)
	case PolicyProject:
		return fmt.Sprintf("project(tau=%gms)", p.TauMs)
	case PolicyCrossfade:
		return fmt.Sprintf("crossfade(window=%gms)", p.WindowMs)
	default:
		return p.Kind.String()
	}
}
