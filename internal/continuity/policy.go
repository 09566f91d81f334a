package continuity

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/roach88/framegraph/internal/ir"
)

//go:embed defaults.toml
var defaultsTOML []byte

// RoleConfig is the TOML form of one role's policy.
type RoleConfig struct {
	Policy    string  `toml:"policy"`
	Gauge     string  `toml:"gauge,omitempty"`
	Projector string  `toml:"projector,omitempty"`
	Post      string  `toml:"post,omitempty"`
	TauMs     float64 `toml:"tau_ms,omitempty"`
	WindowMs  float64 `toml:"window_ms,omitempty"`
	Curve     string  `toml:"curve,omitempty"`
}

type tableFile struct {
	Roles map[string]RoleConfig `toml:"roles"`
}

// Table maps semantic roles to default policies.
type Table struct {
	policies map[ir.Role]ir.ContinuityPolicy
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the built-in table. It panics if the embedded defaults
// are malformed, which is a build defect.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultsTOML)
		if err != nil {
			panic(fmt.Sprintf("continuity: embedded defaults: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ParseTable decodes a TOML policy table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("decode policy table: %w", err)
	}
	t := &Table{policies: make(map[ir.Role]ir.ContinuityPolicy, len(f.Roles))}
	for name, rc := range f.Roles {
		p, err := rc.ToPolicy()
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", name, err)
		}
		t.policies[ir.Role(name)] = p
	}
	return t, nil
}

// LoadTable reads a TOML policy table from path. Roles the file omits keep
// their defaults.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy table: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, err
	}
	return DefaultTable().merge(t.policies), nil
}

// WithOverrides returns a copy of t with the given role configs applied.
func (t *Table) WithOverrides(overrides map[string]RoleConfig) (*Table, error) {
	ps := make(map[ir.Role]ir.ContinuityPolicy, len(overrides))
	for name, rc := range overrides {
		p, err := rc.ToPolicy()
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", name, err)
		}
		ps[ir.Role(name)] = p
	}
	return t.merge(ps), nil
}

func (t *Table) merge(ps map[ir.Role]ir.ContinuityPolicy) *Table {
	out := &Table{policies: make(map[ir.Role]ir.ContinuityPolicy, len(t.policies)+len(ps))}
	for r, p := range t.policies {
		out.policies[r] = p
	}
	for r, p := range ps {
		out.policies[r] = p
	}
	return out
}

// PolicyFor returns the policy of role. Unknown roles get the custom policy.
func (t *Table) PolicyFor(role ir.Role) ir.ContinuityPolicy {
	if p, ok := t.policies[role]; ok {
		return p
	}
	return t.policies[ir.RoleCustom]
}

// TauFor returns the time constant of role's policy: tauMs for slew and
// project, the window for crossfade, 0 otherwise.
func (t *Table) TauFor(role ir.Role) float64 {
	p := t.PolicyFor(role)
	if p.Kind == ir.PolicyCrossfade {
		return p.WindowMs
	}
	return p.TauMs
}

// PolicyForSemantic looks role up in the default table.
func PolicyForSemantic(role ir.Role) ir.ContinuityPolicy {
	return DefaultTable().PolicyFor(role)
}

// TauForSemantic looks role's time constant up in the default table.
func TauForSemantic(role ir.Role) float64 {
	return DefaultTable().TauFor(role)
}

// HasSlew reports whether p needs a per-frame delta-time update.
func HasSlew(p ir.ContinuityPolicy) bool {
	switch p.Kind {
	case ir.PolicySlew, ir.PolicyCrossfade:
		return true
	case ir.PolicyProject:
		return p.Post == ir.PostSlew
	default:
		return false
	}
}

// HasGauge reports whether p needs a persistent offset buffer.
func HasGauge(p ir.ContinuityPolicy) bool {
	switch p.Kind {
	case ir.PolicyPreserve, ir.PolicyProject:
		return true
	case ir.PolicySlew:
		return p.Gauge == ir.GaugeAdd
	default:
		return false
	}
}

// ToPolicy converts the TOML form into a policy value.
func (rc RoleConfig) ToPolicy() (ir.ContinuityPolicy, error) {
	kind, ok := ir.ParsePolicyKind(rc.Policy)
	if !ok {
		return ir.ContinuityPolicy{}, fmt.Errorf("unknown policy %q", rc.Policy)
	}
	switch kind {
	case ir.PolicyNone:
		return ir.NoPolicy(), nil
	case ir.PolicyPreserve:
		return ir.PreservePolicy(), nil
	case ir.PolicySlew:
		if rc.TauMs <= 0 {
			return ir.ContinuityPolicy{}, fmt.Errorf("slew requires tau_ms > 0")
		}
		g := ir.GaugeNone
		switch rc.Gauge {
		case "", "none":
		case "add":
			g = ir.GaugeAdd
		default:
			return ir.ContinuityPolicy{}, fmt.Errorf("unknown gauge %q", rc.Gauge)
		}
		return ir.SlewPolicy(g, rc.TauMs), nil
	case ir.PolicyProject:
		proj := ir.ProjectByID
		switch rc.Projector {
		case "", "byId":
		case "nearest":
			proj = ir.ProjectNearest
		default:
			return ir.ContinuityPolicy{}, fmt.Errorf("unknown projector %q", rc.Projector)
		}
		post := ir.PostNone
		switch rc.Post {
		case "", "none":
		case "slew":
			post = ir.PostSlew
			if rc.TauMs <= 0 {
				return ir.ContinuityPolicy{}, fmt.Errorf("project with slew requires tau_ms > 0")
			}
		default:
			return ir.ContinuityPolicy{}, fmt.Errorf("unknown post %q", rc.Post)
		}
		return ir.ProjectPolicy(proj, post, rc.TauMs), nil
	default:
		curve := ir.CurveLinear
		switch rc.Curve {
		case "", "linear":
		case "smoothstep":
			curve = ir.CurveSmoothstep
		default:
			return ir.ContinuityPolicy{}, fmt.Errorf("unknown curve %q", rc.Curve)
		}
		if rc.WindowMs < 0 {
			return ir.ContinuityPolicy{}, fmt.Errorf("crossfade window_ms must not be negative")
		}
		return ir.CrossfadePolicy(rc.WindowMs, curve), nil
	}
}
