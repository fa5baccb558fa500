package route

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// Duration is a time.Duration that unmarshals from YAML strings like "6h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Breakpoint maps an urgency floor to a deadline divisor. A complaint with
// urgency at or above MinUrgency has its base window divided by Factor.
type Breakpoint struct {
	MinUrgency float64 `yaml:"min_urgency"`
	Factor     float64 `yaml:"factor"`
}

// Policy is the routing rule set: which department owns each category, how
// wide each category's base response window is, and how urgency tightens it.
// It is loaded from a YAML file so operational tuning does not require a
// rebuild.
type Policy struct {
	Departments map[complaint.Category]complaint.Department `yaml:"departments"`
	BaseWindows map[complaint.Category]Duration             `yaml:"base_windows"`
	Multipliers []Breakpoint                                `yaml:"multipliers"`

	// RepetitionThreshold is the cluster member count at which a recurring
	// complaint is escalated one urgency tier.
	RepetitionThreshold int `yaml:"repetition_threshold"`
}

// DefaultPolicy returns the built-in rule set used when no policy file is
// configured.
func DefaultPolicy() Policy {
	return Policy{
		Departments: map[complaint.Category]complaint.Department{
			complaint.CategoryCleanliness: complaint.DeptHousekeeping,
			complaint.CategoryMaintenance: complaint.DeptMaintenance,
			complaint.CategorySafety:      complaint.DeptSafety,
			complaint.CategoryStaff:       complaint.DeptHumanRes,
			complaint.CategoryOther:       complaint.DeptGeneralAdmin,
		},
		BaseWindows: map[complaint.Category]Duration{
			complaint.CategorySafety:      Duration(1 * time.Hour),
			complaint.CategoryCleanliness: Duration(6 * time.Hour),
			complaint.CategoryMaintenance: Duration(12 * time.Hour),
			complaint.CategoryStaff:       Duration(24 * time.Hour),
			complaint.CategoryOther:       Duration(48 * time.Hour),
		},
		Multipliers: []Breakpoint{
			{MinUrgency: 0.8, Factor: 4},
			{MinUrgency: 0.5, Factor: 2},
		},
		RepetitionThreshold: 2,
	}
}

// LoadPolicy reads a policy file. Fields omitted from the file fall back to
// the defaults, so a file may override only the windows, say, and keep the
// built-in department map.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the policy covers every category and that the
// multiplier table is well-formed.
func (p Policy) Validate() error {
	for _, cat := range complaint.Categories {
		if _, ok := p.Departments[cat]; !ok {
			return fmt.Errorf("no department for category %q", cat)
		}
		w, ok := p.BaseWindows[cat]
		if !ok {
			return fmt.Errorf("no base window for category %q", cat)
		}
		if w <= 0 {
			return fmt.Errorf("base window for category %q must be positive", cat)
		}
	}
	for _, bp := range p.Multipliers {
		if bp.MinUrgency < 0 || bp.MinUrgency > 1 {
			return fmt.Errorf("multiplier floor %v outside [0,1]", bp.MinUrgency)
		}
		if bp.Factor < 1 {
			return fmt.Errorf("multiplier factor %v below 1", bp.Factor)
		}
	}
	// Higher urgency must never get a looser deadline, so factors must be
	// non-decreasing in the urgency floor.
	byFloor := make([]Breakpoint, len(p.Multipliers))
	copy(byFloor, p.Multipliers)
	sort.Slice(byFloor, func(i, j int) bool { return byFloor[i].MinUrgency < byFloor[j].MinUrgency })
	for i := 1; i < len(byFloor); i++ {
		if byFloor[i].Factor < byFloor[i-1].Factor {
			return fmt.Errorf("multiplier factor %v at floor %v looser than factor %v at lower floor %v",
				byFloor[i].Factor, byFloor[i].MinUrgency, byFloor[i-1].Factor, byFloor[i-1].MinUrgency)
		}
	}
	if p.RepetitionThreshold < 1 {
		return fmt.Errorf("repetition threshold must be at least 1, got %d", p.RepetitionThreshold)
	}
	return nil
}

// normalized returns a copy with the multiplier table sorted by descending
// urgency floor, so the first matching breakpoint is the tightest.
func (p Policy) normalized() Policy {
	sorted := make([]Breakpoint, len(p.Multipliers))
	copy(sorted, p.Multipliers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinUrgency > sorted[j].MinUrgency
	})
	p.Multipliers = sorted
	return p
}
