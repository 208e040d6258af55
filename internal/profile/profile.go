package profile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
)

// ErrUnknownProfile is returned by Catalog.Lookup for ids not in the catalog
var ErrUnknownProfile = errors.New("unknown profile")

// Level is one entry of a level code table
type Level struct {
	Attenuation float64 `yaml:"attenuation" json:"attenuation"` // Nominal attenuation in dB
	Code        uint8   `yaml:"code" json:"code"`               // Attenuation-select bit pattern
}

// Table is a level code table, ascending by nominal attenuation.
// It is a sparse hand-picked set of states, not the full code space.
type Table []Level

// Validate checks that attenuations are strictly ascending and codes unique
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("profile.Table: no levels")
	}

	codes := make(map[uint8]struct{}, len(t))
	for i, level := range t {
		if i > 0 && level.Attenuation <= t[i-1].Attenuation {
			return fmt.Errorf("profile.Table: levels must be strictly ascending: %g dB after %g dB", level.Attenuation, t[i-1].Attenuation)
		}
		if _, ok := codes[level.Code]; ok {
			return fmt.Errorf("profile.Table: duplicate code %06b", level.Code)
		}
		codes[level.Code] = struct{}{}
	}

	return nil
}

// ApplicationOrder returns the levels in the order they are applied during a
// measurement: highest nominal attenuation first.
func (t Table) ApplicationOrder() Table {
	order := slices.Clone(t)
	slices.Reverse(order)
	return order
}

// Max returns the level with the highest nominal attenuation
func (t Table) Max() (Level, bool) {
	if len(t) == 0 {
		return Level{}, false
	}
	return t[len(t)-1], true
}

// Profile is a frequency/power/point-count configuration with its level code table
type Profile struct {
	ID          int     `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	StartFreq   float64 `yaml:"startFreq" json:"startFreq"`     // Sweep start in Hz
	StopFreq    float64 `yaml:"stopFreq" json:"stopFreq"`       // Sweep stop in Hz
	SourcePower float64 `yaml:"sourcePower" json:"sourcePower"` // Port 1 power in dBm
	PointCount  int     `yaml:"pointCount" json:"pointCount"`
	Levels      Table   `yaml:"levels" json:"levels"`
}

func (p *Profile) Validate() error {
	if p.StartFreq <= 0 {
		return fmt.Errorf("profile.Profile: start frequency must be positive: %g", p.StartFreq)
	}
	if p.StopFreq <= p.StartFreq {
		return fmt.Errorf("profile.Profile: stop frequency must be greater than start: %g <= %g", p.StopFreq, p.StartFreq)
	}
	if p.PointCount < 2 {
		return fmt.Errorf("profile.Profile: point count must be at least 2: %d given", p.PointCount)
	}
	if err := p.Levels.Validate(); err != nil {
		return fmt.Errorf("profile.Profile %d: %w", p.ID, err)
	}
	return nil
}

func (p *Profile) String() string {
	return fmt.Sprintf("%d (%s): %s..%s, %d points, %g dBm, %d levels",
		p.ID, p.Name,
		humanize.SIWithDigits(p.StartFreq, 2, "Hz"),
		humanize.SIWithDigits(p.StopFreq, 2, "Hz"),
		p.PointCount, p.SourcePower, len(p.Levels))
}

// Catalog holds the profiles selectable by id
type Catalog struct {
	profiles []Profile
}

// NewCatalog validates profiles and builds a catalog
func NewCatalog(profiles ...Profile) (*Catalog, error) {
	seen := make(map[int]struct{}, len(profiles))
	for i := range profiles {
		if err := profiles[i].Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[profiles[i].ID]; ok {
			return nil, fmt.Errorf("profile.Catalog: duplicate profile id %d", profiles[i].ID)
		}
		seen[profiles[i].ID] = struct{}{}
	}

	return &Catalog{profiles: slices.Clone(profiles)}, nil
}

// Lookup returns a copy of the profile with the given id
func (c *Catalog) Lookup(id int) (Profile, error) {
	for _, p := range c.profiles {
		if p.ID == id {
			p.Levels = slices.Clone(p.Levels)
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %d", ErrUnknownProfile, id)
}

// IDs returns the profile ids in catalog order
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.profiles))
	for i, p := range c.profiles {
		ids[i] = p.ID
	}
	return ids
}
