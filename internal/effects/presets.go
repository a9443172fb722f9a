package effects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/icco/beatsblox/internal/audio"
)

var (
	// ErrUnknownPreset is returned for preset names not in the table.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrEffectRequired is returned when no preset was selected.
	ErrEffectRequired = errors.New("must select an effect")
)

// Preset is a named effect with fixed parameters.
type Preset int

const (
	UnderWater Preset = iota + 1
	Telephone
	Cave
	FanBlade
)

type presetDef struct {
	name   string
	kind   audio.EffectKind
	params map[string]float64
}

var presets = map[Preset]presetDef{
	UnderWater: {"Under Water", audio.LowPassFilter, map[string]float64{"cutoffFrequency": 500, "resonance": 12}},
	Telephone:  {"Telephone", audio.HighPassFilter, map[string]float64{"cutoffFrequency": 1800, "resonance": 10}},
	Cave:       {"Cave", audio.Echo, map[string]float64{"feedback": 0.5, "intensity": 0.4}},
	FanBlade:   {"Fan Blade", audio.Tremolo, map[string]float64{"tremoloFrequency": 18}},
}

func (p Preset) String() string {
	if d, ok := presets[p]; ok {
		return d.name
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// Kind is the effect the preset applies.
func (p Preset) Kind() audio.EffectKind {
	return presets[p].kind
}

// Parameters returns a copy of the preset's fixed parameters.
func (p Preset) Parameters() map[string]float64 {
	out := make(map[string]float64, len(presets[p].params))
	for k, v := range presets[p].params {
		out[k] = v
	}
	return out
}

// Presets lists every preset in declaration order.
func Presets() []Preset {
	return []Preset{UnderWater, Telephone, Cave, FanBlade}
}

// ParsePreset resolves a preset by its display name.
func ParsePreset(name string) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fault.Wrap(ErrEffectRequired,
			fmsg.WithDesc("empty preset name", "Select an effect first."),
			ftag.With(ftag.InvalidArgument))
	}
	for p, d := range presets {
		if strings.EqualFold(d.name, name) {
			return p, nil
		}
	}
	return 0, fault.Wrap(ErrUnknownPreset,
		fmsg.WithDesc(fmt.Sprintf("preset %q", name), fmt.Sprintf("There is no preset called %s.", name)),
		ftag.With(ftag.NotFound))
}
