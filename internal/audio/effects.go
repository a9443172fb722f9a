package audio

import (
	"fmt"
	"sort"
	"strings"
)

// EffectKind identifies an effect implementation. The numeric codes are the
// ones the host palette has always used.
type EffectKind int

const (
	Reverb           EffectKind = 11
	Delay            EffectKind = 12
	Echo             EffectKind = 13
	Chorus           EffectKind = 21
	Tremolo          EffectKind = 22
	Vibrato          EffectKind = 23
	Flanger          EffectKind = 24
	Phaser           EffectKind = 25
	Panning          EffectKind = 31
	Equalization     EffectKind = 32
	Volume           EffectKind = 41
	Compression      EffectKind = 42
	Distortion       EffectKind = 43
	LowPassFilter    EffectKind = 51
	HighPassFilter   EffectKind = 52
	BandPassFilter   EffectKind = 53
	BandRejectFilter EffectKind = 54
)

var effectNames = map[EffectKind]string{
	Reverb:           "Reverb",
	Delay:            "Delay",
	Echo:             "Echo",
	Chorus:           "Chorus",
	Tremolo:          "Tremolo",
	Vibrato:          "Vibrato",
	Flanger:          "Flanger",
	Phaser:           "Phaser",
	Panning:          "Panning",
	Equalization:     "Equalization",
	Volume:           "Volume",
	Compression:      "Compression",
	Distortion:       "Distortion",
	LowPassFilter:    "LowPassFilter",
	HighPassFilter:   "HighPassFilter",
	BandPassFilter:   "BandPassFilter",
	BandRejectFilter: "BandRejectFilter",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EffectKind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k EffectKind) Valid() bool {
	_, ok := effectNames[k]
	return ok
}

// ParseEffectKind maps an effect name ("LowPassFilter", "reverb") to its kind.
func ParseEffectKind(name string) (EffectKind, error) {
	for k, n := range effectNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
}

// Parameter describes one knob of an effect.
type Parameter struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

func (p Parameter) clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

var effectParameters = map[EffectKind][]Parameter{
	Reverb: {
		{Name: "decay", Min: 0.1, Max: 0.98, Default: 0.7},
		{Name: "roomSize", Min: 0, Max: 1, Default: 0.5},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.3},
	},
	Delay: {
		{Name: "delay", Min: 0.001, Max: 2, Default: 0.3},
		{Name: "attenuation", Min: 0, Max: 1, Default: 0.5},
	},
	Echo: {
		{Name: "echoTime", Min: 0.001, Max: 2, Default: 0.25},
		{Name: "feedback", Min: 0, Max: 0.95, Default: 0.4},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Chorus: {
		{Name: "frequencyRate", Min: 0.05, Max: 10, Default: 1.5},
		{Name: "delayOffset", Min: 0.005, Max: 0.05, Default: 0.02},
		{Name: "feedback", Min: 0, Max: 0.9, Default: 0.2},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Tremolo: {
		{Name: "tremoloFrequency", Min: 0, Max: 30, Default: 5},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Vibrato: {
		{Name: "vibratoFrequency", Min: 0, Max: 20, Default: 5},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Flanger: {
		{Name: "frequencyRate", Min: 0.05, Max: 10, Default: 0.5},
		{Name: "delayOffset", Min: 0.0005, Max: 0.01, Default: 0.003},
		{Name: "feedback", Min: 0, Max: 0.95, Default: 0.5},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Phaser: {
		{Name: "frequencyRate", Min: 0.05, Max: 10, Default: 0.5},
		{Name: "feedback", Min: 0, Max: 0.9, Default: 0.3},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	Panning: {
		{Name: "leftToRightRatio", Min: 0, Max: 1, Default: 0.5},
	},
	Equalization: {
		{Name: "lowGain", Min: 0, Max: 2, Default: 1},
		{Name: "midGain", Min: 0, Max: 2, Default: 1},
		{Name: "highGain", Min: 0, Max: 2, Default: 1},
	},
	Volume: {
		{Name: "intensity", Min: 0, Max: 2, Default: 1},
	},
	Compression: {
		{Name: "threshold", Min: 0.01, Max: 1, Default: 0.5},
		{Name: "ratio", Min: 1, Max: 20, Default: 4},
		{Name: "attack", Min: 0.0001, Max: 1, Default: 0.003},
		{Name: "release", Min: 0.001, Max: 2, Default: 0.25},
	},
	Distortion: {
		{Name: "drive", Min: 1, Max: 50, Default: 5},
		{Name: "intensity", Min: 0, Max: 1, Default: 0.5},
	},
	LowPassFilter: {
		{Name: "cutoffFrequency", Min: 20, Max: 20000, Default: 1000},
		{Name: "resonance", Min: 0, Max: 30, Default: 0},
	},
	HighPassFilter: {
		{Name: "cutoffFrequency", Min: 20, Max: 20000, Default: 1000},
		{Name: "resonance", Min: 0, Max: 30, Default: 0},
	},
	BandPassFilter: {
		{Name: "lowerCutoffFrequency", Min: 20, Max: 20000, Default: 300},
		{Name: "upperCutoffFrequency", Min: 20, Max: 20000, Default: 3000},
	},
	BandRejectFilter: {
		{Name: "lowerCutoffFrequency", Min: 20, Max: 20000, Default: 300},
		{Name: "upperCutoffFrequency", Min: 20, Max: 20000, Default: 3000},
	},
}

// AvailableEffects returns every effect by name.
func AvailableEffects() map[string]EffectKind {
	out := make(map[string]EffectKind, len(effectNames))
	for k, n := range effectNames {
		out[n] = k
	}
	return out
}

// EffectNames lists the effect names sorted by kind code.
func EffectNames() []string {
	kinds := make([]int, 0, len(effectNames))
	for k := range effectNames {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = effectNames[EffectKind(k)]
	}
	return names
}

// AvailableEffectParameters returns the parameter schema of an effect kind.
func AvailableEffectParameters(kind EffectKind) ([]Parameter, error) {
	params, ok := effectParameters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEffect, kind)
	}
	return append([]Parameter(nil), params...), nil
}

func defaultParameters(kind EffectKind) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range effectParameters[kind] {
		out[p.Name] = p.Default
	}
	return out
}

// effectInstance is one attached effect on a track or the master bus.
type effectInstance struct {
	name   string
	kind   EffectKind
	params map[string]float64
	proc   processor
}

func newEffectInstance(name string, kind EffectKind, sampleRate float64) *effectInstance {
	fx := &effectInstance{
		name:   name,
		kind:   kind,
		params: defaultParameters(kind),
		proc:   newProcessor(kind, sampleRate),
	}
	fx.proc.configure(fx.params)
	return fx
}

// update merges options into the parameter map. Unknown option names are
// rejected; values are clamped to the declared range.
func (fx *effectInstance) update(options map[string]float64) error {
	schema := effectParameters[fx.kind]
	for name, v := range options {
		found := false
		for _, p := range schema {
			if p.Name == name {
				fx.params[name] = p.clamp(v)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParameter, fx.kind, name)
		}
	}
	fx.proc.configure(fx.params)
	return nil
}

func (fx *effectInstance) snapshot() EffectInfo {
	params := make(map[string]float64, len(fx.params))
	for k, v := range fx.params {
		params[k] = v
	}
	return EffectInfo{Name: fx.name, Kind: fx.kind, Parameters: params}
}

// EffectInfo is a read-only view of an attached effect.
type EffectInfo struct {
	Name       string
	Kind       EffectKind
	Parameters map[string]float64
}

type effectChain []*effectInstance

func (c effectChain) find(name string) (int, *effectInstance) {
	for i, fx := range c {
		if fx.name == name {
			return i, fx
		}
	}
	return -1, nil
}

func (c effectChain) process(f Frame) Frame {
	for _, fx := range c {
		f = fx.proc.process(f)
	}
	return f
}

func (c effectChain) infos() []EffectInfo {
	out := make([]EffectInfo, len(c))
	for i, fx := range c {
		out[i] = fx.snapshot()
	}
	return out
}
