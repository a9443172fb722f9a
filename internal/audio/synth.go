package audio

import (
	"fmt"
	"math"
	"strings"
)

// WaveType represents different oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

var waveNames = map[WaveType]string{
	WaveSine:     "sine",
	WaveSquare:   "square",
	WaveSawtooth: "sawtooth",
	WaveTriangle: "triangle",
}

func (w WaveType) String() string {
	if name, ok := waveNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WaveType(%d)", int(w))
}

// UnmarshalText lets catalog files spell the wave by name.
func (w *WaveType) UnmarshalText(text []byte) error {
	for t, name := range waveNames {
		if strings.EqualFold(name, string(text)) {
			*w = t
			return nil
		}
	}
	return fmt.Errorf("unknown wave type %q", text)
}

func (w WaveType) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func generateWave(waveType WaveType, phase float64) float64 {
	switch waveType {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < 0.5 {
			return 0.8
		}
		return -0.8
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// midiNoteToFreq converts a MIDI note number to frequency in Hz
func midiNoteToFreq(note uint8) float64 {
	// A4 (note 69) = 440 Hz
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}

// voice is a single sounding note on a track. start and release are absolute
// engine frames; release < 0 means the note is held until released.
type voice struct {
	note      uint8
	velocity  uint8
	frequency float64
	phase     float64
	envelope  float64
	start     int64
	release   int64
	releasing bool
	active    bool

	wave        WaveType
	attackStep  float64
	releaseMult float64
	gain        float64
}

func newVoice(inst Instrument, note, velocity uint8, start, release int64, sampleRate float64) *voice {
	return &voice{
		note:        note,
		velocity:    velocity,
		frequency:   midiNoteToFreq(note),
		start:       start,
		release:     release,
		active:      true,
		wave:        inst.Wave,
		attackStep:  1 / math.Max(inst.Attack*sampleRate, 1),
		releaseMult: math.Pow(0.001, 1/math.Max(inst.Release*sampleRate, 1)),
		gain:        inst.Gain,
	}
}

// sample renders the voice at absolute frame abs and advances its state.
func (v *voice) sample(abs int64, sampleRate float64) float64 {
	if !v.active || abs < v.start {
		return 0
	}
	if !v.releasing && v.release >= 0 && abs >= v.release {
		v.releasing = true
	}

	oscSample := generateWave(v.wave, v.phase)
	velocityScale := float64(v.velocity) / 127.0
	out := oscSample * velocityScale * v.envelope * v.gain * 0.2

	v.phase += v.frequency / sampleRate
	if v.phase >= 1.0 {
		v.phase -= 1.0
	}

	if v.releasing {
		// Release phase - exponential decay
		v.envelope *= v.releaseMult
		if v.envelope < 0.001 {
			v.active = false
		}
	} else if v.envelope < 1.0 {
		// Attack phase
		v.envelope += v.attackStep
		if v.envelope > 1.0 {
			v.envelope = 1.0
		}
	}
	return out
}

// noteOff releases the first held voice playing note.
func noteOff(voices []*voice, note uint8, at int64) {
	for _, v := range voices {
		if v.active && v.note == note && !v.releasing && v.release < 0 {
			v.release = at
			return
		}
	}
}

// pruneVoices drops finished voices in place.
func pruneVoices(voices []*voice) []*voice {
	out := voices[:0]
	for _, v := range voices {
		if v.active {
			out = append(out, v)
		}
	}
	for i := len(out); i < len(voices); i++ {
		voices[i] = nil
	}
	return out
}
