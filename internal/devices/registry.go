// Package devices keeps the lists of MIDI and audio input devices and
// instruments, and which kind of device each track is connected to.
package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"
)

// Header entries head each device list in menus. They are never connectable.
const (
	MIDIHeader  = "---MIDI---"
	AudioHeader = "---AUDIO---"

	midiSuffix = " (MIDI)"
)

// ErrDeviceNotFound is returned when a token names no known device.
var ErrDeviceNotFound = errors.New("device not found")

// Kind is the kind of device a track is connected to.
type Kind int

const (
	None Kind = iota
	MIDI
	Audio
)

func (k Kind) String() string {
	switch k {
	case MIDI:
		return "MIDI"
	case Audio:
		return "Audio"
	default:
		return "None"
	}
}

// Engine is the slice of the audio engine the registry talks to.
type Engine interface {
	AvailableMidiDevices() ([]string, error)
	AvailableAudioInputDevices() ([]string, error)
	AvailableInstruments(ctx context.Context, catalog string) ([]string, error)
	ConnectMidiDeviceToTrack(track, device string) error
	ConnectAudioInputDeviceToTrack(track, device string) error
	DisconnectMidiDeviceFromTrack(track string) error
	DisconnectAudioInputDeviceFromTrack(track string) error
	UpdateInstrument(track, instrument string) error
}

// Connection is a track's current device.
type Connection struct {
	Kind   Kind
	Device string
}

// Registry tracks enumerated devices and per-track connections.
type Registry struct {
	engine  Engine
	catalog string
	log     *logrus.Entry

	mu          sync.Mutex
	midi        []string
	audio       []string
	instruments []string
	conns       map[string]Connection
	ready       chan struct{}
	readyOnce   sync.Once
}

// NewRegistry creates a registry holding only the header entries until
// Enumerate runs. catalog is passed to the engine's instrument lookup.
func NewRegistry(engine Engine, catalog string, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.WithField("component", "devices")
	}
	return &Registry{
		engine:  engine,
		catalog: catalog,
		log:     log,
		conns:   make(map[string]Connection),
		ready:   make(chan struct{}),
	}
}

// Start enumerates in the background.
func (r *Registry) Start(ctx context.Context) {
	go r.Enumerate(ctx)
}

// Ready is closed when the first enumeration finished.
func (r *Registry) Ready() <-chan struct{} {
	return r.ready
}

// Enumerate refreshes devices and instruments from the engine. Failures are
// logged and leave the affected list empty.
func (r *Registry) Enumerate(ctx context.Context) {
	defer r.readyOnce.Do(func() { close(r.ready) })

	midi, err := r.engine.AvailableMidiDevices()
	if err != nil {
		r.log.WithError(err).Warn("could not list MIDI devices")
		midi = nil
	}
	audio, err := r.engine.AvailableAudioInputDevices()
	if err != nil {
		r.log.WithError(err).Warn("could not list audio input devices")
		audio = nil
	}
	instruments, err := r.engine.AvailableInstruments(ctx, r.catalog)
	if err != nil {
		r.log.WithError(err).WithField("catalog", r.catalog).Warn("could not load instruments")
		instruments = nil
	}

	r.mu.Lock()
	r.midi = midi
	r.audio = audio
	r.instruments = instruments
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"midi":        len(midi),
		"audio":       len(audio),
		"instruments": len(instruments),
	}).Info("devices enumerated")
}

// MIDIDevices lists MIDI devices for menus, header first.
func (r *Registry) MIDIDevices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{MIDIHeader}
	for _, d := range r.midi {
		out = append(out, d+midiSuffix)
	}
	return out
}

// AudioDevices lists audio inputs for menus, header first.
func (r *Registry) AudioDevices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{AudioHeader}, r.audio...)
}

// Options is the device menu: MIDI devices followed by audio inputs.
func (r *Registry) Options() []string {
	return append(r.MIDIDevices(), r.AudioDevices()...)
}

// Instruments lists the known instruments.
func (r *Registry) Instruments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.instruments...)
}

// Connection returns the track's current device.
func (r *Registry) Connection(track string) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[track]
}

// Kind returns the kind of device the track is connected to.
func (r *Registry) Kind(track string) Kind {
	return r.Connection(track).Kind
}

// Connect connects track to the device named by token. Header entries and
// unknown names fail with ErrDeviceNotFound. On success the first known
// instrument is loaded onto the track.
func (r *Registry) Connect(track, token string) error {
	kind, device := r.classify(token)
	switch kind {
	case MIDI:
		if err := r.engine.ConnectMidiDeviceToTrack(track, device); err != nil {
			return fault.Wrap(err,
				fmsg.WithDesc(fmt.Sprintf("connect MIDI %s to %s", device, track), "Could not connect the MIDI device."),
				ftag.With(ftag.Internal))
		}
	case Audio:
		if err := r.engine.ConnectAudioInputDeviceToTrack(track, device); err != nil {
			return fault.Wrap(err,
				fmsg.WithDesc(fmt.Sprintf("connect audio %s to %s", device, track), "Could not connect the audio device."),
				ftag.With(ftag.Internal))
		}
	default:
		return fault.Wrap(ErrDeviceNotFound,
			fmsg.WithDesc(fmt.Sprintf("device %q", token), "Device not found."),
			ftag.With(ftag.NotFound))
	}

	r.mu.Lock()
	r.conns[track] = Connection{Kind: kind, Device: device}
	var instrument string
	if len(r.instruments) > 0 {
		instrument = r.instruments[0]
	}
	r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"track": track, "device": device, "kind": kind})
	log.Info("device connected")
	if instrument == "" {
		log.Debug("no default instruments")
		return nil
	}
	if err := r.engine.UpdateInstrument(track, instrument); err != nil {
		log.WithError(err).Warn("could not set default instrument")
	}
	return nil
}

// Disconnect releases the track's devices. MIDI and audio are checked
// independently.
func (r *Registry) Disconnect(track string) error {
	r.mu.Lock()
	haveMIDI, haveAudio := len(r.midi) > 0, len(r.audio) > 0
	delete(r.conns, track)
	r.mu.Unlock()

	var errs []error
	if haveAudio {
		if err := r.engine.DisconnectAudioInputDeviceFromTrack(track); err != nil {
			errs = append(errs, err)
		}
	}
	if haveMIDI {
		if err := r.engine.DisconnectMidiDeviceFromTrack(track); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("disconnect %s", track)))
	}
	r.log.WithField("track", track).Info("devices disconnected")
	return nil
}

func (r *Registry) classify(token string) (Kind, string) {
	if token == MIDIHeader || token == AudioHeader {
		return None, ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.TrimSuffix(token, midiSuffix)
	for _, d := range r.midi {
		if d == name {
			return MIDI, d
		}
	}
	for _, d := range r.audio {
		if d == token {
			return Audio, d
		}
	}
	return None, ""
}

// IsMIDI reports whether track is connected to a MIDI device.
func (r *Registry) IsMIDI(track string) bool {
	return r.Kind(track) == MIDI
}

// IsAudio reports whether track is connected to an audio input.
func (r *Registry) IsAudio(track string) bool {
	return r.Kind(track) == Audio
}
