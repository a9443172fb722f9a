package audio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DefaultSampleRate = 44100
	DefaultBufferSize = 512
	DefaultBPM        = 120

	// DefaultTrack always exists; commands without a sprite land here.
	DefaultTrack = "default"

	defaultVelocity = 100
	masterBus       = "master"
)

// Config holds engine construction options. Zero values pick defaults.
type Config struct {
	SampleRate int
	BufferSize int

	// Sink receives rendered audio. Nil means a null sink.
	Sink Sink

	// MIDIInputs lists connectable MIDI inputs. Nil uses the system ports.
	MIDIInputs func() ([]drivers.In, error)

	// VirtualInput, when set, opens a virtual rtmidi input with this name.
	VirtualInput string

	Logger *logrus.Entry
}

// Engine is a software multi-track synthesizer and mixer. Time is measured
// in frames rendered since the engine was created; Start and Stop gate the
// sink so the clock only advances while running.
type Engine struct {
	sampleRate float64
	bufferSize int
	sink       Sink
	midiInputs func() ([]drivers.In, error)
	log        *logrus.Entry

	mu          sync.Mutex
	tracks      map[string]*track
	master      effectChain
	outputRecs  []*Recording
	frames      int64
	running     bool
	closed      bool
	bpm         float64
	instruments map[string]Instrument
	hubs        map[string]*midiHub
	virtual     *virtualInput
}

// NewEngine creates an engine, opens its sink and the default track. The
// sink stays paused until Start.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Sink == nil {
		cfg.Sink = NewNullSink(cfg.SampleRate, cfg.BufferSize)
	}
	if cfg.MIDIInputs == nil {
		cfg.MIDIInputs = func() ([]drivers.In, error) { return midi.GetInPorts(), nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "audio")
	}

	e := &Engine{
		sampleRate:  float64(cfg.SampleRate),
		bufferSize:  cfg.BufferSize,
		sink:        cfg.Sink,
		midiInputs:  cfg.MIDIInputs,
		log:         cfg.Logger,
		tracks:      make(map[string]*track),
		bpm:         DefaultBPM,
		instruments: make(map[string]Instrument),
		hubs:        make(map[string]*midiHub),
	}
	for _, inst := range builtinInstruments {
		e.instruments[inst.Name] = inst
	}
	e.tracks[DefaultTrack] = newTrack(DefaultTrack)

	if err := e.sink.Open(e.Render); err != nil {
		return nil, fmt.Errorf("error opening audio sink: %w", err)
	}
	if cfg.VirtualInput != "" {
		v, err := openVirtualInput(cfg.VirtualInput)
		if err != nil {
			e.log.WithError(err).Warn("virtual MIDI input unavailable")
		} else {
			e.virtual = v
		}
	}
	return e, nil
}

// SampleRate is the engine's output rate in Hz.
func (e *Engine) SampleRate() int {
	return int(e.sampleRate)
}

// CreateTrack adds a track. Creating an existing track is a no-op.
func (e *Engine) CreateTrack(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if _, ok := e.tracks[id]; !ok {
		e.tracks[id] = newTrack(id)
		e.log.WithField("track", id).Debug("track created")
	}
	return nil
}

// ClearAllTracks silences every track: scheduled clips and sounding voices
// are dropped. Tracks, their effects and their devices stay in place.
func (e *Engine) ClearAllTracks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.tracks {
		t.clips = nil
		t.voices = nil
	}
}

// Start resumes the sink so the clock advances.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running || e.closed {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()
	e.sink.Resume()
}

// Stop pauses the sink; the clock holds its value.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()
	e.sink.Pause()
}

// Running reports whether the clock is advancing.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentTime is the engine clock.
func (e *Engine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return framesToDuration(e.frames, e.sampleRate)
}

// UpdateBeatsPerMinute sets the tempo used for note durations and MIDI export.
func (e *Engine) UpdateBeatsPerMinute(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("invalid tempo %v", bpm)
	}
	e.mu.Lock()
	e.bpm = bpm
	e.mu.Unlock()
	return nil
}

// BPM returns the current tempo.
func (e *Engine) BPM() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bpm
}

// PlayClip schedules clip on a track at start. A zero duration plays the
// whole clip; a longer duration is capped at the clip length. It returns the
// duration that will play.
func (e *Engine) PlayClip(trackID string, clip *Clip, start, duration time.Duration) (time.Duration, error) {
	if clip == nil || clip.SampleRate <= 0 {
		return 0, ErrInvalidClip
	}
	frames := clip.Frames
	if clip.SampleRate != int(e.sampleRate) {
		frames = resample(frames, float64(clip.SampleRate), e.sampleRate)
	}
	length := int64(len(frames))
	if duration > 0 {
		if want := durationToFrames(duration, e.sampleRate); want < length {
			length = want
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return 0, err
	}
	at := e.startFrameLocked(start)
	t.clips = append(t.clips, &scheduledClip{frames: frames, start: at, length: length})
	return framesToDuration(length, e.sampleRate), nil
}

// PlayNote schedules a note on a track's instrument at start for duration.
func (e *Engine) PlayNote(trackID string, note int, start, duration time.Duration) (time.Duration, error) {
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("%w: %d", ErrNoteOutOfRange, note)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return 0, err
	}
	at := e.startFrameLocked(start)
	release := at + durationToFrames(duration, e.sampleRate)
	t.voices = append(t.voices, newVoice(t.instrument, uint8(note), defaultVelocity, at, release, e.sampleRate)) //nolint:gosec // note is range checked above
	return duration, nil
}

// AvailableInstruments returns the built-in instruments plus any loaded from
// catalog, sorted by name. Catalog entries replace built-ins of the same
// name. An empty catalog only lists built-ins.
func (e *Engine) AvailableInstruments(ctx context.Context, catalog string) ([]string, error) {
	if catalog != "" {
		c, err := LoadCatalog(ctx, catalog)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		for _, inst := range c.Instruments {
			e.instruments[inst.Name] = inst
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.instruments))
	for name := range e.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateInstrument switches the instrument used by a track's notes.
func (e *Engine) UpdateInstrument(trackID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return err
	}
	inst, ok := e.instruments[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}
	t.instrument = inst
	return nil
}

// ApplyTrackEffect attaches a new effect named name with default parameters.
func (e *Engine) ApplyTrackEffect(trackID, name string, kind EffectKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return err
	}
	chain, err := e.applyLocked(t.effects, name, kind)
	if err != nil {
		return err
	}
	t.effects = chain
	return nil
}

// UpdateTrackEffect changes parameters of an attached effect.
func (e *Engine) UpdateTrackEffect(trackID, name string, options map[string]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return err
	}
	return updateChain(t.effects, trackID, name, options)
}

// RemoveTrackEffect detaches an effect. Removing an absent effect is benign.
func (e *Engine) RemoveTrackEffect(trackID, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return err
	}
	t.effects = removeFromChain(t.effects, name)
	return nil
}

// TrackEffects lists the effects attached to a track in processing order.
func (e *Engine) TrackEffects(trackID string) ([]EffectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return nil, err
	}
	return t.effects.infos(), nil
}

// ApplyMasterEffect attaches an effect to the master bus.
func (e *Engine) ApplyMasterEffect(name string, kind EffectKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	chain, err := e.applyLocked(e.master, name, kind)
	if err != nil {
		return err
	}
	e.master = chain
	return nil
}

// UpdateMasterEffect changes parameters of a master effect.
func (e *Engine) UpdateMasterEffect(name string, options map[string]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return updateChain(e.master, masterBus, name, options)
}

// RemoveMasterEffect detaches a master effect; absent effects are ignored.
func (e *Engine) RemoveMasterEffect(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.master = removeFromChain(e.master, name)
}

// MasterEffects lists the master bus effects.
func (e *Engine) MasterEffects() []EffectInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.infos()
}

func (e *Engine) applyLocked(chain effectChain, name string, kind EffectKind) (effectChain, error) {
	if !kind.Valid() {
		return chain, fmt.Errorf("%w: %v", ErrUnknownEffect, kind)
	}
	if _, fx := chain.find(name); fx != nil {
		return chain, fmt.Errorf("%w: %s", ErrEffectExists, name)
	}
	return append(chain, newEffectInstance(name, kind, e.sampleRate)), nil
}

func updateChain(chain effectChain, owner, name string, options map[string]float64) error {
	_, fx := chain.find(name)
	if fx == nil {
		return fmt.Errorf("%w: %s on %s", ErrEffectNotApplied, name, owner)
	}
	return fx.update(options)
}

func removeFromChain(chain effectChain, name string) effectChain {
	i, _ := chain.find(name)
	if i < 0 {
		return chain
	}
	return append(chain[:i], chain[i+1:]...)
}

// Close stops playback, releases MIDI inputs and closes the sink.
func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	hubs := make([]*midiHub, 0, len(e.hubs))
	for name, h := range e.hubs {
		hubs = append(hubs, h)
		delete(e.hubs, name)
	}
	for _, t := range e.tracks {
		t.midiDevice = ""
		for _, r := range t.recorders {
			r.finishLocked(e.frames)
		}
		t.recorders = nil
	}
	for _, r := range e.outputRecs {
		r.finishLocked(e.frames)
	}
	e.outputRecs = nil
	v := e.virtual
	e.virtual = nil
	e.mu.Unlock()

	for _, h := range hubs {
		h.close()
	}
	if v != nil {
		v.close()
	}
	return e.sink.Close()
}

// TrackInfo is a point-in-time view of a track.
type TrackInfo struct {
	ID          string
	Instrument  string
	Effects     []EffectInfo
	MIDIDevice  string
	AudioDevice string
	Level       float32
	ActiveNotes []int
	Recording   bool
}

// Snapshot describes every track, default first then by id.
func (e *Engine) Snapshot() []TrackInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.tracks))
	for id := range e.tracks {
		if id != DefaultTrack {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{DefaultTrack}, ids...)

	out := make([]TrackInfo, 0, len(ids))
	for _, id := range ids {
		t := e.tracks[id]
		out = append(out, TrackInfo{
			ID:          t.id,
			Instrument:  t.instrument.Name,
			Effects:     t.effects.infos(),
			MIDIDevice:  t.midiDevice,
			AudioDevice: t.audioDevice,
			Level:       t.level,
			ActiveNotes: t.activeNotes(e.frames),
			Recording:   len(t.recorders) > 0,
		})
	}
	return out
}

// Render mixes the next len(out) frames. It is the sink's pull callback and
// is also driven directly in tests. A stopped engine renders silence without
// advancing the clock.
func (e *Engine) Render(out []Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		for i := range out {
			out[i] = Frame{}
		}
		return
	}

	for _, t := range e.tracks {
		t.level = 0
	}
	for i := range out {
		abs := e.frames
		var mix Frame
		for _, t := range e.tracks {
			f := t.renderFrame(abs, e.sampleRate)
			mix[0] += f[0]
			mix[1] += f[1]
		}
		mix = e.master.process(mix)
		for _, r := range e.outputRecs {
			r.captureLocked(abs, mix)
		}
		out[i] = mix
		e.frames++
	}

	for _, t := range e.tracks {
		t.voices = pruneVoices(t.voices)
		t.pruneClips(e.frames)
		t.recorders = pruneRecorders(t.recorders, e.frames)
	}
	e.outputRecs = pruneRecorders(e.outputRecs, e.frames)
}

// startFrameLocked maps a requested start time to a frame, never earlier
// than the current clock.
func (e *Engine) startFrameLocked(start time.Duration) int64 {
	at := durationToFrames(start, e.sampleRate)
	if at < e.frames {
		at = e.frames
	}
	return at
}

func (e *Engine) trackLocked(id string) (*track, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	t, ok := e.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, id)
	}
	return t, nil
}

// AvailableEffects returns every effect the engine can apply, by name.
func (e *Engine) AvailableEffects() map[string]EffectKind {
	return AvailableEffects()
}

// AvailableEffectParameters returns the parameter schema of kind.
func (e *Engine) AvailableEffectParameters(kind EffectKind) ([]Parameter, error) {
	return AvailableEffectParameters(kind)
}
