package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// RecordingKind is the source a recording captures.
type RecordingKind int

const (
	RecordMIDI RecordingKind = iota + 1
	RecordAudio
	RecordOutput
)

func (k RecordingKind) String() string {
	switch k {
	case RecordMIDI:
		return "MIDI"
	case RecordAudio:
		return "Audio"
	case RecordOutput:
		return "Output"
	default:
		return fmt.Sprintf("RecordingKind(%d)", int(k))
	}
}

const ticksPerQuarterNote = 960

type midiEvent struct {
	frame    int64
	status   uint8
	note     uint8
	velocity uint8
}

// Recording is an in-flight or finished capture. Capture state is guarded by
// the owning engine's lock; the rendered clip by mu.
type Recording struct {
	id         uuid.UUID
	kind       RecordingKind
	trackID    string
	engine     *Engine
	instrument Instrument
	bpm        float64
	start      int64
	end        int64 // -1 records until finalized

	frames   []Frame
	events   []midiEvent
	finished bool
	stopped  int64
	done     chan struct{}

	mu   sync.Mutex
	clip *Clip
}

// ID identifies the recording.
func (r *Recording) ID() uuid.UUID { return r.id }

// Kind reports what the recording captures.
func (r *Recording) Kind() RecordingKind { return r.kind }

// TrackID is the recorded track; empty for output recordings.
func (r *Recording) TrackID() string { return r.trackID }

// Done is closed once the recording stops capturing, either through Finalize
// or because its fixed duration elapsed.
func (r *Recording) Done() <-chan struct{} { return r.done }

// Finalize stops capturing. It is safe to call more than once.
func (r *Recording) Finalize() error {
	e := r.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	r.finishLocked(e.frames)
	if t := e.tracks[r.trackID]; t != nil {
		t.recorders = pruneRecorders(t.recorders, e.frames)
	}
	e.outputRecs = pruneRecorders(e.outputRecs, e.frames)
	return nil
}

// Clip returns the recorded audio. MIDI recordings are rendered through the
// instrument the track had when recording started.
func (r *Recording) Clip() (*Clip, error) {
	r.engine.mu.Lock()
	finished := r.finished
	r.engine.mu.Unlock()
	if !finished {
		return nil, ErrNotFinalized
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		if r.kind == RecordMIDI {
			r.clip = r.renderMIDI()
		} else {
			r.clip = NewClip(int(r.engine.sampleRate), r.frames)
		}
		r.clip.ID = r.id
	}
	return r.clip, nil
}

// EncodedData exports the finished recording. WAV works for every kind; MIDI
// only for MIDI recordings.
func (r *Recording) EncodedData(enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingWAV:
		c, err := r.Clip()
		if err != nil {
			return nil, err
		}
		return EncodeWAV(c)
	case EncodingMIDI:
		if r.kind != RecordMIDI {
			return nil, fmt.Errorf("%w: %s recording as %s", ErrUnsupportedEncoding, r.kind, enc)
		}
		r.engine.mu.Lock()
		finished := r.finished
		r.engine.mu.Unlock()
		if !finished {
			return nil, ErrNotFinalized
		}
		return r.encodeSMF()
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, enc)
	}
}

func (r *Recording) captureLocked(abs int64, f Frame) {
	if r.finished || abs < r.start {
		return
	}
	if r.end >= 0 && abs >= r.end {
		r.finishLocked(abs)
		return
	}
	r.frames = append(r.frames, f)
}

func (r *Recording) captureMIDILocked(now int64, status, note, velocity uint8) {
	if r.finished || now < r.start {
		return
	}
	if r.end >= 0 && now >= r.end {
		r.finishLocked(now)
		return
	}
	r.events = append(r.events, midiEvent{frame: now - r.start, status: status, note: note, velocity: velocity})
}

func (r *Recording) finishLocked(now int64) {
	if r.finished {
		return
	}
	if r.end >= 0 && now > r.end {
		now = r.end
	}
	if now < r.start {
		now = r.start
	}
	r.finished = true
	r.stopped = now
	close(r.done)
}

func (r *Recording) length() int64 {
	return r.stopped - r.start
}

// renderMIDI plays the captured events through the recording instrument.
func (r *Recording) renderMIDI() *Clip {
	sr := r.engine.sampleRate
	n := r.length()
	var voices []*voice
	for _, ev := range r.events {
		switch {
		case ev.status == 0x90 && ev.velocity > 0:
			voices = append(voices, newVoice(r.instrument, ev.note, ev.velocity, ev.frame, -1, sr))
		default:
			noteOff(voices, ev.note, ev.frame)
		}
	}
	for _, v := range voices {
		if v.release < 0 {
			v.release = n
		}
	}

	frames := make([]Frame, n)
	for i := range frames {
		var s float64
		for _, v := range voices {
			s += v.sample(int64(i), sr)
		}
		frames[i] = Frame{float32(s), float32(s)}
	}
	return NewClip(int(sr), frames)
}

func (r *Recording) frameToTick(frame int64) uint32 {
	seconds := float64(frame) / r.engine.sampleRate
	return uint32(seconds * r.bpm / 60 * ticksPerQuarterNote)
}

// encodeSMF writes the captured events as a two track SMF: tempo, then notes.
func (r *Recording) encodeSMF() ([]byte, error) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarterNote)

	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(r.bpm))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	var track smf.Track
	var lastTick uint32
	for _, ev := range r.events {
		tick := r.frameToTick(ev.frame)
		delta := tick - lastTick
		if ev.status == 0x90 && ev.velocity > 0 {
			track.Add(delta, midi.NoteOn(0, ev.note, ev.velocity))
		} else {
			track.Add(delta, midi.NoteOff(0, ev.note))
		}
		lastTick = tick
	}
	endTick := r.frameToTick(r.length())
	if lastTick < endTick {
		track.Close(endTick - lastTick)
	} else {
		track.Close(0)
	}
	if err := sm.Add(track); err != nil {
		return nil, fmt.Errorf("error adding note track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("error writing MIDI data: %w", err)
	}
	return buf.Bytes(), nil
}

func pruneRecorders(recs []*Recording, now int64) []*Recording {
	out := recs[:0]
	for _, r := range recs {
		if !r.finished && r.end >= 0 && now >= r.end {
			r.finishLocked(now)
		}
		if !r.finished {
			out = append(out, r)
		}
	}
	for i := len(out); i < len(recs); i++ {
		recs[i] = nil
	}
	return out
}

// RecordMidiClip records notes arriving from the track's MIDI device from
// start for duration; zero records until Finalize.
func (e *Engine) RecordMidiClip(trackID string, start, duration time.Duration) (*Recording, error) {
	return e.recordTrack(trackID, RecordMIDI, start, duration)
}

// RecordAudioClip records the track's audio input from start for duration;
// zero records until Finalize.
func (e *Engine) RecordAudioClip(trackID string, start, duration time.Duration) (*Recording, error) {
	return e.recordTrack(trackID, RecordAudio, start, duration)
}

// RecordOutput records the master mix.
func (e *Engine) RecordOutput(start, duration time.Duration) (*Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	r := e.newRecordingLocked(RecordOutput, "", defaultInstrument(), start, duration)
	e.outputRecs = append(e.outputRecs, r)
	return r, nil
}

func (e *Engine) recordTrack(trackID string, kind RecordingKind, start, duration time.Duration) (*Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return nil, err
	}
	if (kind == RecordMIDI && t.midiDevice == "") || (kind == RecordAudio && t.audioDevice == "") {
		return nil, fmt.Errorf("%w: track %q has no %s input", ErrNoInputDevice, trackID, kind)
	}
	r := e.newRecordingLocked(kind, trackID, t.instrument, start, duration)
	t.recorders = append(t.recorders, r)
	return r, nil
}

func (e *Engine) newRecordingLocked(kind RecordingKind, trackID string, inst Instrument, start, duration time.Duration) *Recording {
	at := e.startFrameLocked(start)
	end := int64(-1)
	if duration > 0 {
		end = at + durationToFrames(duration, e.sampleRate)
	}
	e.log.WithField("kind", kind).WithField("track", trackID).Debug("recording started")
	return &Recording{
		id:         uuid.New(),
		kind:       kind,
		trackID:    trackID,
		engine:     e,
		instrument: inst,
		bpm:        e.bpm,
		start:      at,
		end:        end,
		done:       make(chan struct{}),
	}
}
