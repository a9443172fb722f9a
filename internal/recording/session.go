// Package recording tracks in-flight recordings per track and hands out the
// finished clips.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"

	"github.com/icco/beatsblox/internal/audio"
)

var (
	// ErrRecordingInProgress is returned when reading a clip while recording.
	ErrRecordingInProgress = errors.New("recording in progress")
	// ErrNoClip is returned when nothing was recorded yet.
	ErrNoClip = errors.New("no clip found")
)

// Busy tags errors caused by an operation that must wait for a recording.
const Busy ftag.Kind = "BUSY"

// Source selects what a recording captures.
type Source int

const (
	// Input records the track's connected device.
	Input Source = iota
	// Output records the master mix.
	Output
)

// State is the session state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "Recording"
	}
	return "Idle"
}

// Handle is a recording in progress or finished.
type Handle interface {
	Kind() audio.RecordingKind
	Done() <-chan struct{}
	Finalize() error
	Clip() (*audio.Clip, error)
	EncodedData(enc audio.Encoding) ([]byte, error)
}

// Engine starts recordings.
type Engine interface {
	CurrentTime() time.Duration
	RecordMidiClip(track string, start, duration time.Duration) (*audio.Recording, error)
	RecordAudioClip(track string, start, duration time.Duration) (*audio.Recording, error)
	RecordOutput(start, duration time.Duration) (*audio.Recording, error)
}

// DeviceKinds reports which kind of device a track is connected to.
type DeviceKinds interface {
	IsMIDI(track string) bool
	IsAudio(track string) bool
}

// Session is one track's recording state.
type Session struct {
	Track     string
	State     State
	Kind      audio.RecordingKind
	StartedAt time.Duration
	handle    Handle
	last      Handle
}

// Manager owns the sessions of every track.
type Manager struct {
	engine  Engine
	devices DeviceKinds
	log     *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(engine Engine, devices DeviceKinds, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.WithField("component", "recording")
	}
	return &Manager{
		engine:   engine,
		devices:  devices,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Start begins recording on track. Input recordings use the track's connected
// device kind; a track without a device fails with audio.ErrDeviceNotFound. A
// positive duration stops the recording on its own. Starting while recording
// replaces the running handle.
func (m *Manager) Start(track string, src Source, duration time.Duration) error {
	var kind audio.RecordingKind
	switch {
	case src == Output:
		kind = audio.RecordOutput
	case m.devices.IsMIDI(track):
		kind = audio.RecordMIDI
	case m.devices.IsAudio(track):
		kind = audio.RecordAudio
	default:
		return fault.Wrap(audio.ErrDeviceNotFound,
			fmsg.WithDesc(fmt.Sprintf("no input device on %s", track), "Connect an input device before recording."),
			ftag.With(ftag.NotFound))
	}

	now := m.engine.CurrentTime()
	var (
		rec *audio.Recording
		err error
	)
	switch kind {
	case audio.RecordMIDI:
		rec, err = m.engine.RecordMidiClip(track, now, duration)
	case audio.RecordAudio:
		rec, err = m.engine.RecordAudioClip(track, now, duration)
	default:
		rec, err = m.engine.RecordOutput(now, duration)
	}
	if err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("start %s recording on %s", kind, track)))
	}
	m.begin(track, kind, now, rec)
	return nil
}

// begin installs h as the track's running recording.
func (m *Manager) begin(track string, kind audio.RecordingKind, now time.Duration, h Handle) {
	m.mu.Lock()
	s := m.sessionLocked(track)
	replaced := s.handle
	s.State = Recording
	s.Kind = kind
	s.StartedAt = now
	s.handle = h
	m.mu.Unlock()

	log := m.log.WithFields(logrus.Fields{"track": track, "kind": kind})
	if replaced != nil {
		if err := replaced.Finalize(); err != nil {
			log.WithError(err).Warn("could not finalize replaced recording")
		}
		log.Info("running recording replaced")
	}
	log.Info("recording started")
	go m.watch(track, h)
}

// watch returns the session to Idle when a fixed-length recording ends.
func (m *Manager) watch(track string, h Handle) {
	<-h.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[track]
	if s == nil || s.handle != h {
		return
	}
	s.State = Idle
	s.last = h
	s.handle = nil
}

// Stop finalizes the track's recording. Stopping an idle track does nothing.
// The recording becomes the last clip only once it is finalized; if that
// fails the session stays Recording.
func (m *Manager) Stop(track string) error {
	m.mu.Lock()
	s := m.sessions[track]
	if s == nil || s.handle == nil {
		m.mu.Unlock()
		return nil
	}
	h := s.handle
	m.mu.Unlock()

	if err := h.Finalize(); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("finalize recording on %s", track)))
	}

	m.mu.Lock()
	if s.handle == h {
		s.handle = nil
		s.last = h
		s.State = Idle
	}
	m.mu.Unlock()
	m.log.WithField("track", track).Info("recording stopped")
	return nil
}

// LastClip returns the track's last finished recording.
func (m *Manager) LastClip(track string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[track]
	if s != nil && s.State == Recording {
		return nil, fault.Wrap(ErrRecordingInProgress,
			fmsg.WithDesc(fmt.Sprintf("%s is recording", track), "Recording in progress."),
			ftag.With(Busy))
	}
	if s == nil || s.last == nil {
		return nil, fault.Wrap(ErrNoClip,
			fmsg.WithDesc(fmt.Sprintf("%s has no recording", track), "No clip found."),
			ftag.With(ftag.NotFound))
	}
	return s.last, nil
}

// State returns a copy of the track's session.
func (m *Manager) State(track string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.sessions[track]; s != nil {
		return *s
	}
	return Session{Track: track}
}

// StopAll finalizes every running recording.
func (m *Manager) StopAll() {
	m.mu.Lock()
	tracks := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.handle != nil {
			tracks = append(tracks, id)
		}
	}
	m.mu.Unlock()
	for _, id := range tracks {
		if err := m.Stop(id); err != nil {
			m.log.WithError(err).WithField("track", id).Warn("could not stop recording")
		}
	}
}

func (m *Manager) sessionLocked(track string) *Session {
	s := m.sessions[track]
	if s == nil {
		s = &Session{Track: track}
		m.sessions[track] = s
	}
	return s
}
