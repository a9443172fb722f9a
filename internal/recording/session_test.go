package recording

import (
	"errors"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"

	"github.com/icco/beatsblox/internal/audio"
)

type heldSink struct{}

func (heldSink) Open(audio.RenderFunc) error { return nil }
func (heldSink) Resume()                     {}
func (heldSink) Pause()                      {}
func (heldSink) Close() error                { return nil }

type kinds map[string]string

func (k kinds) IsMIDI(track string) bool  { return k[track] == "midi" }
func (k kinds) IsAudio(track string) bool { return k[track] == "audio" }

func newTestManager(t *testing.T, devices kinds) (*Manager, *audio.Engine) {
	t.Helper()
	eng, err := audio.NewEngine(audio.Config{SampleRate: 1000, BufferSize: 100, Sink: heldSink{}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	for track, kind := range devices {
		if err := eng.CreateTrack(track); err != nil {
			t.Fatal(err)
		}
		if kind == "audio" {
			if err := eng.ConnectAudioInputDeviceToTrack(track, audio.LoopbackDevice); err != nil {
				t.Fatal(err)
			}
		}
	}
	eng.Start()
	return NewManager(eng, devices, nil), eng
}

func advance(eng *audio.Engine, frames int) {
	eng.Render(make([]audio.Frame, frames))
}

func TestLastClipStateMachine(t *testing.T) {
	m, eng := newTestManager(t, kinds{"s1": "audio"})

	_, err := m.LastClip("s1")
	if !errors.Is(err, ErrNoClip) {
		t.Fatalf("before start: got %v", err)
	}
	if ftag.Get(err) != ftag.NotFound {
		t.Errorf("no clip tag = %v", ftag.Get(err))
	}

	if err := m.Start("s1", Input, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.State("s1").State != Recording || m.State("s1").Kind != audio.RecordAudio {
		t.Errorf("session = %+v", m.State("s1"))
	}
	_, err = m.LastClip("s1")
	if !errors.Is(err, ErrRecordingInProgress) {
		t.Fatalf("while recording: got %v", err)
	}
	if ftag.Get(err) != Busy {
		t.Errorf("in progress tag = %v", ftag.Get(err))
	}

	advance(eng, 100)
	if err := m.Stop("s1"); err != nil {
		t.Fatal(err)
	}
	h, err := m.LastClip("s1")
	if err != nil {
		t.Fatalf("after stop: %v", err)
	}
	first, err := h.Clip()
	if err != nil {
		t.Fatal(err)
	}
	if first.Duration() != 100*time.Millisecond {
		t.Errorf("clip duration = %v", first.Duration())
	}

	h2, _ := m.LastClip("s1")
	second, _ := h2.Clip()
	if first != second {
		t.Error("repeat reads returned different clips")
	}
}

func TestStartWithoutDevice(t *testing.T) {
	m, _ := newTestManager(t, kinds{})
	if err := m.Start(audio.DefaultTrack, Input, 0); !errors.Is(err, audio.ErrDeviceNotFound) {
		t.Errorf("got %v", err)
	}
	if m.State(audio.DefaultTrack).State != Idle {
		t.Error("failed start left the session recording")
	}
}

func TestStartWhileRecordingReplaces(t *testing.T) {
	m, eng := newTestManager(t, kinds{"s1": "audio"})

	if err := m.Start("s1", Input, 0); err != nil {
		t.Fatal(err)
	}
	advance(eng, 50)
	if err := m.Start("s1", Input, 0); err != nil {
		t.Fatalf("second start: %v", err)
	}
	advance(eng, 20)
	if err := m.Stop("s1"); err != nil {
		t.Fatal(err)
	}

	h, err := m.LastClip("s1")
	if err != nil {
		t.Fatal(err)
	}
	clip, _ := h.Clip()
	if clip.Duration() != 20*time.Millisecond {
		t.Errorf("clip duration = %v, want the replacement's 20ms", clip.Duration())
	}
}

func TestFixedDurationReturnsToIdle(t *testing.T) {
	m, eng := newTestManager(t, kinds{})

	if err := m.Start("any", Output, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	advance(eng, 100)

	deadline := time.Now().Add(2 * time.Second)
	for m.State("any").State == Recording {
		if time.Now().After(deadline) {
			t.Fatal("session never returned to idle")
		}
		time.Sleep(time.Millisecond)
	}
	h, err := m.LastClip("any")
	if err != nil {
		t.Fatal(err)
	}
	if h.Kind() != audio.RecordOutput {
		t.Errorf("kind = %v", h.Kind())
	}
	data, err := h.EncodedData(audio.EncodingWAV)
	if err != nil || len(data) == 0 {
		t.Errorf("EncodedData = %d bytes, %v", len(data), err)
	}
}

func TestSessionsArePerTrack(t *testing.T) {
	m, eng := newTestManager(t, kinds{"s1": "audio", "s2": "audio"})

	if err := m.Start("s1", Input, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("s2", Input, 0); err != nil {
		t.Fatal(err)
	}
	advance(eng, 10)
	if err := m.Stop("s2"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LastClip("s2"); err != nil {
		t.Errorf("s2: %v", err)
	}
	if _, err := m.LastClip("s1"); !errors.Is(err, ErrRecordingInProgress) {
		t.Errorf("s1: got %v", err)
	}

	m.StopAll()
	if _, err := m.LastClip("s1"); err != nil {
		t.Errorf("s1 after StopAll: %v", err)
	}
}

// stubHandle finalizes when release is closed, failing with err.
type stubHandle struct {
	release chan struct{}
	err     error
	done    chan struct{}
}

func newStubHandle(err error) *stubHandle {
	return &stubHandle{release: make(chan struct{}), err: err, done: make(chan struct{})}
}

func (h *stubHandle) Kind() audio.RecordingKind { return audio.RecordAudio }
func (h *stubHandle) Done() <-chan struct{}     { return h.done }
func (h *stubHandle) Finalize() error {
	<-h.release
	return h.err
}
func (h *stubHandle) Clip() (*audio.Clip, error)                 { return nil, nil }
func (h *stubHandle) EncodedData(audio.Encoding) ([]byte, error) { return nil, nil }

func TestLastClipWaitsForFinalize(t *testing.T) {
	m, _ := newTestManager(t, kinds{})
	h := newStubHandle(nil)
	m.begin("s1", audio.RecordAudio, 0, h)

	stopped := make(chan error, 1)
	go func() { stopped <- m.Stop("s1") }()

	time.Sleep(20 * time.Millisecond)
	if _, err := m.LastClip("s1"); !errors.Is(err, ErrRecordingInProgress) {
		t.Fatalf("while finalizing: got %v", err)
	}

	close(h.release)
	if err := <-stopped; err != nil {
		t.Fatal(err)
	}
	got, err := m.LastClip("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got != Handle(h) {
		t.Errorf("LastClip = %v, want the stopped recording", got)
	}
	if st := m.State("s1").State; st != Idle {
		t.Errorf("state = %v", st)
	}
}

func TestFailedFinalizeIsNotPublished(t *testing.T) {
	m, _ := newTestManager(t, kinds{})
	h := newStubHandle(errors.New("disk full"))
	close(h.release)
	m.begin("s1", audio.RecordAudio, 0, h)

	if err := m.Stop("s1"); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := m.LastClip("s1"); !errors.Is(err, ErrRecordingInProgress) {
		t.Errorf("after failed stop: got %v", err)
	}
}
