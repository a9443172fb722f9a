package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/music"
)

type heldSink struct{}

func (heldSink) Open(audio.RenderFunc) error { return nil }
func (heldSink) Resume()                     {}
func (heldSink) Pause()                      {}
func (heldSink) Close() error                { return nil }

func newTestRunner(t *testing.T) (*Runner, *music.App) {
	t.Helper()
	eng, err := audio.NewEngine(audio.Config{
		SampleRate: 1000,
		BufferSize: 100,
		Sink:       heldSink{},
		MIDIInputs: func() ([]drivers.In, error) { return nil, nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	a := music.New(eng, music.Options{SyncQuantum: 20 * time.Millisecond})
	t.Cleanup(func() {
		a.Close()
		_ = eng.Close()
	})
	return NewRunner(a, nil), a
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid",
			data: `
bpm: 90
sprites:
  - name: lead
    commands:
      - {op: notes, notes: [C4, E4, 67], duration: Eighth}
      - {op: effect, name: Reverb}
  - name: bass
    repeat: 2
    commands:
      - {op: rest, seconds: 0.5}
`,
		},
		{name: "syntax", data: "sprites: [", wantErr: true},
		{name: "unnamed", data: "sprites: [{commands: []}]", wantErr: true},
		{name: "duplicate", data: "sprites: [{name: a}, {name: a}]", wantErr: true},
		{name: "unknown op", data: "sprites: [{name: a, commands: [{op: dance}]}]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s.BPM != 90 || len(s.Sprites) != 2 || s.Sprites[1].Repeat != 2 {
				t.Errorf("script = %+v", s)
			}
			notes, ok := s.Sprites[0].Commands[0].Notes.([]any)
			if !ok || len(notes) != 3 {
				t.Errorf("notes = %#v", s.Sprites[0].Commands[0].Notes)
			}
		})
	}

	_, err := Parse([]byte("sprites: [{name: a, commands: [{op: dance}]}]"))
	if !errors.Is(err, ErrUnknownOp) {
		t.Errorf("got %v, want ErrUnknownOp", err)
	}
}

func TestRunSprites(t *testing.T) {
	r, a := newTestRunner(t)
	dir := t.TempDir()

	frames := make([]audio.Frame, 40)
	for i := range frames {
		frames[i] = audio.Frame{0.2, 0.2}
	}
	wav, err := audio.EncodeWAV(audio.NewClip(1000, frames))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "loop.wav"), wav, 0644); err != nil {
		t.Fatal(err)
	}

	script := `
bpm: 100
sprites:
  - name: drums
    repeat: 2
    commands:
      - {op: clip, file: loop.wav}
  - name: lead
    commands:
      - {op: effect, name: Reverb}
      - {op: preset, name: Telephone}
      - {op: chord, root: C4, type: Major, seconds: 0.01}
      - {op: rest, seconds: 0.01}
  - name: pad
    commands:
      - {op: clip, file: loop.wav}
      - {op: volume, level: 50}
`
	path := filepath.Join(dir, "song.yaml")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := a.Status()
	if st.BPM != 100 {
		t.Errorf("BPM = %v", st.BPM)
	}
	if len(st.Tracks) != 4 {
		t.Errorf("tracks = %d, want default plus 3 sprites", len(st.Tracks))
	}
	if st.Arrived != 3 {
		t.Errorf("clip arrivals = %d, want 3", st.Arrived)
	}
	for _, tr := range st.Tracks {
		if tr.ID == "lead" && len(tr.Effects) != 2 {
			t.Errorf("lead effects = %+v", tr.Effects)
		}
	}
}

func TestFailingSpriteCancelsOthers(t *testing.T) {
	r, _ := newTestRunner(t)

	s, err := Parse([]byte(`
sprites:
  - name: slow
    commands:
      - {op: rest, seconds: 30}
  - name: broken
    commands:
      - {op: notes, notes: H2, seconds: 0.01}
`))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err = r.Run(context.Background(), s)
	if err == nil {
		t.Fatal("expected an error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("slow sprite was not cancelled")
	}
}

func TestMissingClipFile(t *testing.T) {
	r, _ := newTestRunner(t)
	s, err := Parse([]byte("sprites: [{name: a, commands: [{op: clip, file: nowhere.wav}]}]"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), s); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v", err)
	}
}

func TestStopAllEndsRunCleanly(t *testing.T) {
	r, a := newTestRunner(t)

	s, err := Parse([]byte(`
sprites:
  - name: slow
    commands:
      - {op: rest, seconds: 5}
      - {op: notes, notes: C4, seconds: 5}
  - name: stopper
    commands:
      - {op: rest, seconds: 0.05}
      - {op: stop-all}
      - {op: rest, seconds: 5}
`))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("sprites kept running after stop-all")
	}

	// a later run gets a fresh stop generation
	s, err = Parse([]byte("sprites: [{name: again, commands: [{op: rest, seconds: 0.01}]}]"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("second Run() = %v", err)
	}
	select {
	case <-a.Stopped():
		t.Error("stop generation still closed after a clean run")
	default:
	}
}
