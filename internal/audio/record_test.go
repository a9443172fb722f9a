package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

func TestRecordRequiresInputDevice(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RecordMidiClip(DefaultTrack, 0, 0); !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("midi without device: got %v", err)
	}
	if _, err := e.RecordAudioClip(DefaultTrack, 0, 0); !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("audio without device: got %v", err)
	}
}

func TestRecordAudioLoopback(t *testing.T) {
	e := newTestEngine(t)
	if err := e.ConnectAudioInputDeviceToTrack(DefaultTrack, LoopbackDevice); err != nil {
		t.Fatal(err)
	}
	e.Start()

	rec, err := e.RecordAudioClip(DefaultTrack, 0, 0)
	if err != nil {
		t.Fatalf("RecordAudioClip: %v", err)
	}
	if _, err := rec.Clip(); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("Clip before finalize: got %v", err)
	}
	if !e.Snapshot()[0].Recording {
		t.Error("track not reported as recording")
	}

	if _, err := e.PlayClip(DefaultTrack, constantClip(30, 0.25), 0, 0); err != nil {
		t.Fatal(err)
	}
	render(e, 40)
	if err := rec.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Finalize(); err != nil {
		t.Errorf("second finalize: %v", err)
	}

	select {
	case <-rec.Done():
	default:
		t.Error("Done not closed after finalize")
	}

	clip, err := rec.Clip()
	if err != nil {
		t.Fatalf("Clip: %v", err)
	}
	if len(clip.Frames) != 40 {
		t.Fatalf("recorded %d frames, want 40", len(clip.Frames))
	}
	if clip.Frames[0][0] != 0.25 || clip.Frames[35][0] != 0 {
		t.Errorf("unexpected content: %v %v", clip.Frames[0], clip.Frames[35])
	}
	if again, _ := rec.Clip(); again != clip {
		t.Error("Clip should return the same clip on repeat reads")
	}

	if _, err := rec.EncodedData(EncodingMIDI); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("MIDI export of audio: got %v", err)
	}
	data, err := rec.EncodedData(EncodingWAV)
	if err != nil {
		t.Fatalf("EncodedData: %v", err)
	}
	decoded, err := DecodeWAV(data, testRate)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(decoded.Frames) != 40 {
		t.Errorf("decoded %d frames, want 40", len(decoded.Frames))
	}
}

func TestRecordForDurationFinishesItself(t *testing.T) {
	e := newTestEngine(t)
	e.Start()

	rec, err := e.RecordOutput(e.CurrentTime(), 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	render(e, 100)

	select {
	case <-rec.Done():
	default:
		t.Fatal("fixed duration recording still running")
	}
	clip, err := rec.Clip()
	if err != nil {
		t.Fatal(err)
	}
	if got := clip.Duration(); got != 50*time.Millisecond {
		t.Errorf("duration = %v, want 50ms", got)
	}
}

func TestRecordMidiClip(t *testing.T) {
	keys := &fakeIn{name: "Keystation"}
	e := newTestEngine(t, keys)
	if err := e.UpdateBeatsPerMinute(60); err != nil {
		t.Fatal(err)
	}
	if err := e.ConnectMidiDeviceToTrack(DefaultTrack, "Keystation"); err != nil {
		t.Fatal(err)
	}
	e.Start()

	rec, err := e.RecordMidiClip(DefaultTrack, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	keys.send(0x90, 60, 100)
	render(e, 500)
	keys.send(0x80, 60, 0)
	render(e, 500)
	if err := rec.Finalize(); err != nil {
		t.Fatal(err)
	}

	clip, err := rec.Clip()
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Frames) != 1000 {
		t.Errorf("rendered %d frames, want 1000", len(clip.Frames))
	}

	data, err := rec.EncodedData(EncodingMIDI)
	if err != nil {
		t.Fatalf("EncodedData: %v", err)
	}
	rd, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reading exported MIDI: %v", err)
	}
	if tc := rd.TempoChanges(); len(tc) == 0 || tc[0].BPM != 60 {
		t.Errorf("tempo changes = %v", tc)
	}
	if len(rd.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(rd.Tracks))
	}

	var tick uint32
	var onAt, offAt uint32
	var sawOn, sawOff bool
	for _, ev := range rd.Tracks[1] {
		tick += ev.Delta
		var ch, key, vel uint8
		switch {
		case ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0:
			sawOn, onAt = key == 60, tick
		case ev.Message.GetNoteOff(&ch, &key, &vel):
			sawOff, offAt = key == 60, tick
		}
	}
	if !sawOn || !sawOff {
		t.Fatalf("note events missing: on=%v off=%v", sawOn, sawOff)
	}
	// half a second at 60 BPM is half a beat
	if offAt-onAt != ticksPerQuarterNote/2 {
		t.Errorf("note length = %d ticks, want %d", offAt-onAt, ticksPerQuarterNote/2)
	}
}

func TestCloseFinishesRecordings(t *testing.T) {
	e := newTestEngine(t)
	rec, err := e.RecordOutput(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rec.Done():
	default:
		t.Error("recording survived engine close")
	}
	if _, err := e.RecordOutput(0, 0); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("record after close: got %v", err)
	}
}
