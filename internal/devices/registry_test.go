package devices

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

type fakeEngine struct {
	midi        []string
	audio       []string
	instruments []string
	midiErr     error
	calls       []string
}

func (f *fakeEngine) AvailableMidiDevices() ([]string, error) { return f.midi, f.midiErr }

func (f *fakeEngine) AvailableAudioInputDevices() ([]string, error) { return f.audio, nil }

func (f *fakeEngine) AvailableInstruments(context.Context, string) ([]string, error) {
	return f.instruments, nil
}

func (f *fakeEngine) ConnectMidiDeviceToTrack(track, device string) error {
	f.calls = append(f.calls, fmt.Sprintf("midi %s %s", track, device))
	return nil
}

func (f *fakeEngine) ConnectAudioInputDeviceToTrack(track, device string) error {
	f.calls = append(f.calls, fmt.Sprintf("audio %s %s", track, device))
	return nil
}

func (f *fakeEngine) DisconnectMidiDeviceFromTrack(track string) error {
	f.calls = append(f.calls, "unmidi "+track)
	return nil
}

func (f *fakeEngine) DisconnectAudioInputDeviceFromTrack(track string) error {
	f.calls = append(f.calls, "unaudio "+track)
	return nil
}

func (f *fakeEngine) UpdateInstrument(track, instrument string) error {
	f.calls = append(f.calls, fmt.Sprintf("instrument %s %s", track, instrument))
	return nil
}

func newReadyRegistry(t *testing.T, eng *fakeEngine) *Registry {
	t.Helper()
	r := NewRegistry(eng, "", nil)
	r.Start(context.Background())
	<-r.Ready()
	return r
}

func TestOnlyHeadersBeforeEnumeration(t *testing.T) {
	r := NewRegistry(&fakeEngine{midi: []string{"Keys"}}, "", nil)
	opts := r.Options()
	if len(opts) != 2 || opts[0] != MIDIHeader || opts[1] != AudioHeader {
		t.Errorf("options = %v", opts)
	}
	if err := r.Connect("s1", "Keys"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("connect before enumeration: got %v", err)
	}
}

func TestHeadersAreNeverConnectable(t *testing.T) {
	eng := &fakeEngine{midi: []string{MIDIHeader, "Keys"}, audio: []string{AudioHeader}}
	r := newReadyRegistry(t, eng)

	for _, token := range []string{MIDIHeader, AudioHeader} {
		err := r.Connect("s1", token)
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("%s: got %v", token, err)
		}
		if ftag.Get(err) != ftag.NotFound {
			t.Errorf("%s: tag %v", token, ftag.Get(err))
		}
	}
	if len(eng.calls) != 0 {
		t.Errorf("engine touched: %v", eng.calls)
	}
}

func TestConnectMIDI(t *testing.T) {
	eng := &fakeEngine{midi: []string{"Keys"}, audio: []string{"Track Loopback"}, instruments: []string{"Organ", "Sine"}}
	r := newReadyRegistry(t, eng)

	if got := r.MIDIDevices(); len(got) != 2 || got[1] != "Keys (MIDI)" {
		t.Fatalf("MIDIDevices = %v", got)
	}
	if err := r.Connect("s1", "Keys (MIDI)"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	want := []string{"midi s1 Keys", "instrument s1 Organ"}
	if fmt.Sprint(eng.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", eng.calls, want)
	}
	if c := r.Connection("s1"); c.Kind != MIDI || c.Device != "Keys" {
		t.Errorf("connection = %+v", c)
	}
}

func TestKindIsPerTrack(t *testing.T) {
	eng := &fakeEngine{midi: []string{"Keys"}, audio: []string{"Track Loopback"}}
	r := newReadyRegistry(t, eng)

	if err := r.Connect("s1", "Keys"); err != nil {
		t.Fatal(err)
	}
	if err := r.Connect("s2", "Track Loopback"); err != nil {
		t.Fatal(err)
	}
	if r.Kind("s1") != MIDI || r.Kind("s2") != Audio || r.Kind("s3") != None {
		t.Errorf("kinds = %v %v %v", r.Kind("s1"), r.Kind("s2"), r.Kind("s3"))
	}
}

func TestDisconnectChecksBothKinds(t *testing.T) {
	eng := &fakeEngine{midi: []string{"Keys"}, audio: []string{"Track Loopback"}}
	r := newReadyRegistry(t, eng)
	if err := r.Connect("s1", "Keys"); err != nil {
		t.Fatal(err)
	}
	eng.calls = nil

	if err := r.Disconnect("s1"); err != nil {
		t.Fatal(err)
	}
	want := []string{"unaudio s1", "unmidi s1"}
	if fmt.Sprint(eng.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", eng.calls, want)
	}
	if r.Kind("s1") != None {
		t.Errorf("kind after disconnect = %v", r.Kind("s1"))
	}
}

func TestEnumerationFailureLeavesHeaders(t *testing.T) {
	eng := &fakeEngine{midiErr: errors.New("no driver"), audio: []string{"Track Loopback"}}
	r := newReadyRegistry(t, eng)

	if got := r.MIDIDevices(); len(got) != 1 {
		t.Errorf("MIDIDevices = %v, want header only", got)
	}
	if got := r.AudioDevices(); len(got) != 2 {
		t.Errorf("AudioDevices = %v", got)
	}

	eng.calls = nil
	if err := r.Disconnect("s1"); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(eng.calls) != "[unaudio s1]" {
		t.Errorf("calls = %v", eng.calls)
	}
}
