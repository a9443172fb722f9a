package audio

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// LoopbackDevice is the audio input every track offers: it records what the
// track itself renders.
const LoopbackDevice = "Track Loopback"

// midiHub owns one open MIDI input and fans its messages out to every
// track connected to it.
type midiHub struct {
	name     string
	port     drivers.In
	stop     func()
	tracks   map[string]bool
	keepOpen bool
}

func (h *midiHub) close() {
	if h.stop != nil {
		h.stop()
	}
	if !h.keepOpen {
		_ = h.port.Close()
	}
}

type virtualInput struct {
	driver *rtmididrv.Driver
	port   drivers.In
}

func openVirtualInput(name string) (*virtualInput, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	port, err := driver.OpenVirtualIn(name)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to create virtual MIDI port: %w", err)
	}
	return &virtualInput{driver: driver, port: port}, nil
}

func (v *virtualInput) close() {
	_ = v.port.Close()
	v.driver.Close()
}

// AvailableMidiDevices lists MIDI inputs by name, sorted.
func (e *Engine) AvailableMidiDevices() ([]string, error) {
	ports, err := e.midiPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AvailableAudioInputDevices lists audio inputs. Only the track loopback is
// offered.
func (e *Engine) AvailableAudioInputDevices() ([]string, error) {
	return []string{LoopbackDevice}, nil
}

func (e *Engine) midiPorts() (map[string]drivers.In, error) {
	ins, err := e.midiInputs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	ports := make(map[string]drivers.In, len(ins)+1)
	for _, in := range ins {
		ports[in.String()] = in
	}
	e.mu.Lock()
	if e.virtual != nil {
		ports[e.virtual.port.String()] = e.virtual.port
	}
	e.mu.Unlock()
	return ports, nil
}

// ConnectMidiDeviceToTrack routes a MIDI input into a track. Any device the
// track was using before, MIDI or audio, is disconnected first.
func (e *Engine) ConnectMidiDeviceToTrack(trackID, device string) error {
	ports, err := e.midiPorts()
	if err != nil {
		return err
	}
	port, ok := ports[device]
	if !ok {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, device)
	}

	e.mu.Lock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	stale := e.detachMIDILocked(t)
	t.audioDevice = ""
	h, exists := e.hubs[device]
	if exists {
		h.tracks[trackID] = true
		t.midiDevice = device
	}
	e.mu.Unlock()
	if stale != nil {
		stale.close()
	}
	if exists {
		return nil
	}

	h = &midiHub{
		name:     device,
		port:     port,
		tracks:   map[string]bool{trackID: true},
		keepOpen: e.isVirtual(port),
	}
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return fmt.Errorf("failed to open MIDI port %s: %w", device, err)
		}
	}
	stop, err := port.Listen(func(data []byte, _ int32) {
		e.handleMIDI(device, data)
	}, drivers.ListenConfig{})
	if err != nil {
		if !h.keepOpen {
			_ = port.Close()
		}
		return fmt.Errorf("failed to listen to MIDI port: %w", err)
	}
	h.stop = stop

	e.mu.Lock()
	other, raced := e.hubs[device]
	if raced {
		// another connect opened the same port meanwhile
		other.tracks[trackID] = true
	} else {
		e.hubs[device] = h
	}
	t.midiDevice = device
	e.mu.Unlock()
	if raced {
		h.stop()
	}
	e.log.WithField("track", trackID).WithField("device", device).Info("MIDI device connected")
	return nil
}

// DisconnectMidiDeviceFromTrack stops routing MIDI into a track. It is benign
// when nothing is connected.
func (e *Engine) DisconnectMidiDeviceFromTrack(trackID string) error {
	e.mu.Lock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	stale := e.detachMIDILocked(t)
	e.mu.Unlock()
	if stale != nil {
		stale.close()
	}
	return nil
}

// ConnectAudioInputDeviceToTrack selects the audio input recorded by
// RecordAudioClip. A connected MIDI device is released first.
func (e *Engine) ConnectAudioInputDeviceToTrack(trackID, device string) error {
	if device != LoopbackDevice {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, device)
	}
	e.mu.Lock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	stale := e.detachMIDILocked(t)
	t.audioDevice = device
	e.mu.Unlock()
	if stale != nil {
		stale.close()
	}
	return nil
}

// DisconnectAudioInputDeviceFromTrack clears the track's audio input.
func (e *Engine) DisconnectAudioInputDeviceFromTrack(trackID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(trackID)
	if err != nil {
		return err
	}
	t.audioDevice = ""
	return nil
}

// detachMIDILocked unsubscribes t from its hub. The hub is returned when it
// has no tracks left and must be closed once the lock is released.
func (e *Engine) detachMIDILocked(t *track) *midiHub {
	if t.midiDevice == "" {
		return nil
	}
	h := e.hubs[t.midiDevice]
	t.midiDevice = ""
	if h == nil {
		return nil
	}
	delete(h.tracks, t.id)
	if len(h.tracks) > 0 {
		return nil
	}
	delete(e.hubs, h.name)
	return h
}

func (e *Engine) isVirtual(port drivers.In) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.virtual != nil && e.virtual.port == port
}

// handleMIDI plays note messages from device on every subscribed track and
// feeds them to active MIDI recordings.
func (e *Engine) handleMIDI(device string, data []byte) {
	if len(data) < 3 {
		return
	}
	status := data[0]
	msgType := status & 0xF0
	note, velocity := data[1], data[2]

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.hubs[device]
	if h == nil {
		return
	}
	now := e.frames
	for id := range h.tracks {
		t := e.tracks[id]
		if t == nil {
			continue
		}
		switch msgType {
		case 0x90: // Note On
			if velocity > 0 {
				t.voices = append(t.voices, newVoice(t.instrument, note, velocity, now, -1, e.sampleRate))
			} else {
				noteOff(t.voices, note, now)
			}
		case 0x80: // Note Off
			noteOff(t.voices, note, now)
		case 0xB0: // Control Change
			if note == 123 { // All notes off
				for _, v := range t.voices {
					if !v.releasing && v.release < 0 {
						v.release = now
					}
				}
			}
			continue
		default:
			continue
		}
		for _, r := range t.recorders {
			if r.kind == RecordMIDI {
				r.captureMIDILocked(now, msgType, note, velocity)
			}
		}
	}
}
