package music

import (
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/recording"
)

func parseEffect(name string) (audio.EffectKind, error) {
	kind, err := audio.ParseEffectKind(name)
	if err != nil {
		return 0, fault.Wrap(err,
			fmsg.WithDesc(fmt.Sprintf("effect %q", name), fmt.Sprintf("Unknown effect %s.", name)),
			ftag.With(ftag.InvalidArgument))
	}
	return kind, nil
}

// ApplyEffect attaches the named effect to track.
func (a *App) ApplyEffect(track, name string) error {
	kind, err := parseEffect(name)
	if err != nil {
		return err
	}
	return a.effects.ApplyEffect(track, kind)
}

// SetEffect sets every parameter of the named effect to level.
func (a *App) SetEffect(track, name string, level float64) error {
	kind, err := parseEffect(name)
	if err != nil {
		return err
	}
	return a.effects.ConfigureEffect(track, kind, level)
}

// RemoveEffect detaches the named effect.
func (a *App) RemoveEffect(track, name string) error {
	kind, err := parseEffect(name)
	if err != nil {
		return err
	}
	return a.effects.RemoveEffect(track, kind)
}

// ClearEffects detaches every effect of track.
func (a *App) ClearEffects(track string) error {
	return a.effects.ClearEffects(track)
}

// Preset turns a preset on or off.
func (a *App) Preset(track, name string, on bool) error {
	if on {
		return a.effects.ApplyPreset(track, name)
	}
	return a.effects.RemovePreset(track, name)
}

// SetPanning sets the track's left to right ratio.
func (a *App) SetPanning(track string, ratio float64) error {
	return a.effects.SetPanning(track, ratio)
}

// SetTrackVolume sets the track volume in percent.
func (a *App) SetTrackVolume(track string, percent float64) error {
	return a.effects.SetTrackVolume(track, percent)
}

// SetMasterVolume sets the master volume in percent.
func (a *App) SetMasterVolume(percent float64) error {
	return a.effects.SetMasterVolume(percent)
}

// SetInputDevice connects track to the device named by token. An empty token
// disconnects.
func (a *App) SetInputDevice(track, token string) error {
	if token == "" {
		return a.devices.Disconnect(track)
	}
	return a.devices.Connect(track, token)
}

// StartRecording records until StopRecording.
func (a *App) StartRecording(track string, src recording.Source) error {
	return a.recordings.Start(track, src, 0)
}

// RecordFor records for seconds and stops on its own.
func (a *App) RecordFor(track string, src recording.Source, seconds float64) error {
	if seconds <= 0 {
		return fault.Wrap(fmt.Errorf("duration %v", seconds),
			fmsg.WithDesc("non-positive recording duration", "The duration must be positive."),
			ftag.With(ftag.InvalidArgument))
	}
	return a.recordings.Start(track, src, time.Duration(seconds*float64(time.Second)))
}

// StopRecording finalizes the track's recording.
func (a *App) StopRecording(track string) error {
	return a.recordings.Stop(track)
}

// LastRecordedClip returns the track's last finished recording as a clip.
func (a *App) LastRecordedClip(track string) (*audio.Clip, error) {
	h, err := a.recordings.LastClip(track)
	if err != nil {
		return nil, err
	}
	return h.Clip()
}

// LastRecordedData exports the track's last recording.
func (a *App) LastRecordedData(track string, enc audio.Encoding) ([]byte, error) {
	h, err := a.recordings.LastClip(track)
	if err != nil {
		return nil, err
	}
	return h.EncodedData(enc)
}
