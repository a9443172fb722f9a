package audio

import "errors"

var (
	ErrTrackNotFound       = errors.New("track not found")
	ErrUnknownEffect       = errors.New("unknown effect")
	ErrUnknownParameter    = errors.New("unknown effect parameter")
	ErrEffectExists        = errors.New("effect already applied")
	ErrEffectNotApplied    = errors.New("effect not applied")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrNoInputDevice       = errors.New("no input device connected")
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrNoteOutOfRange      = errors.New("note out of MIDI range")
	ErrInvalidClip         = errors.New("invalid clip data")
	ErrNotFinalized        = errors.New("recording not finalized")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrEngineClosed        = errors.New("engine closed")
)
