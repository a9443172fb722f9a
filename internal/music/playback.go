package music

import (
	"context"
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/theory"
)

// LoadClip decodes WAV data at the engine's sample rate.
func (a *App) LoadClip(data []byte) (*audio.Clip, error) {
	clip, err := audio.DecodeWAV(data, a.engine.SampleRate())
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("decode clip", "The sound could not be decoded."),
			ftag.With(ftag.InvalidArgument))
	}
	return clip, nil
}

// PlayClip plays the whole clip on track, starting together with every other
// clip requested in the same moment, and returns shortly before it ends.
func (a *App) PlayClip(ctx context.Context, track string, clip *audio.Clip) error {
	return a.playClip(ctx, track, clip, 0)
}

// PlayClipFor plays at most seconds of the clip.
func (a *App) PlayClipFor(ctx context.Context, track string, clip *audio.Clip, seconds float64) error {
	if seconds <= 0 {
		return fault.Wrap(fmt.Errorf("duration %v", seconds),
			fmsg.WithDesc("non-positive clip duration", "The duration must be positive."),
			ftag.With(ftag.InvalidArgument))
	}
	return a.playClip(ctx, track, clip, time.Duration(seconds*float64(time.Second)))
}

func (a *App) playClip(ctx context.Context, track string, clip *audio.Clip, limit time.Duration) error {
	ctx, done := a.commandContext(ctx)
	defer done()

	at, err := a.sync.Wait(ctx)
	if err != nil {
		return err
	}
	a.engine.Start()
	played, err := a.engine.PlayClip(track, clip, at, limit)
	if err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("play clip on %s", track)))
	}
	return sleep(ctx, played-a.lead)
}

// PlayNotes plays one note or, for a list, a chord, for a note duration at
// the current tempo. It returns once the notes finished.
func (a *App) PlayNotes(ctx context.Context, track string, notes any, duration theory.NoteDuration) error {
	resolved, err := theory.ResolveNoteGroup(notes)
	if err != nil {
		return err
	}
	return a.playResolved(ctx, track, resolved, duration.At(a.engine.BPM()))
}

// PlayNotesFor is PlayNotes with a duration in seconds.
func (a *App) PlayNotesFor(ctx context.Context, track string, notes any, seconds float64) error {
	if seconds <= 0 {
		return fault.Wrap(fmt.Errorf("duration %v", seconds),
			fmsg.WithDesc("non-positive note duration", "The duration must be positive."),
			ftag.With(ftag.InvalidArgument))
	}
	resolved, err := theory.ResolveNoteGroup(notes)
	if err != nil {
		return err
	}
	return a.playResolved(ctx, track, resolved, time.Duration(seconds*float64(time.Second)))
}

func (a *App) playResolved(ctx context.Context, track string, notes []int, d time.Duration) error {
	ctx, done := a.commandContext(ctx)
	defer done()

	a.engine.Start()
	at := a.engine.CurrentTime()
	var longest time.Duration
	for _, n := range notes {
		played, err := a.engine.PlayNote(track, n, at, d)
		if err != nil {
			return fault.Wrap(err,
				fmsg.WithDesc(fmt.Sprintf("play note %d on %s", n, track), fmt.Sprintf("Note %d cannot be played.", n)),
				ftag.With(ftag.InvalidArgument))
		}
		if played > longest {
			longest = played
		}
	}
	return sleep(ctx, longest)
}

// SetBPM changes the tempo.
func (a *App) SetBPM(bpm float64) error {
	if err := a.engine.UpdateBeatsPerMinute(bpm); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc("set tempo", "Tempo must be a positive number."),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}

// SetInstrument switches the track's instrument.
func (a *App) SetInstrument(track, name string) error {
	if err := a.engine.UpdateInstrument(track, name); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc(fmt.Sprintf("set instrument %q on %s", name, track), fmt.Sprintf("Unknown instrument %s.", name)),
			ftag.With(ftag.NotFound))
	}
	return nil
}

// Scale returns the 8 notes of a scale on root, which may be a note name or
// a number.
func (a *App) Scale(root any, scaleType string) ([]int, error) {
	r, err := theory.ResolveValue(root)
	if err != nil {
		return nil, err
	}
	t, err := theory.ParseScaleType(scaleType)
	if err != nil {
		return nil, err
	}
	return theory.GenerateScale(r, t)
}

// Chord returns the notes of a chord on root.
func (a *App) Chord(root any, chordType string) ([]int, error) {
	r, err := theory.ResolveValue(root)
	if err != nil {
		return nil, err
	}
	t, err := theory.ParseChordType(chordType)
	if err != nil {
		return nil, err
	}
	return theory.GenerateChord(r, t)
}

// MIDINote resolves a note name to its MIDI number.
func (a *App) MIDINote(token string) (int, error) {
	return theory.ResolveNote(token)
}

// Rest waits for d. StopAll cuts the wait short.
func (a *App) Rest(ctx context.Context, d time.Duration) error {
	ctx, done := a.commandContext(ctx)
	defer done()
	return sleep(ctx, d)
}
