// Package script runs block programs written as YAML. Every sprite's command
// list runs in its own goroutine against one App, the way a block runtime
// runs one thread per sprite.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/music"
	"github.com/icco/beatsblox/internal/recording"
	"github.com/icco/beatsblox/internal/theory"
)

var ErrUnknownOp = errors.New("unknown command")

// Op names a command.
type Op string

const (
	OpInstrument    Op = "instrument"
	OpNotes         Op = "notes"
	OpScale         Op = "scale"
	OpChord         Op = "chord"
	OpClip          Op = "clip"
	OpRest          Op = "rest"
	OpBPM           Op = "bpm"
	OpEffect        Op = "effect"
	OpSetEffect     Op = "set-effect"
	OpRemoveEffect  Op = "remove-effect"
	OpClearEffects  Op = "clear-effects"
	OpPreset        Op = "preset"
	OpPan           Op = "pan"
	OpVolume        Op = "volume"
	OpMasterVolume  Op = "master-volume"
	OpDevice        Op = "device"
	OpRecord        Op = "record"
	OpStopRecording Op = "stop-recording"
	OpSaveRecording Op = "save-recording"
	OpStopAll       Op = "stop-all"
)

var knownOps = map[Op]bool{
	OpInstrument: true, OpNotes: true, OpScale: true, OpChord: true,
	OpClip: true, OpRest: true, OpBPM: true, OpEffect: true,
	OpSetEffect: true, OpRemoveEffect: true, OpClearEffects: true,
	OpPreset: true, OpPan: true, OpVolume: true, OpMasterVolume: true,
	OpDevice: true, OpRecord: true, OpStopRecording: true,
	OpSaveRecording: true, OpStopAll: true,
}

// Command is one block. Which fields matter depends on Op.
type Command struct {
	Op Op `yaml:"op"`

	// Name is an instrument, effect, preset or device.
	Name string `yaml:"name,omitempty"`

	// Notes is a note name, a number or a list of them.
	Notes any    `yaml:"notes,omitempty"`
	Root  any    `yaml:"root,omitempty"`
	Type  string `yaml:"type,omitempty"`

	// Duration is a note duration name such as Quarter.
	Duration string  `yaml:"duration,omitempty"`
	Seconds  float64 `yaml:"seconds,omitempty"`
	Level    float64 `yaml:"level,omitempty"`
	On       *bool   `yaml:"on,omitempty"`

	File     string `yaml:"file,omitempty"`
	Source   string `yaml:"source,omitempty"`
	Encoding string `yaml:"encoding,omitempty"`
}

// Sprite is a named command list.
type Sprite struct {
	Name     string    `yaml:"name"`
	Repeat   int       `yaml:"repeat,omitempty"`
	Commands []Command `yaml:"commands"`
}

// Script is a whole program.
type Script struct {
	BPM     float64  `yaml:"bpm,omitempty"`
	Sprites []Sprite `yaml:"sprites"`

	// dir resolves relative file names.
	dir string
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes and checks a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	seen := make(map[string]bool)
	for i, sp := range s.Sprites {
		if sp.Name == "" {
			return nil, fmt.Errorf("sprite %d has no name", i)
		}
		if seen[sp.Name] {
			return nil, fmt.Errorf("duplicate sprite %q", sp.Name)
		}
		seen[sp.Name] = true
		for j, c := range sp.Commands {
			if !knownOps[c.Op] {
				return nil, fmt.Errorf("sprite %s command %d: %w: %q", sp.Name, j, ErrUnknownOp, c.Op)
			}
		}
	}
	return &s, nil
}

// SpriteNames returns the sprite names in order.
func (s *Script) SpriteNames() []string {
	names := make([]string, len(s.Sprites))
	for i, sp := range s.Sprites {
		names[i] = sp.Name
	}
	return names
}

// Runner executes scripts against an App.
type Runner struct {
	app *music.App
	log *logrus.Entry
}

// NewRunner creates a runner. A nil log uses the standard logger.
func NewRunner(app *music.App, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.WithField("component", "script")
	}
	return &Runner{app: app, log: log}
}

// Run creates a track per sprite and runs all sprites concurrently. The
// first failing sprite cancels the others. A stop-all, from a block or from
// outside, ends every sprite and is not an error.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	stopped := r.app.Stopped()
	clips, err := r.loadClips(s)
	if err != nil {
		return err
	}
	if err := r.app.OnOpenRole(s.SpriteNames()); err != nil {
		return err
	}
	if s.BPM > 0 {
		if err := r.app.SetBPM(s.BPM); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sp := range s.Sprites {
		g.Go(func() error {
			return r.runSprite(ctx, stopped, s, sp, clips)
		})
	}
	return g.Wait()
}

func (r *Runner) loadClips(s *Script) (map[string]*audio.Clip, error) {
	clips := make(map[string]*audio.Clip)
	for _, sp := range s.Sprites {
		for _, c := range sp.Commands {
			if c.Op != OpClip || clips[c.File] != nil {
				continue
			}
			data, err := os.ReadFile(s.path(c.File))
			if err != nil {
				return nil, fault.Wrap(err,
					fmsg.WithDesc("read clip "+c.File, fmt.Sprintf("Sound file %s is missing.", c.File)),
					ftag.With(ftag.NotFound))
			}
			clip, err := r.app.LoadClip(data)
			if err != nil {
				return nil, fault.Wrap(err, fmsg.With("load clip "+c.File))
			}
			clips[c.File] = clip
		}
	}
	return clips, nil
}

func (s *Script) path(name string) string {
	if filepath.IsAbs(name) || s.dir == "" {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (r *Runner) runSprite(ctx context.Context, stopped <-chan struct{}, s *Script, sp Sprite, clips map[string]*audio.Clip) error {
	log := r.log.WithField("sprite", sp.Name)
	rounds := max(sp.Repeat, 1)
	for round := 0; round < rounds; round++ {
		for i, c := range sp.Commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			if isClosed(stopped) {
				log.Info("stopped")
				return nil
			}
			log.WithField("op", c.Op).Debug("command")
			if err := r.exec(ctx, s, sp.Name, c, clips); err != nil {
				if ctx.Err() == nil && isClosed(stopped) {
					log.Info("stopped")
					return nil
				}
				return fault.Wrap(err, fmsg.With(fmt.Sprintf("sprite %s command %d (%s)", sp.Name, i, c.Op)))
			}
		}
	}
	log.Info("finished")
	return nil
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

func (r *Runner) exec(ctx context.Context, s *Script, track string, c Command, clips map[string]*audio.Clip) error {
	a := r.app
	switch c.Op {
	case OpInstrument:
		return a.SetInstrument(track, c.Name)
	case OpNotes:
		return r.playNotes(ctx, track, c.Notes, c)
	case OpScale:
		notes, err := a.Scale(c.Root, c.Type)
		if err != nil {
			return err
		}
		for _, n := range notes {
			if err := r.playNotes(ctx, track, n, c); err != nil {
				return err
			}
		}
		return nil
	case OpChord:
		notes, err := a.Chord(c.Root, c.Type)
		if err != nil {
			return err
		}
		return r.playNotes(ctx, track, notes, c)
	case OpClip:
		if c.Seconds > 0 {
			return a.PlayClipFor(ctx, track, clips[c.File], c.Seconds)
		}
		return a.PlayClip(ctx, track, clips[c.File])
	case OpRest:
		return rest(ctx, a, c)
	case OpBPM:
		return a.SetBPM(c.Level)
	case OpEffect:
		return a.ApplyEffect(track, c.Name)
	case OpSetEffect:
		return a.SetEffect(track, c.Name, c.Level)
	case OpRemoveEffect:
		return a.RemoveEffect(track, c.Name)
	case OpClearEffects:
		return a.ClearEffects(track)
	case OpPreset:
		return a.Preset(track, c.Name, c.On == nil || *c.On)
	case OpPan:
		return a.SetPanning(track, c.Level)
	case OpVolume:
		return a.SetTrackVolume(track, c.Level)
	case OpMasterVolume:
		return a.SetMasterVolume(c.Level)
	case OpDevice:
		return a.SetInputDevice(track, c.Name)
	case OpRecord:
		src, err := parseSource(c.Source)
		if err != nil {
			return err
		}
		if c.Seconds > 0 {
			return a.RecordFor(track, src, c.Seconds)
		}
		return a.StartRecording(track, src)
	case OpStopRecording:
		return a.StopRecording(track)
	case OpSaveRecording:
		enc, err := parseEncoding(c.Encoding)
		if err != nil {
			return err
		}
		data, err := a.LastRecordedData(track, enc)
		if err != nil {
			return err
		}
		return os.WriteFile(s.path(c.File), data, 0644)
	case OpStopAll:
		a.StopAll()
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownOp, c.Op)
}

func (r *Runner) playNotes(ctx context.Context, track string, notes any, c Command) error {
	if c.Seconds > 0 {
		return r.app.PlayNotesFor(ctx, track, notes, c.Seconds)
	}
	d := theory.Quarter
	if c.Duration != "" {
		var err error
		if d, err = theory.ParseNoteDuration(c.Duration); err != nil {
			return err
		}
	}
	return r.app.PlayNotes(ctx, track, notes, d)
}

// rest waits for seconds, or for a note duration at the current tempo.
func rest(ctx context.Context, a *music.App, c Command) error {
	d := theory.Quarter.At(a.Engine().BPM())
	if c.Seconds > 0 {
		d = time.Duration(c.Seconds * float64(time.Second))
	} else if c.Duration != "" {
		nd, err := theory.ParseNoteDuration(c.Duration)
		if err != nil {
			return err
		}
		d = nd.At(a.Engine().BPM())
	}
	return a.Rest(ctx, d)
}

func parseSource(s string) (recording.Source, error) {
	switch strings.ToLower(s) {
	case "", "input":
		return recording.Input, nil
	case "output":
		return recording.Output, nil
	}
	return 0, fault.Wrap(fmt.Errorf("source %q", s),
		fmsg.WithDesc("unknown recording source", "Record from input or output."),
		ftag.With(ftag.InvalidArgument))
}

func parseEncoding(s string) (audio.Encoding, error) {
	switch strings.ToLower(s) {
	case "", "wav":
		return audio.EncodingWAV, nil
	case "midi", "mid":
		return audio.EncodingMIDI, nil
	}
	return 0, fault.Wrap(fmt.Errorf("encoding %q", s),
		fmsg.WithDesc("unknown encoding", "Save as wav or midi."),
		ftag.With(ftag.InvalidArgument))
}
