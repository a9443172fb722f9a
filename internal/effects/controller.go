// Package effects manages effect instances on tracks and the master bus. An
// effect is attached with the engine defaults before it is configured; each
// (track, kind) pair is either Detached or Attached.
package effects

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/sirupsen/logrus"

	"github.com/icco/beatsblox/internal/audio"
)

// Engine is the slice of the audio engine the controller drives.
type Engine interface {
	AvailableEffectParameters(kind audio.EffectKind) ([]audio.Parameter, error)
	ApplyTrackEffect(track, name string, kind audio.EffectKind) error
	UpdateTrackEffect(track, name string, options map[string]float64) error
	RemoveTrackEffect(track, name string) error
	ApplyMasterEffect(name string, kind audio.EffectKind) error
	UpdateMasterEffect(name string, options map[string]float64) error
}

// State is the attach state of one effect kind on one track.
type State int

const (
	Detached State = iota
	Attached
)

func (s State) String() string {
	if s == Attached {
		return "Attached"
	}
	return "Detached"
}

const (
	panningParam = "leftToRightRatio"
	volumeParam  = "intensity"
)

// master is the state key used for the master bus. Track ids come from the
// host and never contain a NUL byte.
const master = "\x00master"

// Controller applies, configures and removes effects.
type Controller struct {
	engine Engine
	log    *logrus.Entry

	mu       sync.Mutex
	attached map[string]map[audio.EffectKind]bool
}

// NewController creates a Controller driving engine.
func NewController(engine Engine, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.WithField("component", "effects")
	}
	return &Controller{
		engine:   engine,
		log:      log,
		attached: make(map[string]map[audio.EffectKind]bool),
	}
}

// State reports whether kind is attached to track.
func (c *Controller) State(track string, kind audio.EffectKind) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached[track][kind] {
		return Attached
	}
	return Detached
}

// Attached lists the kinds attached to track, ordered by kind code.
func (c *Controller) Attached(track string) []audio.EffectKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]audio.EffectKind, 0, len(c.attached[track]))
	for k := range c.attached[track] {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ApplyEffect attaches kind to track with the engine defaults. Applying an
// attached effect again does nothing.
func (c *Controller) ApplyEffect(track string, kind audio.EffectKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachLocked(track, kind)
}

// ConfigureEffect sets every parameter the engine declares for kind to value,
// attaching the effect first if needed.
func (c *Controller) ConfigureEffect(track string, kind audio.EffectKind, value float64) error {
	params, err := c.engine.AvailableEffectParameters(kind)
	if err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("parameters of %s", kind)))
	}
	options := make(map[string]float64, len(params))
	for _, p := range params {
		options[p.Name] = value
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(track, kind, options)
}

// RemoveEffect detaches kind from track. Removing a detached effect is benign.
func (c *Controller) RemoveEffect(track string, kind audio.EffectKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detachLocked(track, kind)
}

// ClearEffects detaches every effect on track.
func (c *Controller) ClearEffects(track string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind := range c.attached[track] {
		if err := c.detachLocked(track, kind); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPreset attaches the preset's effect and sets its parameters.
func (c *Controller) ApplyPreset(track, name string) error {
	p, err := ParsePreset(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(track, p.Kind(), p.Parameters())
}

// RemovePreset detaches the effect kind behind the preset.
func (c *Controller) RemovePreset(track, name string) error {
	p, err := ParsePreset(name)
	if err != nil {
		return err
	}
	return c.RemoveEffect(track, p.Kind())
}

// SetPanning sets the track's left to right ratio, 0 hard left, 1 hard right.
func (c *Controller) SetPanning(track string, ratio float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(track, audio.Panning, map[string]float64{panningParam: ratio})
}

// SetTrackVolume sets a track's volume in percent.
func (c *Controller) SetTrackVolume(track string, percent float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(track, audio.Volume, map[string]float64{volumeParam: percent * 0.01})
}

// SetMasterVolume sets the master bus volume in percent.
func (c *Controller) SetMasterVolume(percent float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached[master][audio.Volume] {
		if err := c.engine.ApplyMasterEffect(audio.Volume.String(), audio.Volume); err != nil {
			return fault.Wrap(err, fmsg.With("apply master volume"))
		}
		c.markLocked(master, audio.Volume, true)
	}
	if err := c.engine.UpdateMasterEffect(audio.Volume.String(), map[string]float64{volumeParam: percent * 0.01}); err != nil {
		return fault.Wrap(err, fmsg.With("update master volume"))
	}
	return nil
}

// Forget drops the state of a track whose engine track was cleared.
func (c *Controller) Forget(track string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attached, track)
}

func (c *Controller) attachLocked(track string, kind audio.EffectKind) error {
	if c.attached[track][kind] {
		return nil
	}
	if err := c.engine.ApplyTrackEffect(track, kind.String(), kind); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("apply %s to %s", kind, track)))
	}
	c.markLocked(track, kind, true)
	c.log.WithFields(logrus.Fields{"track": track, "effect": kind}).Debug("effect attached")
	return nil
}

func (c *Controller) updateLocked(track string, kind audio.EffectKind, options map[string]float64) error {
	if err := c.attachLocked(track, kind); err != nil {
		return err
	}
	if err := c.engine.UpdateTrackEffect(track, kind.String(), options); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("update %s on %s", kind, track)))
	}
	return nil
}

func (c *Controller) detachLocked(track string, kind audio.EffectKind) error {
	if err := c.engine.RemoveTrackEffect(track, kind.String()); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("remove %s from %s", kind, track)))
	}
	c.markLocked(track, kind, false)
	return nil
}

func (c *Controller) markLocked(track string, kind audio.EffectKind, on bool) {
	m := c.attached[track]
	if m == nil {
		if !on {
			return
		}
		m = make(map[audio.EffectKind]bool)
		c.attached[track] = m
	}
	if on {
		m[kind] = true
	} else {
		delete(m, kind)
	}
}
