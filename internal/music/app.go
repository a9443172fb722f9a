// Package music is the command surface a block program drives. Every command
// is scoped to the track of the sprite that issued it.
package music

import (
	"context"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/sirupsen/logrus"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/barrier"
	"github.com/icco/beatsblox/internal/devices"
	"github.com/icco/beatsblox/internal/effects"
	"github.com/icco/beatsblox/internal/recording"
)

// DefaultPlaybackLead is how much earlier than the clip end a clip command
// returns, so the next clip of the same sprite can be queued seamlessly.
const DefaultPlaybackLead = 20 * time.Millisecond

// Options configure an App.
type Options struct {
	// Catalog is the instrument catalog location (path or URL).
	Catalog string

	SyncQuantum  time.Duration
	SyncMaxWait  time.Duration
	PlaybackLead time.Duration

	Logger *logrus.Entry
}

// App wires the engine to the synchronizer, effect controller, device
// registry and recording sessions.
type App struct {
	engine     *audio.Engine
	sync       *barrier.Synchronizer
	effects    *effects.Controller
	devices    *devices.Registry
	recordings *recording.Manager
	lead       time.Duration
	log        *logrus.Entry

	mu     sync.Mutex
	stop   context.Context
	cancel context.CancelFunc
}

// New creates an App driving engine. The engine clock is started right away.
func New(engine *audio.Engine, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "music")
	}
	if opts.PlaybackLead <= 0 {
		opts.PlaybackLead = DefaultPlaybackLead
	}
	log := opts.Logger
	reg := devices.NewRegistry(engine, opts.Catalog, log.WithField("component", "devices"))

	a := &App{
		engine: engine,
		sync: barrier.New(engine, barrier.Options{
			Quantum: opts.SyncQuantum,
			MaxWait: opts.SyncMaxWait,
			Logger:  log.WithField("component", "barrier"),
		}),
		effects:    effects.NewController(engine, log.WithField("component", "effects")),
		devices:    reg,
		recordings: recording.NewManager(engine, reg, log.WithField("component", "recording")),
		lead:       opts.PlaybackLead,
		log:        log,
	}
	a.stop, a.cancel = context.WithCancel(context.Background())
	engine.Start()
	return a
}

// Start enumerates devices and instruments in the background.
func (a *App) Start(ctx context.Context) {
	a.devices.Start(ctx)
}

// Engine returns the audio engine.
func (a *App) Engine() *audio.Engine { return a.engine }

// Devices returns the device registry.
func (a *App) Devices() *devices.Registry { return a.devices }

// Effects returns the effect controller.
func (a *App) Effects() *effects.Controller { return a.effects }

// Recordings returns the recording sessions.
func (a *App) Recordings() *recording.Manager { return a.recordings }

// Synchronizer returns the playback barrier.
func (a *App) Synchronizer() *barrier.Synchronizer { return a.sync }

// OnNewSprite creates the sprite's track.
func (a *App) OnNewSprite(id string) error {
	if err := a.engine.CreateTrack(id); err != nil {
		return fault.Wrap(err, fmsg.With("create track "+id))
	}
	return nil
}

// OnOpenRole creates a track for every sprite of a freshly opened project.
func (a *App) OnOpenRole(sprites []string) error {
	for _, id := range sprites {
		if err := a.OnNewSprite(id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops the clock, silences every track and cancels commands that
// are still waiting on playback.
func (a *App) StopAll() {
	a.engine.Stop()
	a.engine.ClearAllTracks()

	a.mu.Lock()
	a.cancel()
	a.stop, a.cancel = context.WithCancel(context.Background())
	a.mu.Unlock()
	a.log.Info("stopped all")
}

// Stopped is closed by the next StopAll or by Close.
func (a *App) Stopped() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop.Done()
}

// Close stops running recordings and cancels pending commands. The engine is
// left to its owner.
func (a *App) Close() {
	a.recordings.StopAll()
	a.mu.Lock()
	a.cancel()
	a.mu.Unlock()
}

// commandContext derives a context that is also cancelled by StopAll.
func (a *App) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	a.mu.Lock()
	stop := a.stop
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(stop, cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

// Status is a snapshot for monitors.
type Status struct {
	Running bool
	Time    time.Duration
	BPM     float64
	Tracks  []audio.TrackInfo
	Arrived uint64
	Cohorts uint64
}

// Status reports engine and synchronizer state.
func (a *App) Status() Status {
	return Status{
		Running: a.engine.Running(),
		Time:    a.engine.CurrentTime(),
		BPM:     a.engine.BPM(),
		Tracks:  a.engine.Snapshot(),
		Arrived: a.sync.Target(),
		Cohorts: a.sync.Released(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
