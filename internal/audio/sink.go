package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit
)

// RenderFunc fills out with the next block of mixed audio.
type RenderFunc func(out []Frame)

// Sink pulls audio from the engine. Pause and Resume gate the engine clock:
// a paused sink stops asking for frames.
type Sink interface {
	Open(render RenderFunc) error
	Resume()
	Pause()
	Close() error
}

// otoSink plays through the system audio device.
type otoSink struct {
	sampleRate int
	bufferSize int
	ctx        *oto.Context
	player     *oto.Player
}

// NewOtoSink creates a sink backed by an oto context.
func NewOtoSink(sampleRate, bufferSize int) Sink {
	return &otoSink{sampleRate: sampleRate, bufferSize: bufferSize}
}

func (s *otoSink) Open(render RenderFunc) error {
	op := &oto.NewContextOptions{
		SampleRate:   s.sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(s.bufferSize) * time.Second / time.Duration(s.sampleRate),
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("cannot create oto context: %w", err)
	}
	<-readyChan

	s.ctx = otoCtx
	s.player = otoCtx.NewPlayer(&frameReader{render: render})
	return nil
}

func (s *otoSink) Resume() {
	if s.player != nil {
		s.player.Play()
	}
}

func (s *otoSink) Pause() {
	if s.player != nil {
		s.player.Pause()
	}
}

func (s *otoSink) Close() error {
	if s.player != nil {
		s.player.Pause()
	}
	if s.ctx != nil {
		return s.ctx.Suspend()
	}
	return nil
}

// frameReader implements io.Reader for continuous audio generation
type frameReader struct {
	render  RenderFunc
	scratch []Frame
}

func (r *frameReader) Read(buf []byte) (int, error) {
	numSamples := len(buf) / (channelCount * bitDepth)
	if cap(r.scratch) < numSamples {
		r.scratch = make([]Frame, numSamples)
	}
	frames := r.scratch[:numSamples]
	r.render(frames)

	for i, f := range frames {
		idx := i * channelCount * bitDepth
		for ch := 0; ch < channelCount; ch++ {
			sampleInt := toInt16(f[ch])
			buf[idx+ch*bitDepth] = byte(sampleInt)
			buf[idx+ch*bitDepth+1] = byte(sampleInt >> 8)
		}
	}
	return numSamples * channelCount * bitDepth, nil
}

// nullSink advances the engine in real time without producing sound. It is
// used headless and on machines without an audio device.
type nullSink struct {
	sampleRate int
	bufferSize int

	mu       sync.Mutex
	render   RenderFunc
	running  bool
	anchor   time.Time
	rendered int64
	stop     chan struct{}
	done     chan struct{}
}

// NewNullSink creates a sink that discards audio.
func NewNullSink(sampleRate, bufferSize int) Sink {
	return &nullSink{sampleRate: sampleRate, bufferSize: bufferSize}
}

func (s *nullSink) Open(render RenderFunc) error {
	s.render = render
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
	return nil
}

func (s *nullSink) loop() {
	defer close(s.done)
	period := time.Duration(s.bufferSize) * time.Second / time.Duration(s.sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	scratch := make([]Frame, s.bufferSize)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				continue
			}
			due := int64(time.Since(s.anchor).Seconds()*float64(s.sampleRate)) - s.rendered
			s.mu.Unlock()

			for due >= int64(s.bufferSize) {
				s.render(scratch)
				due -= int64(s.bufferSize)
				s.mu.Lock()
				s.rendered += int64(s.bufferSize)
				s.mu.Unlock()
			}
		}
	}
}

func (s *nullSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.anchor = time.Now()
	s.rendered = 0
}

func (s *nullSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *nullSink) Close() error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	return nil
}
