package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Frame is one stereo sample pair.
type Frame [2]float32

// Encoding selects the export format of a recorded clip.
type Encoding int

const (
	EncodingWAV  Encoding = 1
	EncodingMIDI Encoding = 2
)

func (e Encoding) String() string {
	switch e {
	case EncodingWAV:
		return "WAV"
	case EncodingMIDI:
		return "MIDI"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

const wavBitDepth = 16

// Clip is a decoded unit of stereo audio at a fixed sample rate.
type Clip struct {
	ID         uuid.UUID
	SampleRate int
	Frames     []Frame
}

// NewClip wraps frames into a clip with a fresh id.
func NewClip(sampleRate int, frames []Frame) *Clip {
	return &Clip{ID: uuid.New(), SampleRate: sampleRate, Frames: frames}
}

// Duration is the playing time of the whole clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate == 0 {
		return 0
	}
	return framesToDuration(int64(len(c.Frames)), float64(c.SampleRate))
}

// DecodeWAV decodes a WAV file into a clip at sampleRate. Mono input is
// duplicated to both channels; other rates are linearly resampled.
func DecodeWAV(data []byte, sampleRate int) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrInvalidClip
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error decoding wav: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, ErrInvalidClip
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	scale := float32(int64(1) << (depth - 1))

	frames := make([]Frame, len(buf.Data)/channels)
	for i := range frames {
		l := float32(buf.Data[i*channels]) / scale
		r := l
		if channels > 1 {
			r = float32(buf.Data[i*channels+1]) / scale
		}
		frames[i] = Frame{l, r}
	}
	if buf.Format.SampleRate != sampleRate && buf.Format.SampleRate > 0 {
		frames = resample(frames, float64(buf.Format.SampleRate), float64(sampleRate))
	}
	return NewClip(sampleRate, frames), nil
}

// EncodeWAV renders the clip as a 16-bit stereo WAV file.
func EncodeWAV(c *Clip) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidClip
	}
	out := &memFile{}
	enc := wav.NewEncoder(out, c.SampleRate, wavBitDepth, 2, 1)
	data := make([]int, 0, len(c.Frames)*2)
	for _, f := range c.Frames {
		data = append(data, int(toInt16(f[0])), int(toInt16(f[1])))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: c.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("error encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("error finishing wav: %w", err)
	}
	return out.Bytes(), nil
}

// toInt16 converts a sample to 16-bit PCM. NaN becomes silence.
func toInt16(v float32) int16 {
	switch {
	case v != v:
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(v * 32767)
}

func resample(in []Frame, from, to float64) []Frame {
	if len(in) == 0 {
		return in
	}
	ratio := from / to
	out := make([]Frame, int(float64(len(in))/ratio))
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		a, b := in[j], in[j+1]
		out[i] = Frame{a[0] + (b[0]-a[0])*frac, a[1] + (b[1]-a[1])*frac}
	}
	return out
}

// memFile is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, errors.New("invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}

func (m *memFile) Bytes() []byte { return m.buf }

func framesToDuration(frames int64, sampleRate float64) time.Duration {
	return time.Duration(float64(frames) / sampleRate * float64(time.Second))
}

func durationToFrames(d time.Duration, sampleRate float64) int64 {
	return int64(d.Seconds() * sampleRate)
}
