package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestWAVRoundTrip(t *testing.T) {
	c := NewClip(testRate, []Frame{{0.5, -0.5}, {0, 0.25}, {-1, 1}})
	data, err := EncodeWAV(c)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	got, err := DecodeWAV(data, testRate)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(got.Frames) != len(c.Frames) {
		t.Fatalf("decoded %d frames, want %d", len(got.Frames), len(c.Frames))
	}
	for i := range c.Frames {
		for ch := 0; ch < 2; ch++ {
			if d := got.Frames[i][ch] - c.Frames[i][ch]; d > 0.001 || d < -0.001 {
				t.Errorf("frame %d ch %d = %v, want %v", i, ch, got.Frames[i][ch], c.Frames[i][ch])
			}
		}
	}
}

func TestDecodeWAVResamples(t *testing.T) {
	c := NewClip(2*testRate, make([]Frame, 200))
	data, err := EncodeWAV(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWAV(data, testRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Frames) != 100 {
		t.Errorf("resampled to %d frames, want 100", len(got.Frames))
	}
	if got.Duration() != 100*time.Millisecond {
		t.Errorf("duration = %v", got.Duration())
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("definitely not a wav file"), testRate); !errors.Is(err, ErrInvalidClip) {
		t.Errorf("got %v, want ErrInvalidClip", err)
	}
}

func TestEffectSchema(t *testing.T) {
	if len(EffectNames()) != 17 {
		t.Errorf("effect count = %d, want 17", len(EffectNames()))
	}
	if EffectNames()[0] != "Reverb" {
		t.Errorf("first effect = %q, want Reverb", EffectNames()[0])
	}

	tests := []struct {
		kind  EffectKind
		param string
	}{
		{Panning, "leftToRightRatio"},
		{Volume, "intensity"},
		{LowPassFilter, "cutoffFrequency"},
		{LowPassFilter, "resonance"},
		{HighPassFilter, "cutoffFrequency"},
		{Echo, "feedback"},
		{Echo, "intensity"},
		{Tremolo, "tremoloFrequency"},
	}
	for _, tt := range tests {
		params, err := AvailableEffectParameters(tt.kind)
		if err != nil {
			t.Fatalf("%s: %v", tt.kind, err)
		}
		found := false
		for _, p := range params {
			if p.Name == tt.param {
				found = true
			}
		}
		if !found {
			t.Errorf("%s has no parameter %q", tt.kind, tt.param)
		}
	}

	if _, err := AvailableEffectParameters(EffectKind(99)); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("unknown kind: got %v", err)
	}
	if k, err := ParseEffectKind("lowpassfilter"); err != nil || k != LowPassFilter {
		t.Errorf("ParseEffectKind = %v, %v", k, err)
	}
}

func TestToInt16(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16383},
		{1, 32767},
		{-1, -32767},
		{3, 32767},
		{-3, -32767},
		{nan, 0},
	}

	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFrameReaderSilencesNaN(t *testing.T) {
	nan := float32(math.NaN())
	r := &frameReader{render: func(out []Frame) {
		for i := range out {
			out[i] = Frame{nan, 1}
		}
	}}
	buf := make([]byte, 2*channelCount*bitDepth)
	n, err := r.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i := 0; i < len(buf); i += channelCount * bitDepth {
		left := int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
		right := int16(uint16(buf[i+2]) | uint16(buf[i+3])<<8)
		if left != 0 || right != 32767 {
			t.Errorf("frame %d = %d/%d, want 0/32767", i/4, left, right)
		}
	}
}
