package audio

import (
	"math"
	"sort"
)

type scheduledClip struct {
	frames []Frame
	start  int64
	length int64
}

type track struct {
	id         string
	instrument Instrument
	voices     []*voice
	clips      []*scheduledClip
	effects    effectChain
	recorders  []*Recording
	level      float32

	midiDevice  string
	audioDevice string
}

func newTrack(id string) *track {
	return &track{id: id, instrument: defaultInstrument()}
}

// renderFrame produces the track's post-effect output at absolute frame abs.
func (t *track) renderFrame(abs int64, sampleRate float64) Frame {
	var mono float64
	for _, v := range t.voices {
		mono += v.sample(abs, sampleRate)
	}
	f := Frame{float32(mono), float32(mono)}

	for _, c := range t.clips {
		if abs < c.start || abs >= c.start+c.length {
			continue
		}
		src := c.frames[abs-c.start]
		f[0] += src[0]
		f[1] += src[1]
	}

	f = t.effects.process(f)
	for _, r := range t.recorders {
		if r.kind == RecordAudio {
			r.captureLocked(abs, f)
		}
	}

	peak := float32(math.Max(math.Abs(float64(f[0])), math.Abs(float64(f[1]))))
	if peak > t.level {
		t.level = peak
	}
	return f
}

func (t *track) pruneClips(now int64) {
	out := t.clips[:0]
	for _, c := range t.clips {
		if c.start+c.length > now {
			out = append(out, c)
		}
	}
	for i := len(out); i < len(t.clips); i++ {
		t.clips[i] = nil
	}
	t.clips = out
}

// activeNotes lists notes sounding (and not yet released) at frame now.
func (t *track) activeNotes(now int64) []int {
	seen := make(map[int]bool)
	for _, v := range t.voices {
		if v.active && !v.releasing && v.start <= now && (v.release < 0 || v.release > now) {
			seen[int(v.note)] = true
		}
	}
	notes := make([]int, 0, len(seen))
	for n := range seen {
		notes = append(notes, n)
	}
	sort.Ints(notes)
	return notes
}
