package audio

import "math"

// processor is the per-sample DSP behind an effect instance.
type processor interface {
	configure(params map[string]float64)
	process(f Frame) Frame
}

func newProcessor(kind EffectKind, sampleRate float64) processor {
	switch kind {
	case Reverb:
		return newReverb(sampleRate)
	case Delay:
		return &delayFX{line: newDelayLine(sampleRate, 2), sr: sampleRate}
	case Echo:
		return &echoFX{line: newDelayLine(sampleRate, 2), sr: sampleRate}
	case Chorus, Flanger:
		return &modDelayFX{line: newDelayLine(sampleRate, 0.1), lfo: lfo{sr: sampleRate}, sr: sampleRate}
	case Vibrato:
		return &vibratoFX{line: newDelayLine(sampleRate, 0.05), lfo: lfo{sr: sampleRate}, sr: sampleRate}
	case Tremolo:
		return &tremoloFX{lfo: lfo{sr: sampleRate}}
	case Phaser:
		return &phaserFX{lfo: lfo{sr: sampleRate}, sr: sampleRate}
	case Panning:
		return &panFX{}
	case Equalization:
		return newEQ(sampleRate)
	case Volume:
		return &gainFX{}
	case Compression:
		return &compressorFX{sr: sampleRate}
	case Distortion:
		return &distortionFX{}
	case LowPassFilter, HighPassFilter, BandPassFilter, BandRejectFilter:
		return &filterFX{kind: kind, sr: sampleRate}
	default:
		return &gainFX{gain: 1}
	}
}

// lfo is a sine oscillator used for modulation effects.
type lfo struct {
	sr    float64
	freq  float64
	phase float64
}

func (o *lfo) next() float64 {
	v := math.Sin(2 * math.Pi * o.phase)
	o.phase += o.freq / o.sr
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	return v
}

// delayLine is a stereo ring buffer with fractional reads.
type delayLine struct {
	buf []Frame
	pos int
}

func newDelayLine(sampleRate, seconds float64) *delayLine {
	return &delayLine{buf: make([]Frame, int(sampleRate*seconds)+2)}
}

func (d *delayLine) write(f Frame) {
	d.buf[d.pos] = f
	d.pos = (d.pos + 1) % len(d.buf)
}

// read returns the frame written `samples` frames ago.
func (d *delayLine) read(samples float64) Frame {
	n := len(d.buf)
	if samples < 1 {
		samples = 1
	}
	if samples > float64(n-1) {
		samples = float64(n - 1)
	}
	i := int(samples)
	frac := float32(samples - float64(i))
	a := d.buf[((d.pos-i)%n+n)%n]
	b := d.buf[((d.pos-i-1)%n+n)%n]
	return Frame{a[0] + (b[0]-a[0])*frac, a[1] + (b[1]-a[1])*frac}
}

type gainFX struct{ gain float32 }

func (g *gainFX) configure(p map[string]float64) { g.gain = float32(p["intensity"]) }
func (g *gainFX) process(f Frame) Frame          { return Frame{f[0] * g.gain, f[1] * g.gain} }

type panFX struct{ left, right float32 }

func (p *panFX) configure(params map[string]float64) {
	r := params["leftToRightRatio"]
	p.left = float32(math.Min(1, 2*(1-r)))
	p.right = float32(math.Min(1, 2*r))
}

func (p *panFX) process(f Frame) Frame { return Frame{f[0] * p.left, f[1] * p.right} }

type tremoloFX struct {
	lfo   lfo
	depth float64
}

func (t *tremoloFX) configure(p map[string]float64) {
	t.lfo.freq = p["tremoloFrequency"]
	t.depth = p["intensity"]
}

func (t *tremoloFX) process(f Frame) Frame {
	g := float32(1 - t.depth*(0.5+0.5*t.lfo.next()))
	return Frame{f[0] * g, f[1] * g}
}

type delayFX struct {
	line        *delayLine
	sr          float64
	delay, gain float64
}

func (d *delayFX) configure(p map[string]float64) {
	d.delay = p["delay"] * d.sr
	d.gain = p["attenuation"]
}

func (d *delayFX) process(f Frame) Frame {
	w := d.line.read(d.delay)
	d.line.write(f)
	g := float32(d.gain)
	return Frame{f[0] + w[0]*g, f[1] + w[1]*g}
}

type echoFX struct {
	line                 *delayLine
	sr                   float64
	delay, feedback, mix float64
}

func (e *echoFX) configure(p map[string]float64) {
	e.delay = p["echoTime"] * e.sr
	e.feedback = p["feedback"]
	e.mix = p["intensity"]
}

func (e *echoFX) process(f Frame) Frame {
	w := e.line.read(e.delay)
	fb := float32(e.feedback)
	e.line.write(Frame{f[0] + w[0]*fb, f[1] + w[1]*fb})
	m := float32(e.mix)
	return Frame{f[0] + w[0]*m, f[1] + w[1]*m}
}

// modDelayFX covers chorus and flanger: an LFO-swept delay mixed with the dry
// signal, with feedback.
type modDelayFX struct {
	line                  *delayLine
	lfo                   lfo
	sr                    float64
	offset, feedback, mix float64
}

func (m *modDelayFX) configure(p map[string]float64) {
	m.lfo.freq = p["frequencyRate"]
	m.offset = p["delayOffset"] * m.sr
	m.feedback = p["feedback"]
	m.mix = p["intensity"]
}

func (m *modDelayFX) process(f Frame) Frame {
	d := m.offset * (1 + 0.5*m.lfo.next())
	w := m.line.read(d)
	fb := float32(m.feedback)
	m.line.write(Frame{f[0] + w[0]*fb, f[1] + w[1]*fb})
	mix := float32(m.mix)
	return Frame{f[0]*(1-mix) + w[0]*mix, f[1]*(1-mix) + w[1]*mix}
}

type vibratoFX struct {
	line  *delayLine
	lfo   lfo
	sr    float64
	depth float64
}

func (v *vibratoFX) configure(p map[string]float64) {
	v.lfo.freq = p["vibratoFrequency"]
	v.depth = p["intensity"] * 0.005 * v.sr
}

func (v *vibratoFX) process(f Frame) Frame {
	v.line.write(f)
	return v.line.read(1 + v.depth*(1+v.lfo.next()))
}

// phaserFX runs four first-order allpass stages with a swept coefficient.
type phaserFX struct {
	lfo           lfo
	sr            float64
	feedback, mix float64
	state         [4][2]float64
	last          [2]float64
}

func (p *phaserFX) configure(params map[string]float64) {
	p.lfo.freq = params["frequencyRate"]
	p.feedback = params["feedback"]
	p.mix = params["intensity"]
}

func (p *phaserFX) process(f Frame) Frame {
	center := 400 + 1200*(0.5+0.5*p.lfo.next())
	t := math.Tan(math.Pi * center / p.sr)
	a := (t - 1) / (t + 1)
	var out Frame
	for ch := 0; ch < 2; ch++ {
		x := float64(f[ch]) + p.last[ch]*p.feedback
		for s := range p.state {
			y := a*x + p.state[s][ch]
			p.state[s][ch] = x - a*y
			x = y
		}
		p.last[ch] = x
		out[ch] = float32(float64(f[ch])*(1-p.mix) + x*p.mix)
	}
	return out
}

// reverb is a small Schroeder-style bank of feedback combs.
type reverb struct {
	combs   [4]*delayLine
	lengths [4]float64
	base    [4]float64
	decay   float64
	mix     float64
	sr      float64
}

func newReverb(sampleRate float64) *reverb {
	r := &reverb{sr: sampleRate, base: [4]float64{0.0297, 0.0371, 0.0411, 0.0437}}
	for i := range r.combs {
		r.combs[i] = newDelayLine(sampleRate, 0.1)
	}
	return r
}

func (r *reverb) configure(p map[string]float64) {
	r.decay = p["decay"]
	r.mix = p["intensity"]
	scale := 0.5 + 1.5*p["roomSize"]
	for i := range r.lengths {
		r.lengths[i] = r.base[i] * scale * r.sr
	}
}

func (r *reverb) process(f Frame) Frame {
	var wet Frame
	d := float32(r.decay)
	for i, c := range r.combs {
		w := c.read(r.lengths[i])
		c.write(Frame{f[0] + w[0]*d, f[1] + w[1]*d})
		wet[0] += w[0] * 0.25
		wet[1] += w[1] * 0.25
	}
	m := float32(r.mix)
	return Frame{f[0]*(1-m) + wet[0]*m, f[1]*(1-m) + wet[1]*m}
}

// eq splits the signal at 300 Hz and 3 kHz with one-pole lowpasses.
type eq struct {
	lowA, highA       float64
	low, high         [2]float64
	gLow, gMid, gHigh float64
}

func newEQ(sampleRate float64) *eq {
	return &eq{
		lowA:  1 - math.Exp(-2*math.Pi*300/sampleRate),
		highA: 1 - math.Exp(-2*math.Pi*3000/sampleRate),
	}
}

func (e *eq) configure(p map[string]float64) {
	e.gLow, e.gMid, e.gHigh = p["lowGain"], p["midGain"], p["highGain"]
}

func (e *eq) process(f Frame) Frame {
	var out Frame
	for ch := 0; ch < 2; ch++ {
		x := float64(f[ch])
		e.low[ch] += e.lowA * (x - e.low[ch])
		e.high[ch] += e.highA * (x - e.high[ch])
		lo := e.low[ch]
		mid := e.high[ch] - lo
		hi := x - e.high[ch]
		out[ch] = float32(lo*e.gLow + mid*e.gMid + hi*e.gHigh)
	}
	return out
}

type compressorFX struct {
	sr                                float64
	threshold, ratio, attack, release float64
	env                               float64
}

func (c *compressorFX) configure(p map[string]float64) {
	c.threshold = p["threshold"]
	c.ratio = p["ratio"]
	c.attack = math.Exp(-1 / (p["attack"] * c.sr))
	c.release = math.Exp(-1 / (p["release"] * c.sr))
}

func (c *compressorFX) process(f Frame) Frame {
	level := math.Max(math.Abs(float64(f[0])), math.Abs(float64(f[1])))
	coef := c.release
	if level > c.env {
		coef = c.attack
	}
	c.env = coef*c.env + (1-coef)*level
	if c.env <= c.threshold {
		return f
	}
	target := c.threshold + (c.env-c.threshold)/c.ratio
	g := float32(target / c.env)
	return Frame{f[0] * g, f[1] * g}
}

type distortionFX struct{ drive, mix float64 }

func (d *distortionFX) configure(p map[string]float64) {
	d.drive = p["drive"]
	d.mix = p["intensity"]
}

func (d *distortionFX) process(f Frame) Frame {
	var out Frame
	norm := math.Tanh(d.drive)
	for ch := 0; ch < 2; ch++ {
		x := float64(f[ch])
		wet := math.Tanh(x*d.drive) / norm
		out[ch] = float32(x*(1-d.mix) + wet*d.mix)
	}
	return out
}

// filterFX is an RBJ biquad.
type filterFX struct {
	kind               EffectKind
	sr                 float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

func (b *filterFX) configure(p map[string]float64) {
	var freq, q float64
	switch b.kind {
	case LowPassFilter, HighPassFilter:
		freq = p["cutoffFrequency"]
		q = 0.707 + p["resonance"]/10
	default:
		lo, hi := p["lowerCutoffFrequency"], p["upperCutoffFrequency"]
		if hi < lo {
			lo, hi = hi, lo
		}
		if hi-lo < 1 {
			hi = lo + 1
		}
		freq = math.Sqrt(lo * hi)
		q = freq / (hi - lo)
	}
	freq = math.Min(freq, b.sr*0.45)

	w0 := 2 * math.Pi * freq / b.sr
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	var b0, b1, b2 float64
	switch b.kind {
	case LowPassFilter:
		b0, b1, b2 = (1-cos)/2, 1-cos, (1-cos)/2
	case HighPassFilter:
		b0, b1, b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
	case BandPassFilter:
		b0, b1, b2 = alpha, 0, -alpha
	case BandRejectFilter:
		b0, b1, b2 = 1, -2*cos, 1
	}
	a0 := 1 + alpha
	b.b0, b.b1, b.b2 = b0/a0, b1/a0, b2/a0
	b.a1, b.a2 = -2*cos/a0, (1-alpha)/a0
}

func (b *filterFX) process(f Frame) Frame {
	var out Frame
	for ch := 0; ch < 2; ch++ {
		x := float64(f[ch])
		y := b.b0*x + b.b1*b.x1[ch] + b.b2*b.x2[ch] - b.a1*b.y1[ch] - b.a2*b.y2[ch]
		b.x2[ch], b.x1[ch] = b.x1[ch], x
		b.y2[ch], b.y1[ch] = b.y1[ch], y
		out[ch] = float32(y)
	}
	return out
}
