package theory

import (
	"fmt"
	"strings"
	"time"
)

// NoteDuration is a note value relative to a quarter-note beat.
type NoteDuration int

const (
	Whole NoteDuration = iota + 1
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
)

var durationNames = map[NoteDuration]string{
	Whole:        "Whole",
	Half:         "Half",
	Quarter:      "Quarter",
	Eighth:       "Eighth",
	Sixteenth:    "Sixteenth",
	ThirtySecond: "Thirtysecondth",
}

var durationBeats = map[NoteDuration]float64{
	Whole:        4,
	Half:         2,
	Quarter:      1,
	Eighth:       0.5,
	Sixteenth:    0.25,
	ThirtySecond: 0.125,
}

func (d NoteDuration) String() string {
	if name, ok := durationNames[d]; ok {
		return name
	}
	return fmt.Sprintf("NoteDuration(%d)", int(d))
}

// Beats is the length of the note in quarter-note beats.
func (d NoteDuration) Beats() float64 {
	return durationBeats[d]
}

// At converts the note value into wall time at the given tempo.
func (d NoteDuration) At(bpm float64) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Duration(d.Beats() * 60 / bpm * float64(time.Second))
}

// ParseNoteDuration accepts the host labels ("Quarter", "Eighth", ...).
// "Thirtysecond" is accepted as an alias.
func ParseNoteDuration(label string) (NoteDuration, error) {
	label = strings.TrimSpace(label)
	if strings.EqualFold(label, "Thirtysecond") {
		return ThirtySecond, nil
	}
	for d, name := range durationNames {
		if strings.EqualFold(name, label) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown note duration %q", label)
}

// NoteDurations lists the note values from longest to shortest.
func NoteDurations() []NoteDuration {
	return []NoteDuration{Whole, Half, Quarter, Eighth, Sixteenth, ThirtySecond}
}
