package theory

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// ScaleType selects an interval table for GenerateScale.
type ScaleType int

const (
	ScaleMajor ScaleType = iota + 1
	ScaleMinor
)

var scaleNames = map[ScaleType]string{
	ScaleMajor: "Major",
	ScaleMinor: "Minor",
}

var scaleIntervals = map[ScaleType][]int{
	ScaleMajor: {0, 2, 4, 5, 7, 9, 11, 12},
	ScaleMinor: {0, 2, 3, 5, 7, 8, 10, 12},
}

func (s ScaleType) String() string {
	if name, ok := scaleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ScaleType(%d)", int(s))
}

// ParseScaleType maps a host label such as "Major" onto a ScaleType.
func ParseScaleType(label string) (ScaleType, error) {
	for t, name := range scaleNames {
		if strings.EqualFold(name, strings.TrimSpace(label)) {
			return t, nil
		}
	}
	return 0, fault.Wrap(ErrInvalidScaleType,
		fmsg.WithDesc(fmt.Sprintf("parse scale %q", label), fmt.Sprintf("unknown scale type %q", label)),
		ftag.With(ftag.InvalidArgument))
}

// ScaleTypes lists the known scale types in menu order.
func ScaleTypes() []ScaleType {
	return []ScaleType{ScaleMajor, ScaleMinor}
}

// GenerateScale returns the eight notes of the scale starting at root.
func GenerateScale(root int, t ScaleType) ([]int, error) {
	intervals, ok := scaleIntervals[t]
	if !ok {
		return nil, fault.Wrap(ErrInvalidScaleType,
			fmsg.WithDesc(fmt.Sprintf("generate scale %v", t), "unknown scale type"),
			ftag.With(ftag.InvalidArgument))
	}
	return offset(root, intervals), nil
}

// ChordType selects an interval table for GenerateChord.
type ChordType int

const (
	ChordMajor ChordType = iota + 1
	ChordMinor
	ChordDiminished
	ChordAugmented
	ChordMajor7
	ChordDominant7
	ChordMinor7
	ChordDiminished7
)

var chordNames = map[ChordType]string{
	ChordMajor:       "Major",
	ChordMinor:       "Minor",
	ChordDiminished:  "Diminished",
	ChordAugmented:   "Augmented",
	ChordMajor7:      "Major 7th",
	ChordDominant7:   "Dominant 7th",
	ChordMinor7:      "Minor 7th",
	ChordDiminished7: "Diminished 7th",
}

var chordIntervals = map[ChordType][]int{
	ChordMajor:       {0, 4, 7},
	ChordMinor:       {0, 3, 7},
	ChordDiminished:  {0, 3, 6},
	ChordAugmented:   {0, 4, 8},
	ChordMajor7:      {0, 4, 7, 11},
	ChordDominant7:   {0, 4, 7, 10},
	ChordMinor7:      {0, 3, 7, 10},
	ChordDiminished7: {0, 3, 6, 9},
}

func (c ChordType) String() string {
	if name, ok := chordNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ChordType(%d)", int(c))
}

// ParseChordType maps a host label such as "Dominant 7th" onto a ChordType.
func ParseChordType(label string) (ChordType, error) {
	for t, name := range chordNames {
		if strings.EqualFold(name, strings.TrimSpace(label)) {
			return t, nil
		}
	}
	return 0, fault.Wrap(ErrInvalidChordType,
		fmsg.WithDesc(fmt.Sprintf("parse chord %q", label), fmt.Sprintf("unknown chord type %q", label)),
		ftag.With(ftag.InvalidArgument))
}

// ChordTypes lists the known chord types in menu order.
func ChordTypes() []ChordType {
	return []ChordType{
		ChordMajor, ChordMinor, ChordDiminished, ChordAugmented,
		ChordMajor7, ChordDominant7, ChordMinor7, ChordDiminished7,
	}
}

// GenerateChord returns the chord tones stacked on root.
func GenerateChord(root int, t ChordType) ([]int, error) {
	intervals, ok := chordIntervals[t]
	if !ok {
		return nil, fault.Wrap(ErrInvalidChordType,
			fmsg.WithDesc(fmt.Sprintf("generate chord %v", t), "unknown chord type"),
			ftag.With(ftag.InvalidArgument))
	}
	return offset(root, intervals), nil
}

func offset(root int, intervals []int) []int {
	out := make([]int, len(intervals))
	for i, iv := range intervals {
		out[i] = root + iv
	}
	return out
}
