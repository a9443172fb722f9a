// Package theory resolves note names to MIDI numbers and builds scales and
// chords from interval tables.
package theory

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var (
	// ErrInvalidNote is returned for tokens that are neither a known note
	// name nor a number.
	ErrInvalidNote = errors.New("invalid note")
	// ErrInvalidScaleType is returned for unknown scale types.
	ErrInvalidScaleType = errors.New("invalid scale type")
	// ErrInvalidChordType is returned for unknown chord types.
	ErrInvalidChordType = errors.New("invalid chord type")
)

const (
	minOctave      = 0
	maxOctave      = 9
	notesPerOctave = 12
)

// Semitone offsets from C for the natural note letters.
var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a parsed note token.
type Note struct {
	Letter      byte
	Octave      int
	Accidentals int // positive for sharps, negative for flats
}

// MIDI returns the MIDI number of the note. C4 is 60.
func (n Note) MIDI() int {
	return (n.Octave+1)*notesPerOctave + letterOffsets[n.Letter] + n.Accidentals
}

// String renders the note back into token form, e.g. "C4ss" or "E3b".
func (n Note) String() string {
	suffix := ""
	switch {
	case n.Accidentals > 0:
		suffix = strings.Repeat("s", n.Accidentals)
	case n.Accidentals < 0:
		suffix = strings.Repeat("b", -n.Accidentals)
	}
	return fmt.Sprintf("%c%d%s", n.Letter, n.Octave, suffix)
}

// ParseNote parses a `<Letter><Octave>[accidentals]` token. The accidental
// run must consist only of 's' (sharp) or only of 'b' (flat).
func ParseNote(token string) (Note, error) {
	if len(token) < 2 {
		return Note{}, invalidNote(token)
	}
	letter := token[0]
	if _, ok := letterOffsets[letter]; !ok {
		return Note{}, invalidNote(token)
	}
	octave := int(token[1] - '0')
	if octave < minOctave || octave > maxOctave {
		return Note{}, invalidNote(token)
	}

	run := token[2:]
	n := Note{Letter: letter, Octave: octave}
	if run == "" {
		return n, nil
	}
	switch {
	case strings.Trim(run, "s") == "":
		n.Accidentals = len(run)
	case strings.Trim(run, "b") == "":
		n.Accidentals = -len(run)
	default:
		return Note{}, invalidNote(token)
	}
	return n, nil
}

// ResolveNote turns a note token into a MIDI number. Numeric tokens pass
// through unchanged.
func ResolveNote(token string) (int, error) {
	token = strings.TrimSpace(token)
	if v, err := strconv.Atoi(token); err == nil {
		return v, nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return fromFloat(f, token)
	}
	n, err := ParseNote(token)
	if err != nil {
		return 0, err
	}
	return n.MIDI(), nil
}

// ResolveValue resolves a loosely typed host value (string, integer or
// integral float) into a MIDI number.
func ResolveValue(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint8:
		return int(t), nil
	case float64:
		return fromFloat(t, fmt.Sprint(t))
	case string:
		return ResolveNote(t)
	case fmt.Stringer:
		return ResolveNote(t.String())
	default:
		return 0, invalidNote(fmt.Sprint(v))
	}
}

// ResolveNoteGroup resolves a single note or a list of notes. A list longer
// than one is a chord: every note starts at the same instant. Any element
// that fails to resolve fails the whole group.
func ResolveNoteGroup(input any) ([]int, error) {
	var items []any
	switch t := input.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []int:
		return append([]int(nil), t...), nil
	default:
		items = []any{input}
	}
	if len(items) == 0 {
		return nil, invalidNote("")
	}

	notes := make([]int, 0, len(items))
	for _, item := range items {
		n, err := ResolveValue(item)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// NoteName renders a MIDI number with sharps, e.g. 61 -> "C#4".
func NoteName(midi int) string {
	if midi < 0 {
		return fmt.Sprintf("%d", midi)
	}
	return fmt.Sprintf("%s%d", noteNames[midi%notesPerOctave], midi/notesPerOctave-1)
}

func fromFloat(f float64, token string) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, invalidNote(token)
	}
	return int(f), nil
}

func invalidNote(token string) error {
	return fault.Wrap(ErrInvalidNote,
		fmsg.WithDesc(fmt.Sprintf("resolve %q", token), fmt.Sprintf("%q is not a note name or number", token)),
		ftag.With(ftag.InvalidArgument))
}
