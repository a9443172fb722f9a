package theory

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
)

func TestResolveNoteBaseTable(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"C0", 12},
		{"C4", 60},
		{"D4", 62},
		{"E4", 64},
		{"F4", 65},
		{"G4", 67},
		{"A4", 69},
		{"B4", 71},
		{"A0", 21},
		{"B9", 131},
		{"60", 60},
		{" 72 ", 72},
		{"64.0", 64},
	}

	for _, tt := range tests {
		got, err := ResolveNote(tt.token)
		if err != nil {
			t.Fatalf("ResolveNote(%q) returned error: %v", tt.token, err)
		}
		if got != tt.want {
			t.Errorf("ResolveNote(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestResolveNoteAccidentalRuns(t *testing.T) {
	for _, letter := range "CDEFGAB" {
		for octave := 0; octave <= 9; octave++ {
			base := string(letter) + string(rune('0'+octave))
			want, err := ResolveNote(base)
			if err != nil {
				t.Fatalf("ResolveNote(%q): %v", base, err)
			}
			for n := 1; n <= 4; n++ {
				sharp, err := ResolveNote(base + strings.Repeat("s", n))
				if err != nil {
					t.Fatalf("sharp run on %q: %v", base, err)
				}
				if sharp != want+n {
					t.Errorf("%s + %d sharps = %d, want %d", base, n, sharp, want+n)
				}
				flat, err := ResolveNote(base + strings.Repeat("b", n))
				if err != nil {
					t.Fatalf("flat run on %q: %v", base, err)
				}
				if flat != want-n {
					t.Errorf("%s + %d flats = %d, want %d", base, n, flat, want-n)
				}
			}
		}
	}
}

func TestResolveNoteRejectsInvalidTokens(t *testing.T) {
	for _, token := range []string{"", "H4", "C", "C10", "C4sb", "C4bs", "c4", "C#4", "61.5", "note"} {
		_, err := ResolveNote(token)
		if !errors.Is(err, ErrInvalidNote) {
			t.Errorf("ResolveNote(%q) error = %v, want ErrInvalidNote", token, err)
		}
	}

	_, err := ResolveNote("X1")
	if ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("expected invalid argument tag, got %q", ftag.Get(err))
	}
}

func TestNoteRoundTrip(t *testing.T) {
	n, err := ParseNote("E3bb")
	if err != nil {
		t.Fatalf("ParseNote: %v", err)
	}
	if n.String() != "E3bb" {
		t.Errorf("String() = %q", n.String())
	}
	if n.MIDI() != 50 {
		t.Errorf("MIDI() = %d, want 50", n.MIDI())
	}
	if NoteName(61) != "C#4" {
		t.Errorf("NoteName(61) = %q", NoteName(61))
	}
}

func TestResolveNoteGroup(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []int
	}{
		{"single token", "C4", []int{60}},
		{"single number", 67, []int{67}},
		{"yaml float", float64(62), []int{62}},
		{"chord", []any{"C4", "E4", 67}, []int{60, 64, 67}},
		{"string list", []string{"A3", "C4s"}, []int{57, 61}},
	}

	for _, tt := range tests {
		got, err := ResolveNoteGroup(tt.input)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	if _, err := ResolveNoteGroup([]any{"C4", "nope"}); !errors.Is(err, ErrInvalidNote) {
		t.Errorf("expected ErrInvalidNote for bad chord member, got %v", err)
	}
	if _, err := ResolveNoteGroup([]any{}); !errors.Is(err, ErrInvalidNote) {
		t.Errorf("expected ErrInvalidNote for empty group, got %v", err)
	}
}

func TestGenerateScale(t *testing.T) {
	major, err := GenerateScale(60, ScaleMajor)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(major, []int{60, 62, 64, 65, 67, 69, 71, 72}) {
		t.Errorf("C major = %v", major)
	}

	minor, err := GenerateScale(60, ScaleMinor)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(minor, []int{60, 62, 63, 65, 67, 68, 70, 72}) {
		t.Errorf("C minor = %v", minor)
	}

	if _, err := GenerateScale(60, ScaleType(99)); !errors.Is(err, ErrInvalidScaleType) {
		t.Errorf("expected ErrInvalidScaleType, got %v", err)
	}
	if _, err := ParseScaleType("Dorian"); !errors.Is(err, ErrInvalidScaleType) {
		t.Errorf("expected ErrInvalidScaleType, got %v", err)
	}
}

func TestGenerateChord(t *testing.T) {
	tests := []struct {
		label string
		want  []int
	}{
		{"Major", []int{60, 64, 67}},
		{"Minor", []int{60, 63, 67}},
		{"Diminished", []int{60, 63, 66}},
		{"Augmented", []int{60, 64, 68}},
		{"Major 7th", []int{60, 64, 67, 71}},
		{"Dominant 7th", []int{60, 64, 67, 70}},
		{"Minor 7th", []int{60, 63, 67, 70}},
		{"Diminished 7th", []int{60, 63, 66, 69}},
	}

	for _, tt := range tests {
		ct, err := ParseChordType(tt.label)
		if err != nil {
			t.Fatalf("ParseChordType(%q): %v", tt.label, err)
		}
		got, err := GenerateChord(60, ct)
		if err != nil {
			t.Fatalf("GenerateChord(%q): %v", tt.label, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s chord = %v, want %v", tt.label, got, tt.want)
		}
	}

	if _, err := ParseChordType("Sus4"); !errors.Is(err, ErrInvalidChordType) {
		t.Errorf("expected ErrInvalidChordType, got %v", err)
	}
	if _, err := GenerateChord(60, ChordType(0)); !errors.Is(err, ErrInvalidChordType) {
		t.Errorf("expected ErrInvalidChordType, got %v", err)
	}
}

func TestNoteDurationAt(t *testing.T) {
	d, err := ParseNoteDuration("quarter")
	if err != nil {
		t.Fatal(err)
	}
	if got := d.At(120); got != 500*time.Millisecond {
		t.Errorf("quarter at 120bpm = %v", got)
	}
	if got := Whole.At(60); got != 4*time.Second {
		t.Errorf("whole at 60bpm = %v", got)
	}
	if _, err := ParseNoteDuration("Breve"); err == nil {
		t.Error("expected error for unknown duration")
	}
}
