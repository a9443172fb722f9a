package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument is a playable voice configuration.
type Instrument struct {
	Name    string   `yaml:"name"`
	Wave    WaveType `yaml:"wave"`
	Attack  float64  `yaml:"attack"`  // seconds
	Release float64  `yaml:"release"` // seconds
	Gain    float64  `yaml:"gain"`
}

// Catalog is the on-disk (or served) list of instruments.
type Catalog struct {
	Instruments []Instrument `yaml:"instruments"`
}

var builtinInstruments = []Instrument{
	{Name: "Sine", Wave: WaveSine, Attack: 0.02, Release: 0.3, Gain: 1},
	{Name: "Triangle", Wave: WaveTriangle, Attack: 0.01, Release: 0.3, Gain: 1},
	{Name: "Sawtooth", Wave: WaveSawtooth, Attack: 0.01, Release: 0.2, Gain: 0.7},
	{Name: "Square", Wave: WaveSquare, Attack: 0.005, Release: 0.15, Gain: 0.6},
}

func defaultInstrument() Instrument {
	return builtinInstruments[0]
}

// ParseCatalog decodes a YAML instrument catalog. Entries without a name are
// rejected; a zero gain defaults to 1.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("error parsing instrument catalog: %w", err)
	}
	for i := range c.Instruments {
		inst := &c.Instruments[i]
		if strings.TrimSpace(inst.Name) == "" {
			return Catalog{}, fmt.Errorf("instrument %d has no name", i)
		}
		if inst.Gain == 0 {
			inst.Gain = 1
		}
	}
	return c, nil
}

// LoadCatalog reads a catalog from an http(s) URL or a local path.
func LoadCatalog(ctx context.Context, location string) (Catalog, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = fetch(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("error loading instrument catalog %s: %w", location, err)
	}
	return ParseCatalog(data)
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
