package settings

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by LoadSeed:
//
//	settings:
//	  account.cash: "1001"
//	  location.central: "1"
type seedFile struct {
	Settings map[string]string `yaml:"settings"`
}

// LoadSeed parses a YAML seed document into settings ordered by key.
func LoadSeed(r io.Reader) ([]Setting, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("settings: decode seed: %w", err)
	}
	out := make([]Setting, 0, len(doc.Settings))
	for key, value := range doc.Settings {
		out = append(out, Setting{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Seed loads a YAML document and stores every setting in it.
func (s *Store) Seed(ctx context.Context, r io.Reader) (int, error) {
	values, err := LoadSeed(r)
	if err != nil {
		return 0, err
	}
	if err := s.Set(ctx, values...); err != nil {
		return 0, err
	}
	return len(values), nil
}
