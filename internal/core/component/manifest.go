package component

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sufield/junction/internal/core/domain"
)

// LoadManifests decodes a YAML stream of capability manifests, one document
// per component, and validates each.
func LoadManifests(r io.Reader) ([]domain.Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []domain.Manifest
	for {
		var m domain.Manifest
		err := dec.Decode(&m)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode manifest %d: %w", len(out)+1, err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no manifests found")
	}
	return out, nil
}

// LoadManifestFile reads manifests from path.
func LoadManifestFile(path string) ([]domain.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file: %w", err)
	}
	defer f.Close()
	return LoadManifests(f)
}

// ManifestFor reads manifests from path and returns the one declared for
// component. An empty path returns fallback unchanged, so binaries can ship
// a built-in manifest and accept an override.
func ManifestFor(path, component string, fallback domain.Manifest) (domain.Manifest, error) {
	if path == "" {
		return fallback, nil
	}
	ms, err := LoadManifestFile(path)
	if err != nil {
		return domain.Manifest{}, err
	}
	for _, m := range ms {
		if m.Component == component {
			return m, nil
		}
	}
	return domain.Manifest{}, fmt.Errorf("%s declares no manifest for component %q", path, component)
}
