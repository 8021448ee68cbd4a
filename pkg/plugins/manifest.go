package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultManifestFile is the manifest filename looked up in each plugin directory
const DefaultManifestFile = "manifest.json"

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return ParseManifest(data)
}

// LoadManifestFromDir loads the manifest of a plugin directory
func LoadManifestFromDir(dir string) (Manifest, error) {
	return LoadManifest(filepath.Join(dir, DefaultManifestFile))
}

// ParseManifest decodes manifest JSON. The document must be a JSON object;
// numbers keep their literal text.
func ParseManifest(data []byte) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var manifest Manifest
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if manifest == nil {
		return nil, fmt.Errorf("%w: manifest is null", ErrManifestInvalid)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after manifest object", ErrManifestInvalid)
	}

	return manifest, nil
}

// SaveManifest saves a plugin manifest to a file
func SaveManifest(manifest Manifest, path string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// MissingFields returns the required keys the manifest does not declare, sorted
func MissingFields(manifest Manifest) []string {
	var missing []string
	for _, field := range RequiredFields {
		if !manifest.Has(field) {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// ValidateManifest checks the manifest key set. Only presence is checked;
// values, including the network policy, are judged elsewhere.
func ValidateManifest(manifest Manifest) []ValidationError {
	var errs []ValidationError

	for _, field := range MissingFields(manifest) {
		errs = append(errs, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf("Missing '%s' in manifest", field),
			Severity: "error",
		})
	}

	return errs
}
