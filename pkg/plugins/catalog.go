package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// DefaultEntrypointFile is the entrypoint filename looked up in each plugin directory
const DefaultEntrypointFile = "plugin.py"

// CatalogConfig locates plugins on disk
type CatalogConfig struct {
	Root           string // Directory holding one subdirectory per plugin
	ManifestFile   string // Defaults to DefaultManifestFile
	EntrypointFile string // Defaults to DefaultEntrypointFile
}

// Catalog discovers plugins by scanning a root directory. It holds no state
// between calls: every lookup is a fresh filesystem scan.
type Catalog struct {
	root           string
	manifestFile   string
	entrypointFile string
	log            *logrus.Logger
}

// NewCatalog creates a new plugin catalog
func NewCatalog(cfg CatalogConfig, log *logrus.Logger) *Catalog {
	if log == nil {
		log = logrus.New()
	}
	if cfg.ManifestFile == "" {
		cfg.ManifestFile = DefaultManifestFile
	}
	if cfg.EntrypointFile == "" {
		cfg.EntrypointFile = DefaultEntrypointFile
	}

	return &Catalog{
		root:           cfg.Root,
		manifestFile:   cfg.ManifestFile,
		entrypointFile: cfg.EntrypointFile,
		log:            log,
	}
}

// Root returns the scanned plugin directory
func (c *Catalog) Root() string {
	return c.root
}

// Discover scans the plugin root in sorted order. A subdirectory is a
// candidate when it contains a manifest. Candidates whose manifest fails to
// parse are logged and dropped. Candidates without an entrypoint are only
// returned when includeNonRunnable is set.
func (c *Catalog) Discover(ctx context.Context, includeNonRunnable bool) ([]*PluginRecord, error) {
	records := []*PluginRecord{}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.log.Debugf("Plugin directory does not exist: %s", c.root)
			return records, nil
		}
		return nil, fmt.Errorf("failed to read plugin directory %s: %w", c.root, err)
	}

	// os.ReadDir already sorts by filename; keep the guarantee explicit
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pluginDir := filepath.Join(c.root, entry.Name())
		// Stat follows symlinked plugin directories
		if info, err := os.Stat(pluginDir); err != nil || !info.IsDir() {
			continue
		}
		manifestPath := filepath.Join(pluginDir, c.manifestFile)
		if !isFile(manifestPath) {
			continue
		}

		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			c.log.Warnf("Failed to load manifest for %s: %v", entry.Name(), err)
			continue
		}

		entrypoint := filepath.Join(pluginDir, c.entrypointFile)
		runnable := isFile(entrypoint)
		if !runnable && !includeNonRunnable {
			continue
		}

		// Only an absent name falls back to the directory; a declared empty name is kept
		name := entry.Name()
		if manifest.Has(FieldName) {
			name = manifest.Name()
		}

		missing := MissingFields(manifest)
		records = append(records, &PluginRecord{
			Name:          name,
			Path:          pluginDir,
			Entrypoint:    entrypoint,
			Runnable:      runnable,
			Manifest:      manifest,
			ValidManifest: len(missing) == 0,
			MissingFields: missing,
		})
	}

	return records, nil
}

// Find returns the plugin named name from a fresh scan. Non-runnable plugins
// are matched as well so callers can tell "missing" from "not runnable".
func (c *Catalog) Find(ctx context.Context, name string) (*PluginRecord, error) {
	records, err := c.Discover(ctx, true)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Name == name {
			return record, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// LoadManifest re-reads the manifest of a plugin directory using the
// catalog's manifest filename
func (c *Catalog) LoadManifest(pluginDir string) (Manifest, error) {
	return LoadManifest(filepath.Join(pluginDir, c.manifestFile))
}

// Invalid returns discovered plugins (runnable or not) whose manifests miss
// required keys
func (c *Catalog) Invalid(ctx context.Context) ([]*PluginRecord, error) {
	records, err := c.Discover(ctx, true)
	if err != nil {
		return nil, err
	}

	var invalid []*PluginRecord
	for _, record := range records {
		if !record.ValidManifest {
			invalid = append(invalid, record)
		}
	}
	return invalid, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
