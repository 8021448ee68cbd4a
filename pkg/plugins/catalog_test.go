package plugins

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pluginFixture struct {
	dir        string
	manifest   Manifest
	rawJSON    string // written instead of manifest when set
	entrypoint bool
}

func writePlugins(t *testing.T, root string, fixtures ...pluginFixture) {
	t.Helper()
	for _, f := range fixtures {
		dir := filepath.Join(root, f.dir)
		require.NoError(t, os.MkdirAll(dir, 0755))

		manifestPath := filepath.Join(dir, DefaultManifestFile)
		if f.rawJSON != "" {
			require.NoError(t, os.WriteFile(manifestPath, []byte(f.rawJSON), 0644))
		} else if f.manifest != nil {
			require.NoError(t, SaveManifest(f.manifest, manifestPath))
		}

		if f.entrypoint {
			require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEntrypointFile), []byte("print('hi')\n"), 0644))
		}
	}
}

func quietLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	return log, &buf
}

func TestNewCatalog_Defaults(t *testing.T) {
	catalog := NewCatalog(CatalogConfig{Root: "/tmp/plugins"}, nil)

	assert.Equal(t, "/tmp/plugins", catalog.Root())
	assert.Equal(t, DefaultManifestFile, catalog.manifestFile)
	assert.Equal(t, DefaultEntrypointFile, catalog.entrypointFile)
	assert.NotNil(t, catalog.log)
}

func TestDiscover_SortedAndRunnableOnly(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root,
		pluginFixture{dir: "zeta", manifest: Manifest{"name": "zeta"}, entrypoint: true},
		pluginFixture{dir: "alpha", manifest: fullManifest(), entrypoint: true},
		pluginFixture{dir: "mid", manifest: Manifest{"name": "mid"}},
	)

	log, _ := quietLogger()
	catalog := NewCatalog(CatalogConfig{Root: root}, log)

	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "test-plugin", records[0].Name)
	assert.Equal(t, filepath.Join(root, "alpha"), records[0].Path)
	assert.Equal(t, filepath.Join(root, "alpha", DefaultEntrypointFile), records[0].Entrypoint)
	assert.True(t, records[0].Runnable)
	assert.True(t, records[0].ValidManifest)
	assert.Empty(t, records[0].MissingFields)

	assert.Equal(t, "zeta", records[1].Name)
	assert.False(t, records[1].ValidManifest)
}

func TestDiscover_IncludeNonRunnable(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root,
		pluginFixture{dir: "no-entry", manifest: fullManifest()},
	)

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)

	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = catalog.Discover(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Runnable)
	assert.True(t, records[0].ValidManifest)
}

func TestDiscover_MissingKeysListed(t *testing.T) {
	root := t.TempDir()
	manifest := fullManifest()
	delete(manifest, "author")
	delete(manifest, "network_policy")
	writePlugins(t, root, pluginFixture{dir: "partial", manifest: manifest})

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	records, err := catalog.Discover(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.False(t, records[0].ValidManifest)
	assert.Equal(t, []string{"author", "network_policy"}, records[0].MissingFields)
}

func TestDiscover_NameFallsBackToDirectory(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root, pluginFixture{dir: "unnamed", manifest: Manifest{"version": "1"}, entrypoint: true})

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "unnamed", records[0].Name)
}

func TestDiscover_DeclaredEmptyNameKept(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root, pluginFixture{dir: "blank", manifest: Manifest{"name": "", "version": "1"}, entrypoint: true})

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Name)
	assert.Equal(t, filepath.Join(root, "blank"), records[0].Path)
}

func TestDiscover_FollowsSymlinkedPluginDirectory(t *testing.T) {
	store := t.TempDir()
	writePlugins(t, store, pluginFixture{dir: "real", manifest: fullManifest(), entrypoint: true})

	root := t.TempDir()
	link := filepath.Join(root, "linked")
	if err := os.Symlink(filepath.Join(store, "real"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	// A dangling link is skipped like any other non-directory
	require.NoError(t, os.Symlink(filepath.Join(store, "missing"), filepath.Join(root, "dangling")))

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	records, err := catalog.Discover(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test-plugin", records[0].Name)
	assert.Equal(t, link, records[0].Path)
	assert.True(t, records[0].Runnable)
}

func TestDiscover_SkipsMalformedManifest(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root,
		pluginFixture{dir: "broken", rawJSON: "{not json", entrypoint: true},
		pluginFixture{dir: "good", manifest: fullManifest(), entrypoint: true},
	)

	log, buf := quietLogger()
	catalog := NewCatalog(CatalogConfig{Root: root}, log)

	records, err := catalog.Discover(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test-plugin", records[0].Name)
	assert.Contains(t, buf.String(), "Failed to load manifest for broken")
}

func TestDiscover_SkipsDirectoriesWithoutManifestAndFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "not-a-plugin.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	records, err := catalog.Discover(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiscover_NonexistentRoot(t *testing.T) {
	catalog := NewCatalog(CatalogConfig{Root: "/nonexistent/path"}, nil)

	records, err := catalog.Discover(context.Background(), true)
	assert.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestDiscover_CustomFilenames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "shell")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, SaveManifest(fullManifest(), filepath.Join(dir, "plugin.json")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.sh"), []byte("#!/bin/sh\n"), 0755))

	catalog := NewCatalog(CatalogConfig{Root: root, ManifestFile: "plugin.json", EntrypointFile: "plugin.sh"}, nil)
	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(dir, "plugin.sh"), records[0].Entrypoint)
}

func TestDiscover_SeesChangesBetweenCalls(t *testing.T) {
	root := t.TempDir()
	catalog := NewCatalog(CatalogConfig{Root: root}, nil)

	records, err := catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, records)

	writePlugins(t, root, pluginFixture{dir: "late", manifest: fullManifest(), entrypoint: true})

	records, err = catalog.Discover(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDiscover_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root, pluginFixture{dir: "a", manifest: fullManifest(), entrypoint: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := NewCatalog(CatalogConfig{Root: root}, nil)
	_, err := catalog.Discover(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root,
		pluginFixture{dir: "a", manifest: fullManifest(), entrypoint: true},
		pluginFixture{dir: "b", manifest: Manifest{"name": "dormant"}},
	)
	catalog := NewCatalog(CatalogConfig{Root: root}, nil)

	record, err := catalog.Find(context.Background(), "test-plugin")
	require.NoError(t, err)
	assert.True(t, record.Runnable)

	record, err = catalog.Find(context.Background(), "dormant")
	require.NoError(t, err)
	assert.False(t, record.Runnable)

	_, err = catalog.Find(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestInvalid(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root,
		pluginFixture{dir: "a", manifest: fullManifest(), entrypoint: true},
		pluginFixture{dir: "b", manifest: Manifest{"name": "partial"}},
	)
	catalog := NewCatalog(CatalogConfig{Root: root}, nil)

	invalid, err := catalog.Invalid(context.Background())
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, "partial", invalid[0].Name)
	assert.Len(t, invalid[0].MissingFields, 5)
}

func TestCatalogLoadManifest(t *testing.T) {
	root := t.TempDir()
	writePlugins(t, root, pluginFixture{dir: "a", manifest: fullManifest()})
	catalog := NewCatalog(CatalogConfig{Root: root}, nil)

	manifest, err := catalog.LoadManifest(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Equal(t, "test-plugin", manifest.Name())

	_, err = catalog.LoadManifest(root)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}
