package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/sirupsen/logrus"
)

// maxCollisionAttempts bounds the numeric tiebreaker appended to a slug
const maxCollisionAttempts = 1000

// WriteRequest is everything a report records about one run
type WriteRequest struct {
	Dir        string
	PluginName string
	Manifest   plugins.Manifest
	Phases     []string
	Result     *runner.ExecutionResult
	Runner     string
}

// WriteResult holds the two files written for one report
type WriteResult struct {
	JSONPath     string  `json:"json_path"`
	MarkdownPath string  `json:"markdown_path"`
	Report       *Report `json:"report"`
}

// Writer persists run reports as paired JSON and Markdown files
type Writer struct {
	log   *logrus.Logger
	now   func() time.Time
	newID func() string
}

// NewWriter creates a report writer
func NewWriter(log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.New()
	}
	return &Writer{
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Build assembles the report for req without touching the filesystem
func (w *Writer) Build(req WriteRequest) *Report {
	result := req.Result
	if result == nil {
		result = &runner.ExecutionResult{}
	}

	mode := result.Mode
	if mode == "" {
		mode = req.Runner
	}
	phases := req.Phases
	if phases == nil {
		phases = []string{}
	}

	return &Report{
		GeneratedAt: w.now().UTC().Format(time.RFC3339Nano),
		RunID:       w.newID(),
		Plugin: PluginSnapshot{
			Name:          req.PluginName,
			Version:       manifestValue(req.Manifest, plugins.FieldVersion),
			Author:        manifestValue(req.Manifest, plugins.FieldAuthor),
			NetworkPolicy: manifestValue(req.Manifest, plugins.FieldNetworkPolicy),
		},
		Execution: ExecutionSnapshot{
			Runner:      req.Runner,
			Phases:      phases,
			ReturnCode:  result.ReturnCode,
			TimedOut:    result.TimedOut,
			DurationSec: result.DurationSec,
			Mode:        mode,
			Command:     result.Command,
		},
		Output: Output{
			Stdout: result.Stdout,
			Stderr: result.Stderr,
		},
	}
}

// Write creates req.Dir if needed and writes {stamp}_{slug}.json and
// {stamp}_{slug}.md. Existing files are never overwritten: when the prefix
// is taken a numeric suffix is appended to the slug of both files.
func (w *Writer) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	report := w.Build(req)

	jsonData, err := EncodeJSON(report)
	if err != nil {
		return nil, err
	}
	mdData, err := RenderMarkdown(report)
	if err != nil {
		return nil, err
	}

	prefix := w.now().UTC().Format(StampLayout) + "_" + Slug(req.PluginName)

	for attempt := 1; attempt <= maxCollisionAttempts; attempt++ {
		base := prefix
		if attempt > 1 {
			base += "-" + strconv.Itoa(attempt)
		}
		jsonPath := filepath.Join(req.Dir, base+".json")
		mdPath := filepath.Join(req.Dir, base+".md")

		err := writeExclusive(jsonPath, jsonData)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		err = writeExclusive(mdPath, mdData)
		if errors.Is(err, fs.ErrExist) {
			os.Remove(jsonPath)
			continue
		}
		if err != nil {
			os.Remove(jsonPath)
			return nil, err
		}

		w.log.WithFields(logrus.Fields{
			"plugin": req.PluginName,
			"json":   jsonPath,
			"run_id": report.RunID,
		}).Info("Report written")

		return &WriteResult{
			JSONPath:     jsonPath,
			MarkdownPath: mdPath,
			Report:       report,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrReportCollision, prefix)
}

// ReadReport loads a JSON report written by Write
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

// ListReports returns the files in dir, newest modification first, at most
// limit entries (limit <= 0 means all). A missing directory yields no files.
func ListReports(dir string, limit int) ([]ReportFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []ReportFile{}, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	files := make([]ReportFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.Contains(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, ReportFile{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// LatestReport returns the most recently modified report file
func LatestReport(dir string) (*ReportFile, error) {
	files, err := ListReports(dir, 1)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoReports, dir)
	}
	return &files[0], nil
}

// WriteExclusive creates dir/{base}.{ext}, appending -2, -3, ... to base
// while the name is taken. It returns the path written.
func WriteExclusive(dir, base, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	for attempt := 1; attempt <= maxCollisionAttempts; attempt++ {
		name := base
		if attempt > 1 {
			name += "-" + strconv.Itoa(attempt)
		}
		path := filepath.Join(dir, name+"."+ext)
		err := writeExclusive(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrReportCollision, base)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// EncodeJSON renders v indented with every non-ASCII character escaped, so
// the output is plain ASCII
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return escapeNonASCII(buf.Bytes()), nil
}

func escapeNonASCII(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for _, r := range string(data) {
		if r < 0x80 {
			out.WriteByte(byte(r))
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		fmt.Fprintf(&out, `\u%04x`, r)
	}
	return out.Bytes()
}

func manifestValue(m plugins.Manifest, key string) any {
	v, _ := m.Value(key)
	return v
}
