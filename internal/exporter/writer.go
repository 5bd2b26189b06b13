package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	pipeerrors "retlab/internal/errors"
)

// Writer persists variant artifacts under a single output directory.
type Writer struct {
	outDir string
	logger *slog.Logger
}

// NewWriter creates a writer rooted at outDir.
func NewWriter(outDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{outDir: outDir, logger: logger}
}

// Filename returns the artifact file name for a variant slug.
func Filename(slug string) string {
	return slug + ".json"
}

// Write marshals the artifact with indentation and writes it to
// <outDir>/<slug>.json, creating the directory if needed. It returns the
// written path.
func (w *Writer) Write(artifact Artifact) (string, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", pipeerrors.Wrap(pipeerrors.CodeExportFailed,
			fmt.Sprintf("failed to create output directory %s", w.outDir), err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", pipeerrors.Wrap(pipeerrors.CodeExportFailed,
			"failed to marshal artifact", err)
	}
	data = append(data, '\n')

	path := filepath.Join(w.outDir, Filename(artifact.Meta.Variant.Slug()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", pipeerrors.Wrap(pipeerrors.CodeExportFailed,
			fmt.Sprintf("failed to write artifact %s", path), err)
	}

	w.logger.Info("artifact written",
		"path", path,
		"variant", artifact.Meta.Variant.Slug(),
		"bytes", len(data),
	)
	return path, nil
}
