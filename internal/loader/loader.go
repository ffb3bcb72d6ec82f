// Package loader extracts plain text from uploaded files. PDFs go through the
// poppler pdftotext binary; text and markdown files are read as-is.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler (brew install poppler / apt install poppler-utils)")

// ErrUnsupportedType is returned for file extensions the loader cannot read.
var ErrUnsupportedType = errors.New("unsupported file type")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

type FileLoader struct {
	pdftotext string
	runner    CommandRunner
}

// New creates a loader that shells out to pdftotext at the given path, or
// finds it on PATH when empty.
func New(pdftotextPath string) *FileLoader {
	return NewWithRunner(pdftotextPath, execRunner{})
}

// NewWithRunner is New with a custom command runner.
func NewWithRunner(pdftotextPath string, runner CommandRunner) *FileLoader {
	if pdftotextPath == "" {
		pdftotextPath = "pdftotext"
	}
	return &FileLoader{pdftotext: pdftotextPath, runner: runner}
}

// CheckAvailable reports whether the configured pdftotext binary can be found.
func (l *FileLoader) CheckAvailable() error {
	if _, err := exec.LookPath(l.pdftotext); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// Load extracts text from a .pdf, .txt or .md file.
func (l *FileLoader) Load(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		out, err := l.runner.Run(ctx, l.pdftotext, "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return "", ErrPDFToolNotFound
			}
			return "", fmt.Errorf("pdftotext failed: %w", err)
		}
		return cleanText(string(out)), nil
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return cleanText(string(data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

// cleanText drops form feeds and NUL bytes that pdftotext emits between pages
// and trims trailing whitespace on every line.
func cleanText(s string) string {
	s = strings.NewReplacer("\f", "\n", "\x00", "").Replace(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
