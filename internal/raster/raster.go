// Package raster converts the first page of a PDF into a PNG suitable for
// vision-model input. Image inputs pass through unchanged.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/sheldon123z/invoice-ocr/constants"
	"github.com/sheldon123z/invoice-ocr/internal/common"
)

// InstallHint is appended to the error raised when no pdftoppm binary can
// be found on the host.
const InstallHint = "pdftoppm not found; install poppler:\n" +
	"  macOS: brew install poppler\n" +
	"  Debian/Ubuntu: apt-get install poppler-utils\n" +
	"  or convert PDF files to images before processing."

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> probe candidates
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	resolved string // cached pdftoppm path after first successful probe
}

func New(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// NewWithRunner is used by tests to stub the external process.
func NewWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	r := New(cfg, logger)
	r.runner = runner
	return r
}

// candidatePaths lists the locations probed for pdftoppm, in order:
// explicit config, a bundled copy next to the binary, the platform
// package-manager prefixes, then PATH.
func (r *Rasterizer) candidatePaths() []string {
	exe := "pdftoppm"
	if runtime.GOOS == "windows" {
		exe = "pdftoppm.exe"
	}
	var candidates []string
	if r.cfg.Pdftoppm != "" {
		candidates = append(candidates, r.cfg.Pdftoppm)
	}
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), "bin", exe))
	}
	candidates = append(candidates,
		"/opt/homebrew/bin/pdftoppm",
		"/usr/local/bin/pdftoppm",
		exe, // PATH
	)
	return candidates
}

// Lookup resolves the pdftoppm binary, probing each candidate with "-v".
// poppler exits 0 or 99 on a version query depending on release. The
// probe is serialized so workers sharing one Rasterizer resolve the tool
// exactly once.
func (r *Rasterizer) Lookup(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != "" {
		return r.resolved, nil
	}
	for _, path := range r.candidatePaths() {
		_, _, err := r.runner.Run(ctx, path, "-v")
		if err == nil {
			r.resolved = path
			return path, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 99 {
			r.resolved = path
			return path, nil
		}
	}
	return "", common.ConversionError(InstallHint, nil)
}

// FirstPage produces a PNG of page 1 of the document. Image inputs return
// their own path unchanged. The output filename uses the document's short
// identifier rather than the source name, so arbitrarily long or non-ASCII
// source paths cannot break the conversion.
func (r *Rasterizer) FirstPage(ctx context.Context, path, ext, shortID, scratchDir string) (string, error) {
	if constants.MapExtToFormat(ext) != constants.PDF {
		return path, nil
	}

	if err := r.preflight(path); err != nil {
		return "", err
	}

	tool, err := r.Lookup(ctx)
	if err != nil {
		return "", err
	}

	prefix := filepath.Join(scratchDir, shortID)
	_, errb, err := r.runner.Run(ctx, tool,
		"-png", "-singlefile", "-f", "1", "-l", "1", path, prefix)
	if err != nil {
		diag := strings.TrimSpace(string(errb))
		return "", common.ConversionError(fmt.Sprintf("pdftoppm failed: %s", diag), err)
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", common.ConversionError(fmt.Sprintf("pdftoppm produced no output: %s", out), err)
	}
	return out, nil
}

// preflight rejects PDFs that parse cleanly but contain no pages. A PDF
// the pure-Go reader cannot parse is only logged; poppler tolerates more
// malformed input than we do, so pdftoppm stays the authority.
func (r *Rasterizer) preflight(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.ConversionError("read pdf", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		r.logger.Warn("raster.preflight.unparseable", "path", path, "error", err)
		return nil
	}
	if reader.NumPage() < 1 {
		return common.ConversionError("pdf has no pages", nil)
	}
	r.logger.Debug("raster.preflight.ok", "path", path, "pages", reader.NumPage())
	return nil
}
