package raster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sheldon123z/invoice-ocr/internal/common"
)

// stubRunner dispatches on the last argument of the probe vs convert call.
type stubRunner struct {
	probeErr   error
	convert    func(args []string) ([]byte, []byte, error)
	probeCalls int
	convCalls  int
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if len(args) == 1 && args[0] == "-v" {
		s.probeCalls++
		return nil, nil, s.probeErr
	}
	s.convCalls++
	if s.convert != nil {
		return s.convert(args)
	}
	return nil, nil, nil
}

func writePDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFirstPageImagePassThrough(t *testing.T) {
	r := NewWithRunner(Config{}, &stubRunner{}, nil)
	out, err := r.FirstPage(context.Background(), "/some/invoice.jpg", "jpg", "abcd1234", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "/some/invoice.jpg" {
		t.Fatalf("expected identity pass, got %s", out)
	}
}

func TestFirstPageToolMissing(t *testing.T) {
	scratch := t.TempDir()
	pdfPath := writePDF(t, scratch)

	stub := &stubRunner{probeErr: errors.New("no such file")}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	_, err := r.FirstPage(context.Background(), pdfPath, "pdf", "abcd1234", scratch)
	if err == nil {
		t.Fatal("expected error when tool is absent")
	}
	if !common.IsKind(err, common.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "poppler") {
		t.Fatalf("expected remediation hint, got %v", err)
	}
}

func TestFirstPageConversionFailure(t *testing.T) {
	scratch := t.TempDir()
	pdfPath := writePDF(t, scratch)

	stub := &stubRunner{
		convert: func([]string) ([]byte, []byte, error) {
			return nil, []byte("Syntax Error: bad xref"), errors.New("exit status 1")
		},
	}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	_, err := r.FirstPage(context.Background(), pdfPath, "pdf", "abcd1234", scratch)
	if !common.IsKind(err, common.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad xref") {
		t.Fatalf("expected stderr diagnostic in error, got %v", err)
	}
}

func TestFirstPageMissingOutputArtifact(t *testing.T) {
	scratch := t.TempDir()
	pdfPath := writePDF(t, scratch)

	// zero exit code but nothing written
	stub := &stubRunner{}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	_, err := r.FirstPage(context.Background(), pdfPath, "pdf", "abcd1234", scratch)
	if !common.IsKind(err, common.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no output") {
		t.Fatalf("expected missing-artifact diagnostic, got %v", err)
	}
}

func TestFirstPageSuccessUsesShortID(t *testing.T) {
	scratch := t.TempDir()
	pdfPath := writePDF(t, scratch)

	stub := &stubRunner{
		convert: func(args []string) ([]byte, []byte, error) {
			prefix := args[len(args)-1]
			return nil, nil, os.WriteFile(prefix+".png", []byte("png"), 0o644)
		},
	}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	out, err := r.FirstPage(context.Background(), pdfPath, "pdf", "abcd1234", scratch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(out) != "abcd1234.png" {
		t.Fatalf("output not named by short id: %s", out)
	}
	if stub.convCalls != 1 {
		t.Fatalf("expected exactly one conversion call, got %d", stub.convCalls)
	}
}

func TestLookupSharedAcrossGoroutines(t *testing.T) {
	stub := &stubRunner{}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Lookup(context.Background()); err != nil {
				t.Errorf("lookup failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if stub.probeCalls != 1 {
		t.Fatalf("expected a single probe across goroutines, got %d", stub.probeCalls)
	}
}

func TestLookupCachesResolvedPath(t *testing.T) {
	stub := &stubRunner{}
	r := NewWithRunner(Config{Pdftoppm: "pdftoppm-test"}, stub, nil)

	for range 3 {
		if _, err := r.Lookup(context.Background()); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
	}
	if stub.probeCalls != 1 {
		t.Fatalf("expected a single probe, got %d", stub.probeCalls)
	}
}
