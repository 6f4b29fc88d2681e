package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sheldon123z/invoice-ocr/internal/entity"
	"github.com/sheldon123z/invoice-ocr/internal/locate"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRun(started time.Time) Run {
	return Run{
		Root:          "/data",
		Provider:      "ollama",
		StartedAt:     started,
		FinishedAt:    started.Add(time.Minute),
		DocumentCount: 2,
		ValidCount:    1,
		GrandTotal:    1234.56,
	}
}

func sampleOutcomes() []pipeline.Outcome {
	return []pipeline.Outcome{
		{
			Document: locate.Document{Path: "/data/发票1.pdf", Ext: "pdf", ShortID: "aaaa1111"},
			Info:     entity.InvoiceInfo{InvoiceNo: "00123456", IssueDate: "2024-12-01", Seller: "北京测试", Buyer: "示例方", Total: 1234.56},
		},
		{
			Document: locate.Document{Path: "/data/发票2.jpg", Ext: "jpg", ShortID: "bbbb2222"},
			Errors:   []string{"extraction failed: no amount recognized", "not an invoice"},
		},
	}
}

func TestRecordAndReadBackRun(t *testing.T) {
	store, err := Open(":memory:", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	started := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	id, err := store.RecordRun(ctx, sampleRun(started), sampleOutcomes())
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated run id")
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].ID != id || runs[0].GrandTotal != 1234.56 || runs[0].ValidCount != 1 {
		t.Errorf("run = %+v", runs[0])
	}

	docs, err := store.RunDocuments(ctx, id)
	if err != nil {
		t.Fatalf("RunDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if docs[0].Status != "ok" || docs[0].InvoiceNo != "00123456" {
		t.Errorf("first document = %+v", docs[0])
	}
	if docs[1].Status != "failed" || docs[1].Errors != "extraction failed: no amount recognized; not an invoice" {
		t.Errorf("second document = %+v", docs[1])
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	store, err := Open(":memory:", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.RecordRun(ctx, sampleRun(base.Add(time.Duration(i)*time.Hour)), nil); err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want limit 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("runs not newest-first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestOpenCreatesFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.RecordRun(context.Background(), sampleRun(time.Now()), nil); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns after reopen: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("runs after reopen = %d, want 1", len(runs))
	}
}
