package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/locate"
)

type stubRaster struct {
	scratch string
	err     error
}

func (s *stubRaster) FirstPage(_ context.Context, path, _, _, scratchDir string) (string, error) {
	s.scratch = scratchDir
	if s.err != nil {
		return "", s.err
	}
	return path, nil
}

// scriptedProvider dispatches on the instruction text so a single stub can
// play the gate, extraction, and enrichment roles in one Process run.
type scriptedProvider struct {
	validateReply string
	validateErr   error
	verifyReply   string
	verifyErr     error
	classifyReply string
	classifyErr   error

	extractReplies []string
	extractErr     error

	validateCalls int
	extractCalls  int
}

func (s *scriptedProvider) Call(_ context.Context, _ string, instruction string) (string, error) {
	switch instruction {
	case ValidatePrompt:
		s.validateCalls++
		return s.validateReply, s.validateErr
	case VerifyPrompt:
		return s.verifyReply, s.verifyErr
	case ClassifyPrompt:
		return s.classifyReply, s.classifyErr
	default:
		s.extractCalls++
		if s.extractErr != nil {
			return "", s.extractErr
		}
		i := s.extractCalls - 1
		if i >= len(s.extractReplies) {
			i = len(s.extractReplies) - 1
		}
		return s.extractReplies[i], nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDoc() locate.Document {
	return locate.Document{Path: "/data/发票-餐饮.jpg", Ext: "jpg", ShortID: "abcd1234"}
}

func TestProcessRetriesEmptyAmountThenSucceeds(t *testing.T) {
	prov := &scriptedProvider{
		extractReplies: []string{
			`{"total": 0}`,
			`{"total": 0}`,
			`{"invoice_no": "00123456", "seller": "测试公司", "total": 123.45}`,
		},
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 3}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if !out.OK() {
		t.Fatalf("expected success, got errors %v total %v", out.Errors, out.Info.Total)
	}
	if out.Info.Total != 123.45 {
		t.Errorf("total = %v, want 123.45", out.Info.Total)
	}
	if prov.extractCalls != 3 {
		t.Errorf("extract calls = %d, want 3", prov.extractCalls)
	}
}

func TestProcessNetworkFailureExhaustsRetryBudget(t *testing.T) {
	prov := &scriptedProvider{
		extractErr: common.ProviderError("backend unreachable", errors.New("connection refused")),
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 2}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 3 {
		t.Fatalf("extract calls = %d, want exactly 3 (1 initial + 2 retries)", prov.extractCalls)
	}
	if len(out.Errors) == 0 {
		t.Fatal("expected a terminal error entry")
	}
	if out.Info.Total != 0 {
		t.Errorf("total = %v, want 0", out.Info.Total)
	}
}

func TestProcessNoAmountTerminalError(t *testing.T) {
	prov := &scriptedProvider{extractReplies: []string{"无法识别"}}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 1}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 2 {
		t.Errorf("extract calls = %d, want 2", prov.extractCalls)
	}
	if len(out.Errors) != 1 || out.Errors[0] != "extraction failed: no amount recognized" {
		t.Errorf("errors = %v", out.Errors)
	}
}

func TestProcessZeroTotalNeverScavengesOtherFields(t *testing.T) {
	// A structured reply whose total is 0 must exhaust the retry loop and
	// fail; digits in the invoice number or date are not amounts.
	prov := &scriptedProvider{
		extractReplies: []string{`{"invoice_no": "00123456", "issue_date": "2024-12-01", "total": 0}`},
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 2}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 3 {
		t.Errorf("extract calls = %d, want 3 (1 initial + 2 retries)", prov.extractCalls)
	}
	if out.Info.Total != 0 {
		t.Fatalf("total = %v, want 0; no amount may be invented from other fields", out.Info.Total)
	}
	if len(out.Errors) != 1 || out.Errors[0] != "extraction failed: no amount recognized" {
		t.Errorf("errors = %v", out.Errors)
	}
	if out.Info.InvoiceNo != "00123456" {
		t.Errorf("invoice no = %q, partial extraction should be kept", out.Info.InvoiceNo)
	}
}

func TestProcessValidationGateSkipsNonInvoice(t *testing.T) {
	prov := &scriptedProvider{validateReply: `{"is_invoice": false}`}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 3, Validate: true}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 0 {
		t.Errorf("extract calls = %d, want 0 after gate rejection", prov.extractCalls)
	}
	if prov.validateCalls != 1 {
		t.Errorf("validate calls = %d, want 1", prov.validateCalls)
	}
	if len(out.Errors) != 1 || out.Errors[0] != NotInvoiceMarker {
		t.Errorf("errors = %v, want [%q]", out.Errors, NotInvoiceMarker)
	}
}

func TestProcessValidationGateAssumesValidOnProviderError(t *testing.T) {
	prov := &scriptedProvider{
		validateErr:    common.ProviderError("gate down", nil),
		extractReplies: []string{`{"total": 50}`},
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 0, Validate: true}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 1 {
		t.Errorf("extract calls = %d, want 1", prov.extractCalls)
	}
	if !out.OK() {
		t.Errorf("expected success despite gate failure, got %v", out.Errors)
	}
}

func TestProcessRasterizeErrorIsTerminal(t *testing.T) {
	prov := &scriptedProvider{}
	r := &stubRaster{err: common.ConversionError("pdftoppm conversion failed", errors.New("exit status 1"))}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 3}, prov, r, testLogger())

	out := p.Process(context.Background(), testDoc())

	if prov.extractCalls != 0 {
		t.Errorf("extract calls = %d, want 0", prov.extractCalls)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", out.Errors)
	}
}

func TestProcessRemovesScratchDirForPDF(t *testing.T) {
	prov := &scriptedProvider{extractReplies: []string{`{"total": 99}`}}
	r := &stubRaster{}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 0}, prov, r, testLogger())

	doc := locate.Document{Path: "/data/invoice.pdf", Ext: "pdf", ShortID: "deadbeef"}
	out := p.Process(context.Background(), doc)

	if !out.OK() {
		t.Fatalf("unexpected errors %v", out.Errors)
	}
	if r.scratch == "" {
		t.Fatal("expected a scratch dir for pdf input")
	}
	if _, err := os.Stat(r.scratch); !os.IsNotExist(err) {
		t.Errorf("scratch dir %s still exists after Process", r.scratch)
	}
}

func TestProcessVerifyFailureDegradesToDefaults(t *testing.T) {
	prov := &scriptedProvider{
		extractReplies: []string{`{"total": 200}`},
		verifyErr:      common.ProviderError("verify backend down", nil),
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 0, Verify: true}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if !out.OK() {
		t.Fatalf("verify failure must not fail the document, got %v", out.Errors)
	}
	if out.Info.RiskLevel != "low" {
		t.Errorf("risk level = %q, want the neutral default", out.Info.RiskLevel)
	}
	if out.Info.RiskNotes == "" {
		t.Error("expected the verify failure recorded in risk notes")
	}
}

func TestProcessEnrichmentPassesMapFields(t *testing.T) {
	prov := &scriptedProvider{
		extractReplies: []string{`{"total": 350, "invoice_no": "888"}`},
		verifyReply:    `{"risk_level": "high", "has_stamp": false, "image_quality": "poor", "risk_notes": "无印章"}`,
		classifyReply:  `{"invoice_type": "taxi", "invoice_type_name": "出租车发票", "expense_category": "transport", "expense_category_name": "交通"}`,
	}
	p := NewProcessor(common.PipelineConfig{MaxRetries: 0, Verify: true, Classify: true}, prov, &stubRaster{}, testLogger())

	out := p.Process(context.Background(), testDoc())

	if out.Info.RiskLevel != "high" || out.Info.HasStamp || out.Info.ImageQuality != "poor" {
		t.Errorf("verification not applied: %+v", out.Info)
	}
	if out.Info.InvoiceType != "taxi" || out.Info.ExpenseCategory != "transport" {
		t.Errorf("classification not applied: %+v", out.Info)
	}
}
