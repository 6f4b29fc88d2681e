// Package pipeline drives one document through rasterization, the vision
// backend, and response parsing, with retries for empty and transient
// failures.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/sheldon123z/invoice-ocr/constants"
	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/entity"
	"github.com/sheldon123z/invoice-ocr/internal/locate"
	"github.com/sheldon123z/invoice-ocr/internal/parse"
	"github.com/sheldon123z/invoice-ocr/internal/provider"
	"github.com/sheldon123z/invoice-ocr/internal/resilience"
)

// NotInvoiceMarker is the single error entry recorded when the validation
// gate rules a document out before extraction.
const NotInvoiceMarker = "not an invoice"

// errNoAmount signals an attempt that parsed cleanly but produced no
// positive total. It is retryable with the shorter delay.
var errNoAmount = errors.New("no amount recognized")

// Rasterizer yields a raster image path for a document's first page.
// Images pass through unchanged; PDFs are converted into scratchDir.
type Rasterizer interface {
	FirstPage(ctx context.Context, path, ext, shortID, scratchDir string) (string, error)
}

// Outcome is the terminal record for one document. Errors holds
// human-readable failure strings in the order they occurred; a document
// counts as successfully extracted only when Total is positive and
// Errors is empty.
type Outcome struct {
	Document locate.Document
	Info     entity.InvoiceInfo
	Errors   []string
}

// OK reports whether extraction fully succeeded.
func (o Outcome) OK() bool {
	return o.Info.Total > 0 && len(o.Errors) == 0
}

// Processor runs the per-document state machine.
type Processor struct {
	cfg    common.PipelineConfig
	prov   provider.Provider
	raster Rasterizer
	exec   *resilience.Executor
	logger *slog.Logger
}

// NewProcessor builds a processor. MaxRetries counts retries after the
// initial attempt, so the provider is invoked at most 1+MaxRetries times
// per document.
func NewProcessor(cfg common.PipelineConfig, prov provider.Provider, r Rasterizer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	rc := resilience.DefaultConfig()
	rc.MaxAttempts = cfg.MaxRetries + 1
	if cfg.MaxRetries < 0 {
		rc.MaxAttempts = 1
	}
	rc.EmptyResultDelay = cfg.RetryDelay
	rc.NetworkDelay = cfg.NetworkDelay

	return &Processor{
		cfg:    cfg,
		prov:   prov,
		raster: r,
		exec:   resilience.NewExecutor(rc),
		logger: logger,
	}
}

// Process runs one document to completion. It never returns an error;
// every failure mode lands in the outcome's error list so batch runs keep
// going past bad documents.
func (p *Processor) Process(ctx context.Context, doc locate.Document) Outcome {
	out := Outcome{Document: doc}
	logger := p.logger.With("doc", filepath.Base(doc.Path), "short_id", doc.ShortID)

	scratch := ""
	if constants.MapExtToFormat(doc.Ext) == constants.PDF {
		dir, err := os.MkdirTemp("", "invoice_ocr_")
		if err != nil {
			logger.Error("pipeline.scratch_dir_failed", "error", err)
			out.Errors = append(out.Errors, err.Error())
			return out
		}
		scratch = dir
		defer os.RemoveAll(dir)
	}

	img, err := p.raster.FirstPage(ctx, doc.Path, doc.Ext, doc.ShortID, scratch)
	if err != nil {
		logger.Error("pipeline.rasterize_failed", "error", err)
		out.Errors = append(out.Errors, err.Error())
		return out
	}

	if p.cfg.Validate && !p.passesGate(ctx, img, logger) {
		logger.Info("pipeline.skipped_non_invoice")
		out.Errors = append(out.Errors, NotInvoiceMarker)
		return out
	}

	info, err := p.extract(ctx, img, logger)
	out.Info = info
	if err != nil {
		if errors.Is(err, errNoAmount) {
			out.Errors = append(out.Errors, "extraction failed: no amount recognized")
		} else {
			out.Errors = append(out.Errors, err.Error())
		}
		logger.Error("pipeline.extract_failed", "error", err)
	} else {
		logger.Info("pipeline.extracted", "total", info.Total, "invoice_no", info.InvoiceNo)
	}

	if p.cfg.Verify {
		p.verify(ctx, img, &out, logger)
	}
	if p.cfg.Classify {
		p.classify(ctx, img, &out, logger)
	}
	return out
}

// passesGate asks the model whether the image is an invoice at all. The
// gate runs once and is never retried; when the backend is unreachable or
// the reply is garbled the document is assumed to be an invoice so that a
// flaky gate cannot silently drop real invoices.
func (p *Processor) passesGate(ctx context.Context, img string, logger *slog.Logger) bool {
	raw, err := p.prov.Call(ctx, img, ValidatePrompt)
	if err != nil {
		logger.Warn("pipeline.validate_unavailable", "error", err)
		return true
	}
	isInvoice, ok := parse.Validation(raw)
	if !ok {
		logger.Warn("pipeline.validate_undecodable")
		return true
	}
	return isInvoice
}

func (p *Processor) extract(ctx context.Context, img string, logger *slog.Logger) (entity.InvoiceInfo, error) {
	var info entity.InvoiceInfo
	err := p.exec.Execute(ctx, "extract", func(ctx context.Context) error {
		raw, err := p.prov.Call(ctx, img, ExtractPrompt)
		if err != nil {
			return err
		}
		// Strict structured decode only. The max-token scan stays in the
		// amount-only path; here a zero total means the model did not
		// commit to an amount and the attempt counts as empty.
		info = parse.Invoice(raw, logger)
		if info.Total <= 0 {
			return errNoAmount
		}
		return nil
	}, classifyExtractError)
	return info, err
}

// verify runs the authenticity pass. Failures degrade to the neutral
// assessment with the cause recorded in the risk notes; they never fail
// the document.
func (p *Processor) verify(ctx context.Context, img string, out *Outcome, logger *slog.Logger) {
	v := entity.DefaultVerification()
	raw, err := p.prov.Call(ctx, img, VerifyPrompt)
	if err != nil {
		logger.Warn("pipeline.verify_failed", "error", err)
		v.RiskNotes = "验证失败: " + common.Truncate(err.Error(), 50)
	} else {
		v = parse.Verification(raw)
	}

	out.Info.RiskLevel = v.RiskLevel
	out.Info.RiskNotes = v.RiskNotes
	out.Info.HasStamp = v.HasStamp
	out.Info.ImageQuality = v.ImageQuality
}

// classify runs the type/category pass, degrading to the generic bucket
// on any failure.
func (p *Processor) classify(ctx context.Context, img string, out *Outcome, logger *slog.Logger) {
	c := entity.DefaultClassification()
	raw, err := p.prov.Call(ctx, img, ClassifyPrompt)
	if err != nil {
		logger.Warn("pipeline.classify_failed", "error", common.Truncate(err.Error(), 50))
	} else {
		c = parse.Classification(raw)
	}

	out.Info.InvoiceType = c.InvoiceType
	out.Info.InvoiceTypeName = c.InvoiceTypeName
	out.Info.ExpenseCategory = c.ExpenseCategory
	out.Info.ExpenseCategoryName = c.ExpenseCategoryName
}

// classifyExtractError decides retryability for the extraction loop.
// Empty results wait the short delay, transport failures the longer one;
// context cancellation always stops the loop.
func classifyExtractError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false}
	case errors.Is(err, errNoAmount):
		return resilience.ErrorClassification{Retryable: true, Delay: resilience.DelayEmptyResult}
	case isNetworkError(err):
		return resilience.ErrorClassification{Retryable: true, Delay: resilience.DelayNetwork, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: true, Delay: resilience.DelayEmptyResult, RecordFailure: true}
	}
}

func isNetworkError(err error) bool {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return common.IsKind(err, common.ErrProvider)
}
