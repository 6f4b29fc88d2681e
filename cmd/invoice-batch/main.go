package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sheldon123z/invoice-ocr/internal/analyze"
	"github.com/sheldon123z/invoice-ocr/internal/batch"
	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/history"
	"github.com/sheldon123z/invoice-ocr/internal/locate"
	"github.com/sheldon123z/invoice-ocr/internal/observability/metrics"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
	"github.com/sheldon123z/invoice-ocr/internal/provider"
	"github.com/sheldon123z/invoice-ocr/internal/raster"
	"github.com/sheldon123z/invoice-ocr/internal/rename"
	"github.com/sheldon123z/invoice-ocr/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir         = flag.String("dir", "", "directory to scan for invoices (required)")
		configPath  = flag.String("config", "", "optional YAML config file")
		out         = flag.String("out", "", "output directory for reports (defaults to --dir)")
		excel       = flag.Bool("excel", false, "write the Excel report")
		markdown    = flag.Bool("markdown", true, "write the Markdown report")
		doRename    = flag.Bool("rename", false, "apply amount-buyer rename suggestions")
		validate    = flag.Bool("validate", false, "filter out non-invoice files before extraction")
		verify      = flag.Bool("verify", false, "run the authenticity assessment pass")
		classify    = flag.Bool("classify", false, "run the type/category classification pass")
		maxRetries  = flag.Int("max-retries", -1, "max extraction retries per document (-1 keeps config value)")
		concurrency = flag.Int("concurrency", 0, "worker pool size (0 keeps config value)")
		inmem       = flag.Bool("inmem", false, "use an in-memory history database")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: common.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	cfg.Pipeline.Validate = cfg.Pipeline.Validate || *validate
	cfg.Pipeline.Verify = cfg.Pipeline.Verify || *verify
	cfg.Pipeline.Classify = cfg.Pipeline.Classify || *classify
	if *maxRetries >= 0 {
		cfg.Pipeline.MaxRetries = *maxRetries
	}
	if *concurrency > 0 {
		cfg.Pipeline.Concurrency = *concurrency
	}
	if *inmem {
		cfg.History.DBPath = ":memory:"
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	root, err := filepath.Abs(*dir)
	if err != nil {
		logger.Error("resolve root", "error", err)
		os.Exit(1)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		logger.Error("root directory does not exist", "path", root)
		printError("[错误] 路径不存在: %s\n", root)
		os.Exit(1)
	}
	if *out == "" {
		*out = root
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := locate.List(root)
	if len(docs) == 0 {
		fmt.Printf("[提示] 在 %s 下未找到发票文件（PDF/图片）。\n", root)
		return
	}

	prov, err := provider.New(cfg.Provider, logger)
	if err != nil {
		logger.Error("resolve provider", "error", err)
		os.Exit(1)
	}

	var m *metrics.BatchMetrics
	if cfg.Metrics.Addr != "" {
		m = metrics.NewBatchMetrics(cfg.Provider.Kind)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics listener failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	limited := batch.LimitProvider(prov, cfg.Pipeline.RatePerSec, m, cfg.Provider.Kind)
	rasterizer := raster.New(raster.Config{Pdftoppm: cfg.Raster.Pdftoppm}, logger)
	processor := pipeline.NewProcessor(cfg.Pipeline, limited, rasterizer, logger)
	runner := batch.NewRunner(processor, batch.Config{Concurrency: cfg.Pipeline.Concurrency}, m, cfg.Provider.Kind, logger)

	fmt.Printf("共发现 %d 份发票，开始 OCR ...\n", len(docs))
	fmt.Printf("识别后端: %s\n\n", cfg.Provider.Kind)

	started := time.Now()
	progress := make(chan batch.Progress, len(docs))
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for p := range progress {
			status := "✓ OK"
			if len(p.Outcome.Errors) > 0 {
				status = "⚠ " + common.Truncate(p.Outcome.Errors[0], 40)
			}
			fmt.Printf("[%03d] %-40s -> %10.2f 元  %s\n",
				p.Index+1,
				filepath.Base(p.Outcome.Document.Path),
				p.Outcome.Info.Total,
				status,
			)
		}
	}()

	outs, runErr := runner.Run(ctx, docs, progress)
	close(progress)
	<-progressDone
	if runErr != nil {
		logger.Warn("batch interrupted", "error", runErr, "processed", len(outs))
	}

	analysis := analyze.Analyze(outs)
	printSummary(analysis)

	if *markdown {
		mdPath := filepath.Join(*out, "invoice_summary.md")
		if err := report.WriteMarkdown(mdPath, root, outs, analysis); err != nil {
			printError("❌ Markdown 导出失败: %v\n", err)
		} else {
			fmt.Printf("✅ Markdown 报告: %s\n", mdPath)
		}
	}
	if *excel {
		xlsxPath := filepath.Join(*out, "invoice_summary.xlsx")
		if err := report.WriteExcel(xlsxPath, outs, analysis); err != nil {
			printError("❌ Excel 导出失败: %v\n", err)
		} else {
			fmt.Printf("✅ Excel 报告: %s\n", xlsxPath)
		}
	}

	printRenames(outs, *doRename)

	store, err := history.Open(cfg.History.DBPath, logger)
	if err != nil {
		logger.Error("open history store", "error", err)
	} else {
		defer store.Close()
		run := history.Run{
			Root:          root,
			Provider:      cfg.Provider.Kind,
			StartedAt:     started,
			FinishedAt:    time.Now(),
			DocumentCount: analysis.DocumentCount,
			ValidCount:    analysis.ValidCount,
			GrandTotal:    analysis.GrandTotal,
		}
		if runID, err := store.RecordRun(ctx, run, outs); err != nil {
			logger.Error("record run", "error", err)
		} else {
			logger.Info("run recorded", "run_id", runID)
		}
	}

	fmt.Println("\n✨ 处理完成！")
	if runErr != nil {
		os.Exit(1)
	}
}

func printSummary(a analyze.Analysis) {
	fmt.Println("\n📊 统计汇总")
	fmt.Printf("  发票总数：%d\n", a.DocumentCount)
	fmt.Printf("  有效发票：%d\n", a.ValidCount)
	fmt.Printf("  总金额：%.2f 元\n", a.GrandTotal)
	fmt.Printf("  平均金额：%.2f 元\n", a.Mean())

	if len(a.Duplicates) > 0 {
		fmt.Printf("\n  ⚠ 重复发票号: %v\n", a.Duplicates)
	}
	if len(a.Outliers) > 0 {
		fmt.Println("\n⚠ 异常警告（超过平均值3倍）:")
		for _, o := range a.Outliers {
			fmt.Printf("  - %s: %.2f 元 (均值 %.2f)\n", filepath.Base(o.Path), o.Total, o.Mean)
		}
	}

	fmt.Println("\n💰 按金额区间统计:")
	fmt.Printf("  0-1000 元: %d 份\n", a.Histogram.Under1K)
	fmt.Printf("  1000-10000 元: %d 份\n", a.Histogram.Under10K)
	fmt.Printf("  10000+ 元: %d 份\n", a.Histogram.Over10K)

	if len(a.ByMonth) > 0 {
		fmt.Println("\n📅 按月份统计:")
		for _, month := range a.SortedMonths() {
			g := a.ByMonth[month]
			fmt.Printf("  %s: %d 份，合计 %.2f 元\n", month, g.Count, g.Total)
		}
	}
	if len(a.BySeller) > 0 {
		fmt.Println("\n🏢 按供应商统计（top 10）:")
		for _, seller := range report.TopSellers(a, 10) {
			g := a.BySeller[seller]
			fmt.Printf("  %-20s %3d 份，合计 %10.2f 元\n", seller, g.Count, g.Total)
		}
	}
}

func printRenames(outs []pipeline.Outcome, apply bool) {
	ops := rename.Suggest(outs)
	if len(ops) == 0 {
		return
	}
	if apply {
		ops = rename.Apply(ops)
	}

	fmt.Println("\n📝 文件重命名建议（金额-购买方格式）:")
	shown := ops
	if len(shown) > 20 {
		shown = shown[:20]
	}
	applied := 0
	for _, op := range shown {
		switch {
		case op.Err != nil:
			fmt.Printf("  ❌ %s -> %s (%v)\n", filepath.Base(op.From), filepath.Base(op.To), op.Err)
		case op.Applied:
			fmt.Printf("  ✓ %s -> %s\n", filepath.Base(op.From), filepath.Base(op.To))
		default:
			fmt.Printf("  → %s -> %s\n", filepath.Base(op.From), filepath.Base(op.To))
		}
	}
	if len(ops) > 20 {
		fmt.Printf("  ... 还有 %d 条\n", len(ops)-20)
	}
	for _, op := range ops {
		if op.Applied {
			applied++
		}
	}
	if apply {
		fmt.Printf("\n✅ 已重命名 %d 份文件\n", applied)
	}
}
