package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/sheldon123z/invoice-ocr/internal/analyze"
	"github.com/sheldon123z/invoice-ocr/internal/entity"
	"github.com/sheldon123z/invoice-ocr/internal/locate"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

func sampleOutcomes(enriched bool) []pipeline.Outcome {
	a := pipeline.Outcome{
		Document: locate.Document{Path: "/data/发票1.pdf", Ext: "pdf", ShortID: "aaaa1111"},
		Info: entity.InvoiceInfo{
			InvoiceNo: "00123456",
			IssueDate: "2024-12-01",
			Seller:    "北京测试科技有限公司",
			Buyer:     "示例采购方",
			Total:     1234.56,
			Tax:       71.2,
		},
	}
	b := pipeline.Outcome{
		Document: locate.Document{Path: "/data/发票2.jpg", Ext: "jpg", ShortID: "bbbb2222"},
		Info:     entity.InvoiceInfo{Total: 0},
		Errors:   []string{"extraction failed: no amount recognized"},
	}
	if enriched {
		a.Info.InvoiceType = "general_vat"
		a.Info.InvoiceTypeName = "增值税普通发票"
		a.Info.ExpenseCategory = "dining"
		a.Info.ExpenseCategoryName = "餐饮"
		a.Info.RiskLevel = "high"
		a.Info.RiskNotes = "无印章"
	}
	return []pipeline.Outcome{a, b}
}

func TestWriteExcelPlainLayout(t *testing.T) {
	outs := sampleOutcomes(false)
	a := analyze.Analyze(outs)
	path := filepath.Join(t.TempDir(), "summary.xlsx")

	if err := WriteExcel(path, outs, a); err != nil {
		t.Fatalf("WriteExcel: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("发票明细")
	if err != nil {
		t.Fatalf("detail sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("detail rows = %d, want header + 2", len(rows))
	}
	// Without enrichment data the layout stays at 11 columns.
	if got := len(rows[0]); got != 11 {
		t.Errorf("header columns = %d, want 11: %v", got, rows[0])
	}
	if rows[1][2] != "00123456" {
		t.Errorf("invoice no cell = %q", rows[1][2])
	}
	if !strings.HasPrefix(rows[2][10], "❌") {
		t.Errorf("status cell = %q, want failure marker", rows[2][10])
	}

	if _, err := f.GetRows("统计汇总"); err != nil {
		t.Errorf("summary sheet missing: %v", err)
	}
}

func TestWriteExcelDynamicColumns(t *testing.T) {
	outs := sampleOutcomes(true)
	a := analyze.Analyze(outs)
	path := filepath.Join(t.TempDir(), "summary.xlsx")

	if err := WriteExcel(path, outs, a); err != nil {
		t.Fatalf("WriteExcel: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("发票明细")
	if err != nil {
		t.Fatalf("detail sheet: %v", err)
	}
	if got := len(rows[0]); got != 15 {
		t.Errorf("header columns = %d, want 15 with classify+verify: %v", got, rows[0])
	}
	if rows[0][9] != "发票类型" || rows[0][11] != "风险等级" {
		t.Errorf("enrichment headers misplaced: %v", rows[0])
	}
	if rows[1][11] != "❌ 高风险" {
		t.Errorf("risk cell = %q", rows[1][11])
	}
}

func TestRenderMarkdown(t *testing.T) {
	outs := sampleOutcomes(false)
	a := analyze.Analyze(outs)

	md := RenderMarkdown("/data", outs, a)

	for _, want := range []string{
		"# 📋 发票 OCR 汇总报告",
		"发票数量：2 份",
		"有效发票：1 份",
		"**1234.56 元**",
		"| 1 | `发票1.pdf` | 00123456 | 2024-12-01 | 北京测试科技有限公司 | 1234.56 | ✓ |",
		"| 2 | `发票2.jpg` |  |  |  | 0.00 | ✗ |",
		"## 📅 按月份统计",
		"| 2024-12 | 1 | 1234.56 |",
		"## 🏢 按供应商统计（top 10）",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestTopSellersOrderedByTotal(t *testing.T) {
	a := analyze.Analysis{
		BySeller: map[string]analyze.Group{
			"甲": {Count: 1, Total: 100},
			"乙": {Count: 5, Total: 900},
			"丙": {Count: 2, Total: 500},
		},
	}

	got := TopSellers(a, 2)
	if len(got) != 2 || got[0] != "乙" || got[1] != "丙" {
		t.Errorf("top sellers = %v, want [乙 丙]", got)
	}
}
