// Package report renders a finished batch into the Excel and Markdown
// artifacts dropped next to the scanned documents.
package report

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/sheldon123z/invoice-ocr/internal/analyze"
	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

const (
	detailSheet  = "发票明细"
	summarySheet = "统计汇总"
)

var riskLabels = map[string]string{
	"low":    "✅ 低风险",
	"medium": "⚠️ 中风险",
	"high":   "❌ 高风险",
}

var riskFillColors = map[string]string{
	"high":   "FF6B6B",
	"medium": "FFD93D",
	"low":    "6BCB77",
}

// WriteExcel writes the two-sheet workbook. Classification and
// verification columns appear only when at least one outcome carries
// that data, so plain extraction runs keep the narrow layout.
func WriteExcel(path string, outcomes []pipeline.Outcome, a analyze.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeDetailSheet(f, outcomes); err != nil {
		return fmt.Errorf("detail sheet: %w", err)
	}
	if err := writeSummarySheet(f, outcomes, a); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func hasVerifyData(outcomes []pipeline.Outcome) bool {
	for _, out := range outcomes {
		if out.Info.RiskLevel != "" {
			return true
		}
	}
	return false
}

func hasClassifyData(outcomes []pipeline.Outcome) bool {
	for _, out := range outcomes {
		if out.Info.InvoiceType != "" {
			return true
		}
	}
	return false
}

func writeDetailSheet(f *excelize.File, outcomes []pipeline.Outcome) error {
	f.SetSheetName("Sheet1", detailSheet)

	hasVerify := hasVerifyData(outcomes)
	hasClassify := hasClassifyData(outcomes)

	headers := []string{"序号", "文件名", "发票号", "开票日期", "供应商", "购买方", "合计金额", "税额", "小计"}
	widths := []float64{8, 25, 15, 12, 20, 20, 12, 12, 12}
	if hasClassify {
		headers = append(headers, "发票类型", "费用类别")
		widths = append(widths, 15, 12)
	}
	if hasVerify {
		headers = append(headers, "风险等级", "风险说明")
		widths = append(widths, 12, 30)
	}
	headers = append(headers, "项目", "状态")
	widths = append(widths, 30, 30)

	thin := []excelize.Border{
		{Type: "left", Style: 1},
		{Type: "right", Style: 1},
		{Type: "top", Style: 1},
		{Type: "bottom", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Border: thin,
	})
	if err != nil {
		return err
	}
	amountFmt := "0.00"
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt, Border: thin})
	if err != nil {
		return err
	}
	riskStyles := make(map[string]int, len(riskFillColors))
	for level, color := range riskFillColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thin,
		})
		if err != nil {
			return err
		}
		riskStyles[level] = style
	}

	set := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(detailSheet, cell, v)
	}

	for i, h := range headers {
		set(i+1, 1, h)
	}
	headerEnd, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(detailSheet, "A1", headerEnd, headerStyle)

	riskCol := 10
	if hasClassify {
		riskCol += 2
	}

	for idx, out := range outcomes {
		row := idx + 2
		info := out.Info

		set(1, row, idx+1)
		set(2, row, filepath.Base(out.Document.Path))
		set(3, row, info.InvoiceNo)
		set(4, row, info.IssueDate)
		set(5, row, common.Truncate(info.Seller, 30))
		set(6, row, common.Truncate(info.Buyer, 30))
		set(7, row, info.Total)
		set(8, row, info.Tax)
		set(9, row, info.Subtotal)

		col := 10
		if hasClassify {
			set(col, row, info.InvoiceTypeName)
			set(col+1, row, info.ExpenseCategoryName)
			col += 2
		}
		if hasVerify {
			set(col, row, riskLabels[info.RiskLevel])
			set(col+1, row, info.RiskNotes)
			col += 2
		}
		set(col, row, common.Truncate(info.Items, 40))
		if len(out.Errors) > 0 {
			set(col+1, row, "❌ "+common.Truncate(out.Errors[0], 30))
		} else {
			set(col+1, row, "✓ OK")
		}

		start, _ := excelize.CoordinatesToCellName(7, row)
		end, _ := excelize.CoordinatesToCellName(9, row)
		_ = f.SetCellStyle(detailSheet, start, end, amountStyle)

		if hasVerify {
			if style, ok := riskStyles[info.RiskLevel]; ok {
				cell, _ := excelize.CoordinatesToCellName(riskCol, row)
				_ = f.SetCellStyle(detailSheet, cell, cell, style)
			}
		}
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(detailSheet, name, name, width)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, outcomes []pipeline.Outcome, a analyze.Analysis) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	row := 0
	appendRow := func(values ...any) {
		row++
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
	}

	appendRow("发票统计汇总")
	appendRow()
	appendRow("指标", "数值")
	appendRow("发票总数", a.DocumentCount)
	appendRow("有效发票数", a.ValidCount)
	appendRow("总金额", a.GrandTotal)
	appendRow("平均金额", a.Mean())
	appendRow("重复发票号", len(a.Duplicates))

	appendRow()
	appendRow("按月份统计")
	appendRow("月份", "数量", "合计")
	for _, month := range a.SortedMonths() {
		g := a.ByMonth[month]
		appendRow(month, g.Count, g.Total)
	}

	appendRow()
	appendRow("按供应商统计")
	appendRow("供应商", "数量", "合计")
	for _, seller := range TopSellers(a, 10) {
		g := a.BySeller[seller]
		appendRow(seller, g.Count, g.Total)
	}

	if stats := groupByName(outcomes, func(i pipeline.Outcome) string { return i.Info.InvoiceTypeName }); len(stats) > 0 {
		appendRow()
		appendRow("按发票类型统计")
		appendRow("发票类型", "数量", "合计")
		for _, name := range sortByCountDesc(stats) {
			appendRow(name, stats[name].Count, stats[name].Total)
		}
	}

	if stats := groupByName(outcomes, func(i pipeline.Outcome) string { return i.Info.ExpenseCategoryName }); len(stats) > 0 {
		appendRow()
		appendRow("按费用类别统计")
		appendRow("费用类别", "数量", "合计")
		for _, name := range sortByCountDesc(stats) {
			appendRow(name, stats[name].Count, stats[name].Total)
		}
	}

	if hasVerifyData(outcomes) {
		riskCounts := make(map[string]int)
		for _, out := range outcomes {
			riskCounts[out.Info.RiskLevel]++
		}
		appendRow()
		appendRow("按风险等级统计")
		appendRow("风险等级", "数量")
		for _, level := range []string{"high", "medium", "low"} {
			if riskCounts[level] > 0 {
				appendRow(riskLabels[level], riskCounts[level])
			}
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 25)
	_ = f.SetColWidth(summarySheet, "B", "C", 15)
	return nil
}

// TopSellers returns up to n seller keys ordered by summed total,
// largest first, ties broken by name for determinism.
func TopSellers(a analyze.Analysis, n int) []string {
	keys := a.SortedSellers()
	sort.SliceStable(keys, func(i, j int) bool {
		return a.BySeller[keys[i]].Total > a.BySeller[keys[j]].Total
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func groupByName(outcomes []pipeline.Outcome, key func(pipeline.Outcome) string) map[string]analyze.Group {
	stats := make(map[string]analyze.Group)
	for _, out := range outcomes {
		name := key(out)
		if name == "" {
			continue
		}
		g := stats[name]
		g.Count++
		g.Total += out.Info.Total
		stats[name] = g
	}
	return stats
}

func sortByCountDesc(stats map[string]analyze.Group) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		return stats[names[i]].Count > stats[names[j]].Count
	})
	return names
}
