package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sheldon123z/invoice-ocr/internal/analyze"
	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

// RenderMarkdown builds the summary document: headline metrics, the
// per-document detail table, and the by-month and by-seller breakdowns.
func RenderMarkdown(root string, outcomes []pipeline.Outcome, a analyze.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 📋 发票 OCR 汇总报告\n")
	fmt.Fprintf(&b, "- 🗂️ 扫描目录：`%s`\n", root)
	fmt.Fprintf(&b, "- 📊 发票数量：%d 份\n", a.DocumentCount)
	fmt.Fprintf(&b, "- ✅ 有效发票：%d 份\n", a.ValidCount)
	fmt.Fprintf(&b, "- 💰 总金额：**%.2f 元**\n", a.GrandTotal)
	fmt.Fprintf(&b, "- 📈 平均金额：%.2f 元\n", a.Mean())

	b.WriteString("\n## 📝 明细表\n")
	b.WriteString("| 序号 | 文件 | 发票号 | 日期 | 供应商 | 金额(元) | 状态 |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	for i, out := range outcomes {
		status := "✓"
		if len(out.Errors) > 0 {
			status = "✗"
		}
		fmt.Fprintf(&b, "| %d | `%s` | %s | %s | %s | %.2f | %s |\n",
			i+1,
			filepath.Base(out.Document.Path),
			out.Info.InvoiceNo,
			out.Info.IssueDate,
			common.Truncate(out.Info.Seller, 15),
			out.Info.Total,
			status,
		)
	}

	if len(a.ByMonth) > 0 {
		b.WriteString("\n## 📅 按月份统计\n")
		b.WriteString("| 月份 | 数量 | 合计(元) |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, month := range a.SortedMonths() {
			g := a.ByMonth[month]
			fmt.Fprintf(&b, "| %s | %d | %.2f |\n", month, g.Count, g.Total)
		}
	}

	if len(a.BySeller) > 0 {
		b.WriteString("\n## 🏢 按供应商统计（top 10）\n")
		b.WriteString("| 供应商 | 数量 | 合计(元) |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, seller := range TopSellers(a, 10) {
			g := a.BySeller[seller]
			fmt.Fprintf(&b, "| %s | %d | %.2f |\n", seller, g.Count, g.Total)
		}
	}

	return b.String()
}

// WriteMarkdown renders and writes the summary next to the scanned root.
func WriteMarkdown(path, root string, outcomes []pipeline.Outcome, a analyze.Analysis) error {
	content := RenderMarkdown(root, outcomes, a)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}
