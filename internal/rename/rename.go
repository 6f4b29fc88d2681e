// Package rename derives amount-buyer filenames for cleanly extracted
// documents so a folder of opaque scans becomes scannable at a glance.
package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

const buyerRunes = 15

// Op is one suggested rename. Applied and Err are filled by Apply.
type Op struct {
	From    string
	To      string
	Applied bool
	Err     error
}

// Suggest proposes "{total}-{buyer}{ext}" names for outcomes that
// extracted cleanly. Documents with errors, a zero total, or an unknown
// buyer are left alone, as is any file already carrying its target name.
func Suggest(outcomes []pipeline.Outcome) []Op {
	var ops []Op
	for _, out := range outcomes {
		if len(out.Errors) > 0 || out.Info.Total <= 0 || out.Info.Buyer == "" {
			continue
		}

		buyer := common.Truncate(strings.Join(strings.Fields(out.Info.Buyer), ""), buyerRunes)
		name := fmt.Sprintf("%.0f-%s%s", out.Info.Total, buyer, filepath.Ext(out.Document.Path))
		to := filepath.Join(filepath.Dir(out.Document.Path), name)
		if to == out.Document.Path {
			continue
		}
		ops = append(ops, Op{From: out.Document.Path, To: to})
	}
	return ops
}

// Apply performs the renames in place, recording per-op results. A
// failed rename never stops the remaining ops.
func Apply(ops []Op) []Op {
	for i := range ops {
		if err := os.Rename(ops[i].From, ops[i].To); err != nil {
			ops[i].Err = err
			continue
		}
		ops[i].Applied = true
	}
	return ops
}
