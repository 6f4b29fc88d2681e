// Package parse turns a vision model's free-text reply into structured
// invoice fields. Parsing never fails outward: malformed or misshapen
// replies degrade to zero/empty defaults and the caller observes only the
// resulting value.
package parse

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sheldon123z/invoice-ocr/constants"
	"github.com/sheldon123z/invoice-ocr/internal/entity"
)

var numberPattern = regexp.MustCompile(`-?\d[\d,]*\.?\d*`)

// extractJSONObject trims a reply down to its outermost JSON object.
// Models often wrap the object in prose or code fences.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// decodeObject attempts a structured decode of the reply.
func decodeObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// coerceString pulls a trimmed string field out of a decoded object.
func coerceString(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// coerceAmount accepts a native number or a digit string (commas stripped).
// Anything unparsable, and any negative value, normalizes to exactly 0.
func coerceAmount(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 {
		return 0
	}
	return f
}

// coerceBool reads a boolean field, returning def when absent or misshapen.
func coerceBool(obj map[string]any, key string, def bool) bool {
	if v, ok := obj[key].(bool); ok {
		return v
	}
	return def
}

// Invoice maps a full extraction reply onto InvoiceInfo. Replies failing
// the strict schema still go through the same lenient mapping, but the
// miss is logged at Warn with the validator's diagnostic so misbehaving
// models are visible without turning on debug logging.
func Invoice(raw string, logger *slog.Logger) entity.InvoiceInfo {
	if logger == nil {
		logger = slog.Default()
	}
	var info entity.InvoiceInfo

	obj, ok := decodeObject(raw)
	if !ok {
		return info
	}
	if err := validateInvoiceShape(obj); err != nil {
		logger.Warn("parse.invoice.schema_miss", "bytes", len(raw), "error", err)
	}

	info.InvoiceNo = coerceString(obj, "invoice_no")
	info.IssueDate = coerceString(obj, "issue_date")
	info.Seller = coerceString(obj, "seller")
	info.Buyer = coerceString(obj, "buyer")
	info.Items = coerceString(obj, "items")
	info.Notes = coerceString(obj, "notes")
	info.Total = coerceAmount(obj["total"])
	info.Tax = coerceAmount(obj["tax"])
	info.Subtotal = coerceAmount(obj["subtotal"])
	return info
}

// Amount extracts just the invoice total. When the structured decode fails
// or carries no usable total, every numeric token in the raw text is
// considered and the maximum wins; an amount dwarfs tax rates and dates in
// practice. No numeric content at all yields exactly 0.
func Amount(raw string) float64 {
	if obj, ok := decodeObject(raw); ok {
		if total := coerceAmount(obj["total"]); total > 0 {
			return total
		}
	}

	best := 0.0
	for _, tok := range numberPattern.FindAllString(raw, -1) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err != nil {
			continue
		}
		if f > best {
			best = f
		}
	}
	return best
}

// Validation reads the is-this-an-invoice gate reply. ok is false when the
// reply is not decodable, in which case the caller assumes the document is
// an invoice and continues.
func Validation(raw string) (isInvoice bool, ok bool) {
	obj, decoded := decodeObject(raw)
	if !decoded {
		return false, false
	}
	v, has := obj["is_invoice"].(bool)
	if !has {
		return false, false
	}
	return v, true
}

// Verification maps an authenticity assessment reply, falling back to the
// neutral default for each missing field.
func Verification(raw string) entity.Verification {
	out := entity.DefaultVerification()
	obj, ok := decodeObject(raw)
	if !ok {
		return out
	}
	if v := coerceString(obj, "risk_level"); constants.ValidRiskLevel(v) {
		out.RiskLevel = v
	}
	if v := coerceString(obj, "image_quality"); v != "" {
		out.ImageQuality = v
	}
	out.HasStamp = coerceBool(obj, "has_stamp", out.HasStamp)
	out.HasCompleteCode = coerceBool(obj, "has_complete_code", out.HasCompleteCode)
	out.HasQRCode = coerceBool(obj, "has_qrcode", out.HasQRCode)
	out.HasTampering = coerceBool(obj, "has_tampering", out.HasTampering)
	out.AmountConsistent = coerceBool(obj, "amount_consistent", out.AmountConsistent)
	out.RiskNotes = coerceString(obj, "risk_notes")
	return out
}

// Classification maps a type/category reply, canonicalizing onto the known
// taxonomies with "other" as the fallback.
func Classification(raw string) entity.Classification {
	out := entity.DefaultClassification()
	obj, ok := decodeObject(raw)
	if !ok {
		return out
	}

	invType, _ := constants.CanonicalizeInvoiceType(coerceString(obj, "invoice_type"))
	out.InvoiceType = string(invType)
	if name := coerceString(obj, "invoice_type_name"); name != "" {
		out.InvoiceTypeName = name
	} else {
		out.InvoiceTypeName = constants.InvoiceTypeName(invType)
	}

	category, _ := constants.CanonicalizeExpenseCategory(coerceString(obj, "expense_category"))
	out.ExpenseCategory = string(category)
	if name := coerceString(obj, "expense_category_name"); name != "" {
		out.ExpenseCategoryName = name
	} else {
		out.ExpenseCategoryName = constants.ExpenseCategoryName(category)
	}
	return out
}
