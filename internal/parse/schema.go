package parse

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) for a
// full extraction response. Numeric fields accept either a native number or
// a digit string because vision models emit both. The schema gates the
// strict decode path only; a response that fails it still goes through the
// lenient field mapping.
func buildInvoiceJSONSchema() map[string]any {
	numeric := map[string]any{"type": []string{"number", "string"}}
	props := map[string]any{
		"invoice_no": map[string]any{"type": "string"},
		"issue_date": map[string]any{"type": "string"},
		"seller":     map[string]any{"type": "string"},
		"buyer":      map[string]any{"type": "string"},
		"total":      numeric,
		"tax":        numeric,
		"subtotal":   numeric,
		"items":      map[string]any{"type": "string"},
		"notes":      map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"total"},
	}
}

var invoiceSchema = mustCompile(buildInvoiceJSONSchema())

func mustCompile(schema map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	compiled, err := jsonschema.CompileString("invoice.schema.json", string(raw))
	if err != nil {
		panic(err)
	}
	return compiled
}

// validateInvoiceShape checks a decoded object against the strict
// extraction schema, returning the validation error for diagnostics.
func validateInvoiceShape(obj map[string]any) error {
	return invoiceSchema.Validate(obj)
}
