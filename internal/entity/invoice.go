// Package entity holds the plain data structures passed between layers.
package entity

// InvoiceInfo is the structured outcome of extracting one invoice.
// All fields default to empty or zero when the model cannot recognize
// them; absence is not an error. A zero Total doubles as the sentinel
// for "extraction failed", so callers must consult the outcome's error
// list before treating it as a genuine zero-amount invoice.
type InvoiceInfo struct {
	InvoiceNo string  `json:"invoice_no"`
	IssueDate string  `json:"issue_date"` // YYYY-MM-DD
	Seller    string  `json:"seller"`
	Buyer     string  `json:"buyer"`
	Total     float64 `json:"total"`
	Tax       float64 `json:"tax"`
	Subtotal  float64 `json:"subtotal"`
	Items     string  `json:"items"`
	Notes     string  `json:"notes"`

	// Classification enrichment; empty until the classify pass runs.
	InvoiceType         string `json:"invoice_type,omitempty"`
	InvoiceTypeName     string `json:"invoice_type_name,omitempty"`
	ExpenseCategory     string `json:"expense_category,omitempty"`
	ExpenseCategoryName string `json:"expense_category_name,omitempty"`

	// Authenticity enrichment; empty until the verify pass runs.
	RiskLevel    string `json:"risk_level,omitempty"`
	RiskNotes    string `json:"risk_notes,omitempty"`
	HasStamp     bool   `json:"has_stamp,omitempty"`
	ImageQuality string `json:"image_quality,omitempty"`
}

// Verification is the model's authenticity assessment of one invoice.
type Verification struct {
	RiskLevel        string `json:"risk_level"`
	HasStamp         bool   `json:"has_stamp"`
	HasCompleteCode  bool   `json:"has_complete_code"`
	HasQRCode        bool   `json:"has_qrcode"`
	ImageQuality     string `json:"image_quality"`
	HasTampering     bool   `json:"has_tampering"`
	AmountConsistent bool   `json:"amount_consistent"`
	RiskNotes        string `json:"risk_notes"`
}

// DefaultVerification is the neutral assessment used when the verify
// pass fails or is skipped.
func DefaultVerification() Verification {
	return Verification{
		RiskLevel:        "low",
		HasStamp:         true,
		HasCompleteCode:  true,
		HasQRCode:        false,
		ImageQuality:     "good",
		HasTampering:     false,
		AmountConsistent: true,
	}
}

// Classification is the model's type/category call for one invoice.
type Classification struct {
	InvoiceType         string `json:"invoice_type"`
	InvoiceTypeName     string `json:"invoice_type_name"`
	ExpenseCategory     string `json:"expense_category"`
	ExpenseCategoryName string `json:"expense_category_name"`
}

// DefaultClassification is the fallback used when the classify pass fails.
func DefaultClassification() Classification {
	return Classification{
		InvoiceType:         "other",
		InvoiceTypeName:     "其他类型",
		ExpenseCategory:     "other",
		ExpenseCategoryName: "其他",
	}
}
