package constants

import "strings"

// InvoiceType is the kind of invoice document the model classifies.
type InvoiceType string

const (
	SpecialVAT InvoiceType = "special_vat"
	GeneralVAT InvoiceType = "general_vat"
	Electronic InvoiceType = "electronic"
	Toll       InvoiceType = "toll"
	Taxi       InvoiceType = "taxi"
	Train      InvoiceType = "train"
	Flight     InvoiceType = "flight"
	OtherType  InvoiceType = "other"
)

var invoiceTypeNames = map[InvoiceType]string{
	SpecialVAT: "增值税专用发票",
	GeneralVAT: "增值税普通发票",
	Electronic: "电子发票",
	Toll:       "通行费发票",
	Taxi:       "出租车发票",
	Train:      "火车票",
	Flight:     "机票行程单",
	OtherType:  "其他类型",
}

// InvoiceTypeName returns the display name for an invoice type,
// falling back to the "other" label.
func InvoiceTypeName(t InvoiceType) string {
	if name, ok := invoiceTypeNames[t]; ok {
		return name
	}
	return invoiceTypeNames[OtherType]
}

// ExpenseCategory is the spend bucket an invoice falls into.
type ExpenseCategory string

const (
	Travel        ExpenseCategory = "travel"
	Dining        ExpenseCategory = "dining"
	Office        ExpenseCategory = "office"
	Transport     ExpenseCategory = "transport"
	Telecom       ExpenseCategory = "telecom"
	Conference    ExpenseCategory = "conference"
	Training      ExpenseCategory = "training"
	Service       ExpenseCategory = "service"
	Material      ExpenseCategory = "material"
	OtherCategory ExpenseCategory = "other"
)

var expenseCategoryNames = map[ExpenseCategory]string{
	Travel:        "差旅",
	Dining:        "餐饮",
	Office:        "办公用品",
	Transport:     "交通",
	Telecom:       "通讯",
	Conference:    "会议",
	Training:      "培训",
	Service:       "服务费",
	Material:      "材料/设备",
	OtherCategory: "其他",
}

// ExpenseCategoryName returns the display name for an expense category,
// falling back to the "other" label.
func ExpenseCategoryName(c ExpenseCategory) string {
	if name, ok := expenseCategoryNames[c]; ok {
		return name
	}
	return expenseCategoryNames[OtherCategory]
}

// CanonicalizeInvoiceType maps free-form model output onto a known type.
func CanonicalizeInvoiceType(input string) (InvoiceType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for t := range invoiceTypeNames {
		if normalized == string(t) {
			return t, true
		}
	}
	return OtherType, false
}

// CanonicalizeExpenseCategory maps free-form model output onto a known category.
func CanonicalizeExpenseCategory(input string) (ExpenseCategory, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for c := range expenseCategoryNames {
		if normalized == string(c) {
			return c, true
		}
	}
	return OtherCategory, false
}
