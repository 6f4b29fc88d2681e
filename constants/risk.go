package constants

// RiskLevel grades the authenticity assessment of an invoice.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ValidRiskLevel reports whether the model returned a known risk grade.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ImageQuality grades how legible the source scan is.
type ImageQuality string

const (
	QualityGood ImageQuality = "good"
	QualityFair ImageQuality = "fair"
	QualityPoor ImageQuality = "poor"
)
