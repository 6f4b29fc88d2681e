package constants

import "strings"

// AllowedExtensions holds the file extensions considered candidate invoices.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"webp": {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
}

// SkipKeywords disqualify a file by name regardless of extension.
// Travel itineraries and payment receipts are commonly mixed in with
// invoices but are not invoices themselves.
var SkipKeywords = []string{"行程单", "itinerary", "receipt"}

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat resolves a normalized extension to a source format,
// or "" when the extension is not an invoice candidate.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "webp", "bmp", "tif", "tiff":
		return IMAGE
	default:
		return ""
	}
}

// MIMEForExt returns the MIME type used for data-URI image references.
// Unrecognized extensions fall back to JPEG, which the remote backends
// tolerate best.
func MIMEForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// SkipByName reports whether a filename contains any disqualifying keyword.
// Matching is case-insensitive on the whole name.
func SkipByName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range SkipKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
