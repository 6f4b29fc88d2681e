// Package locate enumerates candidate invoice files under a directory tree.
package locate

import (
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	"github.com/sheldon123z/invoice-ocr/constants"
)

// Document identifies one discovered source file. Immutable once yielded.
type Document struct {
	Path    string
	Ext     string // normalized, without dot
	ShortID string // content-hash of the path, used for temp artifact naming
}

// ShortIDFor derives a short collision-resistant identifier from a path.
// Long or non-ASCII source filenames would otherwise break downstream
// tools, so temp artifacts are named by this hash instead.
func ShortIDFor(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])[:8]
}

// Scan returns a lazy, restartable sequence of candidate documents under
// root. It recurses the full subtree, includes only known invoice
// extensions, and skips files whose name contains a disqualifying keyword.
// Traversal order is filesystem order; no stability guarantee.
func Scan(root string) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil // skip unreadable entries, keep walking
			}
			if d.IsDir() {
				if isHidden(path) && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(path) {
				return nil
			}
			ext := constants.NormalizeExt(filepath.Ext(path))
			if _, ok := constants.AllowedExtensions[ext]; !ok {
				return nil
			}
			if constants.SkipByName(d.Name()) {
				return nil
			}
			if !yield(Document{Path: path, Ext: ext, ShortID: ShortIDFor(path)}) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// List materializes Scan in discovery order. An empty result is not an
// error; the caller decides how to react to zero matches.
func List(root string) []Document {
	var docs []Document
	for doc := range Scan(root) {
		docs = append(docs, doc)
	}
	return docs
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
