// Package sanitize derives vector-store collection names from document filenames.
//
// Collection names must match ^[a-zA-Z0-9][a-zA-Z0-9_-]*$ and be at most 63
// characters. Sanitization is a pure function of the filename, so re-indexing
// the same file always resolves to the same collection.
package sanitize

import "strings"

const (
	// MaxCollectionNameLength is the maximum collection name length accepted
	// by the supported vector stores.
	MaxCollectionNameLength = 63

	// NonAlnumPrefix is prepended when sanitization would produce a name that
	// does not start with an alphanumeric character.
	NonAlnumPrefix = "doc_"

	// DefaultCollectionName is used when sanitization produces an empty result.
	DefaultCollectionName = "doc"
)

// CollectionName converts a document filename into a valid collection name.
//
// Rules applied, in order:
//   - strips the final extension ("report.v2.pdf" -> "report.v2")
//   - replaces every character outside [a-zA-Z0-9_-] with an underscore
//   - prepends "doc_" if the first character is not alphanumeric
//   - truncates to MaxCollectionNameLength
//
// Examples:
//
//	"Contract 2024.pdf" -> "Contract_2024"
//	"_notes.pdf"        -> "doc__notes"
//	""                  -> "doc"
func CollectionName(filename string) string {
	name := stripExtension(filename)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isAlnum(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	sanitized := b.String()

	if sanitized == "" {
		return DefaultCollectionName
	}
	if !isAlnum(rune(sanitized[0])) {
		sanitized = NonAlnumPrefix + sanitized
	}
	if len(sanitized) > MaxCollectionNameLength {
		sanitized = sanitized[:MaxCollectionNameLength]
	}
	return sanitized
}

// stripExtension removes the final dot-suffix, if any. A leading dot
// (".hidden") is treated as part of the name, not an extension separator.
func stripExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return filename
	}
	return filename[:idx]
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
