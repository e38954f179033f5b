package document

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// NormalizeDocType maps a model answer onto the configured categories,
// matching case-insensitively. Unknown or empty answers become Other.
// The returned value uses the category's configured spelling.
func NormalizeDocType(value string, categories []string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TypeOther
	}
	folded := cases.Fold().String(trimmed)
	for _, category := range categories {
		if cases.Fold().String(strings.TrimSpace(category)) == folded {
			return category
		}
	}
	if len(categories) == 0 {
		switch titled := titleCaser.String(trimmed); titled {
		case TypeReceipt, TypeInvoice, TypeStatement, TypeContract:
			return titled
		}
	}
	return TypeOther
}
