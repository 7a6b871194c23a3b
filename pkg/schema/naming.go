package schema

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// NamingStrategy derives table and column names for declarations
// that do not name them explicitly.
type NamingStrategy interface {
	TableName(goName string) string
	ColumnName(property string) string
}

// SnakeNamingStrategy uses snake_case for both tables and columns.
// PostCategory becomes post_category, AuthorID becomes author_id.
type SnakeNamingStrategy struct{}

func (SnakeNamingStrategy) TableName(goName string) string { return ToSnakeCase(goName) }
func (SnakeNamingStrategy) ColumnName(property string) string { return ToSnakeCase(property) }

// PluralNamingStrategy pluralises table names: Category becomes categories.
type PluralNamingStrategy struct{}

func (PluralNamingStrategy) TableName(goName string) string {
	return inflection.Plural(ToSnakeCase(goName))
}

func (PluralNamingStrategy) ColumnName(property string) string { return ToSnakeCase(property) }

// DefaultNamingStrategy is used when the builder is given none.
var DefaultNamingStrategy NamingStrategy = SnakeNamingStrategy{}

// ToSnakeCase converts PascalCase or camelCase to snake_case, keeping
// acronyms together: HTTPServer becomes http_server.
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
