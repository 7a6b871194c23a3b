package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultMistakes are misspellings of SQL default expressions, longest first
// so that "CURRENT TIMESTAMP" is reported before "CURRENT TIME".
var defaultMistakes = []struct{ wrong, right string }{
	{"CURRENT TIMESTAMP", "CURRENT_TIMESTAMP"},
	{"GEN RANDOM UUID", "gen_random_uuid()"},
	{"UUID GENERATE V4", "uuid_generate_v4()"},
	{"CURRENT TIME", "CURRENT_TIME"},
	{"CURRENT DATE", "CURRENT_DATE"},
	{"NOW ()", "NOW()"},
}

var defaultKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true,
	"CURRENT_TIMESTAMP": true, "CURRENT_TIME": true, "CURRENT_DATE": true,
	"LOCALTIMESTAMP": true, "LOCALTIME": true,
}

// ValidateDefaultValue reports default expressions that are very likely
// mistakes, with a suggested fix in the error message.
func ValidateDefaultValue(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("invalid DEFAULT value: empty expression")
	}
	upper := strings.ToUpper(trimmed)

	for _, m := range defaultMistakes {
		if strings.Contains(upper, m.wrong) {
			return fmt.Errorf("invalid DEFAULT value %q: %q should be %s", value, m.wrong, m.right)
		}
	}

	if defaultKeywords[upper] || strings.ContainsAny(trimmed, "('") || isNumeric(trimmed) {
		return nil
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "random") || strings.Contains(lower, "generate") || strings.Contains(lower, "uuid") {
		return fmt.Errorf("invalid DEFAULT value %q: looks like a function call without parentheses, try %s()", value, trimmed)
	}
	return nil
}

// ValidateDefaultFor checks value against the column type it will be stored in.
// Only plain literals are checked; function calls and keywords pass through.
func ValidateDefaultFor(ct ColumnType, value string) error {
	if err := ValidateDefaultValue(value); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(value)
	upper := strings.ToUpper(trimmed)
	if defaultKeywords[upper] && upper != "TRUE" && upper != "FALSE" {
		return nil
	}
	if strings.Contains(trimmed, "(") {
		return nil
	}

	switch {
	case ct.IsInteger():
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			return fmt.Errorf("invalid DEFAULT value %q for %s column", value, ct)
		}
	case ct == Float || ct == Double || ct == Decimal:
		if !isNumeric(trimmed) {
			return fmt.Errorf("invalid DEFAULT value %q for %s column", value, ct)
		}
	case ct == Boolean:
		switch upper {
		case "TRUE", "FALSE", "0", "1":
		default:
			return fmt.Errorf("invalid DEFAULT value %q for boolean column", value)
		}
	}
	return nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
