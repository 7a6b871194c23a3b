package schema

import (
	"strings"
	"testing"
)

func TestValidateDefaultValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
		errorMsg  string
	}{
		{name: "valid CURRENT_TIMESTAMP", value: "CURRENT_TIMESTAMP"},
		{name: "valid NOW()", value: "NOW()"},
		{name: "valid gen_random_uuid()", value: "gen_random_uuid()"},
		{name: "valid number", value: "0"},
		{name: "valid negative decimal", value: "-1.5"},
		{name: "valid boolean", value: "true"},
		{name: "valid string literal", value: "'default value'"},
		{name: "empty", value: "  ", wantError: true},
		{
			name:      "CURRENT TIMESTAMP with space",
			value:     "CURRENT TIMESTAMP",
			wantError: true,
			errorMsg:  "CURRENT_TIMESTAMP",
		},
		{
			name:      "CURRENT TIME with space",
			value:     "CURRENT TIME",
			wantError: true,
			errorMsg:  "CURRENT_TIME",
		},
		{
			name:      "NOW with space",
			value:     "NOW ()",
			wantError: true,
			errorMsg:  "NOW()",
		},
		{
			name:      "case insensitive detection",
			value:     "current timestamp",
			wantError: true,
			errorMsg:  "CURRENT_TIMESTAMP",
		},
		{
			name:      "function missing parentheses",
			value:     "gen_random_uuid",
			wantError: true,
			errorMsg:  "gen_random_uuid()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefaultValue(tt.value)

			if tt.wantError && err == nil {
				t.Errorf("Expected error for value '%s', got nil", tt.value)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no error for value '%s', got: %v", tt.value, err)
			}
			if tt.wantError && err != nil && tt.errorMsg != "" {
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to mention '%s', got: %v", tt.errorMsg, err)
				}
			}
		})
	}
}

func TestValidateDefaultFor(t *testing.T) {
	tests := []struct {
		name      string
		typ       ColumnType
		value     string
		wantError bool
	}{
		{"integer literal", Integer, "42", false},
		{"integer string literal", Integer, "'42'", true},
		{"integer float literal", BigInt, "4.2", true},
		{"integer function", Integer, "nextval('seq')", false},
		{"integer null", Integer, "NULL", false},
		{"decimal literal", Decimal, "9.99", false},
		{"decimal word", Double, "abc", true},
		{"boolean true", Boolean, "TRUE", false},
		{"boolean one", Boolean, "1", false},
		{"boolean yes", Boolean, "'yes'", true},
		{"integer true", Integer, "true", true},
		{"string literal", String, "'draft'", false},
		{"timestamp keyword", Timestamp, "CURRENT_TIMESTAMP", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefaultFor(tt.typ, tt.value)
			if tt.wantError != (err != nil) {
				t.Errorf("ValidateDefaultFor(%s, %q) error = %v, wantError %v", tt.typ, tt.value, err, tt.wantError)
			}
		})
	}
}
