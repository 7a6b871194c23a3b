package schema

import (
	"fmt"
	"strings"
)

// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
const StructTagKey = "po"

// TagOptions is a parsed `po` struct tag.
//
// Format: "column_name,option1,option2(value),key:value". The column name may
// be empty to use the naming strategy; a tag of "-" skips the field.
type TagOptions struct {
	Name    string
	Options map[string]string
	keys    []string
}

// ParseTag parses a struct tag value into TagOptions.
func ParseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string, len(parts)-1),
	}
	for _, opt := range parts[1:] {
		if opt == "" {
			continue
		}
		var key, value string
		paren, colon := strings.Index(opt, "("), strings.Index(opt, ":")
		switch {
		case colon != -1 && (paren == -1 || colon < paren):
			key, value = opt[:colon], opt[colon+1:]
		case paren != -1:
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			key, value = opt[:paren], opt[paren+1:len(opt)-1]
		default:
			key = opt
		}
		if _, dup := opts.Options[key]; dup {
			return nil, fmt.Errorf("option %q given more than once", key)
		}
		opts.Options[key] = value
		opts.keys = append(opts.keys, key)
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

// ColumnSpec returns the column type named in the tag, if any.
func (t *TagOptions) ColumnSpec() (ColumnSpec, bool, error) {
	for _, key := range t.keys {
		if _, ok := columnTypeAliases[strings.ToLower(key)]; !ok {
			continue
		}
		s := key
		if v := t.Options[key]; v != "" {
			s = key + "(" + v + ")"
		}
		spec, err := ParseColumnSpec(s)
		return spec, true, err
	}
	return ColumnSpec{}, false, nil
}

// Reference parses an "fk" option of the form table.column or table(column).
func (t *TagOptions) Reference() (table, column string, ok bool, err error) {
	ref, has := t.Options["fk"]
	if !has {
		return "", "", false, nil
	}
	if before, after, found := strings.Cut(ref, "."); found {
		table, column = before, after
	} else if idx := strings.Index(ref, "("); idx > 0 && strings.HasSuffix(ref, ")") {
		table, column = ref[:idx], ref[idx+1:len(ref)-1]
	}
	if table == "" || column == "" {
		return "", "", true, fmt.Errorf("invalid foreign key reference %q, expected table.column", ref)
	}
	return table, column, true, nil
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}
	if current.Len() > 0 || len(parts) > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}
