package schema

// TableInfo is the live state of a table as read from the database.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// Column finds a column by name.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnInfo is the live state of a column. DataType is the native type as
// the database reports it, with length or precision appended when known,
// e.g. "character varying(100)" or "numeric(10,2)".
type ColumnInfo struct {
	Name          string
	DataType      string
	Nullable      bool
	Default       *string
	Primary       bool
	AutoIncrement bool
	Unique        bool
}
