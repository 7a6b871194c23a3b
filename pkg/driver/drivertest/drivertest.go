// Package drivertest provides an in-memory driver that records every call.
// It keeps a live schema and rows per table so repositories and schema
// synchronisation can be exercised without a database.
package drivertest

import (
	"cmp"
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	pdriver "github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Call is one recorded driver invocation.
type Call struct {
	Op     string
	Table  string
	Column string
}

type table struct {
	info   schema.TableInfo
	rows   []pdriver.Row
	nextID int64
}

// Driver is an in-memory pdriver.Driver.
type Driver struct {
	mu        sync.Mutex
	dialect   dialect.Dialect
	connected bool
	tables    map[string]*table
	calls     []Call
	created   []schema.TableDefinition
	failures  map[string]error
}

var _ pdriver.Driver = (*Driver)(nil)

// New creates a disconnected driver using the PostgreSQL dialect.
func New() *Driver {
	return NewWithDialect(dialect.Postgres{})
}

// NewWithDialect creates a disconnected driver using d.
func NewWithDialect(d dialect.Dialect) *Driver {
	return &Driver{
		dialect:  d,
		tables:   make(map[string]*table),
		failures: make(map[string]error),
	}
}

// FailOn makes op fail with err. An empty table matches every table.
func (d *Driver) FailOn(op, table string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op+":"+table] = err
}

// SeedTable installs live table state, as if the table already existed.
func (d *Driver) SeedTable(info schema.TableInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[info.Name] = &table{info: info}
}

// Calls returns every recorded call in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// CallsFor returns the recorded calls of one operation.
func (d *Driver) CallsFor(op string) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Call
	for _, c := range d.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Created returns the definitions passed to CreateTable, in order.
func (d *Driver) Created() []schema.TableDefinition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.created)
}

// Rows returns a copy of the stored rows of a table.
func (d *Driver) Rows(name string) []pdriver.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if !ok {
		return nil
	}
	out := make([]pdriver.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Connected reports whether Connect succeeded and Disconnect was not called.
func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// record appends a call and returns the injected failure, if any. The caller
// holds d.mu.
func (d *Driver) record(op, table, column string) error {
	d.calls = append(d.calls, Call{Op: op, Table: table, Column: column})
	if err, ok := d.failures[op+":"+table]; ok {
		return err
	}
	if err, ok := d.failures[op+":"]; ok {
		return err
	}
	return nil
}

func (d *Driver) ready(op, table, column string) error {
	if err := d.record(op, table, column); err != nil {
		return err
	}
	if !d.connected {
		return pdriver.ErrNotConnected
	}
	return nil
}

func (d *Driver) Name() string { return "drivertest" }

func (d *Driver) Dialect() dialect.Dialect { return d.dialect }

func (d *Driver) Connect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("Connect", "", ""); err != nil {
		return err
	}
	d.connected = true
	return nil
}

func (d *Driver) Disconnect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("Disconnect", "", ""); err != nil {
		return err
	}
	if !d.connected {
		return pdriver.ErrNotConnected
	}
	d.connected = false
	return nil
}

func (d *Driver) ListTables(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("ListTables", "", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (d *Driver) LoadTable(_ context.Context, name string) (*pdriver.TableInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("LoadTable", name, ""); err != nil {
		return nil, err
	}
	t, ok := d.tables[name]
	if !ok {
		return nil, nil
	}
	info := t.info
	info.Columns = slices.Clone(t.info.Columns)
	return &info, nil
}

// columnInfo is the live state a real database would report for col.
func (d *Driver) columnInfo(col schema.ColumnDefinition) schema.ColumnInfo {
	info := schema.ColumnInfo{
		Name:          col.Name,
		DataType:      d.dialect.ColumnType(col),
		Nullable:      col.Nullable && !col.Primary,
		Primary:       col.Primary,
		AutoIncrement: col.AutoIncrement,
		Unique:        col.Unique,
	}
	if col.Default != nil {
		def := *col.Default
		info.Default = &def
	}
	return info
}

func (d *Driver) CreateTable(_ context.Context, def schema.TableDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("CreateTable", def.Name, ""); err != nil {
		return err
	}
	d.created = append(d.created, def)

	if _, ok := d.tables[def.Name]; ok {
		return nil
	}

	t := &table{info: schema.TableInfo{Name: def.Name}}
	for _, col := range def.Columns {
		t.info.Columns = append(t.info.Columns, d.columnInfo(col))
	}
	d.tables[def.Name] = t
	return nil
}

func (d *Driver) AddColumn(_ context.Context, name string, col schema.ColumnDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("AddColumn", name, col.Name); err != nil {
		return err
	}
	t, ok := d.tables[name]
	if !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	t.info.Columns = append(t.info.Columns, d.columnInfo(col))
	return nil
}

func (d *Driver) AlterColumn(_ context.Context, name string, from pdriver.ColumnInfo, to schema.ColumnDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("AlterColumn", name, to.Name); err != nil {
		return err
	}
	if _, err := d.dialect.AlterColumnSQL(name, from, to); err != nil {
		return err
	}
	t, ok := d.tables[name]
	if !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	for i := range t.info.Columns {
		if t.info.Columns[i].Name == to.Name {
			t.info.Columns[i] = d.columnInfo(to)
			return nil
		}
	}
	return fmt.Errorf("column %s.%s does not exist", name, to.Name)
}

func (d *Driver) DropColumn(_ context.Context, name, column string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("DropColumn", name, column); err != nil {
		return err
	}
	t, ok := d.tables[name]
	if !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	t.info.Columns = slices.DeleteFunc(t.info.Columns, func(c schema.ColumnInfo) bool {
		return c.Name == column
	})
	for _, r := range t.rows {
		delete(r, column)
	}
	return nil
}

func (d *Driver) lookup(name string) (*table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, &pdriver.QueryError{Query: name, Err: fmt.Errorf("no such table: %s", name)}
	}
	return t, nil
}

func (d *Driver) Insert(_ context.Context, name string, values []pdriver.Value, returning []string) (pdriver.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("Insert", name, ""); err != nil {
		return nil, err
	}
	t, err := d.lookup(name)
	if err != nil {
		return nil, err
	}

	row := make(pdriver.Row, len(t.info.Columns))
	for _, v := range values {
		row[v.Column] = normalize(v.Value)
	}
	for _, col := range t.info.Columns {
		if _, set := row[col.Name]; set {
			continue
		}
		switch {
		case col.AutoIncrement:
			t.nextID++
			row[col.Name] = t.nextID
		case col.Default != nil:
			row[col.Name] = defaultValue(*col.Default)
		default:
			row[col.Name] = nil
		}
	}

	for _, col := range t.info.Columns {
		if !col.Unique && !(col.Primary && primaryCount(t.info) == 1) {
			continue
		}
		for _, existing := range t.rows {
			if row[col.Name] != nil && equal(existing[col.Name], row[col.Name]) {
				return nil, &pdriver.QueryError{
					Query: "INSERT INTO " + name,
					Err:   &pdriver.ConstraintError{Kind: pdriver.ErrDuplicateKey, Constraint: name + "_" + col.Name, Err: fmt.Errorf("duplicate %s", col.Name)},
				}
			}
		}
	}

	t.rows = append(t.rows, row)

	out := pdriver.Row{}
	for _, c := range returning {
		out[c] = row[c]
	}
	return out, nil
}

func primaryCount(info schema.TableInfo) int {
	n := 0
	for _, c := range info.Columns {
		if c.Primary {
			n++
		}
	}
	return n
}

func (d *Driver) Update(_ context.Context, name string, set, where []pdriver.Value) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("Update", name, ""); err != nil {
		return 0, err
	}
	if _, _, err := dialect.UpdateSQL(d.dialect, name, set, where); err != nil {
		return 0, err
	}
	t, err := d.lookup(name)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, r := range t.rows {
		if !matches(r, where) {
			continue
		}
		for _, v := range set {
			r[v.Column] = normalize(v.Value)
		}
		n++
	}
	return n, nil
}

func (d *Driver) Delete(_ context.Context, name string, where []pdriver.Value) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("Delete", name, ""); err != nil {
		return 0, err
	}
	if _, _, err := dialect.DeleteSQL(d.dialect, name, where); err != nil {
		return 0, err
	}
	t, err := d.lookup(name)
	if err != nil {
		return 0, err
	}

	before := len(t.rows)
	t.rows = slices.DeleteFunc(t.rows, func(r pdriver.Row) bool { return matches(r, where) })
	return int64(before - len(t.rows)), nil
}

func (d *Driver) Select(_ context.Context, q pdriver.SelectQuery) ([]pdriver.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("Select", q.Table, ""); err != nil {
		return nil, err
	}
	t, err := d.lookup(q.Table)
	if err != nil {
		return nil, err
	}

	var out []pdriver.Row
	for _, r := range t.rows {
		if matches(r, q.Where) {
			out = append(out, r)
		}
	}

	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(out, func(a, b pdriver.Row) int {
			for _, o := range q.OrderBy {
				c := compare(a[o.Column], b[o.Column])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if q.Offset > 0 {
		out = out[min(q.Offset, len(out)):]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	result := make([]pdriver.Row, len(out))
	for i, r := range out {
		if len(q.Columns) == 0 {
			result[i] = cloneRow(r)
			continue
		}
		row := make(pdriver.Row, len(q.Columns))
		for _, c := range q.Columns {
			row[c] = r[c]
		}
		result[i] = row
	}
	return result, nil
}

func (d *Driver) Count(_ context.Context, name string, where []pdriver.Value) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready("Count", name, ""); err != nil {
		return 0, err
	}
	t, err := d.lookup(name)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, r := range t.rows {
		if matches(r, where) {
			n++
		}
	}
	return n, nil
}

// defaultValue evaluates the literal defaults the fake understands.
func defaultValue(expr string) any {
	switch strings.ToLower(expr) {
	case "true":
		return true
	case "false":
		return false
	case "now()", "current_timestamp":
		return time.Now().UTC()
	}
	if i, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f
	}
	return strings.Trim(expr, "'")
}

func cloneRow(r pdriver.Row) pdriver.Row {
	out := make(pdriver.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func matches(r pdriver.Row, where []pdriver.Value) bool {
	for _, w := range where {
		if !equal(r[w.Column], normalize(w.Value)) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize folds values the way a database would store them: valuers are
// resolved, integers widen to int64 and floats to float64.
func normalize(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		val, err := valuer.Value()
		if err != nil {
			return v
		}
		v = val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	}
	return v
}

func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	}
	if b == nil {
		return 1
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// LockingDriver adds schema locking to Driver and records lock calls.
type LockingDriver struct {
	*Driver
}

var _ pdriver.Locker = LockingDriver{}

// NewLocking creates a LockingDriver using the PostgreSQL dialect.
func NewLocking() LockingDriver {
	return LockingDriver{Driver: New()}
}

func (l LockingDriver) LockSchema(context.Context) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready("LockSchema", "", ""); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.record("UnlockSchema", "", "")
	}, nil
}
