package tplmerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AssetColumn is the distinguished column naming the template asset of a row.
// It is never rendered as a field.
const AssetColumn = "img_path"

// Value is a scalar spreadsheet cell: a string or a number.
type Value struct {
	str   string
	num   float64
	isNum bool
}

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{str: s} }

// NumberValue returns a Value holding f.
func NumberValue(f float64) Value { return Value{num: f, isNum: true} }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.isNum }

// String returns the value the way the spreadsheet displays it.
// Whole numbers print without a fractional part.
func (v Value) String() string {
	if !v.isNum {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return []byte(v.String()), nil
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	}
	switch string(data) {
	case "null":
		*v = StringValue("")
		return nil
	case "true", "false":
		*v = StringValue(string(data))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("tplmerge: cell value %s is not a scalar", data)
	}
	*v = NumberValue(f)
	return nil
}

// Row is an ordered mapping from column name to cell value.
// The zero Row is empty. Rows are not modified after construction.
type Row struct {
	cols []string
	vals map[string]Value
}

// NewRow builds a row from parallel column and value slices.
// Later duplicates of a column name are ignored.
func NewRow(columns []string, values []Value) Row {
	r := Row{vals: make(map[string]Value, len(columns))}
	for i, c := range columns {
		if _, dup := r.vals[c]; dup {
			continue
		}
		var v Value
		if i < len(values) {
			v = values[i]
		}
		r.cols = append(r.cols, c)
		r.vals[c] = v
	}
	return r
}

// RowOf builds a row of string values from alternating column, value pairs.
func RowOf(pairs ...string) Row {
	cols := make([]string, 0, len(pairs)/2)
	vals := make([]Value, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		cols = append(cols, pairs[i])
		vals = append(vals, StringValue(pairs[i+1]))
	}
	return NewRow(cols, vals)
}

// Columns returns the column names in row order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of columns in the row.
func (r Row) Len() int { return len(r.cols) }

// Get returns the value of column col.
func (r Row) Get(col string) (Value, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// String returns the stringified value of col, or "" when absent.
func (r Row) String(col string) string {
	v, ok := r.vals[col]
	if !ok {
		return ""
	}
	return v.String()
}

// Asset returns the template asset named by the row.
func (r Row) Asset() string {
	return r.String(AssetColumn)
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.vals[c].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the input.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tplmerge: row must be a JSON object")
	}
	var cols []string
	var vals []Value
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("tplmerge: row key %v is not a string", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("tplmerge: column %q: %w", key, err)
		}
		cols = append(cols, key)
		vals = append(vals, v)
	}
	*r = NewRow(cols, vals)
	return nil
}
