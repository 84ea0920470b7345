// Package dataset holds tabular data as named, typed columns.
//
// A Dataset is what the pipeline starts from: a header plus rows of raw cells
// read from CSV or XLSX. Each column is numeric (NaN marks a missing value)
// or categorical ("" marks a missing value). The last column is the target.
package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns store float64 values; NaN is missing.
	Numeric Kind = iota
	// Categorical columns store strings; "" is missing.
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is one named column. Exactly one of Num or Cat is populated,
// according to Kind.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Cat)
	}
	return len(c.Num)
}

// IsMissing reports whether row i holds a missing value.
func (c Column) IsMissing(i int) bool {
	if c.Kind == Categorical {
		return c.Cat[i] == ""
	}
	return math.IsNaN(c.Num[i])
}

// MissingCount returns the number of missing cells.
func (c Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// String renders row i the way it would appear in a CSV file.
func (c Column) String(i int) string {
	if c.Kind == Categorical {
		return c.Cat[i]
	}
	if math.IsNaN(c.Num[i]) {
		return ""
	}
	return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
}

// Clone returns a deep copy.
func (c Column) Clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Num != nil {
		out.Num = append([]float64(nil), c.Num...)
	}
	if c.Cat != nil {
		out.Cat = append([]string(nil), c.Cat...)
	}
	return out
}

// Dataset is an immutable table of equally long columns.
type Dataset struct {
	name    string
	columns []Column
	nRows   int
}

// New builds a Dataset from columns. All columns must have the same length
// and distinct names.
func New(name string, columns []Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	nRows := columns[0].Len()
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Len() != nRows {
			return nil, errors.Newf("column %q has %d rows, expected %d", c.Name, c.Len(), nRows)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, errors.Newf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return &Dataset{name: name, columns: columns, nRows: nRows}, nil
}

// FromRecords infers column kinds from a header and string rows.
// Short rows are padded with missing cells; extra cells are an error.
func FromRecords(name string, header []string, rows [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, errors.New("header row is empty")
	}
	if len(rows) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	columns := make([]Column, len(header))
	for j, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(j)
		}
		raw := make([]string, len(rows))
		for i, r := range rows {
			if len(r) > len(header) {
				return nil, errors.Newf("row %d has %d fields, header has %d", i+1, len(r), len(header))
			}
			if j < len(r) {
				raw[i] = strings.TrimSpace(r[j])
			}
		}
		columns[j] = inferColumn(h, raw)
	}
	return New(name, columns)
}

// IsMissingMarker reports whether a raw cell denotes a missing value.
func IsMissingMarker(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL", "?":
		return true
	}
	return false
}

func inferColumn(name string, raw []string) Column {
	nums := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		if IsMissingMarker(s) {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = v
	}
	if numeric {
		return Column{Name: name, Kind: Numeric, Num: nums}
	}
	cats := make([]string, len(raw))
	for i, s := range raw {
		if !IsMissingMarker(s) {
			cats[i] = s
		}
	}
	return Column{Name: name, Kind: Categorical, Cat: cats}
}

// Name returns the dataset's source name.
func (d *Dataset) Name() string { return d.name }

// NRows returns the number of rows.
func (d *Dataset) NRows() int { return d.nRows }

// NCols returns the number of columns including the target.
func (d *Dataset) NCols() int { return len(d.columns) }

// Column returns a copy of column j.
func (d *Dataset) Column(j int) Column { return d.columns[j].Clone() }

// Columns returns copies of all columns.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	for j, c := range d.columns {
		out[j] = c.Clone()
	}
	return out
}

// ColumnNames returns the header.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for j, c := range d.columns {
		names[j] = c.Name
	}
	return names
}

// Target returns a copy of the last column.
func (d *Dataset) Target() Column { return d.Column(len(d.columns) - 1) }

// Head returns the first n rows rendered as strings.
func (d *Dataset) Head(n int) [][]string {
	if n > d.nRows {
		n = d.nRows
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(d.columns))
		for j, c := range d.columns {
			row[j] = c.String(i)
		}
		out[i] = row
	}
	return out
}

// Summary describes each column's kind and missing count.
type Summary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Missing int    `json:"missing"`
}

// Describe returns one Summary per column.
func (d *Dataset) Describe() []Summary {
	out := make([]Summary, len(d.columns))
	for j, c := range d.columns {
		out[j] = Summary{Name: c.Name, Kind: c.Kind.String(), Missing: c.MissingCount()}
	}
	return out
}
