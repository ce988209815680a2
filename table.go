package quant

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Layout is the orientation a NumericTable is presented in.
type Layout int

const (
	// RowLayout presents the table as a sequence of (x, y) pairs.
	RowLayout Layout = iota
	// ColumnLayout presents the table as two equal-length columns.
	ColumnLayout
)

func (l Layout) String() string {
	switch l {
	case RowLayout:
		return "rows"
	case ColumnLayout:
		return "columns"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout converts "rows" or "columns" (also "row", "col") to a Layout.
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "rows", "row", "":
		return RowLayout, nil
	case "columns", "column", "cols", "col":
		return ColumnLayout, nil
	}
	return RowLayout, fmt.Errorf("unknown layout %q", name)
}

// NumericTable is an immutable, ordered sequence of (x, y) pairs. Values are
// always stored column-major; the layout only decides how the table is
// presented to callers.
type NumericTable struct {
	xs     []float64
	ys     []float64
	layout Layout
}

// NewTable copies xs and ys into a table. Both slices must have equal length.
func NewTable(xs []float64, ys []float64, layout Layout) (NumericTable, error) {
	if len(xs) != len(ys) {
		return NumericTable{}, fmt.Errorf("column lengths differ: %d != %d",
			len(xs), len(ys))
	}
	return NumericTable{
		xs:     append([]float64(nil), xs...),
		ys:     append([]float64(nil), ys...),
		layout: layout,
	}, nil
}

// FromRows builds a row-oriented table from pairs.
func FromRows(rows [][2]float64) NumericTable {
	table := NumericTable{
		xs:     make([]float64, len(rows)),
		ys:     make([]float64, len(rows)),
		layout: RowLayout,
	}
	for ii, row := range rows {
		table.xs[ii] = row[0]
		table.ys[ii] = row[1]
	}
	return table
}

// FromColumns builds a column-oriented table. Both columns must have equal
// length.
func FromColumns(cols [2][]float64) (NumericTable, error) {
	return NewTable(cols[0], cols[1], ColumnLayout)
}

func (self NumericTable) Len() int {
	return len(self.xs)
}

func (self NumericTable) Layout() Layout {
	return self.layout
}

// WithLayout returns the same values tagged with another layout.
func (self NumericTable) WithLayout(layout Layout) NumericTable {
	self.layout = layout
	return self
}

func (self NumericTable) X(i int) float64 {
	return self.xs[i]
}

func (self NumericTable) Y(i int) float64 {
	return self.ys[i]
}

// Xs returns a copy of the first column.
func (self NumericTable) Xs() []float64 {
	return append([]float64(nil), self.xs...)
}

// Ys returns a copy of the second column.
func (self NumericTable) Ys() []float64 {
	return append([]float64(nil), self.ys...)
}

func (self NumericTable) Rows() [][2]float64 {
	rows := make([][2]float64, len(self.xs))
	for ii := range self.xs {
		rows[ii] = [2]float64{self.xs[ii], self.ys[ii]}
	}
	return rows
}

func (self NumericTable) Columns() [2][]float64 {
	return [2][]float64{self.Xs(), self.Ys()}
}

// MapY returns a table on the same x grid with y replaced by fn(x, y).
func (self NumericTable) MapY(fn func(x, y float64) float64) NumericTable {
	ys := make([]float64, len(self.ys))
	for ii := range self.xs {
		ys[ii] = fn(self.xs[ii], self.ys[ii])
	}
	return NumericTable{xs: self.Xs(), ys: ys, layout: self.layout}
}

// MarshalJSON encodes the table as [[x,y],...] for RowLayout and as
// [[x...],[y...]] for ColumnLayout.
func (self NumericTable) MarshalJSON() ([]byte, error) {
	if self.layout == ColumnLayout {
		return json.Marshal(self.Columns())
	}
	return json.Marshal(self.Rows())
}

// DecodeTable reads the JSON encoding MarshalJSON produces for layout. The
// layout is not inferred from the data: a two point column table and a two
// row table have the same shape.
func DecodeTable(data []byte, layout Layout) (NumericTable, error) {
	if layout == ColumnLayout {
		var cols [][]float64
		if err := json.Unmarshal(data, &cols); err != nil {
			return NumericTable{}, err
		}
		if len(cols) != 2 {
			return NumericTable{}, fmt.Errorf("column table needs 2 columns, got %d", len(cols))
		}
		return NewTable(cols[0], cols[1], ColumnLayout)
	}

	var raw [][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return NumericTable{}, err
	}
	rows := make([][2]float64, len(raw))
	for ii, row := range raw {
		if len(row) != 2 {
			return NumericTable{}, errors.New("table rows must have exactly two values")
		}
		rows[ii] = [2]float64{row[0], row[1]}
	}
	return FromRows(rows), nil
}
