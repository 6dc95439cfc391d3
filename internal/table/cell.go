package table

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the value held by a Cell
type Kind uint8

const (
	KindBlank Kind = iota
	KindString
	KindNumber
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "blank"
	}
}

// Cell is one decoded table value. The zero value is blank.
type Cell struct {
	kind Kind
	str  string
	num  decimal.Decimal
}

// Blank returns an empty cell
func Blank() Cell {
	return Cell{}
}

// Str returns a text cell
func Str(s string) Cell {
	return Cell{kind: KindString, str: s}
}

// Num returns a numeric cell
func Num(d decimal.Decimal) Cell {
	return Cell{kind: KindNumber, num: d}
}

// Int returns a numeric cell holding n
func Int(n int64) Cell {
	return Num(decimal.NewFromInt(n))
}

// ParseNumber returns a numeric cell when s is a plain decimal literal
func ParseNumber(s string) (Cell, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Cell{}, false
	}
	return Num(d), true
}

// Kind returns the cell's tag
func (c Cell) Kind() Kind {
	return c.kind
}

// Decimal returns the numeric value and whether the cell is a number
func (c Cell) Decimal() (decimal.Decimal, bool) {
	return c.num, c.kind == KindNumber
}

// IsBlank reports whether the cell holds nothing, counting whitespace-only text as nothing
func (c Cell) IsBlank() bool {
	switch c.kind {
	case KindBlank:
		return true
	case KindString:
		return strings.TrimSpace(c.str) == ""
	default:
		return false
	}
}

// String renders the cell as text. Numbers use their shortest exact
// decimal form, so 120.0 renders as "120".
func (c Cell) String() string {
	switch c.kind {
	case KindString:
		return c.str
	case KindNumber:
		return c.num.String()
	default:
		return ""
	}
}
