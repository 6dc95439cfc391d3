package table

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	apperrors "oispurts/internal/errors"
	"oispurts/internal/shared/testutil"
)

func TestCell(t *testing.T) {
	tests := []struct {
		name  string
		cell  Cell
		kind  Kind
		text  string
		blank bool
	}{
		{name: "zero value", cell: Cell{}, kind: KindBlank, text: "", blank: true},
		{name: "text", cell: Str("RELIANCE"), kind: KindString, text: "RELIANCE"},
		{name: "whitespace text", cell: Str("   "), kind: KindString, text: "   ", blank: true},
		{name: "integer", cell: Int(-40), kind: KindNumber, text: "-40"},
		{name: "float with integral value", cell: Num(decimal.NewFromFloat(120.0)), kind: KindNumber, text: "120"},
		{name: "fraction", cell: Num(decimal.RequireFromString("2900.50")), kind: KindNumber, text: "2900.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.cell.Kind())
			assert.Equal(t, tt.text, tt.cell.String())
			assert.Equal(t, tt.blank, tt.cell.IsBlank())
		})
	}
}

func TestParseNumber(t *testing.T) {
	c, ok := ParseNumber(" 1650.25 ")
	require.True(t, ok)
	assert.Equal(t, "1650.25", c.String())

	for _, s := range []string{"", "RELIANCE", "1,234", "NaN"} {
		_, ok := ParseNumber(s)
		assert.False(t, ok, s)
	}
}

func TestNew_MangledColumns(t *testing.T) {
	tbl := New([]string{"Symbol", "", "OI", "OI", "OI"}, [][]Cell{
		{Str("TCS")},
		{Str("INFY"), Blank(), Int(1), Int(2), Int(3), Int(4)},
	})

	assert.Equal(t, []string{"Symbol", "Unnamed: 1", "OI", "OI.1", "OI.2"}, tbl.Columns)
	for _, row := range tbl.Rows {
		assert.Len(t, row, 5)
	}
	assert.True(t, tbl.Cell(0, 4).IsBlank())
	assert.True(t, tbl.Cell(9, 9).IsBlank())
	assert.Equal(t, 3, tbl.ColumnIndex("OI.1"))
	assert.Equal(t, -1, tbl.ColumnIndex("Volume"))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{name: "zip", data: []byte("PK\x03\x04rest"), want: FormatXLSX},
		{name: "ole2", data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, want: FormatXLS},
		{name: "json object", data: []byte("  {\"data\": []}"), want: FormatJSON},
		{name: "json with bom", data: []byte("\xEF\xBB\xBF[{}]"), want: FormatJSON},
		{name: "csv", data: []byte("Symbol,OI\nTCS,1\n"), want: FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestDecode_TooSmall(t *testing.T) {
	_, err := Decode([]byte("Symbol\nTCS\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDecode))
}

func TestDecode_LegacyXLS(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 200)...)
	_, err := Decode(data)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDecode))
}

func TestDecode_XLSX(t *testing.T) {
	data := testutil.BuildXLSX(t, []string{"Symbol", "OI Change", "Underlying Price"},
		[]interface{}{"RELIANCE", 120, 2900.5},
		nil,
		[]interface{}{"TCS", -40, "n/a"},
	)

	tbl, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, tbl.Format)
	assert.Equal(t, []string{"Symbol", "OI Change", "Underlying Price"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)

	assert.Equal(t, KindString, tbl.Cell(0, 0).Kind())
	assert.Equal(t, KindNumber, tbl.Cell(0, 1).Kind())
	assert.Equal(t, "120", tbl.Cell(0, 1).String())
	assert.Equal(t, "2900.5", tbl.Cell(0, 2).String())

	for c := range tbl.Columns {
		assert.True(t, tbl.Cell(1, c).IsBlank(), "middle row stays blank")
	}

	assert.Equal(t, "-40", tbl.Cell(2, 1).String())
	assert.Equal(t, KindString, tbl.Cell(2, 2).Kind())
}

func TestDecode_CSV(t *testing.T) {
	data := testutil.BuildCSV(t, []string{"Symbol", "OI Change", "Volume"},
		[]string{"RELIANCE", "120", "3200"},
		[]string{"TCS", "-40"},
		[]string{"nan", "0", "NULL"},
		[]string{"INFY", "1,234", "17"},
	)
	data = append(data, []byte("\n\nWIPRO,5,6\nSBIN,7,8\nITC,9,10\n")...)

	tbl, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, tbl.Format)
	require.Len(t, tbl.Rows, 7)
	assert.Equal(t, "-40", tbl.Cell(1, 1).String())
	assert.True(t, tbl.Cell(1, 2).IsBlank(), "short row padded")
	assert.True(t, tbl.Cell(2, 0).IsBlank(), "missing marker")
	assert.True(t, tbl.Cell(2, 2).IsBlank())
	assert.Equal(t, KindString, tbl.Cell(3, 1).Kind())
	assert.Equal(t, "WIPRO", tbl.Cell(4, 0).String())
	assert.Equal(t, "10", tbl.Cell(6, 2).String())
}

func TestDecode_CSVLegacyEncoding(t *testing.T) {
	text := "Symbol,Name,OI Change\n" + strings.Repeat("ABC,Café Société,10\n", 8)
	encoded, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)

	tbl, err := Decode([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 8)
	assert.Equal(t, "Café Société", tbl.Cell(0, 1).String())
}

func TestDecode_JSON(t *testing.T) {
	payload := `{"records": {"timestamp": "01-Jan-2024", "data": [
		{"symbol": "RELIANCE", "latestOI": 120500, "pchangeinOpenInterest": 20.5},
		{"symbol": "TCS", "latestOI": 80400, "underlying": null, "pchangeinOpenInterest": -10.66}
	]}}`

	tbl, err := Decode([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, tbl.Format)
	assert.Equal(t, []string{"symbol", "latestOI", "pchangeinOpenInterest", "underlying"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "120500", tbl.Cell(0, 1).String())
	assert.True(t, tbl.Cell(0, 3).IsBlank())
	assert.Equal(t, "-10.66", tbl.Cell(1, 2).String())
}

func TestDecodeJSON_Shapes(t *testing.T) {
	t.Run("top level data array", func(t *testing.T) {
		tbl, err := DecodeJSON([]byte(`{"name": "NIFTY 50", "data": [{"symbol": "INFY", "lastPrice": 1500}]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"symbol", "lastPrice"}, tbl.Columns)
		assert.Len(t, tbl.Rows, 1)
	})

	t.Run("bare array", func(t *testing.T) {
		tbl, err := DecodeJSON([]byte(`[{"symbol": "INFY"}, {"symbol": "TCS"}]`))
		require.NoError(t, err)
		assert.Len(t, tbl.Rows, 2)
	})

	t.Run("single object", func(t *testing.T) {
		tbl, err := DecodeJSON([]byte(`{"symbol": "INFY", "active": true}`))
		require.NoError(t, err)
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "true", tbl.Cell(0, 1).String())
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		tbl, err := DecodeJSON([]byte(`[{"symbol": "INFY", "oi": 10,}]`))
		require.NoError(t, err)
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "10", tbl.Cell(0, 1).String())
	})
}
