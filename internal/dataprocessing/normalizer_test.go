package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain", input: "reliance", expected: "RELIANCE"},
		{name: "trims", input: "  tcs  ", expected: "TCS"},
		{name: "eq suffix", input: "RELIANCE-EQ", expected: "RELIANCE"},
		{name: "be suffix", input: "yesbank-be", expected: "YESBANK"},
		{name: "dotted suffix", input: "INFY.ST", expected: "INFY"},
		{name: "suffix in the middle is kept", input: "ABC-EQX", expected: "ABC-EQX"},
		{name: "bare suffix is kept", input: "-EQ", expected: "-EQ"},
		{name: "special characters", input: "M&M", expected: "MM"},
		{name: "internal whitespace", input: "BAJAJ AUTO", expected: "BAJAJAUTO"},
		{name: "underscore and hyphen kept", input: "NIFTY_50-FUT", expected: "NIFTY_50-FUT"},
		{name: "stacked suffixes strip to a fixed point", input: "X-EQ-EQ", expected: "X"},
		{name: "suffix revealed by filtering", input: "ABC-E Q", expected: "ABC"},
		{name: "only punctuation", input: "@@ !!", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", " ", "RELIANCE-EQ", "x-eq-eq", "A.B.EQ", "HDFC BANK LTD.", "Ünïcode-SM",
		"L&T", "-BE-BE", "tata motors-eq ", "123", "nan", "ABC-E Q", "__--__",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
