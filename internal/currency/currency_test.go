package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		country string
		code    string
		symbol  string
	}{
		{"US", "USD", "$"},
		{"CA", "CAD", "C$"},
		{"GB", "GBP", "£"},
		{"DE", "EUR", "€"},
		{"FR", "EUR", "€"},
		{"", "EUR", "€"},
		{"XX", "EUR", "€"},
	}
	for _, tt := range tests {
		code, symbol := Resolve(tt.country)
		assert.Equal(t, tt.code, code, "country %q", tt.country)
		assert.Equal(t, tt.symbol, symbol, "country %q", tt.country)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	code, symbol := Resolve("us")
	assert.Equal(t, "USD", code)
	assert.Equal(t, "$", symbol)
}
