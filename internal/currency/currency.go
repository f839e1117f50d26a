package currency

import "strings"

// DefaultCode is used for every ship-to country without an explicit
// mapping, including missing or unknown codes.
const (
	DefaultCode   = "EUR"
	DefaultSymbol = "€"
)

type regional struct {
	code   string
	symbol string
}

var countryMap = map[string]regional{
	"US": {"USD", "$"},
	"CA": {"CAD", "C$"},
	"GB": {"GBP", "£"},
}

// Resolve maps a ship-to country code to its display currency code and
// symbol. Unknown input falls through to the Euro default.
func Resolve(countryCode string) (code string, symbol string) {
	if r, ok := countryMap[strings.ToUpper(countryCode)]; ok {
		return r.code, r.symbol
	}
	return DefaultCode, DefaultSymbol
}
