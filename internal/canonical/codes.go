package canonical

// iso3166Alpha2 is the set of recognised ISO 3166-1 alpha-2 country
// codes used to validate VAT id prefixes and party addresses. Kept as a
// static table (no network fetch at runtime) in the spirit of the
// teacher's generated code-list pattern (cmd/gencodelists), but
// hand-maintained here since the spec needs only membership testing, not
// a human-readable lookup.
var iso3166Alpha2 = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true, "GB": true, "CH": true, "NO": true,
	"IS": true, "LI": true, "US": true, "CA": true, "AU": true, "JP": true,
	"CN": true, "EL": true, // EL is used by Greece in some VAT schemes
}

// IsKnownCountry reports whether code is a recognised ISO 3166-1 alpha-2
// country code.
func IsKnownCountry(code string) bool {
	return iso3166Alpha2[code]
}

// iso4217 is the set of recognised ISO 4217 currency codes.
var iso4217 = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "CHF": true, "SEK": true,
	"NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true,
	"RON": true, "BGN": true, "HRK": true, "JPY": true, "CAD": true,
	"AUD": true, "CNY": true,
}

// IsKnownCurrency reports whether code is a recognised ISO 4217 currency
// code.
func IsKnownCurrency(code string) bool {
	return iso4217[code]
}
