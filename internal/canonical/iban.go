package canonical

import (
	"math/big"
	"strings"
)

// NormalizeIBAN uppercases and strips spaces from a raw IBAN string, per
// §3's "normalised uppercase, no spaces" requirement.
func NormalizeIBAN(raw string) string {
	raw = strings.ToUpper(raw)
	return strings.ReplaceAll(raw, " ", "")
}

// ValidIBAN verifies the ISO 7064 MOD-97-10 checksum of a normalised
// IBAN. It does not validate that the country prefix is known — that is
// a separate, WARNING-level finding raised by the arithmetic stage.
func ValidIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	for _, r := range iban {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}

	rearranged := iban[4:] + iban[:4]

	var numeric strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			numeric.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			numeric.WriteString(big.NewInt(int64(r - 'A' + 10)).String())
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(numeric.String(), 10)
	if !ok {
		return false
	}
	mod := new(big.Int).Mod(n, big.NewInt(97))
	return mod.Int64() == 1
}

// IBANCountryPrefix returns the two-letter country prefix of a
// normalised IBAN.
func IBANCountryPrefix(iban string) string {
	if len(iban) < 2 {
		return ""
	}
	return iban[:2]
}
