package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAtLeastOneLine(t *testing.T) {
	t.Parallel()

	empty := &Invoice{}
	assert.False(t, empty.RequireAtLeastOneLine())

	withLine := &Invoice{Lines: []InvoiceLine{{LineID: "1"}}}
	assert.True(t, withLine.RequireAtLeastOneLine())
}

func TestUnknownVATPrefixes(t *testing.T) {
	t.Parallel()

	inv := &Invoice{
		Seller: Party{VATID: "DE123456789"},
		Buyer:  Party{VATID: "XX987654321"},
	}
	assert.Equal(t, []string{"XX"}, inv.UnknownVATPrefixes())
}

func TestUnknownCurrency(t *testing.T) {
	t.Parallel()

	assert.False(t, (&Invoice{Currency: "EUR"}).UnknownCurrency())
	assert.True(t, (&Invoice{Currency: "ZZZ"}).UnknownCurrency())
	assert.False(t, (&Invoice{}).UnknownCurrency())
}
