package issuer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

func TestClassify(t *testing.T) {
	c := Default()
	tests := []struct {
		name string
		text string
		meta map[string]string
		want models.IssuerTag
	}{
		{"westpac legal name", "Westpac Banking Corporation ABN 33 007 457 141\nStatement of account", nil, models.IssuerWestpac},
		{"lloyds with header", "Lloyds Bank\nDate Description Type Money In (£) Money Out (£) Balance (£)", nil, models.IssuerLloyds},
		{"huntington routing", "Routing 044000024\nThe Huntington National Bank", nil, models.IssuerHuntington},
		{"metadata only", "Account summary", map[string]string{"Producer": "Discover Bank statements"}, models.IssuerDiscover},
		{"walmart beats its issuing bank", "Walmart MoneyCard account statement. Issued by Green Dot Bank", nil, models.IssuerWalmart},
		{"single brand word is not enough", "Payment to DISCOVER card", nil, models.IssuerGeneric},
		{"nothing matches", "First National Savings\nStatement", nil, models.IssuerGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, tt.meta)
			assert.Equal(t, tt.want, got.Issuer)
		})
	}
}

func TestClassifyConfidence(t *testing.T) {
	c := Default()

	got := c.Classify("Payment to DISCOVER card", nil)
	assert.Equal(t, models.IssuerGeneric, got.Issuer)
	assert.InDelta(t, weakWeight, got.Confidence, 1e-9, "best confidence is kept for diagnostics")

	got = c.Classify("BECU Boeing Employees Credit Union becu.org", nil)
	assert.Equal(t, models.IssuerBECU, got.Issuer)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Contains(t, got.Markers, "BECU.ORG")
}

func TestClassifyVotesAcrossIssuers(t *testing.T) {
	// A Huntington statement that pays a Discover card still classifies
	// as Huntington.
	text := "The Huntington National Bank\nhuntington.com\n03/15 DISCOVER E-PAYMENT 120.00"
	got := Default().Classify(text, nil)
	assert.Equal(t, models.IssuerHuntington, got.Issuer)
}

func TestCustomFloor(t *testing.T) {
	c := New([]Profile{{Tag: models.IssuerPayPal, Weak: []string{"PAYPAL"}}}, 0.3)
	assert.Equal(t, models.IssuerPayPal, c.Classify("paypal balance", nil).Issuer)
}
