package expedition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueStableOrder(t *testing.T) {
	first := Catalogue()
	second := Catalogue()
	require.Equal(t, first, second)
	require.Len(t, first, 8)
	assert.Equal(t, VendorJNT, first[0].Vendor)

	// Returned slice is a copy; callers cannot poison the catalogue.
	first[0].PathSlug = "mutated"
	assert.NotEqual(t, "mutated", Catalogue()[0].PathSlug)
}

func TestLookup(t *testing.T) {
	d, ok := Lookup(VendorSAP)
	require.True(t, ok)
	assert.Equal(t, ScopeRegency, d.DestScope)

	_, ok = Lookup(Vendor("ghost"))
	assert.False(t, ok)
}

func TestDiscountCodeForOption(t *testing.T) {
	cases := map[string]string{
		"jnt-ez":               "JNTEXPRESS",
		"jnt-reg":              "JNTEXPRESS",
		"paxel-regular":        "PAXEL",
		"lion-regular":         "LION",
		"sap-udrreg":           "SAP",
		"posindonesia-reguler": "POSINDONESIA",
		"jne-reg":              "JNE",
		"idexpress-regular":    "IDEXPRESS",
		"anteraja-regular":     "ANTERAJA",
		"mystery-option":       "JNTEXPRESS",
		"":                     "JNTEXPRESS",
	}
	for optionID, want := range cases {
		assert.Equal(t, want, DiscountCodeForOption(optionID), optionID)
	}
}
