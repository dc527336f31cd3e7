// Package expedition holds the courier vendor catalogue and the HTTP
// client for the logistics backend that fronts every courier API.
package expedition

import "strings"

// Vendor identifies one courier integration.
type Vendor string

const (
	VendorJNT          Vendor = "JNT"
	VendorPaxel        Vendor = "PAXEL"
	VendorLion         Vendor = "LION"
	VendorSAP          Vendor = "SAP"
	VendorPosIndonesia Vendor = "POSINDONESIA"
	VendorJNE          Vendor = "JNE"
	VendorIDExpress    Vendor = "IDEXPRESS"
	VendorAnteraja     Vendor = "ANTERAJA"
)

// DestScope selects which part of a resolved locus a vendor expects as
// its destination (and origin) name.
type DestScope int

const (
	// ScopeDistrict sends the district name alone.
	ScopeDistrict DestScope = iota
	// ScopeRegency sends the regency name alone.
	ScopeRegency
	// ScopeDistrictRegency sends "district, regency" combined.
	ScopeDistrictRegency
)

// Descriptor is the static per-courier configuration. Instances are
// fixed at startup and read-only afterwards.
type Descriptor struct {
	Vendor       Vendor
	PathSlug     string // path segment under /admin/expedition/
	DiscountCode string // code used by the discount backend
	WeightInKg   bool   // true when the courier expects kilograms
	OriginScope  DestScope
	DestScope    DestScope
	LogoRef      string
}

var catalogue = []Descriptor{
	{Vendor: VendorJNT, PathSlug: "jntexpress", DiscountCode: "JNTEXPRESS", OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/jnt.png"},
	{Vendor: VendorPaxel, PathSlug: "paxel", DiscountCode: "PAXEL", OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/paxel.png"},
	{Vendor: VendorLion, PathSlug: "lion", DiscountCode: "LION", WeightInKg: true, OriginScope: ScopeDistrictRegency, DestScope: ScopeDistrictRegency, LogoRef: "/images/lion.png"},
	{Vendor: VendorSAP, PathSlug: "sap", DiscountCode: "SAP", OriginScope: ScopeRegency, DestScope: ScopeRegency, LogoRef: "/images/sap-new.png"},
	{Vendor: VendorPosIndonesia, PathSlug: "posindonesia", DiscountCode: "POSINDONESIA", OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/posindonesia.png"},
	{Vendor: VendorJNE, PathSlug: "jne", DiscountCode: "JNE", WeightInKg: true, OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/jne.png"},
	{Vendor: VendorIDExpress, PathSlug: "idexpress", DiscountCode: "IDEXPRESS", OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/idexpress.png"},
	{Vendor: VendorAnteraja, PathSlug: "anteraja", DiscountCode: "ANTERAJA", WeightInKg: true, OriginScope: ScopeRegency, DestScope: ScopeDistrict, LogoRef: "/images/anteraja.png"},
}

// Catalogue returns all vendor descriptors in dispatch order. Outcome
// ordering across a quote batch follows this order.
func Catalogue() []Descriptor {
	out := make([]Descriptor, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup returns the descriptor for a vendor.
func Lookup(v Vendor) (Descriptor, bool) {
	for _, d := range catalogue {
		if d.Vendor == v {
			return d, true
		}
	}
	return Descriptor{}, false
}

// optionPrefixes maps normalized option id prefixes to discount codes.
// Ids are built as "<prefix>-<tier>" during normalization.
var optionPrefixes = []struct {
	prefix string
	code   string
}{
	{"paxel", "PAXEL"},
	{"lion", "LION"},
	{"sap", "SAP"},
	{"posindonesia", "POSINDONESIA"},
	{"jne", "JNE"},
	{"idexpress", "IDEXPRESS"},
	{"anteraja", "ANTERAJA"},
}

// DiscountCodeForOption infers the discount vendor code from an option
// id prefix. Unrecognized prefixes fall back to JNTEXPRESS, mirroring
// the first vendor in the catalogue.
func DiscountCodeForOption(optionID string) string {
	for _, p := range optionPrefixes {
		if strings.HasPrefix(optionID, p.prefix) {
			return p.code
		}
	}
	return "JNTEXPRESS"
}
