// Package quote implements the multi-vendor shipping quote core:
// concurrent fan-out to every enabled courier, normalization of the
// heterogeneous vendor payloads into comparable shipping options, and
// batch bookkeeping for asynchronous discount enrichment.
package quote

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
)

// ErrMissingLocation indicates the origin or destination could not be
// resolved to a name. It fails the whole batch before any network call.
var ErrMissingLocation = errors.New("quote: origin or destination missing")

// Locus is a resolved administrative location pair. District may be
// empty when the caller only knows the regency.
type Locus struct {
	Regency  string `json:"regency"`
	District string `json:"district"`
}

// Name renders the locus at a vendor's expected granularity.
func (l Locus) Name(scope expedition.DestScope) string {
	switch scope {
	case expedition.ScopeRegency:
		return strings.TrimSpace(l.Regency)
	case expedition.ScopeDistrictRegency:
		combined := strings.TrimSpace(l.District) + ", " + strings.TrimSpace(l.Regency)
		return strings.Trim(combined, ", ")
	default:
		if d := strings.TrimSpace(l.District); d != "" {
			return d
		}
		return strings.TrimSpace(l.Regency)
	}
}

// Request describes one quote query. Built once per submission and
// never mutated.
type Request struct {
	Origin      Locus
	Destination Locus
	WeightGrams int
	// SessionKey, when set, lets a newer submission supersede the
	// previous batch of the same caller.
	SessionKey string
}

// Validate enforces the pre-dispatch invariants.
func (r Request) Validate() error {
	if r.Origin.Name(expedition.ScopeRegency) == "" || r.Destination.Name(expedition.ScopeDistrict) == "" {
		return ErrMissingLocation
	}
	return nil
}

// Tag annotates an option for display.
type Tag struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Option is the canonical normalized shipping option. Price is in
// rupiah (smallest unit) and always positive; zero-cost quotes are
// dropped during normalization.
type Option struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Logo         string `json:"logo"`
	Price        int64  `json:"price"`
	DisplayPrice string `json:"display_price"`
	Duration     string `json:"duration"`
	Recommended  bool   `json:"recommended"`
	Tags         []Tag  `json:"tags"`
}

// Outcome is the settled result of one vendor call: either the raw
// payload or a recorded error, never both.
type Outcome struct {
	Vendor expedition.Vendor
	Raw    json.RawMessage
	Err    error
}

// Discount is the best applicable promotional adjustment for one
// option, computed from the backend's best_discount response.
type Discount struct {
	HasDiscount     bool   `json:"has_discount"`
	DiscountAmount  int64  `json:"discount_amount"`
	DiscountedPrice int64  `json:"discounted_price"`
	OriginalPrice   int64  `json:"original_price"`
	DiscountID      *int64 `json:"discount_id,omitempty"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"discount_type"`
}

// DiscountState tracks per-option enrichment progress. Loading is true
// while the lookup is outstanding; a nil Discount after loading means
// the terminal "no discount" state.
type DiscountState struct {
	Loading  bool      `json:"loading"`
	Discount *Discount `json:"discount,omitempty"`
}

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way the storefront shows it,
// e.g. 9000 -> "Rp9.000".
func FormatRupiah(amount int64) string {
	return rupiahPrinter.Sprintf("Rp%v", number.Decimal(amount))
}
