package quote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
)

// Normalize converts the settled vendor outcomes into the flat,
// ordered option list. It is pure and deterministic: vendors are
// visited in outcome order, tiers in payload order, and the same
// outcome set always yields the same options. A vendor whose payload
// is malformed or whose call failed simply contributes zero options.
func Normalize(outcomes []Outcome) []Option {
	var options []Option
	for _, o := range outcomes {
		if o.Err != nil || len(o.Raw) == 0 {
			continue
		}
		desc, ok := expedition.Lookup(o.Vendor)
		if !ok {
			continue
		}
		options = append(options, parseVendor(desc, o.Raw)...)
	}
	return options
}

func parseVendor(desc expedition.Descriptor, raw json.RawMessage) []Option {
	switch desc.Vendor {
	case expedition.VendorJNT:
		return parseJNT(desc, raw)
	case expedition.VendorPaxel:
		return parsePaxel(desc, raw)
	case expedition.VendorLion:
		return parseLion(desc, raw)
	case expedition.VendorSAP:
		return parseSAP(desc, raw)
	case expedition.VendorPosIndonesia:
		return parsePosIndonesia(desc, raw)
	case expedition.VendorJNE:
		return parseJNE(desc, raw)
	case expedition.VendorIDExpress:
		return parseIDExpress(desc, raw)
	case expedition.VendorAnteraja:
		return parseAnteraja(desc, raw)
	default:
		return nil
	}
}

// looseNumber tolerates the backends' habit of shipping numbers as
// strings ("9000") or numbers (9000) in the same field.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("quote: parse number %q: %w", s, err)
	}
	*n = looseNumber(v)
	return nil
}

func positiveRupiah(candidates ...float64) (int64, bool) {
	for _, c := range candidates {
		if c > 0 {
			return int64(math.Round(c)), true
		}
	}
	return 0, false
}

func deref(n *looseNumber) float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// ---------------------------------------------------------------------------
// Tiered vendors: JNT, SAP, JNE. The backend emits an array of service
// tiers under shipping_costs_with_discount; a tier's price is the first
// positive of final_cost, raw cost, then the nested discount-info final
// cost.

type costTier struct {
	Cost         looseNumber  `json:"cost"`
	Name         string       `json:"name"`
	ProductType  string       `json:"productType"`
	FinalCost    *looseNumber `json:"final_cost"`
	DiscountInfo *struct {
		FinalCost *looseNumber `json:"final_cost"`
	} `json:"discount_info"`
}

func (t costTier) price() (int64, bool) {
	var nested float64
	if t.DiscountInfo != nil {
		nested = deref(t.DiscountInfo.FinalCost)
	}
	return positiveRupiah(deref(t.FinalCost), float64(t.Cost), nested)
}

type tieredPayload struct {
	Status string `json:"status"`
	Data   *struct {
		Content string `json:"content"`
	} `json:"data"`
	Tiers []json.RawMessage `json:"shipping_costs_with_discount"`
}

// decodeTiers decodes each tier element on its own, so one malformed
// element drops only itself instead of the whole array. Positions are
// preserved: a bad element becomes a zero tier with no positive cost.
func decodeTiers(raws []json.RawMessage) []costTier {
	tiers := make([]costTier, len(raws))
	for i, raw := range raws {
		_ = json.Unmarshal(raw, &tiers[i])
	}
	return tiers
}

// parseTiers emits one option per tier with a usable price. The
// recommended flag belongs to the vendor's first raw tier only; when
// that tier is dropped, no surviving tier inherits it.
func parseTiers(desc expedition.Descriptor, tiers []costTier, idPrefix, nameFormat, duration string, tag Tag) []Option {
	var options []Option
	for i, tier := range tiers {
		price, ok := tier.price()
		if !ok {
			continue
		}
		slug := tier.ProductType
		if slug == "" {
			slug = tier.Name
		}
		options = append(options, Option{
			ID:           idPrefix + "-" + strings.ToLower(slug),
			Name:         fmt.Sprintf(nameFormat, tier.Name),
			Logo:         desc.LogoRef,
			Price:        price,
			DisplayPrice: FormatRupiah(price),
			Duration:     duration,
			Recommended:  i == 0,
			Tags:         []Tag{tag},
		})
	}
	return options
}

func parseJNT(desc expedition.Descriptor, raw json.RawMessage) []Option {
	var payload tieredPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil
	}
	tag := Tag{Label: "Potensi retur Rendah", Type: "info"}
	if len(payload.Tiers) > 0 {
		return parseTiers(desc, decodeTiers(payload.Tiers), "jnt", "J&T %s", "1-3 Hari", tag)
	}
	// Legacy shape: the tier array arrives as a JSON string embedded in
	// data.content. A parse failure here means zero options, not an error.
	if payload.Data == nil || payload.Data.Content == "" {
		return nil
	}
	var content []json.RawMessage
	if err := json.Unmarshal([]byte(payload.Data.Content), &content); err != nil {
		return nil
	}
	return parseTiers(desc, decodeTiers(content), "jnt", "J&T %s", "1-3 Hari", tag)
}

func parseJNE(desc expedition.Descriptor, raw json.RawMessage) []Option {
	var payload tieredPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil
	}
	return parseTiers(desc, decodeTiers(payload.Tiers), "jne", "JNE %s", "2-3 Hari", Tag{Label: "Jaringan Nasional", Type: "info"})
}

func parseSAP(desc expedition.Descriptor, raw json.RawMessage) []Option {
	var payload tieredPayload
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Tiers) > 0 {
		if payload.Status != "" && payload.Status != "success" {
			return nil
		}
		return parseTiers(desc, decodeTiers(payload.Tiers), "sap", "SAP %s", "2-4 Hari", Tag{Label: "Pengiriman Cepat", Type: "info"})
	}

	// Single-tier shape: one shipping_cost object, wrapped or flat.
	data, ok := singleCostData(raw)
	if !ok {
		return nil
	}
	price, ok := positiveRupiah(float64(data.ShippingCost))
	if !ok {
		return nil
	}
	service := data.ServiceType
	if service == "" {
		service = "REGULER"
	}
	return []Option{{
		ID:           "sap-regular",
		Name:         "SAP " + service,
		Logo:         desc.LogoRef,
		Price:        price,
		DisplayPrice: FormatRupiah(price),
		Duration:     estimatedRange(data.EstimatedDays, 3),
		Tags:         []Tag{{Label: "Pengiriman Cepat", Type: "info"}},
	}}
}

// ---------------------------------------------------------------------------
// Single-tier vendors.

type singleCost struct {
	ShippingCost  looseNumber `json:"shipping_cost"`
	PublishRate   looseNumber `json:"publish_rate"`
	Cost          looseNumber `json:"cost"`
	Rate          looseNumber `json:"rate"`
	EstimatedDays int         `json:"estimated_days"`
	ServiceType   string      `json:"service_type"`
	Product       string      `json:"product"`
	Service       *struct {
		Rate looseNumber `json:"rate"`
	} `json:"service"`
}

type singleCostPayload struct {
	Status string      `json:"status"`
	Data   *singleCost `json:"data"`
}

// singleCostData accepts either {status, data:{...}} or a flat cost
// object, returning false when neither yields anything usable.
func singleCostData(raw json.RawMessage) (*singleCost, bool) {
	var payload singleCostPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Data != nil {
		if payload.Status != "" && payload.Status != "success" {
			return nil, false
		}
		return payload.Data, true
	}
	var flat singleCost
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, false
	}
	return &flat, true
}

func estimatedRange(days, fallback int) string {
	if days <= 0 {
		days = fallback
	}
	return fmt.Sprintf("%d-%d Hari", days, days+2)
}

type paxelPayload struct {
	Status string `json:"status"`
	Data   *struct {
		Data *struct {
			FixedPrice looseNumber `json:"fixed_price"`
		} `json:"data"`
	} `json:"data"`
}

func parsePaxel(desc expedition.Descriptor, raw json.RawMessage) []Option {
	var payload paxelPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil
	}
	if payload.Data == nil || payload.Data.Data == nil {
		return nil
	}
	price, ok := positiveRupiah(float64(payload.Data.Data.FixedPrice))
	if !ok {
		return nil
	}
	return []Option{{
		ID:           "paxel-regular",
		Name:         "Paxel Express",
		Logo:         desc.LogoRef,
		Price:        price,
		DisplayPrice: FormatRupiah(price),
		Duration:     "1-3 Hari",
		Tags:         []Tag{{Label: "Fast Delivery", Type: "info"}},
	}}
}

func parseLion(desc expedition.Descriptor, raw json.RawMessage) []Option {
	data, ok := singleCostData(raw)
	if !ok {
		return nil
	}
	price, ok := positiveRupiah(float64(data.ShippingCost))
	if !ok {
		return nil
	}
	product := data.Product
	if product == "" {
		product = "REGPACK"
	}
	return []Option{{
		ID:           "lion-regular",
		Name:         "Lion Parcel " + product,
		Logo:         desc.LogoRef,
		Price:        price,
		DisplayPrice: FormatRupiah(price),
		Duration:     estimatedRange(data.EstimatedDays, 5),
		Tags:         []Tag{{Label: "Reliable Service", Type: "info"}},
	}}
}

func parseIDExpress(desc expedition.Descriptor, raw json.RawMessage) []Option {
	data, ok := singleCostData(raw)
	if !ok {
		return nil
	}
	price, ok := positiveRupiah(float64(data.ShippingCost), float64(data.PublishRate))
	if !ok {
		return nil
	}
	return []Option{{
		ID:           "idexpress-regular",
		Name:         "ID Express Reguler",
		Logo:         desc.LogoRef,
		Price:        price,
		DisplayPrice: FormatRupiah(price),
		Duration:     estimatedRange(data.EstimatedDays, 2),
		Tags:         []Tag{{Label: "Harga Hemat", Type: "info"}},
	}}
}

func parseAnteraja(desc expedition.Descriptor, raw json.RawMessage) []Option {
	data, ok := singleCostData(raw)
	if !ok {
		return nil
	}
	var serviceRate float64
	if data.Service != nil {
		serviceRate = float64(data.Service.Rate)
	}
	price, ok := positiveRupiah(float64(data.Cost), float64(data.Rate), serviceRate)
	if !ok {
		return nil
	}
	return []Option{{
		ID:           "anteraja-regular",
		Name:         "Anteraja Reguler",
		Logo:         desc.LogoRef,
		Price:        price,
		DisplayPrice: FormatRupiah(price),
		Duration:     estimatedRange(data.EstimatedDays, 1),
		Tags:         []Tag{{Label: "Pengiriman Aman", Type: "info"}},
	}}
}

// ---------------------------------------------------------------------------
// Pos Indonesia: only the allow-listed "Pos Reguler" service is ever
// offered, whether the backend answers with the legacy tariff array or
// the newer single-object shape.

const posAllowedService = "Pos Reguler"

type posEntry struct {
	ProductName string      `json:"productname"`
	TotalFee    looseNumber `json:"totalfee"`
	Estimation  string      `json:"estimation"`
}

type posPayload struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func parsePosIndonesia(desc expedition.Descriptor, raw json.RawMessage) []Option {
	var payload posPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil
	}
	if len(payload.Data) == 0 {
		return nil
	}

	var entries []posEntry
	if err := json.Unmarshal(payload.Data, &entries); err != nil {
		// Newer shape: a single object instead of the legacy array.
		var single posEntry
		if err := json.Unmarshal(payload.Data, &single); err != nil {
			return nil
		}
		entries = []posEntry{single}
	}

	for _, entry := range entries {
		if !strings.EqualFold(strings.TrimSpace(entry.ProductName), posAllowedService) {
			continue
		}
		price, ok := positiveRupiah(float64(entry.TotalFee))
		if !ok {
			continue
		}
		duration := entry.Estimation
		if duration == "" {
			duration = "2-4 Hari"
		}
		return []Option{{
			ID:           "posindonesia-reguler",
			Name:         posAllowedService,
			Logo:         desc.LogoRef,
			Price:        price,
			DisplayPrice: FormatRupiah(price),
			Duration:     duration,
			Tags:         []Tag{{Label: "Jangkauan Luas", Type: "info"}},
		}}
	}
	return nil
}
