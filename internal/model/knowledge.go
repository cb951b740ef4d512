package model

// Canonical filenames of the four authoritative documents served by the
// structured knowledge hub.
const (
	FileBrandGuidelines = "1_brand_guidelines.md"
	FileCorePrinciples  = "2_core_principles.md"
	FileLogisticsRules  = "3_logistics_rules.json"
	FileHotelMaster     = "4_hotel_master.json"
)

type HotelEntry struct {
	Name        string   `json:"name"`
	City        string   `json:"city"`
	Category    string   `json:"category,omitempty"`
	Stars       int      `json:"stars,omitempty"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
	PriceRange  string   `json:"priceRange,omitempty"`
}

// StructuredKnowledge aggregates the four optional authority documents. All
// fields may be empty; an entirely empty aggregate means nothing is loaded.
type StructuredKnowledge struct {
	BrandGuidelines string
	CorePrinciples  string
	// LogisticsRules holds the parsed JSON document when it parses, otherwise
	// nil; LogisticsRaw always carries the raw text.
	LogisticsRules interface{}
	LogisticsRaw   string
	HotelMaster    []HotelEntry
}

func (k *StructuredKnowledge) Empty() bool {
	if k == nil {
		return true
	}
	return k.BrandGuidelines == "" && k.CorePrinciples == "" && k.LogisticsRaw == "" && len(k.HotelMaster) == 0
}
