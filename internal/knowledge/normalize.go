package knowledge

import (
	"encoding/json"
	"strings"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

// rawHotel tolerates the field spellings seen across hotel master exports.
type rawHotel struct {
	Name        string      `json:"name"`
	Hotel       string      `json:"hotel"`
	City        string      `json:"city"`
	Location    string      `json:"location"`
	Category    string      `json:"category"`
	Stars       json.Number `json:"stars"`
	Rating      json.Number `json:"rating"`
	Tags        []string    `json:"tags"`
	Description string      `json:"description"`
	PriceRange  string      `json:"priceRange"`
}

type rawCity struct {
	Name   string     `json:"name"`
	City   string     `json:"city"`
	Hotels []rawHotel `json:"hotels"`
}

type rawCountry struct {
	Name   string    `json:"name"`
	Cities []rawCity `json:"cities"`
}

// ParseHotelMaster normalizes the hotel master document into a flat list. It
// accepts a flat array, an object wrapping a `hotels` array, or the nested
// countries→cities→hotels tree. Malformed entries are skipped, never fatal.
func ParseHotelMaster(raw []byte) []model.HotelEntry {
	var flat []rawHotel
	if err := json.Unmarshal(raw, &flat); err == nil {
		return normalizeHotels(flat, "")
	}

	var wrapped struct {
		Hotels    []rawHotel   `json:"hotels"`
		Countries []rawCountry `json:"countries"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil
	}
	if len(wrapped.Hotels) > 0 {
		return normalizeHotels(wrapped.Hotels, "")
	}
	var result []model.HotelEntry
	for _, country := range wrapped.Countries {
		for _, city := range country.Cities {
			name := city.Name
			if name == "" {
				name = city.City
			}
			result = append(result, normalizeHotels(city.Hotels, name)...)
		}
	}
	return result
}

func normalizeHotels(raws []rawHotel, city string) []model.HotelEntry {
	var result []model.HotelEntry
	for _, r := range raws {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = strings.TrimSpace(r.Hotel)
		}
		if name == "" {
			continue
		}
		entry := model.HotelEntry{
			Name:        name,
			City:        strings.TrimSpace(firstNonEmpty(r.City, r.Location, city)),
			Category:    strings.TrimSpace(r.Category),
			Stars:       parseStars(r.Stars, r.Rating),
			Tags:        dedupTags(r.Tags),
			Description: strings.TrimSpace(r.Description),
			PriceRange:  strings.TrimSpace(r.PriceRange),
		}
		if entry.City == "" {
			continue
		}
		if len(entry.Tags) == 0 {
			entry.Tags = inferTags(entry)
		}
		result = append(result, entry)
	}
	return result
}

// inferTags derives classification tags from the entry text when the export
// carries none. Best effort; an empty result is acceptable.
func inferTags(h model.HotelEntry) []string {
	text := strings.ToLower(h.Name + " " + h.Description + " " + h.Category)
	var tags []string
	if strings.Contains(text, "spa") || strings.Contains(text, "wellness") {
		tags = append(tags, "wellness")
	}
	if strings.Contains(text, "beach") || strings.Contains(text, "resort") {
		tags = append(tags, "relaxation")
	}
	if strings.Contains(text, "boutique") || strings.Contains(text, "heritage") {
		tags = append(tags, "culture")
	}
	if strings.Contains(text, "family") {
		tags = append(tags, "family")
	}
	if h.Stars >= 5 {
		tags = append(tags, "luxury")
	}
	if h.Stars > 0 && h.Stars <= 2 {
		tags = append(tags, "budget")
	}
	return dedupTags(tags)
}

func dedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var result []string
	for _, tag := range tags {
		normalized := strings.TrimSpace(tag)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

func parseStars(values ...json.Number) int {
	for _, v := range values {
		if v == "" {
			continue
		}
		if n, err := v.Int64(); err == nil && n > 0 {
			return int(n)
		}
		if f, err := v.Float64(); err == nil && f > 0 {
			return int(f)
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MatchHotels filters and ranks the hotel list for one destination. City
// matches by case-insensitive substring; Budget trips exclude hotels above
// 3 stars and Luxury trips those below 4; the remainder is ordered by the
// number of interest↔tag overlaps, ties keeping their relative order.
func MatchHotels(hotels []model.HotelEntry, interests []string, city, travelStyle string) []model.HotelEntry {
	if len(hotels) == 0 {
		return nil
	}
	lowerInterests := make([]string, 0, len(interests))
	for _, interest := range interests {
		lowerInterests = append(lowerInterests, strings.ToLower(interest))
	}
	cityLower := strings.ToLower(city)

	type scored struct {
		hotel model.HotelEntry
		score int
	}
	var matched []scored
	for _, h := range hotels {
		if city != "" && !strings.Contains(strings.ToLower(h.City), cityLower) {
			continue
		}
		if travelStyle == model.TravelStyleBudget && h.Stars > 3 {
			continue
		}
		if travelStyle == model.TravelStyleLuxury && h.Stars > 0 && h.Stars < 4 {
			continue
		}
		score := 0
		for _, tag := range h.Tags {
			tagLower := strings.ToLower(tag)
			for _, interest := range lowerInterests {
				if strings.Contains(tagLower, interest) || strings.Contains(interest, tagLower) {
					score++
					break
				}
			}
		}
		matched = append(matched, scored{hotel: h, score: score})
	}
	// Stable sort keeps the master list order for equal scores.
	for i := 1; i < len(matched); i++ {
		for j := i; j > 0 && matched[j].score > matched[j-1].score; j-- {
			matched[j], matched[j-1] = matched[j-1], matched[j]
		}
	}
	result := make([]model.HotelEntry, 0, len(matched))
	for _, m := range matched {
		result = append(result, m.hotel)
	}
	return result
}

// LookupLogistics finds the first route entry matching from/to. The rules
// document may carry the list under `routes`, `segments` or as a bare array,
// and each entry may spell its endpoints several ways; matching is
// bidirectional substring, case-insensitive.
func LookupLogistics(rules interface{}, from, to string) map[string]interface{} {
	if rules == nil {
		return nil
	}
	var routes []interface{}
	switch v := rules.(type) {
	case []interface{}:
		routes = v
	case map[string]interface{}:
		if r, ok := v["routes"].([]interface{}); ok {
			routes = r
		} else if r, ok := v["segments"].([]interface{}); ok {
			routes = r
		}
	}
	if len(routes) == 0 {
		return nil
	}
	fromLower := strings.ToLower(from)
	toLower := strings.ToLower(to)
	for _, item := range routes {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rFrom := strings.ToLower(stringField(entry, "from", "departure", "origin"))
		rTo := strings.ToLower(stringField(entry, "to", "arrival", "destination"))
		if rFrom == "" || rTo == "" {
			continue
		}
		if substrEither(rFrom, fromLower) && substrEither(rTo, toLower) {
			return entry
		}
	}
	return nil
}

func stringField(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func substrEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
