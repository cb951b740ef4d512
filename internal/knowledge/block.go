package knowledge

import (
	"fmt"
	"strings"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

const (
	blockHeader          = "--- STRUCTURED KNOWLEDGE HUB (Supreme Authority) ---"
	blockFooter          = "--- END STRUCTURED KNOWLEDGE HUB ---"
	logisticsBudgetChars = 4000
	truncationMarker     = "... [truncated — use route-specific lookup]"
	hotelSummaryLimit    = 50
)

// BuildKnowledgeBlock renders the aggregate as a prompt section. Sections
// appear in fixed authority order: brand guidelines, core principles,
// logistics rules, hotel summary. Returns "" when nothing is loaded.
func BuildKnowledgeBlock(k *model.StructuredKnowledge) string {
	if k == nil || k.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(blockHeader)
	b.WriteString("\n\n")
	if k.BrandGuidelines != "" {
		b.WriteString("=== BRAND GUIDELINES (MANDATORY) ===\n")
		b.WriteString(strings.TrimSpace(k.BrandGuidelines))
		b.WriteString("\n\n")
	}
	if k.CorePrinciples != "" {
		b.WriteString("=== CORE PRINCIPLES ===\n")
		b.WriteString(strings.TrimSpace(k.CorePrinciples))
		b.WriteString("\n\n")
	}
	if logistics := logisticsSection(k); logistics != "" {
		b.WriteString("=== LOGISTICS RULES ===\n")
		b.WriteString(logistics)
		b.WriteString("\n\n")
	}
	if len(k.HotelMaster) > 0 {
		b.WriteString("=== APPROVED HOTELS ===\n")
		b.WriteString(hotelSummary(k.HotelMaster))
		b.WriteString("\n\n")
	}
	b.WriteString(blockFooter)
	return b.String()
}

// logisticsSection keeps the raw document but caps its prompt footprint;
// route details beyond the cap are served by the per-route lookup instead.
func logisticsSection(k *model.StructuredKnowledge) string {
	text := strings.TrimSpace(k.LogisticsRaw)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= logisticsBudgetChars {
		return text
	}
	return string(runes[:logisticsBudgetChars]) + truncationMarker
}

func hotelSummary(hotels []model.HotelEntry) string {
	var b strings.Builder
	limit := len(hotels)
	if limit > hotelSummaryLimit {
		limit = hotelSummaryLimit
	}
	for _, h := range hotels[:limit] {
		b.WriteString(fmt.Sprintf("• %s (%s)", h.Name, h.City))
		if h.Stars > 0 {
			b.WriteString(fmt.Sprintf(" — %d★", h.Stars))
		}
		if len(h.Tags) > 0 {
			b.WriteString(" — Tags: ")
			b.WriteString(strings.Join(h.Tags, ", "))
		}
		b.WriteString("\n")
	}
	if len(hotels) > limit {
		b.WriteString(fmt.Sprintf("(+%d more hotels available via matching)\n", len(hotels)-limit))
	}
	return strings.TrimRight(b.String(), "\n")
}
