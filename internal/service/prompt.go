package service

import (
	"fmt"
	"strings"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/model"
)

const (
	promptPassageLimit = 5
	maxOutputTokens    = 16384
	refineHistoryLimit = 6
)

const systemPersona = `You are a master travel consultant specializing in Indochina (Vietnam, Laos, Cambodia) with 20 years of on-the-ground experience. You design premium, logistically sound itineraries.

RULES:
1. The STRUCTURED KNOWLEDGE HUB, when present, is the supreme authority. Its brand guidelines, principles, logistics rules and hotel list override anything else, including retrieved reference material and your own general knowledge.
2. Retrieved reference passages are inspiration only. Never copy their prices or dates.
3. Every day MUST include all of: highlights, experience, pickupPlace, pickupTime, meals, transportation, hotel.
4. Hotels must come from the approved hotel list when one is provided for the destination.
5. Respond with pure JSON only. No markdown fences, no commentary before or after the JSON object.`

// buildSystemPrompt attaches the knowledge block to the persona when the hub
// has content.
func buildSystemPrompt(k *model.StructuredKnowledge) string {
	block := knowledge.BuildKnowledgeBlock(k)
	if block == "" {
		return systemPersona
	}
	return systemPersona + "\n\n" + block
}

// buildRAGQuery composes the retrieval query from the request facts.
func buildRAGQuery(req *model.ItineraryRequest) string {
	parts := []string{
		strings.Join(req.Destinations, " "),
		strings.Join(req.Interests, " "),
		fmt.Sprintf("%d day itinerary", req.Duration),
	}
	if req.TravelStyle != "" {
		parts = append(parts, req.TravelStyle)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func buildUserPrompt(req *model.ItineraryRequest, passages []string, hotelsByCity map[string][]model.HotelEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %d-day itinerary.\n\n", req.Duration)
	fmt.Fprintf(&b, "Start point: %s\n", req.StartPoint)
	fmt.Fprintf(&b, "Destinations: %s\n", strings.Join(req.Destinations, ", "))
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(req.Interests, ", "))
	}
	if req.GroupSize > 0 {
		fmt.Fprintf(&b, "Group size: %d\n", req.GroupSize)
	}
	if req.TravelStyle != "" {
		fmt.Fprintf(&b, "Travel style: %s\n", req.TravelStyle)
	}
	if req.SpecialRequirements != "" {
		fmt.Fprintf(&b, "Special requirements: %s\n", req.SpecialRequirements)
	}

	if len(passages) > 0 {
		b.WriteString("\n--- REFERENCE TOUR MATERIAL (inspiration only) ---\n")
		limit := len(passages)
		if limit > promptPassageLimit {
			limit = promptPassageLimit
		}
		for i, passage := range passages[:limit] {
			fmt.Fprintf(&b, "\n[Reference %d]\n%s\n", i+1, passage)
		}
		b.WriteString("--- END REFERENCE MATERIAL ---\n")
	}

	if len(hotelsByCity) > 0 {
		b.WriteString("\nSuggested hotels per destination (pick from these):\n")
		for _, city := range req.Destinations {
			hotels := hotelsByCity[city]
			if len(hotels) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s:\n", city)
			for _, h := range hotels {
				fmt.Fprintf(&b, "  - %s (%d stars)\n", h.Name, h.Stars)
			}
		}
	}

	fmt.Fprintf(&b, `
Return a JSON object with this exact shape:
{
  "title": "...",
  "subtitle": "...",
  "overview": "...",
  "highlights": ["..."],
  "days": [
    {
      "dayNumber": 1,
      "highlights": "...",
      "experience": "...",
      "pickupPlace": "...",
      "pickupTime": "...",
      "dropoffPlace": "...",
      "dropoffTime": "...",
      "meals": {"breakfast": "...", "lunch": "...", "dinner": "..."},
      "transportation": [{"type": "...", "departure": "...", "arrival": "...", "etd": "...", "eta": "...", "class": "..."}],
      "hotel": "...",
      "imageKeyword": "...",
      "activities": ["..."],
      "notes": "..."
    }
  ]
}

The "days" array MUST contain exactly %d entries, dayNumber 1 through %d.`, req.Duration, req.Duration)
	return b.String()
}

// buildRetryMessages replays the incomplete output and asks for the full day
// set in one corrective turn.
func buildRetryMessages(base []ai.Message, incompleteOutput string, want, got int) []ai.Message {
	msgs := make([]ai.Message, 0, len(base)+2)
	msgs = append(msgs, base...)
	msgs = append(msgs, ai.Message{Role: ai.RoleAssistant, Content: incompleteOutput})
	msgs = append(msgs, ai.Message{
		Role: ai.RoleUser,
		Content: fmt.Sprintf(
			"Your response contained %d day(s) but the itinerary requires exactly %d. Return the complete JSON object again with all %d days present, dayNumber 1 through %d. Pure JSON only.",
			got, want, want, want),
	})
	return msgs
}

// buildRefineMessages assembles the refinement conversation: persona plus
// knowledge, the current itinerary, the recent chat history, and the request.
func buildRefineMessages(k *model.StructuredKnowledge, itin *model.Itinerary, history []model.ChatTurn, request string) ([]ai.Message, error) {
	itinJSON, err := marshalItinerary(itin)
	if err != nil {
		return nil, err
	}
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: buildSystemPrompt(k) + refineInstructions},
		{Role: ai.RoleUser, Content: "Current itinerary JSON:\n" + itinJSON},
	}
	start := 0
	if len(history) > refineHistoryLimit {
		start = len(history) - refineHistoryLimit
	}
	for _, turn := range history[start:] {
		role := ai.RoleUser
		if turn.Role == "assistant" {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: request})
	return msgs, nil
}

const refineInstructions = `

You are refining an existing itinerary. Apply the user's requested change and return the COMPLETE updated itinerary as a JSON object in the same shape as the original, with the same number of days. Keep every day you were not asked to change exactly as it was. Pure JSON only.`

// maxTokensFor scales the output budget with trip length so long itineraries
// are not cut off mid-JSON.
func maxTokensFor(duration int) int {
	tokens := 2048 + 1024*duration
	if tokens > maxOutputTokens {
		return maxOutputTokens
	}
	return tokens
}
