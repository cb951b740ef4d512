// Package service implements itinerary generation, refinement and corpus
// ingestion on top of the retrieval and knowledge layers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/errs"
	"github.com/hongianguyen/IndochinaPro/internal/retrieve"
	"github.com/xxxsen/common/logutil"
)

const (
	MinDuration = 1
	MaxDuration = 60

	maxGenerateAttempts = 2
)

type ItineraryService struct {
	generator ai.IGenerator
	retriever *retrieve.Retriever
	hub       *knowledge.Hub
	timeout   time.Duration
}

func NewItineraryService(generator ai.IGenerator, retriever *retrieve.Retriever, hub *knowledge.Hub, timeout time.Duration) *ItineraryService {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ItineraryService{
		generator: generator,
		retriever: retriever,
		hub:       hub,
		timeout:   timeout,
	}
}

func validateRequest(req *model.ItineraryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", errs.ErrInvalid)
	}
	if req.Duration < MinDuration || req.Duration > MaxDuration {
		return fmt.Errorf("%w: duration must be between %d and %d days", errs.ErrInvalid, MinDuration, MaxDuration)
	}
	if len(req.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination is required", errs.ErrInvalid)
	}
	return nil
}

// generationContext is everything gathered before the first model call.
type generationContext struct {
	passages  []string
	know      *model.StructuredKnowledge
	hotels    map[string][]model.HotelEntry
	baseMsgs  []ai.Message
	baseOpts  ai.GenerateOptions
	ragSource []string
}

// prepare runs retrieval and the knowledge load concurrently; retrieval
// failure degrades to no passages, a knowledge failure degrades to an empty
// aggregate.
func (s *ItineraryService) prepare(ctx context.Context, req *model.ItineraryRequest) *generationContext {
	var passages []string
	know := &model.StructuredKnowledge{}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		passages = s.retriever.RetrieveRelevantTours(egctx, buildRAGQuery(req), retrieve.DefaultTopK)
		return nil
	})
	eg.Go(func() error {
		loaded, err := s.hub.Load(egctx)
		if err != nil {
			logutil.GetLogger(egctx).Warn("knowledge hub load failed, generating without it", zap.Error(err))
			return nil
		}
		know = loaded
		return nil
	})
	_ = eg.Wait()

	hotels := make(map[string][]model.HotelEntry, len(req.Destinations))
	for _, city := range req.Destinations {
		if matched := knowledge.MatchHotels(know.HotelMaster, req.Interests, city, req.TravelStyle); len(matched) > 0 {
			hotels[city] = matched
		}
	}

	gc := &generationContext{
		passages: passages,
		know:     know,
		hotels:   hotels,
		baseMsgs: []ai.Message{
			{Role: ai.RoleSystem, Content: buildSystemPrompt(know)},
			{Role: ai.RoleUser, Content: buildUserPrompt(req, passages, hotels)},
		},
		baseOpts: ai.GenerateOptions{
			JSONOutput:  true,
			MaxTokens:   maxTokensFor(req.Duration),
			Temperature: 0.7,
		},
	}
	if len(passages) > 0 {
		gc.ragSource = []string{fmt.Sprintf("%d passages from the tour knowledge base", len(passages))}
	}
	return gc
}

// GenerateItinerary produces a complete itinerary with exactly req.Duration
// days. A wrong day count from the model is repaired, first by one corrective
// retry and then deterministically; only a hard generation failure surfaces
// as an error.
func (s *ItineraryService) GenerateItinerary(ctx context.Context, req *model.ItineraryRequest) (*model.Itinerary, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	gc := s.prepare(ctx, req)
	raw, err := s.generator.Generate(ctx, gc.baseMsgs, gc.baseOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	parsed, err := parseItineraryJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: model returned unparseable itinerary: %v", errs.ErrInternal, err)
	}

	// A surplus is acceptable output, the extras are truncated; only a
	// shortfall warrants the corrective turn.
	for attempt := 2; attempt <= maxGenerateAttempts && len(parsed.Days) < req.Duration; attempt++ {
		logutil.GetLogger(ctx).Warn("itinerary day count short, retrying",
			zap.Int("want", req.Duration), zap.Int("got", len(parsed.Days)), zap.Int("attempt", attempt))
		retryMsgs := buildRetryMessages(gc.baseMsgs, raw, req.Duration, len(parsed.Days))
		retryRaw, retryErr := s.generator.Generate(ctx, retryMsgs, gc.baseOpts)
		if retryErr != nil {
			break
		}
		retryParsed, parseErr := parseItineraryJSON(retryRaw)
		if parseErr != nil {
			break
		}
		raw = retryRaw
		parsed = retryParsed
	}

	return s.assemble(ctx, req, gc, parsed), nil
}

// assemble normalizes the parsed output into the contract shape, repairing
// the day count deterministically when the model never complied.
func (s *ItineraryService) assemble(ctx context.Context, req *model.ItineraryRequest, gc *generationContext, parsed *parsedItinerary) *model.Itinerary {
	raws := parsed.Days
	if len(raws) > req.Duration {
		raws = raws[:req.Duration]
	}
	days := make([]model.DayPlan, 0, req.Duration)
	for i := range raws {
		normalizeDay(&raws[i], i+1)
		days = append(days, raws[i].DayPlan)
	}
	if len(days) < req.Duration {
		logutil.GetLogger(ctx).Warn("padding itinerary to requested length",
			zap.Int("want", req.Duration), zap.Int("got", len(days)))
		days = padDays(days, req)
	}

	title := parsed.Title
	if title == "" {
		title = fmt.Sprintf("%d-Day %s Journey", req.Duration, strings.Join(req.Destinations, " & "))
	}
	return &model.Itinerary{
		ID:          uuid.NewString(),
		Title:       title,
		Subtitle:    parsed.Subtitle,
		Request:     *req,
		Days:        days,
		Overview:    parsed.Overview,
		Highlights:  parsed.Highlights,
		GeneratedAt: time.Now().UnixMilli(),
		RAGSources:  gc.ragSource,
	}
}

type parsedItinerary struct {
	Title      string   `json:"title"`
	Subtitle   string   `json:"subtitle"`
	Overview   string   `json:"overview"`
	Highlights []string `json:"highlights"`
	Days       []rawDay `json:"days"`
}

type rawDay struct {
	model.DayPlan
	Accommodation string `json:"accommodation"`
}

// parseItineraryJSON tolerates markdown fences and leading or trailing prose
// around the JSON object.
func parseItineraryJSON(raw string) (*parsedItinerary, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object found")
	}
	text = text[start : end+1]

	var decoded struct {
		Title      string   `json:"title"`
		Subtitle   string   `json:"subtitle"`
		Overview   string   `json:"overview"`
		Highlights []string `json:"highlights"`
		Days       []rawDay `json:"days"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, err
	}
	return &parsedItinerary{
		Title:      decoded.Title,
		Subtitle:   decoded.Subtitle,
		Overview:   decoded.Overview,
		Highlights: decoded.Highlights,
		Days:       decoded.Days,
	}, nil
}

// normalizeDay fills contract defaults; dayNumber always follows position.
func normalizeDay(day *rawDay, position int) {
	day.DayNumber = position
	if day.Hotel == "" && day.Accommodation != "" {
		day.Hotel = day.Accommodation
	}
	if day.Meals.Breakfast == "" {
		day.Meals.Breakfast = "Included"
	}
	if day.Meals.Lunch == "" {
		day.Meals.Lunch = "Included"
	}
	if day.Meals.Dinner == "" {
		day.Meals.Dinner = "Included"
	}
	if day.Transport == nil {
		day.Transport = []model.TransportDetail{}
	}
	if day.PickupTime == "" {
		day.PickupTime = "08:00"
	}
}

// padDays extends a short day list to the requested duration. Padded days
// rotate through the destinations and reuse the previous day's hotel so the
// result stays coherent without another model call.
func padDays(days []model.DayPlan, req *model.ItineraryRequest) []model.DayPlan {
	result := make([]model.DayPlan, 0, req.Duration)
	result = append(result, days...)
	for i := len(result); i < req.Duration; i++ {
		city := req.Destinations[i%len(req.Destinations)]
		day := model.DayPlan{
			DayNumber:    i + 1,
			Highlights:   fmt.Sprintf("Leisure day in %s", city),
			Experience:   fmt.Sprintf("Free time to explore %s at your own pace, with optional activities arranged by your guide.", city),
			PickupPlace:  "Hotel lobby",
			PickupTime:   "08:00",
			DropoffPlace: "Hotel",
			DropoffTime:  "17:00",
			Meals:        model.Meals{Breakfast: "Included", Lunch: "Included", Dinner: "Included"},
			Transport:    []model.TransportDetail{},
			ImageKeyword: city,
		}
		if i > 0 {
			day.Hotel = result[i-1].Hotel
		}
		result = append(result, day)
	}
	for i := range result {
		result[i].DayNumber = i + 1
	}
	return result
}

// GenerateItineraryStream runs generation while forwarding model chunks. The
// event order is status, more status, chunks, then one done or error event;
// the channel is closed after the terminal event. The done buffer carries the
// final normalized itinerary as JSON.
func (s *ItineraryService) GenerateItineraryStream(ctx context.Context, req *model.ItineraryRequest) (<-chan model.StreamEvent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	events := make(chan model.StreamEvent, 16)
	go func() {
		defer close(events)
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		emit := func(ev model.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		emit(model.StreamEvent{Type: model.StreamEventStatus, Message: "Searching tour knowledge base..."})
		gc := s.prepare(ctx, req)
		emit(model.StreamEvent{
			Type:    model.StreamEventStatus,
			Message: fmt.Sprintf("Found %d relevant reference passages. Generating itinerary...", len(gc.passages)),
		})

		raw, err := s.generator.GenerateStream(ctx, gc.baseMsgs, gc.baseOpts, func(chunk string) {
			emit(model.StreamEvent{Type: model.StreamEventChunk, Content: chunk})
		})
		if err != nil {
			emit(model.StreamEvent{Type: model.StreamEventError, Message: err.Error()})
			return
		}
		parsed, err := parseItineraryJSON(raw)
		if err != nil {
			emit(model.StreamEvent{Type: model.StreamEventError, Message: "model returned unparseable itinerary"})
			return
		}
		itin := s.assemble(ctx, req, gc, parsed)
		buffer, err := marshalItinerary(itin)
		if err != nil {
			emit(model.StreamEvent{Type: model.StreamEventError, Message: err.Error()})
			return
		}
		emit(model.StreamEvent{Type: model.StreamEventDone, Buffer: buffer})
	}()
	return events, nil
}

// RefineItinerary applies one conversational change to an existing itinerary
// and reports which days structurally changed. Identity fields survive the
// refinement untouched.
func (s *ItineraryService) RefineItinerary(ctx context.Context, itin *model.Itinerary, history []model.ChatTurn, request string) (*model.RefineResult, error) {
	if itin == nil || len(itin.Days) == 0 {
		return nil, fmt.Errorf("%w: itinerary is required", errs.ErrInvalid)
	}
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: refinement request is required", errs.ErrInvalid)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	know, err := s.hub.Load(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("knowledge hub load failed, refining without it", zap.Error(err))
		know = &model.StructuredKnowledge{}
	}
	msgs, err := buildRefineMessages(know, itin, history, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInternal, err)
	}
	raw, err := s.generator.Generate(ctx, msgs, ai.GenerateOptions{
		JSONOutput:  true,
		MaxTokens:   maxTokensFor(len(itin.Days)),
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	parsed, err := parseItineraryJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: model returned unparseable itinerary: %v", errs.ErrInternal, err)
	}

	days := parsed.Days
	if len(days) > len(itin.Days) {
		days = days[:len(itin.Days)]
	}
	for i := range days {
		normalizeDay(&days[i], i+1)
	}
	updatedDays := make([]model.DayPlan, 0, len(itin.Days))
	for _, day := range days {
		updatedDays = append(updatedDays, day.DayPlan)
	}
	// A refinement that drops days keeps the originals for the missing tail.
	for i := len(updatedDays); i < len(itin.Days); i++ {
		updatedDays = append(updatedDays, itin.Days[i])
	}

	updated := *itin
	updated.Days = updatedDays
	if parsed.Title != "" {
		updated.Title = parsed.Title
	}
	if parsed.Subtitle != "" {
		updated.Subtitle = parsed.Subtitle
	}
	if parsed.Overview != "" {
		updated.Overview = parsed.Overview
	}
	if len(parsed.Highlights) > 0 {
		updated.Highlights = parsed.Highlights
	}

	changed := diffDays(itin.Days, updated.Days)
	return &model.RefineResult{
		Itinerary:   &updated,
		ChangedDays: changed,
		Summary:     changeSummary(changed),
	}, nil
}

// diffDays compares days by their serialized form; field-order differences do
// not count as changes.
func diffDays(before, after []model.DayPlan) []int {
	var changed []int
	for i := range after {
		if i >= len(before) {
			changed = append(changed, i+1)
			continue
		}
		b, _ := json.Marshal(before[i])
		a, _ := json.Marshal(after[i])
		if string(b) != string(a) {
			changed = append(changed, i+1)
		}
	}
	sort.Ints(changed)
	return changed
}

func changeSummary(changed []int) string {
	if len(changed) == 0 {
		return "No day content changed."
	}
	parts := make([]string, 0, len(changed))
	for _, day := range changed {
		parts = append(parts, fmt.Sprintf("%d", day))
	}
	label := "Day"
	if len(changed) > 1 {
		label = "Days"
	}
	return fmt.Sprintf("Updated %s %s.", label, strings.Join(parts, ", "))
}

func marshalItinerary(itin *model.Itinerary) (string, error) {
	data, err := json.Marshal(itin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
