package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/retrieve"
)

type scriptedGenerator struct {
	responses []string
	err       error
	calls     int
}

func (g *scriptedGenerator) next() string {
	idx := g.calls
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	g.calls++
	return g.responses[idx]
}

func (g *scriptedGenerator) Generate(ctx context.Context, msgs []ai.Message, opts ai.GenerateOptions) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.next(), nil
}

func (g *scriptedGenerator) GenerateStream(ctx context.Context, msgs []ai.Message, opts ai.GenerateOptions, onChunk func(string)) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	res := g.next()
	half := len(res) / 2
	onChunk(res[:half])
	onChunk(res[half:])
	return res, nil
}

type noopEmbedder struct{}

func (noopEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1, 0}
	}
	return result, nil
}

func (noopEmbedder) ModelName() string { return "noop" }

type passageStore struct {
	passages []string
}

func (s *passageStore) Upsert(ctx context.Context, rows []model.VectorRow) error { return nil }

func (s *passageStore) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error) {
	rows := make([]model.VectorRow, 0, len(s.passages))
	for _, p := range s.passages {
		rows = append(rows, model.VectorRow{Content: p})
	}
	if k < len(rows) {
		rows = rows[:k]
	}
	return rows, nil
}

func (s *passageStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (s *passageStore) DeleteBySource(ctx context.Context, source string) error { return nil }

func (s *passageStore) ListSources(ctx context.Context) ([]string, error) { return nil, nil }

func (s *passageStore) Meta(ctx context.Context) (*model.IngestMeta, error) { return nil, nil }
func (s *passageStore) SaveMeta(ctx context.Context, meta *model.IngestMeta) error {
	return nil
}

func itineraryJSON(days int) string {
	type day struct {
		DayNumber int    `json:"dayNumber"`
		Hotel     string `json:"hotel"`
		Highlight string `json:"highlights"`
	}
	payload := struct {
		Title string `json:"title"`
		Days  []day  `json:"days"`
	}{Title: "Test Trip"}
	for i := 1; i <= days; i++ {
		payload.Days = append(payload.Days, day{
			DayNumber: i,
			Hotel:     fmt.Sprintf("Hotel %d", i),
			Highlight: fmt.Sprintf("Day %d highlights", i),
		})
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newTestService(t *testing.T, gen ai.IGenerator) *ItineraryService {
	t.Helper()
	hub := knowledge.NewHub(knowledge.NewLocalStore(t.TempDir()), nil, knowledge.NewCache())
	retriever := retrieve.New(&passageStore{passages: []string{"ref passage"}}, noopEmbedder{})
	return NewItineraryService(gen, retriever, hub, 10*time.Second)
}

func request(duration int) *model.ItineraryRequest {
	return &model.ItineraryRequest{
		Duration:     duration,
		StartPoint:   "Hanoi",
		Destinations: []string{"Hanoi", "Hoi An"},
		Interests:    []string{"food"},
	}
}

func TestGenerateExactDayCount(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{itineraryJSON(5)}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(5))
	require.NoError(t, err)
	require.Len(t, itin.Days, 5)
	require.Equal(t, 1, gen.calls)
	for i, day := range itin.Days {
		require.Equal(t, i+1, day.DayNumber)
	}
	require.NotEmpty(t, itin.ID)
	require.Positive(t, itin.GeneratedAt)
	require.Equal(t, "Test Trip", itin.Title)
}

func TestGenerateRetryRepairsDayCount(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{itineraryJSON(2), itineraryJSON(5)}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(5))
	require.NoError(t, err)
	require.Len(t, itin.Days, 5)
	require.Equal(t, 2, gen.calls)
	// The retry output is used as-is, no padded filler days.
	require.Equal(t, "Hotel 5", itin.Days[4].Hotel)
}

func TestGeneratePadsWhenRetryStillShort(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{itineraryJSON(3)}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(5))
	require.NoError(t, err)
	require.Len(t, itin.Days, 5)
	require.Equal(t, 2, gen.calls)
	for i, day := range itin.Days {
		require.Equal(t, i+1, day.DayNumber)
	}
	// Padded days reuse the previous day's hotel.
	require.Equal(t, "Hotel 3", itin.Days[3].Hotel)
	require.Equal(t, "Hotel 3", itin.Days[4].Hotel)
	require.Equal(t, "Included", itin.Days[3].Meals.Breakfast)
	require.Equal(t, "Included", itin.Days[4].Meals.Dinner)
}

func TestGenerateTruncatesExtraDays(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{itineraryJSON(8)}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(5))
	require.NoError(t, err)
	require.Len(t, itin.Days, 5)
	require.Equal(t, 5, itin.Days[4].DayNumber)
	// A surplus is accepted as-is; no corrective retry is spent on it.
	require.Equal(t, 1, gen.calls)
}

func TestGenerateDayCountNeverFails(t *testing.T) {
	for _, got := range []int{0, 1, 4} {
		gen := &scriptedGenerator{responses: []string{itineraryJSON(got)}}
		svc := newTestService(t, gen)
		itin, err := svc.GenerateItinerary(context.Background(), request(5))
		require.NoError(t, err, "generated %d days", got)
		require.Len(t, itin.Days, 5, "generated %d days", got)
	}
}

func TestGenerateToleratesMarkdownFences(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"```json\n" + itineraryJSON(3) + "\n```"}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(3))
	require.NoError(t, err)
	require.Len(t, itin.Days, 3)
}

func TestGenerateHardFailureSurfaces(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("provider down")}
	svc := newTestService(t, gen)
	_, err := svc.GenerateItinerary(context.Background(), request(3))
	require.Error(t, err)
}

func TestGenerateValidatesDuration(t *testing.T) {
	svc := newTestService(t, &scriptedGenerator{responses: []string{itineraryJSON(1)}})
	for _, duration := range []int{0, -1, 61} {
		_, err := svc.GenerateItinerary(context.Background(), request(duration))
		require.Error(t, err, "duration %d", duration)
	}
	for _, duration := range []int{1, 60} {
		_, err := svc.GenerateItinerary(context.Background(), request(duration))
		require.NoError(t, err, "duration %d", duration)
	}
}

func TestGenerateValidatesDestinations(t *testing.T) {
	svc := newTestService(t, &scriptedGenerator{responses: []string{itineraryJSON(3)}})
	req := request(3)
	req.Destinations = nil
	_, err := svc.GenerateItinerary(context.Background(), req)
	require.Error(t, err)
}

func TestGenerateNormalizesDefaults(t *testing.T) {
	raw := `{"title": "T", "days": [{"dayNumber": 7, "accommodation": "Fallback Hotel"}]}`
	gen := &scriptedGenerator{responses: []string{raw}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(1))
	require.NoError(t, err)
	day := itin.Days[0]
	// Day number follows position, not the model's claim.
	require.Equal(t, 1, day.DayNumber)
	require.Equal(t, "Fallback Hotel", day.Hotel)
	require.Equal(t, "Included", day.Meals.Lunch)
	require.NotNil(t, day.Transport)
}

func TestGenerateStreamEventOrder(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{itineraryJSON(3)}}
	svc := newTestService(t, gen)
	events, err := svc.GenerateItineraryStream(context.Background(), request(3))
	require.NoError(t, err)

	var collected []model.StreamEvent
	for ev := range events {
		collected = append(collected, ev)
	}
	require.GreaterOrEqual(t, len(collected), 4)
	require.Equal(t, model.StreamEventStatus, collected[0].Type)
	require.Equal(t, model.StreamEventStatus, collected[1].Type)
	require.Equal(t, model.StreamEventChunk, collected[2].Type)

	last := collected[len(collected)-1]
	require.Equal(t, model.StreamEventDone, last.Type)
	var itin model.Itinerary
	require.NoError(t, json.Unmarshal([]byte(last.Buffer), &itin))
	require.Len(t, itin.Days, 3)
}

func TestGenerateStreamErrorEvent(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("provider down")}
	svc := newTestService(t, gen)
	events, err := svc.GenerateItineraryStream(context.Background(), request(3))
	require.NoError(t, err)
	var last model.StreamEvent
	for ev := range events {
		last = ev
	}
	require.Equal(t, model.StreamEventError, last.Type)
}

func TestRefineReportsChangedDays(t *testing.T) {
	base := baseItinerary(t, 3)
	updated := make([]model.DayPlan, len(base.Days))
	copy(updated, base.Days)
	updated[1].Highlights = "Completely new plan"
	gen := &scriptedGenerator{responses: []string{marshalDays(t, base, updated)}}
	svc := newTestService(t, gen)

	result, err := svc.RefineItinerary(context.Background(), base, nil, "change day 2")
	require.NoError(t, err)
	require.Equal(t, []int{2}, result.ChangedDays)
	require.Equal(t, "Updated Day 2.", result.Summary)
	require.Len(t, result.Itinerary.Days, 3)
}

func TestRefinePreservesIdentityFields(t *testing.T) {
	base := baseItinerary(t, 2)
	gen := &scriptedGenerator{responses: []string{marshalDays(t, base, base.Days)}}
	svc := newTestService(t, gen)

	result, err := svc.RefineItinerary(context.Background(), base, nil, "no real change")
	require.NoError(t, err)
	require.Equal(t, base.ID, result.Itinerary.ID)
	require.Equal(t, base.GeneratedAt, result.Itinerary.GeneratedAt)
	require.Equal(t, base.Request, result.Itinerary.Request)
	require.Equal(t, base.RAGSources, result.Itinerary.RAGSources)
	require.Empty(t, result.ChangedDays)
}

func TestRefineKeepsOriginalTailWhenModelDropsDays(t *testing.T) {
	base := baseItinerary(t, 4)
	gen := &scriptedGenerator{responses: []string{marshalDays(t, base, base.Days[:2])}}
	svc := newTestService(t, gen)

	result, err := svc.RefineItinerary(context.Background(), base, nil, "tweak day 1")
	require.NoError(t, err)
	require.Len(t, result.Itinerary.Days, 4)
	require.Equal(t, base.Days[3].Hotel, result.Itinerary.Days[3].Hotel)
}

func TestRefineValidatesInput(t *testing.T) {
	svc := newTestService(t, &scriptedGenerator{responses: []string{"{}"}})
	_, err := svc.RefineItinerary(context.Background(), nil, nil, "change something")
	require.Error(t, err)
	base := baseItinerary(t, 2)
	_, err = svc.RefineItinerary(context.Background(), base, nil, "   ")
	require.Error(t, err)
}

func baseItinerary(t *testing.T, days int) *model.Itinerary {
	t.Helper()
	gen := &scriptedGenerator{responses: []string{itineraryJSON(days)}}
	svc := newTestService(t, gen)
	itin, err := svc.GenerateItinerary(context.Background(), request(days))
	require.NoError(t, err)
	return itin
}

func marshalDays(t *testing.T, base *model.Itinerary, days []model.DayPlan) string {
	t.Helper()
	payload := struct {
		Title string          `json:"title"`
		Days  []model.DayPlan `json:"days"`
	}{Title: base.Title, Days: days}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func TestMaxTokensScalesWithDuration(t *testing.T) {
	require.Equal(t, 3072, maxTokensFor(1))
	require.Equal(t, 12288, maxTokensFor(10))
	require.Equal(t, maxOutputTokens, maxTokensFor(30))
	require.Equal(t, maxOutputTokens, maxTokensFor(60))
}

func TestBuildRAGQuery(t *testing.T) {
	query := buildRAGQuery(request(5))
	require.Contains(t, query, "Hanoi")
	require.Contains(t, query, "food")
	require.Contains(t, query, "5 day itinerary")
}

func TestBuildUserPromptMentionsDayCount(t *testing.T) {
	prompt := buildUserPrompt(request(7), []string{"passage"}, nil)
	require.Contains(t, prompt, "exactly 7 entries")
	require.Contains(t, prompt, "[Reference 1]")
}

func TestBuildUserPromptLimitsPassages(t *testing.T) {
	passages := make([]string, 8)
	for i := range passages {
		passages[i] = fmt.Sprintf("passage-%d", i)
	}
	prompt := buildUserPrompt(request(3), passages, nil)
	require.Contains(t, prompt, "passage-4")
	require.NotContains(t, prompt, "passage-5")
}

func TestParseItineraryJSONWithSurroundingProse(t *testing.T) {
	raw := "Here is your itinerary:\n" + itineraryJSON(2) + "\nEnjoy your trip!"
	parsed, err := parseItineraryJSON(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Days, 2)
}

func TestParseItineraryJSONRejectsGarbage(t *testing.T) {
	_, err := parseItineraryJSON("no json here")
	require.Error(t, err)
	_, err = parseItineraryJSON("{broken json")
	require.Error(t, err)
}

func TestChangeSummaryWording(t *testing.T) {
	require.Equal(t, "No day content changed.", changeSummary(nil))
	require.Equal(t, "Updated Day 3.", changeSummary([]int{3}))
	require.Equal(t, "Updated Days 1, 4.", changeSummary([]int{1, 4}))
	require.True(t, strings.HasPrefix(changeSummary([]int{1, 2, 3}), "Updated Days"))
}
