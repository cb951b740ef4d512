package model

// ItineraryRequest is the trip specification collected by the wizard UI.
// It is validated at the API boundary and treated as trusted input below it.
type ItineraryRequest struct {
	Duration            int      `json:"duration"`
	StartPoint          string   `json:"start_point"`
	Destinations        []string `json:"destinations"`
	Interests           []string `json:"interests"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`
	GroupSize           int      `json:"group_size,omitempty"`
	TravelStyle         string   `json:"travel_style,omitempty"`
}

const (
	TravelStyleBudget   = "Budget"
	TravelStyleStandard = "Standard"
	TravelStyleLuxury   = "Luxury"
)

type TransportDetail struct {
	Type         string `json:"type"`
	FlightNumber string `json:"flightNumber,omitempty"`
	TrainNumber  string `json:"trainNumber,omitempty"`
	Operator     string `json:"operator,omitempty"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	ETD          string `json:"etd"`
	ETA          string `json:"eta"`
	Class        string `json:"class"`
	Notes        string `json:"notes,omitempty"`
}

type Meals struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

// DayPlan is the contract output unit. After normalization every field is
// populated; the optional ones fall back to safe defaults.
type DayPlan struct {
	DayNumber    int               `json:"dayNumber"`
	Highlights   string            `json:"highlights"`
	Experience   string            `json:"experience"`
	PickupPlace  string            `json:"pickupPlace"`
	PickupTime   string            `json:"pickupTime"`
	DropoffPlace string            `json:"dropoffPlace"`
	DropoffTime  string            `json:"dropoffTime"`
	Meals        Meals             `json:"meals"`
	Transport    []TransportDetail `json:"transportation"`
	Hotel        string            `json:"hotel"`
	ImageKeyword string            `json:"imageKeyword"`
	Activities   []string          `json:"activities,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

type Itinerary struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	Request     ItineraryRequest `json:"request"`
	Days        []DayPlan        `json:"days"`
	Overview    string           `json:"overview"`
	Highlights  []string         `json:"highlights"`
	GeneratedAt int64            `json:"generated_at"`
	RAGSources  []string         `json:"rag_sources,omitempty"`
}

// ChatTurn is one prior message of the refinement conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RefineResult reports the updated itinerary together with which day numbers
// structurally changed against the previous one.
type RefineResult struct {
	Itinerary   *Itinerary `json:"itinerary"`
	ChangedDays []int      `json:"changed_days"`
	Summary     string     `json:"summary"`
}

// StreamEvent is one element of the streaming generation protocol. The event
// order is fixed: status events first, then chunks, then exactly one done or
// error event. Anything after the terminal event is a protocol violation.
type StreamEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Buffer  string `json:"buffer,omitempty"`
}

const (
	StreamEventStatus = "status"
	StreamEventChunk  = "chunk"
	StreamEventDone   = "done"
	StreamEventError  = "error"
)
