package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/errcode"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/response"
	"github.com/hongianguyen/IndochinaPro/internal/service"
)

type ItineraryHandler struct {
	itineraries *service.ItineraryService
}

func NewItineraryHandler(itineraries *service.ItineraryService) *ItineraryHandler {
	return &ItineraryHandler{itineraries: itineraries}
}

func (h *ItineraryHandler) Generate(c *gin.Context) {
	var req model.ItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	itin, err := h.itineraries.GenerateItinerary(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, itin)
}

// GenerateStream serves the generation as server-sent events. Each event is
// one JSON StreamEvent; the stream ends after the done or error event.
func (h *ItineraryHandler) GenerateStream(c *gin.Context) {
	var req model.ItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	events, err := h.itineraries.GenerateItineraryStream(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("message", ev)
		return ev.Type != model.StreamEventDone && ev.Type != model.StreamEventError
	})
}

type refineRequest struct {
	Itinerary *model.Itinerary `json:"itinerary"`
	History   []model.ChatTurn `json:"history"`
	Request   string           `json:"request"`
}

func (h *ItineraryHandler) Refine(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.itineraries.RefineItinerary(c.Request.Context(), req.Itinerary, req.History, req.Request)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
