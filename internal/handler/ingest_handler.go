package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/hongianguyen/IndochinaPro/internal/ingest"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/errcode"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/response"
	"github.com/hongianguyen/IndochinaPro/internal/service"
)

const maxUploadBytes = 64 << 20

type IngestHandler struct {
	ingests *service.IngestService
}

func NewIngestHandler(ingests *service.IngestService) *IngestHandler {
	return &IngestHandler{ingests: ingests}
}

func parseMode(c *gin.Context) ingest.Mode {
	switch c.Query("mode") {
	case "overwrite":
		return ingest.ModeOverwrite
	case "append":
		return ingest.ModeAppend
	default:
		return ingest.ModeSkipDuplicates
	}
}

func (h *IngestHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return "", nil, false
	}
	if file.Size > maxUploadBytes {
		response.Error(c, errcode.ErrInvalid, "file too large")
		return "", nil, false
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInternal, "read upload failed")
		return "", nil, false
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil || int64(len(data)) > maxUploadBytes {
		response.Error(c, errcode.ErrInvalid, "read upload failed")
		return "", nil, false
	}
	return file.Filename, data, true
}

func (h *IngestHandler) Upload(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	result, err := h.ingests.IngestUpload(c.Request.Context(), filename, data, parseMode(c), nil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type progressEvent struct {
	Type     string                `json:"type"`
	Progress *model.IngestProgress `json:"progress,omitempty"`
	Result   *model.IngestResult   `json:"result,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// sendEvent forwards ev unless the client has gone away. The consumer stops
// draining on disconnect, so an unconditional send would strand the producer
// once the channel fills.
func sendEvent(ctx context.Context, events chan<- progressEvent, ev progressEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// UploadStream runs the same ingestion while reporting per-file progress as
// server-sent events, ending with a done event carrying the result.
func (h *IngestHandler) UploadStream(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	events := make(chan progressEvent, 16)
	go func() {
		defer close(events)
		result, err := h.ingests.IngestUpload(ctx, filename, data, parseMode(c),
			func(p model.IngestProgress) {
				sendEvent(ctx, events, progressEvent{Type: "progress", Progress: &p})
			})
		if err != nil {
			sendEvent(ctx, events, progressEvent{Type: "error", Message: err.Error()})
			return
		}
		sendEvent(ctx, events, progressEvent{Type: "done", Result: result})
	}()
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("message", ev)
		return ev.Type == "progress"
	})
}

func (h *IngestHandler) Status(c *gin.Context) {
	status, err := h.ingests.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}
