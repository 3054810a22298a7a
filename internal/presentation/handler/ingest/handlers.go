package ingest

import (
	"errors"
	"io"
	"net/http"

	"github.com/farmsight/relay/internal/infrastructure/json"
	"github.com/farmsight/relay/internal/infrastructure/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20 // 1MB

// Handler accepts upstream events over HTTP and forwards them to the emitter.
// It validates the payload against the closed schema for the named event kind
// before emission; the relay itself never revalidates.
type Handler struct {
	emitter *ws.Emitter
	logger  *zap.SugaredLogger
}

func NewHandler(emitter *ws.Emitter, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		emitter: emitter,
		logger:  logger,
	}
}

func (h *Handler) EmitToStreamHandler(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	if streamID == "" {
		json.WriteValidationError(w, errors.New("stream ID is missing"))
		return
	}

	event, payload, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	h.emitter.EmitToStream(streamID, event, payload)
	json.Write(w, http.StatusAccepted, ackResponse{
		Accepted: true,
		Event:    event,
		Room:     ws.StreamRoom(streamID),
	})
}

func (h *Handler) EmitToTenantHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		json.WriteValidationError(w, errors.New("tenant ID is missing"))
		return
	}

	event, payload, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	h.emitter.EmitToTenant(tenantID, event, payload)
	json.Write(w, http.StatusAccepted, ackResponse{
		Accepted: true,
		Event:    event,
		Room:     ws.TenantRoom(tenantID),
	})
}

func (h *Handler) decodeEvent(w http.ResponseWriter, r *http.Request) (ws.EventKind, any, bool) {
	event := ws.EventKind(chi.URLParam(r, "event"))

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		json.WriteBadRequestError(w, "failed to read request body")
		return "", nil, false
	}

	payload, err := ws.DecodePayload(event, raw)
	if err != nil {
		if errors.Is(err, ws.ErrUnknownEvent) {
			json.WriteBadRequestError(w, "unknown event kind")
		} else {
			h.logger.Warnw("payload rejected", "event", event, "error", err)
			json.WriteValidationError(w, err)
		}
		return "", nil, false
	}

	return event, payload, true
}
