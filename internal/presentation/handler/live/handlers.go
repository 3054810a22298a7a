package live

import (
	"errors"
	"net/http"
	"strings"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/farmsight/relay/internal/infrastructure/json"
	"github.com/farmsight/relay/internal/infrastructure/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	core   *ws.Core
	logger *zap.SugaredLogger
}

func NewHandler(core *ws.Core, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		core:   core,
		logger: logger,
	}
}

// ServeWS performs the connection handshake: validate the bearer credential,
// upgrade the transport, then hand the connection to the lifecycle core.
// Rejections happen before the upgrade, so a failed handshake never creates
// connection state.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.core.Authenticate(bearerCredential(r))
	if err != nil {
		h.logger.Warnw("handshake rejected", "reason", auth.FailureCode(err), "remote", r.RemoteAddr)
		json.WriteRejection(w, http.StatusUnauthorized, auth.FailureCode(err), "authentication failed")
		return
	}

	conn, err := h.core.Upgrade(w, r)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warnw("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	h.core.Attach(conn, identity)
}

// GetSubscribersHandler reports the current subscriber count for one stream.
func (h *Handler) GetSubscribersHandler(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	if streamID == "" {
		json.WriteValidationError(w, errors.New("stream ID is missing"))
		return
	}

	resp := subscribersResponse{
		StreamID:    streamID,
		Subscribers: h.core.SubscriberCount(streamID),
	}

	json.Write(w, http.StatusOK, resp)
}

// bearerCredential extracts the handshake credential from the Authorization
// header, falling back to the token query parameter for browser clients that
// cannot set headers on a WebSocket dial.
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
