package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/pkg/middleware/cors"
	"github.com/noah-isme/classroom-api/pkg/realtime"
)

// RealtimeHandler upgrades dashboard connections onto the invalidation hub.
type RealtimeHandler struct {
	hub     *realtime.Hub
	origins cors.Origins
	logger  *zap.Logger
}

// NewRealtimeHandler constructs the handler. An empty origin list accepts every origin.
func NewRealtimeHandler(hub *realtime.Hub, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, origins: cors.NewOrigins(allowedOrigins), logger: logger}
}

// Connect godoc
// @Summary Subscribe to cache invalidations
// @Description Upgrades to a websocket that receives {"type":"invalidate","keys":[...]} for the caller's school
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, actor.SchoolID, actor.UserID, h.checkOrigin); err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", actor.UserID), zap.Error(err))
	}
}

func (h *RealtimeHandler) checkOrigin(r *http.Request) bool {
	return h.origins.Allows(r.Header.Get("Origin"))
}
