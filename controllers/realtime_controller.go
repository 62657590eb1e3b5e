package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
)

// ServeRealtime handles GET /api/v1/ws - upgrades to a WebSocket that receives order events
func ServeRealtime(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			return
		}
		if err := hub.ServeWS(c.Writer, c.Request, user.ID, user.Role); err != nil {
			// the upgrader has already written the response
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("WebSocket upgrade failed")
		}
	}
}
