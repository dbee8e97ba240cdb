package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/middleware"
	"github.com/trockboppro/v4panel/internal/panel/console"
)

var upgrader = websocket.Upgrader{
	// tokens authenticate callers, origin carries no extra trust
	CheckOrigin: func(r *http.Request) bool { return true },
}

// consoleInstance upgrades the caller connection and relays it to the daemon
// exec socket for the instance.
func (api *Api) consoleInstance(c *gin.Context) {
	rec, err := api.service.Get(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure
		log.Debug().Err(err).Str("container", rec.ContainerID).Msg("console upgrade failed")
		return
	}
	if err := console.Relay(conn, rec.Node, rec.ContainerID); err != nil {
		log.Warn().Err(err).Str("container", rec.ContainerID).Msg("console relay error")
	}
}
