package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/roomturn/feed"
	"github.com/yeremiapane/roomturn/utils"
)

type FeedController struct {
	Hub      *feed.Hub
	upgrader websocket.Upgrader
}

// NewFeedController accepts connections from allowedOrigin only; empty allows any origin.
func NewFeedController(hub *feed.Hub, allowedOrigin string) *FeedController {
	return &FeedController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "" || r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Stream upgrades to a websocket and keeps the client registered until it disconnects.
func (fc *FeedController) Stream(c *gin.Context) {
	ws, err := fc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("feed upgrade failed")
		return
	}

	fc.Hub.Register(ws, c.ClientIP())
	defer fc.Hub.Unregister(ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
