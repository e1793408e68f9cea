package main

import (
	"tradecall/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
//
// NOTE: The webhook routes should be protected by Twilio signature
// validation when exposed directly to the internet.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.GET("/", h.Health)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks.
	r.POST("/voice", h.Voice)
	r.POST("/post_dial", h.PostDial)
	r.POST(httpapi.TurnPath, h.Turn)
	r.POST("/sms", h.SMS)

	// Synthesized prompt audio referenced by Play verbs.
	r.GET("/audio", h.Audio)
}
