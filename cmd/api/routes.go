package main

import (
	"live-support/internal/httpapi"
	"live-support/internal/rbac"
	"live-support/internal/signaling"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, ws *signaling.WebSocketHandler) {
	// public
	r.GET("/healthz", h.Healthz)
	r.GET("/ws/:client_id", ws.Handle)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/request-otp", h.RequestOTP)
		authGroup.POST("/verify-otp", h.VerifyOTP)
		authGroup.POST("/refresh", h.Refresh)
	}

	// Callers are anonymous; notify and end come from the caller page.
	api.POST("/call/notify", h.NotifyCall)
	api.POST("/call/end", h.EndCall)

	record := api.Group("/record")
	{
		record.POST("/offer", h.RecordOffer)
		record.POST("/stop", h.RecordStop)
	}

	// Staff-only routes
	staff := api.Group("")
	staff.Use(authMW, rbac.RequireStaff())
	{
		staff.POST("/call/respond", h.RespondCall)
		staff.GET("/calls/history", h.CallHistory)
		staff.GET("/calls/pending", h.PendingCalls)
		staff.GET("/calls/summary", h.CallSummary)
		staff.GET("/calls/:session_id", h.CallDetail)
	}
}
