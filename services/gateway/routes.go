// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aegislabs/aegisproxy/services/gateway/config"
)

// NewRouter builds the gin engine with all middleware and routes.
//
// Endpoints:
//
//	GET  /                        - Service identity
//	POST /v1/chat/completions     - Filtered chat-completion proxy
//	GET  /v1/models               - Static model list
//	GET  /v1/health               - Liveness
//	GET  /v1/dashboard/stats      - Aggregate security counters
//	GET  /v1/dashboard/activity   - Recent request ring
//	GET  /v1/dashboard/chart      - Hourly activity buckets
//	GET  /metrics                 - Prometheus exposition (if enabled)
func NewRouter(cfg config.Config, handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware("aegisproxy"),
		RequestIDMiddleware(),
		CORSMiddleware(cfg.CORSAllowOrigins),
	)

	router.GET("/", handlers.HandleRoot)

	v1 := router.Group("/v1")
	{
		v1.POST("/chat/completions", handlers.HandleChatCompletions)
		v1.GET("/models", handlers.HandleModels)
		v1.GET("/health", handlers.HandleHealth)

		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/stats", handlers.HandleDashboardStats)
			dashboard.GET("/activity", handlers.HandleDashboardActivity)
			dashboard.GET("/chart", handlers.HandleDashboardChart)
		}
	}

	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}
