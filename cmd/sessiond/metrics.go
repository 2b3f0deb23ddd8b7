package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goSession "github.com/MrEthical07/goSession"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

func newMetricsRouter(c *goSession.Controller) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promexport.NewPrometheusExporter(c).Handler()))
	r.GET("/healthz", func(g *gin.Context) {
		g.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"realtime": c.RealtimeState().String(),
		})
	})
	return r
}
