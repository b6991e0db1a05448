package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// newRouter wires the API routes. When staticDir exists its files are
// served first, so an index.html there replaces the JSON root message.
func newRouter(h *Handler, staticDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			router.Use(static.Serve("/", static.LocalFile(staticDir, false)))
		}
	}

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/classes", h.Classes)
	router.POST("/predict", h.Predict)
	return router
}
