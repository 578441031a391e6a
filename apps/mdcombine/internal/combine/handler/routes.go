package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

// Handler translates HTTP requests into calls on the combine.Service.
type Handler struct {
	svc *combine.Service
	log *slog.Logger
}

// RegisterRoutes mounts the file API and the health probe onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, svc *combine.Service, log *slog.Logger) {
	h := &Handler{svc: svc, log: log}

	r.GET("/health", h.Health)

	files := r.Group("/api/files")
	files.GET("/listMdFiles", h.ListMdFiles)
	files.GET("/downloadCombined", h.DownloadCombined)
	files.GET("/preview", h.Preview)
}
