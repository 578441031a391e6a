package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/requestlog"
	"github.com/tilsley/mdcombine/pkg/api"
)

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// ListMdFiles handles GET /api/files/listMdFiles?owner=&repo= and returns
// every Markdown path of the repository in traversal order.
func (h *Handler) ListMdFiles(c *gin.Context) {
	repo := repoFromQuery(c)

	files, err := h.svc.ListMarkdownFiles(c.Request.Context(), repo)
	if err != nil {
		h.fail(c, err, "list markdown files", repo)
		return
	}
	c.JSON(http.StatusOK, api.ListFilesResponse{Message: api.ListedMessage, Files: files})
}

// DownloadCombined handles GET /api/files/downloadCombined?owner=&repo=&outputFormat=
// and sends the combined document as an attachment.
func (h *Handler) DownloadCombined(c *gin.Context) {
	repo := repoFromQuery(c)

	format, err := combine.ParseFormat(c.Query("outputFormat"))
	if err != nil {
		h.fail(c, err, "parse output format", repo)
		return
	}
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("format", string(format)))

	art, err := h.svc.ExportCombined(c.Request.Context(), repo, format)
	if err != nil {
		h.fail(c, err, "export combined document", repo)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Data(http.StatusOK, art.Format.ContentType(), art.Body)
}

// Preview handles GET /api/files/preview?owner=&repo=&filePath= and returns
// the file rendered as HTML.
func (h *Handler) Preview(c *gin.Context) {
	repo := repoFromQuery(c)
	filePath := c.Query("filePath")

	html, err := h.svc.PreviewFile(c.Request.Context(), repo, filePath)
	if err != nil {
		h.fail(c, err, "preview file", repo)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func repoFromQuery(c *gin.Context) combine.Repo {
	repo := combine.Repo{Owner: c.Query("owner"), Name: c.Query("repo")}
	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.String("repo.owner", repo.Owner),
		attribute.String("repo.name", repo.Name),
	)
	return repo
}

// fail maps a service error to its HTTP status. Only server-side failures
// are logged at error level.
func (h *Handler) fail(c *gin.Context, err error, action string, repo combine.Repo) {
	var (
		badReq   combine.BadRequestError
		notFound combine.NotFoundError
	)
	switch {
	case errors.As(err, &badReq):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: badReq.Message})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: notFound.Message})
	default:
		requestlog.Logger(c, h.log).Error("request failed",
			"action", action,
			"owner", repo.Owner,
			"repo", repo.Name,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: serverMessage(err)})
	}
}

func serverMessage(err error) string {
	var remote combine.RemoteError
	if errors.As(err, &remote) {
		if remote.Status == 0 {
			return "Could not reach the repository host."
		}
		return fmt.Sprintf("Repository host returned %d: %s", remote.Status, remote.Message)
	}
	var render combine.RenderError
	if errors.As(err, &render) {
		return fmt.Sprintf("Failed to convert document to %s.", render.Format)
	}
	var export combine.ExportError
	if errors.As(err, &export) {
		return fmt.Sprintf("Export failed while %s.", export.Stage)
	}
	return "Internal server error."
}
