package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/middleware"
	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/internal/service"
	"github.com/lms-community/lms-api/pkg/response"
)

// FileHandler exposes file metadata and deletion endpoints.
type FileHandler struct {
	files *service.FileService
}

// NewFileHandler constructs a FileHandler.
func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// RegisterRoutes wires the file endpoints. Ownership is enforced in
// the service layer, so no role gate is needed here beyond a session.
func (h *FileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	files := rg.Group("/files")
	files.GET("", h.List)
	files.GET("/:fileId", h.Get)
	files.POST("/:fileId/downloads", h.TrackDownload)
	files.DELETE("/:fileId", h.Delete)
}

// List handles GET /files, returning the caller's uploads.
func (h *FileHandler) List(c *gin.Context) {
	filter := models.FileFilter{MimeType: c.Query("mime_type")}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}

	files, pagination, err := h.files.ListByUser(c.Request.Context(), middleware.ClaimsFrom(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, pagination)
}

// Get handles GET /files/:fileId.
func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.files.Get(c.Request.Context(), middleware.ClaimsFrom(c), c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// TrackDownload handles POST /files/:fileId/downloads. The response
// carries the view link so clients can redirect straight to Drive.
func (h *FileHandler) TrackDownload(c *gin.Context) {
	file, err := h.files.TrackDownload(c.Request.Context(), middleware.ClaimsFrom(c), c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"drive_file_id":  file.DriveFileID,
		"web_view_link":  file.DriveFileURL,
		"download_count": file.DownloadCount + 1,
	}, nil)
}

// Delete handles DELETE /files/:fileId.
func (h *FileHandler) Delete(c *gin.Context) {
	err := h.files.Delete(c.Request.Context(), middleware.ClaimsFrom(c),
		c.Param("fileId"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true}, nil)
}
