package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/middleware"
	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/internal/service"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
	"github.com/lms-community/lms-api/pkg/response"
)

// UploadHandler exposes the multipart upload endpoints.
type UploadHandler struct {
	uploads *service.UploadService
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// RegisterRoutes wires the upload endpoints. Materials and assignment
// attachments are teacher features and carry a role gate; submissions
// and payment proofs admit any session and rely on the service-layer
// ownership check, so an owner keeps access even after a role change.
func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	uploads := rg.Group("/uploads")
	uploads.POST("/materials",
		middleware.RequireRoles(models.RoleTeacher), h.UploadMaterial)
	uploads.POST("/assignments",
		middleware.RequireRoles(models.RoleTeacher), h.UploadAssignmentFile)
	uploads.POST("/submissions", h.UploadSubmission)
	uploads.POST("/payment-proofs", h.UploadPaymentProof)
}

// UploadMaterial handles POST /uploads/materials.
func (h *UploadHandler) UploadMaterial(c *gin.Context) {
	file, cleanup, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	req := service.UploadMaterialRequest{
		File:           file,
		CourseID:       c.PostForm("course_id"),
		Title:          c.PostForm("title"),
		Type:           models.MaterialType(c.DefaultPostForm("type", string(models.MaterialTypeDocument))),
		IsFree:         c.PostForm("is_free") == "true",
		IsDownloadable: c.DefaultPostForm("is_downloadable", "true") == "true",
	}
	if desc := c.PostForm("description"); desc != "" {
		req.Description = &desc
	}
	if order := c.PostForm("order"); order != "" {
		n, err := strconv.Atoi(order)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "order must be a number"))
			return
		}
		req.Order = n
	}

	resp, err := h.uploads.UploadMaterial(c.Request.Context(), middleware.ClaimsFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// UploadAssignmentFile handles POST /uploads/assignments.
func (h *UploadHandler) UploadAssignmentFile(c *gin.Context) {
	file, cleanup, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	req := service.UploadAssignmentRequest{
		File:         file,
		AssignmentID: c.PostForm("assignment_id"),
		CourseID:     c.PostForm("course_id"),
	}

	resp, err := h.uploads.UploadAssignmentFile(c.Request.Context(), middleware.ClaimsFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// UploadSubmission handles POST /uploads/submissions.
func (h *UploadHandler) UploadSubmission(c *gin.Context) {
	file, cleanup, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	req := service.UploadSubmissionRequest{
		File:         file,
		SubmissionID: c.PostForm("submission_id"),
		AssignmentID: c.PostForm("assignment_id"),
		CourseID:     c.PostForm("course_id"),
	}
	if content := c.PostForm("content"); content != "" {
		req.Content = &content
	}

	resp, err := h.uploads.UploadSubmission(c.Request.Context(), middleware.ClaimsFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// UploadPaymentProof handles POST /uploads/payment-proofs.
func (h *UploadHandler) UploadPaymentProof(c *gin.Context) {
	file, cleanup, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	req := service.UploadPaymentProofRequest{
		File:      file,
		PaymentID: c.PostForm("payment_id"),
	}

	resp, err := h.uploads.UploadPaymentProof(c.Request.Context(), middleware.ClaimsFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// formFile extracts the multipart file part named "file". The caller
// must invoke cleanup after the upload finishes.
func formFile(c *gin.Context) (service.FilePayload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.FilePayload{}, func() {}, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	opened, err := header.Open()
	if err != nil {
		return service.FilePayload{}, func() {}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded file")
	}
	return service.FilePayload{
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: contentType(header),
		Content:  opened,
	}, func() { _ = opened.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
