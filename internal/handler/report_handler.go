package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/middleware"
	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/internal/service"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
	"github.com/lms-community/lms-api/pkg/response"
)

// ReportHandler exposes the payment report export.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// RegisterRoutes wires the report endpoints, restricted to FINANCE.
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports", middleware.RequireRoles(models.RoleFinance))
	reports.GET("/payments", h.PaymentsReport)
}

// PaymentsReport handles GET /reports/payments.
func (h *ReportHandler) PaymentsReport(c *gin.Context) {
	filter := models.PaymentFilter{}
	if status := c.Query("status"); status != "" {
		s := models.PaymentStatus(status)
		filter.Status = &s
	}
	if from := c.Query("from"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be an RFC3339 timestamp"))
			return
		}
		filter.From = &ts
	}
	if to := c.Query("to"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be an RFC3339 timestamp"))
			return
		}
		filter.To = &ts
	}

	format := service.ReportFormat(c.DefaultQuery("format", string(service.ReportFormatCSV)))
	file, err := h.reports.PaymentsReport(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
