package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
	"github.com/lms-community/lms-api/pkg/export"
)

type reportPaymentRepo interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

// ReportFormat selects the export encoding.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportFile is a rendered export ready to stream to the client.
type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

var paymentReportHeaders = []string{
	"Payment ID", "Student ID", "Course ID", "Amount", "Status", "Verified By", "Created At",
}

// ReportService renders payment reports for FINANCE and SUPER_ADMIN.
type ReportService struct {
	payments reportPaymentRepo
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs a ReportService instance.
func NewReportService(payments reportPaymentRepo, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		payments: payments,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PaymentsReport renders the payments matching the filter in the
// requested format.
func (s *ReportService) PaymentsReport(ctx context.Context, filter models.PaymentFilter, format ReportFormat) (*ReportFile, error) {
	format = ReportFormat(strings.ToLower(string(format)))
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status filter")
	}

	filter.Page = 1
	filter.PageSize = 10000
	payments, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch payments")
	}

	dataset := export.Dataset{Headers: paymentReportHeaders, Rows: make([]map[string]string, 0, len(payments))}
	for _, p := range payments {
		verifiedBy := ""
		if p.VerifiedBy != nil {
			verifiedBy = *p.VerifiedBy
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Payment ID":  p.ID,
			"Student ID":  p.StudentID,
			"Course ID":   p.CourseID,
			"Amount":      strconv.FormatInt(p.Amount, 10),
			"Status":      string(p.Status),
			"Verified By": verifiedBy,
			"Created At":  p.CreatedAt.Format(time.RFC3339),
		})
	}

	stamp := s.now().Format("20060102-150405")
	switch format {
	case ReportFormatPDF:
		content, err := s.pdf.Render(dataset, "Payments Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("payments-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("payments-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	}
}
