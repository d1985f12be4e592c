package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	"github.com/noah-isme/pattern-signup-api/pkg/export"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

// Export formats supported by the roster export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Title string
}

// ExportResult is a rendered roster ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the roster of approved assignments.
type ExportService struct {
	requests approvedRequestSource
	slots    presentationSource
	csv      csvRenderer
	pdf      pdfRenderer
	cfg      ExportConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(requests approvedRequestSource, slots presentationSource, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Design pattern assignments"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		requests: requests,
		slots:    slots,
		csv:      csv,
		pdf:      pdf,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Roster renders approved assignments in the requested format (csv by default).
func (s *ExportService) Roster(ctx context.Context, query dto.ExportQuery) (*ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Validation("format", "must be one of: csv, pdf")
	}

	dataset, err := s.rosterDataset(ctx)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		body, err = s.pdf.Render(dataset, s.cfg.Title)
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("pattern_assignments_%s.%s", s.now().Format("20060102_150405"), format)
	s.logger.Info("roster exported", zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{Filename: filename, ContentType: contentType, Body: body}, nil
}

func (s *ExportService) rosterDataset(ctx context.Context) (export.Dataset, error) {
	approved, err := s.requests.List(ctx, models.PatternRequestFilter{
		Status: []models.RequestStatus{models.RequestStatusApproved},
	})
	if err != nil {
		return export.Dataset{}, appErrors.Storage(err, "failed to list assignments")
	}
	slots, err := s.slots.List(ctx, models.PresentationFilter{})
	if err != nil {
		return export.Dataset{}, appErrors.Storage(err, "failed to list presentations")
	}
	dates := make(map[string]string, len(slots))
	for _, slot := range slots {
		dates[models.PatternKey(slot.PatternName)] = slot.ScheduledOn.Format(dto.DateLayout)
	}

	sort.SliceStable(approved, func(i, j int) bool {
		return strings.ToLower(approved[i].PatternName) < strings.ToLower(approved[j].PatternName)
	})

	dataset := export.Dataset{Headers: []string{"Pattern", "Custom", "Students", "Presentation date", "Approved at"}}
	for _, req := range approved {
		custom := "no"
		if req.CustomPattern {
			custom = "yes"
		}
		decidedAt := ""
		if req.DecidedAt != nil {
			decidedAt = req.DecidedAt.UTC().Format(time.RFC3339)
		}
		dataset.Append(
			req.PatternName,
			custom,
			strings.Join(req.Students(), " & "),
			dates[models.PatternKey(req.PatternName)],
			decidedAt,
		)
	}
	return dataset, nil
}
