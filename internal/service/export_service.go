package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
	"github.com/noah-isme/stars-api/pkg/export"
)

type rosterSource interface {
	Roster(ctx context.Context, ref models.CourseRef) (*models.Roster, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered roster file.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders index rosters as JSON, CSV or PDF.
type ExportService struct {
	rosters rosterSource
	csv     datasetRenderer
	pdf     datasetRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export implementations.
func NewExportService(rosters rosterSource, csv, pdf datasetRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{rosters: rosters, csv: csv, pdf: pdf, logger: logger}
}

// ParseExportFormat accepts json, csv or pdf. Empty means json.
func ParseExportFormat(raw string) (models.ExportFormat, error) {
	switch format := models.ExportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case "", models.ExportJSON:
		return models.ExportJSON, nil
	case models.ExportCSV, models.ExportPDF:
		return format, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Roster renders the roster of ref in format.
func (s *ExportService) Roster(ctx context.Context, ref models.CourseRef, format models.ExportFormat) (*ExportResult, error) {
	roster, err := s.rosters.Roster(ctx, ref)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("roster_%s_%s", roster.CourseCode, roster.Index)

	var (
		body        []byte
		contentType string
	)
	switch format {
	case models.ExportJSON, "":
		format = models.ExportJSON
		contentType = "application/json"
		body, err = json.MarshalIndent(roster, "", "  ")
	case models.ExportCSV:
		contentType = "text/csv"
		body, err = s.csv.Render(rosterDataset(roster))
	case models.ExportPDF:
		contentType = "application/pdf"
		body, err = s.pdf.Render(rosterDataset(roster))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("roster export failed", zap.String("course", roster.CourseCode), zap.String("index", roster.Index), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &ExportResult{
		Filename:    base + "." + string(format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func rosterDataset(roster *models.Roster) export.Dataset {
	rows := make([][]string, 0, len(roster.Enrolled)+len(roster.Waitlist))
	for _, entry := range roster.Enrolled {
		rows = append(rows, []string{"enrolled", strconv.Itoa(entry.Position), entry.Username, entry.Name})
	}
	for _, entry := range roster.Waitlist {
		rows = append(rows, []string{"waitlist", strconv.Itoa(entry.Position), entry.Username, entry.Name})
	}
	return export.Dataset{
		Title: fmt.Sprintf("%s/%s roster", roster.CourseCode, roster.Index),
		Caption: []string{
			fmt.Sprintf("School: %s", roster.School),
			fmt.Sprintf("AU: %d", roster.AU),
			fmt.Sprintf("Vacancy: %d", roster.Vacancy),
		},
		Headers: []string{"Status", "Position", "Username", "Name"},
		Rows:    rows,
	}
}
