package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
	"github.com/ilmhub/qa-api/pkg/export"
)

// ExportFormat enumerates supported archive formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes with transport metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the answered-question archive for admins.
type ExportService struct {
	questions questionStore
	csv       csvRenderer
	pdf       pdfRenderer
	enabled   bool
	maxRows   int
	logger    *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(questions questionStore, enabled bool, maxRows int, logger *zap.Logger) *ExportService {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		questions: questions,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		enabled:   enabled,
		maxRows:   maxRows,
		logger:    logger,
	}
}

// AnsweredArchive renders all answered questions, optionally scoped to one
// category, in the requested format.
func (s *ExportService) AnsweredArchive(ctx context.Context, actor *models.JWTClaims, categoryID string, format ExportFormat) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	filter := models.QuestionFilter{
		Status:     []models.QuestionStatus{models.QuestionStatusAnswered},
		CategoryID: categoryID,
		Page:       1,
		PageSize:   s.maxRows,
	}
	questions, total, err := s.questions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to collect answered questions")
	}
	if total > s.maxRows {
		s.logger.Warn("export truncated to row cap",
			zap.Int("total", total), zap.Int("max_rows", s.maxRows))
	}

	dataset := buildQuestionDataset(questions)
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Answered Questions")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("answered-questions-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("answered-questions-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	}
}

func buildQuestionDataset(questions []models.Question) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Category", "Author", "Scholar", "Language", "Answered At"},
		Rows:    make([]map[string]string, 0, len(questions)),
	}
	for _, q := range questions {
		row := map[string]string{
			"ID":       q.ID,
			"Title":    q.Title,
			"Category": q.CategoryID,
			"Author":   q.AuthorName,
			"Language": string(q.Language),
		}
		if q.AnswererName != nil {
			row["Scholar"] = *q.AnswererName
		}
		if q.AnsweredAt != nil {
			row["Answered At"] = q.AnsweredAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}
