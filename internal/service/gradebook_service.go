package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/export"
)

type gradebookRepository interface {
	Cells(ctx context.Context, classID string) ([]models.GradebookCell, error)
	StudentGrades(ctx context.Context, schoolID, studentID string) ([]repository.StudentClassGrade, error)
}

type gradebookClassRepository interface {
	classAccessRepository
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type classAssignmentLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.AssignmentSummary, error)
}

// GradebookService builds grade matrices and per-student summaries.
type GradebookService struct {
	repo        gradebookRepository
	classes     gradebookClassRepository
	assignments classAssignmentLister
	exports     *ExportService
	cache       *CacheService
	logger      *zap.Logger
}

// NewGradebookService constructs the service.
func NewGradebookService(repo gradebookRepository, classes gradebookClassRepository, assignments classAssignmentLister, exports *ExportService, cache *CacheService, logger *zap.Logger) *GradebookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{repo: repo, classes: classes, assignments: assignments, exports: exports, cache: cache, logger: logger}
}

// Class returns the students × assignments matrix of a class.
func (s *GradebookService) Class(ctx context.Context, actor models.Actor, classID string) (*models.Gradebook, error) {
	class, err := classForManage(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	book := &models.Gradebook{}
	_, err = s.cache.Remember(ctx, cachekeys.Gradebook(class.ID), book, func(ctx context.Context) error {
		built, err := s.build(ctx, class)
		if err != nil {
			return err
		}
		*book = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (s *GradebookService) build(ctx context.Context, class *models.Class) (*models.Gradebook, error) {
	roster, err := s.classes.Roster(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	summaries, err := s.assignments.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	cells, err := s.repo.Cells(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	byStudent := make(map[string]map[string]models.GradebookCell, len(roster))
	for _, cell := range cells {
		if byStudent[cell.StudentID] == nil {
			byStudent[cell.StudentID] = make(map[string]models.GradebookCell)
		}
		byStudent[cell.StudentID][cell.AssignmentID] = cell
	}

	book := &models.Gradebook{
		ClassID:     class.ID,
		ClassName:   class.Name,
		Assignments: make([]models.Assignment, 0, len(summaries)),
		Rows:        make([]models.GradebookRow, 0, len(roster)),
	}
	for _, summary := range summaries {
		book.Assignments = append(book.Assignments, summary.Assignment)
	}

	for _, student := range roster {
		row := models.GradebookRow{
			StudentID:   student.StudentID,
			StudentName: student.FullName,
			Cells:       make([]models.GradebookCell, 0, len(book.Assignments)),
		}
		for _, assignment := range book.Assignments {
			cell, ok := byStudent[student.StudentID][assignment.ID]
			if !ok {
				cell = models.GradebookCell{AssignmentID: assignment.ID, StudentID: student.StudentID, Status: models.SubmissionAssigned}
			}
			if cell.Status == models.SubmissionGraded && cell.Marks != nil {
				row.Earned += *cell.Marks
				row.Possible += assignment.TotalPoints
			}
			row.Cells = append(row.Cells, cell)
		}
		row.Percentage, row.IBGrade, row.Letter = standing(row.Earned, row.Possible)
		book.Rows = append(book.Rows, row)
	}
	return book, nil
}

// MyGrades summarises the actor's graded work per class.
func (s *GradebookService) MyGrades(ctx context.Context, actor models.Actor) ([]models.ClassGradeSummary, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have grades")
	}
	grades, err := s.repo.StudentGrades(ctx, actor.SchoolID, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	summaries := make([]models.ClassGradeSummary, 0)
	index := make(map[string]int)
	for _, g := range grades {
		i, ok := index[g.ClassID]
		if !ok {
			i = len(summaries)
			index[g.ClassID] = i
			summaries = append(summaries, models.ClassGradeSummary{ClassID: g.ClassID, ClassName: g.ClassName})
		}
		sum := &summaries[i]
		sum.Total++
		if g.Status == models.SubmissionGraded && g.Marks != nil {
			sum.Graded++
			sum.Earned += *g.Marks
			sum.Possible += g.TotalPoints
		}
	}
	for i := range summaries {
		sum := &summaries[i]
		sum.Percentage, sum.IBGrade, sum.Letter = standing(sum.Earned, sum.Possible)
	}
	return summaries, nil
}

// Export renders a class gradebook and returns a signed download link.
func (s *GradebookService) Export(ctx context.Context, actor models.Actor, classID, format string) (*ExportResult, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, validationError(err, "format must be csv or pdf")
	}
	book, err := s.Class(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	result, err := s.exports.Render(ctx, "gradebooks/"+book.ClassID, f, gradebookTable(book))
	if err != nil {
		return nil, err
	}
	s.logger.Info("gradebook exported",
		zap.String("class_id", book.ClassID),
		zap.String("format", result.Format),
		zap.String("user_id", actor.UserID),
	)
	return result, nil
}

func gradebookTable(book *models.Gradebook) export.Table {
	headers := []string{"Student"}
	for _, a := range book.Assignments {
		headers = append(headers, fmt.Sprintf("%s (/%s)", a.Title, formatNumber(a.TotalPoints)))
	}
	headers = append(headers, "Percentage", "IB Grade", "Letter")

	rows := make([][]string, 0, len(book.Rows))
	for _, row := range book.Rows {
		line := []string{row.StudentName}
		for _, cell := range row.Cells {
			switch {
			case cell.Status == models.SubmissionGraded && cell.Marks != nil:
				line = append(line, formatNumber(*cell.Marks))
			case cell.Status == models.SubmissionSubmitted:
				line = append(line, "submitted")
			default:
				line = append(line, "")
			}
		}
		pct, ib := "", ""
		if row.Percentage != nil {
			pct = formatNumber(*row.Percentage) + "%"
		}
		if row.IBGrade != nil {
			ib = strconv.Itoa(*row.IBGrade)
		}
		line = append(line, pct, ib, row.Letter)
		rows = append(rows, line)
	}
	return export.Table{Title: book.ClassName + " gradebook", Headers: headers, Rows: rows}
}

func standing(earned, possible float64) (*float64, *int, string) {
	if possible <= 0 {
		return nil, nil, ""
	}
	pct := academic.Percentage(earned, possible)
	score := academic.Score(earned, possible)
	grade, err := academic.CalculateIBGrade(score)
	if err != nil {
		return &pct, nil, academic.LetterGrade(score)
	}
	return &pct, &grade, academic.LetterGrade(score)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
