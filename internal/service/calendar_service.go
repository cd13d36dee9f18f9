package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type calendarRepository interface {
	Items(ctx context.Context, scope models.ClassFilter, from, to time.Time) ([]models.CalendarItem, error)
}

// CalendarService builds the two-week due-date calendar.
type CalendarService struct {
	repo   calendarRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, logger: logger, now: time.Now}
}

// ParseStart reads a YYYY-MM-DD start date. Empty input yields nil (current week).
func ParseStart(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start must be formatted YYYY-MM-DD")
	}
	return &t, nil
}

// Window returns the 14 days starting at start, or at Monday of the current week when start
// is nil, with the assignments due on each day for the actor's classes.
func (s *CalendarService) Window(ctx context.Context, actor models.Actor, start *time.Time) (*models.CalendarWindow, error) {
	now := s.now().UTC()
	first := academic.WeekStart(now)
	if start != nil {
		first = start.UTC()
	}
	window := academic.TwoWeekWindow(first)

	scope := models.ClassFilter{SchoolID: actor.SchoolID}
	switch {
	case actor.Role == models.RoleStudent:
		scope.StudentID = actor.UserID
	case !actor.IsAdmin():
		scope.TeacherID = actor.UserID
	}
	items, err := s.repo.Items(ctx, scope, window.Start, window.End().AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}

	days := make([]models.CalendarDay, len(window.Days))
	index := make(map[string]int, len(window.Days))
	for i, d := range window.Days {
		key := d.Format(DateLayout)
		days[i] = models.CalendarDay{Date: key, Items: []models.CalendarItem{}}
		index[key] = i
	}
	for _, item := range items {
		if actor.Role == models.RoleStudent {
			due := item.DueAt
			item.StatusColor = academic.AssignmentStatus(&due, item.SubmittedAt, item.Graded, item.Requires, now).Color
		}
		i, ok := index[item.DueAt.UTC().Format(DateLayout)]
		if !ok {
			continue
		}
		days[i].Items = append(days[i].Items, item)
	}

	return &models.CalendarWindow{
		Start:     window.Start.Format(DateLayout),
		End:       window.End().Format(DateLayout),
		Days:      days,
		PrevStart: window.Prev().Start.Format(DateLayout),
		NextStart: window.Next().Start.Format(DateLayout),
	}, nil
}
