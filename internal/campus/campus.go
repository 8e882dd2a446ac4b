package campus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"
	"campus_echo/internal/storage"
)

const (
	noticesLimit  = 50
	studentsLimit = 500
)

var ErrNoticeNotFound = errors.New("notice not found")

type Store interface {
	SaveNotice(ctx context.Context, n models.Notice) (models.Notice, error)
	UpdateNotice(ctx context.Context, n models.Notice) (models.Notice, error)
	DeleteNotice(ctx context.Context, id, authorID int64) error
	Notices(ctx context.Context, limit int) ([]models.Notice, error)
	Students(ctx context.Context, limit int) ([]models.StudentSummary, error)
}

type Event struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type Resource struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type Dashboard struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

type NoticeInput struct {
	Title    string
	Body     string
	Category string
}

type AttendanceRecord struct {
	StudentID int64  `json:"studentId"`
	Status    string `json:"status"`
}

type Attendance struct {
	CourseCode string             `json:"courseCode"`
	Date       string             `json:"date"`
	Records    []AttendanceRecord `json:"records"`
	MarkedBy   int64              `json:"markedBy"`
	MarkedAt   time.Time          `json:"markedAt"`
}

var events = []Event{
	{ID: 1, Title: "Tech Fest 2026", Date: "2026-03-01"},
	{ID: 2, Title: "Career Fair", Date: "2026-03-15"},
}

var resources = []Resource{
	{ID: 1, Title: "Library Access", Type: "link"},
	{ID: 2, Title: "Course Materials", Type: "documents"},
}

type Service struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

func New(log *slog.Logger, store Store) *Service {
	return &Service{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

func (s *Service) Dashboard(accountID int64, role models.Role) Dashboard {
	return Dashboard{
		UserID:  accountID,
		Message: fmt.Sprintf("Welcome to your %s dashboard!", strings.ToLower(string(role))),
	}
}

func (s *Service) Events() []Event {
	return events
}

func (s *Service) Resources() []Resource {
	return resources
}

func (s *Service) Notices(ctx context.Context) ([]models.Notice, error) {
	const op = "campus.Notices"

	notices, err := s.store.Notices(ctx, noticesLimit)
	if err != nil {
		s.log.Error("failed to fetch notices", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if notices == nil {
		notices = []models.Notice{}
	}

	return notices, nil
}

// * CreateNotice публикует объявление от имени преподавателя
func (s *Service) CreateNotice(ctx context.Context, authorID int64, in NoticeInput) (models.Notice, error) {
	const op = "campus.CreateNotice"

	n, err := s.store.SaveNotice(ctx, models.Notice{
		AuthorID: authorID,
		Title:    strings.TrimSpace(in.Title),
		Body:     in.Body,
		Category: category(in.Category),
	})
	if err != nil {
		s.log.Error("failed to save notice", slog.String("op", op), sl.Err(err))
		return models.Notice{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("notice created", slog.String("op", op), slog.Int64("notice_id", n.ID), slog.Int64("author_id", authorID))

	return n, nil
}

// UpdateNotice and DeleteNotice only touch notices of the given author; any
// other notice is reported as not found.
func (s *Service) UpdateNotice(ctx context.Context, authorID, id int64, in NoticeInput) (models.Notice, error) {
	const op = "campus.UpdateNotice"

	n, err := s.store.UpdateNotice(ctx, models.Notice{
		ID:       id,
		AuthorID: authorID,
		Title:    strings.TrimSpace(in.Title),
		Body:     in.Body,
		Category: category(in.Category),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNoticeNotFound) {
			return models.Notice{}, ErrNoticeNotFound
		}
		s.log.Error("failed to update notice", slog.String("op", op), sl.Err(err))
		return models.Notice{}, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) DeleteNotice(ctx context.Context, authorID, id int64) error {
	const op = "campus.DeleteNotice"

	if err := s.store.DeleteNotice(ctx, id, authorID); err != nil {
		if errors.Is(err, storage.ErrNoticeNotFound) {
			return ErrNoticeNotFound
		}
		s.log.Error("failed to delete notice", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) Students(ctx context.Context) ([]models.StudentSummary, error) {
	const op = "campus.Students"

	students, err := s.store.Students(ctx, studentsLimit)
	if err != nil {
		s.log.Error("failed to fetch students", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if students == nil {
		students = []models.StudentSummary{}
	}

	return students, nil
}

// MarkAttendance stamps the submission with its author and time. Records are
// not persisted.
func (s *Service) MarkAttendance(facultyID int64, a Attendance) Attendance {
	a.MarkedBy = facultyID
	a.MarkedAt = s.now().UTC()

	s.log.Info("attendance marked",
		slog.Int64("faculty_id", facultyID),
		slog.String("course", a.CourseCode),
		slog.Int("records", len(a.Records)),
	)

	return a
}

func category(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return "general"
	}

	return c
}
