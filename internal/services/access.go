package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"gorm.io/gorm"
)

// serviceBase carries the shared dependencies of every service.
type serviceBase struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	cache     cache.Cache
	logger    *slog.Logger
	log       *ServiceLogger
	validator *validator.Validator
	now       func() time.Time
}

func newServiceBase(deps Dependencies) serviceBase {
	return serviceBase{
		repo:      deps.Repo,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		logger:    deps.Logger,
		log:       NewServiceLogger(deps.Logger, "exam"),
		validator: deps.Validator,
		now:       deps.Now,
	}
}

func (b serviceBase) named(service string) serviceBase {
	b.logger = b.logger.With("component", service)
	b.log = NewServiceLogger(b.logger, service)
	return b
}

// publish sends events collected during a committed transaction. Failures
// are logged and never surface to the caller.
func (b serviceBase) publish(ctx context.Context, pending []*events.NotificationEvent) {
	if b.publisher == nil {
		return
	}
	for _, event := range pending {
		if err := b.publisher.PublishNotificationEvent(ctx, event); err != nil {
			b.logger.WarnContext(ctx, "Failed to publish event",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err)
		}
	}
}

// ===== ACCESS RULES =====

// canManage reports whether actor may administer a resource created by owner.
// Admins manage everything; teachers manage their own resources and those
// without a recorded creator.
func canManage(actor models.Actor, owner *string) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return owner == nil || *owner == "" || *owner == actor.UserID
	default:
		return false
	}
}

func requireStaff(actor models.Actor, resource, action string) error {
	if !actor.Role.IsStaff() {
		return NewPermissionError(actor.UserID, 0, resource, action, "staff role required")
	}
	return nil
}

// ===== SHARED LOOKUPS =====

func (b serviceBase) getExam(ctx context.Context, tx *gorm.DB, examID uint) (*models.Exam, error) {
	exam, err := b.repo.Exam().GetByID(ctx, tx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam %d: %w", examID, err)
	}
	return exam, nil
}

func (b serviceBase) getQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	links, err := b.repo.Exam().GetQuestions(ctx, tx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions of exam %d: %w", examID, err)
	}
	return links, nil
}

// getAttempt maps a missing row to ErrAttemptNotFound. forUpdate locks the
// row until tx ends.
func (b serviceBase) getAttempt(ctx context.Context, tx *gorm.DB, attemptID uint, forUpdate bool) (*models.Attempt, error) {
	var (
		attempt *models.Attempt
		err     error
	)
	if forUpdate {
		attempt, err = b.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
	} else {
		attempt, err = b.repo.Attempt().GetByID(ctx, tx, attemptID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	return attempt, nil
}

// getOwnedAttempt hides attempts of other users behind ErrAttemptNotFound.
func (b serviceBase) getOwnedAttempt(ctx context.Context, tx *gorm.DB, actor models.Actor, attemptID uint, forUpdate bool) (*models.Attempt, error) {
	attempt, err := b.getAttempt(ctx, tx, attemptID, forUpdate)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != actor.UserID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (b serviceBase) getResponse(ctx context.Context, tx *gorm.DB, responseID uint) (*models.Response, error) {
	response, err := b.repo.Response().GetByID(ctx, tx, responseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to load response %d: %w", responseID, err)
	}
	return response, nil
}

func (b serviceBase) getPaper(ctx context.Context, tx *gorm.DB, paperID uint) (*models.QuestionPaper, error) {
	paper, err := b.repo.Paper().GetPaper(ctx, tx, paperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to load paper %d: %w", paperID, err)
	}
	return paper, nil
}

func (b serviceBase) getPaperAttempt(ctx context.Context, tx *gorm.DB, attemptID uint, forUpdate bool) (*models.PaperAttempt, error) {
	var (
		attempt *models.PaperAttempt
		err     error
	)
	if forUpdate {
		attempt, err = b.repo.Paper().GetAttemptForUpdate(ctx, tx, attemptID)
	} else {
		attempt, err = b.repo.Paper().GetAttempt(ctx, tx, attemptID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load paper attempt %d: %w", attemptID, err)
	}
	return attempt, nil
}
