package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/jobs"
	"github.com/noah-isme/classroom-api/pkg/mail"
)

// JobTypeInviteEmail identifies invitation deliveries on the mail queue.
const JobTypeInviteEmail = "invite_email"

type inviteRepository interface {
	Create(ctx context.Context, invite *models.PendingInvite) error
	FindByID(ctx context.Context, schoolID, id string) (*models.PendingInvite, error)
	List(ctx context.Context, filter models.InviteFilter) ([]models.PendingInvite, error)
	Delete(ctx context.Context, schoolID, id string) error
	Renew(ctx context.Context, schoolID, id string, expiresAt time.Time) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// InviteJob is the payload of an invitation e-mail job.
type InviteJob struct {
	SchoolID string
	InviteID string
}

// InviteConfig carries the invite lifetime and the link base used in e-mails.
type InviteConfig struct {
	TTL    time.Duration
	AppURL string
}

// CreateInviteRequest pre-provisions an account for an e-mail address.
type CreateInviteRequest struct {
	Email         string          `json:"email" validate:"required,email"`
	Role          models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	FullName      string          `json:"full_name" validate:"required,max=120"`
	GradeLevel    *string         `json:"grade_level" validate:"omitempty,max=20"`
	StudentNumber *string         `json:"student_number" validate:"omitempty,max=40"`
	ClassIDs      []string        `json:"class_ids" validate:"omitempty,dive,uuid"`
}

// InviteService manages pending invites and their e-mail delivery.
type InviteService struct {
	repo      inviteRepository
	schools   schoolRepository
	audit     schoolAuditor
	sender    mail.Sender
	queue     jobEnqueuer
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    InviteConfig
	now       func() time.Time
}

// NewInviteService constructs the service. Without a queue, e-mails are sent inline.
func NewInviteService(repo inviteRepository, schools schoolRepository, audit schoolAuditor, sender mail.Sender, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg InviteConfig) *InviteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	return &InviteService{
		repo:      repo,
		schools:   schools,
		audit:     audit,
		sender:    sender,
		cache:     cache,
		metrics:   metrics,
		validator: newValidator(validate),
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// UseQueue routes invitation e-mails through q.
func (s *InviteService) UseQueue(q jobEnqueuer) {
	s.queue = q
}

// Create stores a pending invite and schedules its e-mail.
func (s *InviteService) Create(ctx context.Context, actor models.Actor, req CreateInviteRequest, meta models.RequestMeta) (*models.PendingInvite, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid invite payload")
	}
	if req.Role != models.RoleStudent && (len(req.ClassIDs) > 0 || req.StudentNumber != nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class enrolment and student number apply to students only")
	}

	invite := &models.PendingInvite{
		SchoolID:      actor.SchoolID,
		Email:         req.Email,
		Role:          req.Role,
		FullName:      req.FullName,
		GradeLevel:    req.GradeLevel,
		StudentNumber: req.StudentNumber,
		ClassIDs:      req.ClassIDs,
		InvitedBy:     &actor.UserID,
		ExpiresAt:     s.now().UTC().Add(s.config.TTL),
	}
	if err := s.repo.Create(ctx, invite); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "an invite for this email is already pending")
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, appErrors.Clone(appErrors.ErrEmailInUse, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invite")
	}

	s.recordAudit(ctx, actor, models.AuditActionInviteCreate, invite, meta)
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.InvitesOfSchool(actor.SchoolID))
	s.schedule(ctx, invite)
	return invite, nil
}

// List returns the school's invites, newest first.
func (s *InviteService) List(ctx context.Context, actor models.Actor, role *models.UserRole, status models.InviteStatus) ([]models.PendingInvite, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	roleKey := "ALL"
	if role != nil {
		if !role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		roleKey = string(*role)
	}
	switch status {
	case "", models.InviteStatusPending, models.InviteStatusExpired:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown invite status")
	}

	invites := []models.PendingInvite{}
	key := cachekeys.Invites(actor.SchoolID, roleKey, string(status))
	_, err := s.cache.Remember(ctx, key, &invites, func(ctx context.Context) error {
		found, err := s.repo.List(ctx, models.InviteFilter{SchoolID: actor.SchoolID, Role: role, Status: status})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invites")
		}
		if found != nil {
			invites = found
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// Delete revokes a pending invite.
func (s *InviteService) Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	invite, err := s.repo.FindByID(ctx, actor.SchoolID, id)
	if err != nil {
		return notFoundOr(err, "invite not found", "failed to load invite")
	}
	if err := s.repo.Delete(ctx, actor.SchoolID, id); err != nil {
		return notFoundOr(err, "invite not found", "failed to delete invite")
	}
	s.recordAudit(ctx, actor, models.AuditActionInviteDelete, invite, meta)
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.InvitesOfSchool(actor.SchoolID))
	return nil
}

// Resend extends the expiry of an invite and e-mails it again. Expired invites are revived.
func (s *InviteService) Resend(ctx context.Context, actor models.Actor, id string) (*models.PendingInvite, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	expiresAt := s.now().UTC().Add(s.config.TTL)
	if err := s.repo.Renew(ctx, actor.SchoolID, id, expiresAt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another invite for this email is already pending")
		}
		return nil, notFoundOr(err, "invite not found", "failed to renew invite")
	}
	invite, err := s.repo.FindByID(ctx, actor.SchoolID, id)
	if err != nil {
		return nil, notFoundOr(err, "invite not found", "failed to load invite")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.InvitesOfSchool(actor.SchoolID))
	s.schedule(ctx, invite)
	return invite, nil
}

// HandleJob delivers one invitation e-mail. It is the mail queue's handler; a returned error
// makes the queue retry.
func (s *InviteService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(InviteJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	invite, err := s.repo.FindByID(ctx, payload.SchoolID, payload.InviteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("invite gone before delivery", zap.String("invite_id", payload.InviteID))
			return nil
		}
		return err
	}
	if invite.Status != models.InviteStatusPending {
		return nil
	}
	return s.deliver(ctx, invite)
}

// SweepExpired marks invites past their expiry as EXPIRED and refreshes affected listings.
func (s *InviteService) SweepExpired(ctx context.Context) error {
	schools, err := s.repo.ExpireBefore(ctx, s.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep expired invites: %w", err)
	}
	for _, schoolID := range schools {
		s.cache.Invalidate(ctx, schoolID, cachekeys.InvitesOfSchool(schoolID))
	}
	if len(schools) > 0 {
		s.logger.Info("expired invites swept", zap.Int("schools", len(schools)))
	}
	return nil
}

func (s *InviteService) schedule(ctx context.Context, invite *models.PendingInvite) {
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: JobTypeInviteEmail, Payload: InviteJob{SchoolID: invite.SchoolID, InviteID: invite.ID}})
		if err == nil {
			return
		}
		s.logger.Warn("invite email not queued, sending inline", zap.String("invite_id", invite.ID), zap.Error(err))
	}
	if err := s.deliver(ctx, invite); err != nil {
		s.logger.Warn("invite email failed", zap.String("invite_id", invite.ID), zap.Error(err))
	}
}

func (s *InviteService) deliver(ctx context.Context, invite *models.PendingInvite) error {
	if s.sender == nil {
		return nil
	}
	schoolName := "your school"
	if school, err := s.schools.FindByID(ctx, invite.SchoolID); err == nil {
		schoolName = school.Name
	} else {
		s.logger.Warn("school lookup for invite failed", zap.String("school_id", invite.SchoolID), zap.Error(err))
	}

	msg, err := mail.InviteMessage(mail.InviteData{
		Email:      invite.Email,
		FullName:   invite.FullName,
		SchoolName: schoolName,
		Role:       string(invite.Role),
		AppURL:     s.config.AppURL,
		ExpiresAt:  invite.ExpiresAt,
	})
	if err != nil {
		return err
	}
	err = s.sender.Send(ctx, msg)
	s.metrics.RecordInviteEmail(err)
	if err != nil {
		return err
	}
	if err := s.repo.MarkSent(ctx, invite.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to mark invite sent", zap.String("invite_id", invite.ID), zap.Error(err))
	}
	return nil
}

func (s *InviteService) recordAudit(ctx context.Context, actor models.Actor, action string, invite *models.PendingInvite, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(invite)
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "pending_invites",
		ResourceID: &invite.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if action == models.AuditActionInviteDelete {
		log.OldValues = payload
	} else {
		log.NewValues = payload
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record invite audit log", zap.String("action", action), zap.Error(err))
	}
}
