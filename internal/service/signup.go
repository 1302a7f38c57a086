package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/repository"
)

// SignupService records new-user signups in the Credential Store and mirrors
// them to the Activity Log Sink.
type SignupService struct {
	signups  repository.SignupRepository
	activity ActivityLogger
	now      func() time.Time
	logger   *slog.Logger
}

func NewSignupService(signups repository.SignupRepository, activity ActivityLogger, logger *slog.Logger) *SignupService {
	return &SignupService{
		signups:  signups,
		activity: activity,
		now:      time.Now,
		logger:   logger,
	}
}

// SignupOutcome reports whether the signup row also reached the activity log.
type SignupOutcome struct {
	Record *model.SignupRecord
	Logged bool
}

// Register stores one signup row. The store write is the primary action; the
// activity log copy is best effort.
func (s *SignupService) Register(ctx context.Context, in model.SignupRecord) (*SignupOutcome, error) {
	record := model.SignupRecord{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Username:     strings.TrimSpace(in.Username),
		Organization: strings.TrimSpace(in.Organization),
		Purpose:      strings.TrimSpace(in.Purpose),
	}
	if record.Email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if s.signups == nil {
		return nil, apperror.Configuration("Credential store is not configured")
	}

	record.SignupDate, record.SignupTime = Stamp(s.now())

	if err := s.signups.CreateSignup(ctx, &record); err != nil {
		s.logger.Error("signup insert failed", slog.String("email", record.Email), slog.String("error", err.Error()))
		return nil, apperror.SinkWrite("Failed to save user data", err)
	}

	out := &SignupOutcome{Record: &record}
	if s.activity == nil {
		return out, nil
	}

	res := s.activity.Log(ctx, model.Event{
		Kind:         model.EventSignup,
		Email:        record.Email,
		Name:         record.Name,
		Username:     record.Username,
		Organization: record.Organization,
		Purpose:      record.Purpose,
	})
	if !res.Success {
		s.logger.Warn("signup not mirrored to activity log", slog.String("email", record.Email), slog.Any("error", res.Err))
	}
	out.Logged = res.Success
	return out, nil
}
