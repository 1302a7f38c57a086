// Package service holds the business logic between the HTTP handlers and the
// external stores:
//
//	handler → ActivityService → Activity Log Sink (Google Sheets)
//	handler → AuthService     → IdentityRepository + OAuth providers
//	handler → SignupService   → SignupRepository + ActivityService
//	handler → ChatService     → chat completion API + ActivityService
//
// Services never touch HTTP types; handlers never touch stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/metrics"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/sink/sheets"
)

// IST is the fixed zone all activity timestamps are written in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const (
	dateLayout      = "02/01/2006"
	timeLayout      = "15:04:05"
	timestampLayout = dateLayout + " " + timeLayout
)

// ActivitySink is the Activity Log Sink as the service sees it.
// *sheets.Client implements it.
type ActivitySink interface {
	Append(ctx context.Context, tab string, row []any) error
	ColumnContains(ctx context.Context, tab, column, value string) (bool, error)
	EnsureStructure(ctx context.Context, layouts []sheets.Layout) (sheets.Report, error)
}

// ActivityLogger is the one entry point for writing activity rows. Every
// caller (routes, sign-in, chat, the debug harness) goes through it.
type ActivityLogger interface {
	Log(ctx context.Context, ev model.Event) Result
}

// Result is the outcome of one Log call. Err is an *apperror.AppError when
// Success is false.
type Result struct {
	Success bool
	Err     error
}

// ActivityService writes activity rows to the sink.
//
// Log never panics and never returns a bare error: a failed write comes back
// as Result{Success: false}. Callers that log as a side effect of another
// action must carry on when that happens.
type ActivityService struct {
	sink   ActivitySink
	now    func() time.Time
	logger *slog.Logger
}

var _ ActivityLogger = (*ActivityService)(nil)

// NewActivityService creates an ActivityService. sink may be nil when the
// spreadsheet is not configured; every call then fails with a configuration
// error.
func NewActivityService(sink ActivitySink, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		sink:   sink,
		now:    time.Now,
		logger: logger,
	}
}

// Log validates ev, stamps it in IST and appends exactly one row.
// Validation failures never reach the sink.
func (s *ActivityService) Log(ctx context.Context, ev model.Event) Result {
	if err := validateEvent(ev); err != nil {
		metrics.ActivityEvents.WithLabelValues(string(ev.Kind), "invalid").Inc()
		return Result{Err: err}
	}

	if s.sink == nil {
		metrics.ActivityEvents.WithLabelValues(string(ev.Kind), "unconfigured").Inc()
		s.logger.Error("activity sink not configured", slog.String("kind", string(ev.Kind)))
		return Result{Err: apperror.Configuration("Activity log is not configured")}
	}

	tab, row := s.row(ev)
	if err := s.sink.Append(ctx, tab, row); err != nil {
		metrics.ActivityEvents.WithLabelValues(string(ev.Kind), "sink_error").Inc()
		s.logger.Error("activity log write failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("email", ev.Email),
			slog.String("error", err.Error()),
		)
		return Result{Err: apperror.SinkWrite(failureMessage(ev.Kind), err)}
	}

	metrics.ActivityEvents.WithLabelValues(string(ev.Kind), "success").Inc()
	s.logger.Debug("activity logged", slog.String("kind", string(ev.Kind)), slog.String("email", ev.Email))
	return Result{Success: true}
}

// UserExists reports whether email appears in the email column of the
// signups tab.
func (s *ActivityService) UserExists(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, apperror.ValidationFailed("email", "Email is required")
	}
	if s.sink == nil {
		return false, apperror.Configuration("Activity log is not configured")
	}

	found, err := s.sink.ColumnContains(ctx, sheets.TabSignups, sheets.EmailColumn, email)
	if err != nil {
		return false, fmt.Errorf("service/activity: checking %s: %w", email, err)
	}
	return found, nil
}

// EnsureStructure creates missing tabs and headers. Safe to call any number
// of times, from any number of callers at once.
func (s *ActivityService) EnsureStructure(ctx context.Context) (sheets.Report, error) {
	if s.sink == nil {
		return sheets.Report{}, apperror.Configuration("Activity log is not configured")
	}

	report, err := s.sink.EnsureStructure(ctx, sheets.DefaultLayouts)
	if err != nil {
		return report, fmt.Errorf("service/activity: ensuring sheet structure: %w", err)
	}

	if report.Changed() {
		s.logger.Info("activity sheet structure created",
			slog.Any("tabs", report.CreatedTabs),
			slog.Any("headers", report.CreatedHeaders),
		)
	}
	return report, nil
}

// Stamp returns the IST date and time strings for t.
func Stamp(t time.Time) (date, clock string) {
	t = t.In(IST)
	return t.Format(dateLayout), t.Format(timeLayout)
}

func (s *ActivityService) row(ev model.Event) (string, []any) {
	now := s.now()
	date, clock := Stamp(now)

	switch ev.Kind {
	case model.EventSignup:
		return sheets.TabSignups, []any{ev.Name, ev.Email, ev.Username, ev.Organization, ev.Purpose, date, clock}
	case model.EventLogin, model.EventLoginInfo:
		return sheets.TabLogins, []any{ev.Name, ev.Email, ev.IPAddress, date, clock}
	default:
		return sheets.TabChat, []any{now.In(IST).Format(timestampLayout), ev.Email, ev.Question}
	}
}

func validateEvent(ev model.Event) error {
	email := strings.TrimSpace(ev.Email)

	switch ev.Kind {
	case model.EventLogin:
		if email == "" || strings.TrimSpace(ev.Name) == "" {
			return apperror.ValidationFailed("name", "Email and name are required")
		}
	case model.EventChatQuestion:
		if email == "" || strings.TrimSpace(ev.Question) == "" {
			return apperror.ValidationFailed("question", "Email and question are required")
		}
	case model.EventSignup, model.EventLoginInfo:
		if email == "" {
			return apperror.ValidationFailed("email", "Email is required")
		}
	default:
		return apperror.ValidationFailed("kind", fmt.Sprintf("Unknown activity kind %q", ev.Kind))
	}
	return nil
}

func failureMessage(kind model.EventKind) string {
	switch kind {
	case model.EventSignup:
		return "Failed to log signup"
	case model.EventLogin, model.EventLoginInfo:
		return "Failed to log login"
	default:
		return "Failed to log chat question"
	}
}

// IsValidation reports whether a Result failed validation.
func (r Result) IsValidation() bool {
	return r.Err != nil && errors.Is(r.Err, apperror.ErrValidation)
}
