package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/model"
)

type fakeSignupRepo struct {
	records []model.SignupRecord
	err     error
}

func (r *fakeSignupRepo) CreateSignup(ctx context.Context, record *model.SignupRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, *record)
	return nil
}

func newTestSignupService(repo *fakeSignupRepo, activity ActivityLogger) *SignupService {
	s := NewSignupService(repo, activity, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRegister_StoresAndMirrors(t *testing.T) {
	repo := &fakeSignupRepo{}
	activity := &recordingLogger{result: Result{Success: true}}
	svc := newTestSignupService(repo, activity)

	out, err := svc.Register(context.Background(), model.SignupRecord{
		Name: " Ada ", Email: "ada@example.com", Username: "ada", Organization: "AE", Purpose: "research",
	})
	require.NoError(t, err)
	assert.True(t, out.Logged)

	require.Len(t, repo.records, 1)
	got := repo.records[0]
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "15/10/2026", got.SignupDate)
	assert.Equal(t, "10:15:30", got.SignupTime)

	require.Len(t, activity.events, 1)
	assert.Equal(t, model.EventSignup, activity.events[0].Kind)
	assert.Equal(t, "research", activity.events[0].Purpose)
}

func TestRegister_MissingEmail(t *testing.T) {
	repo := &fakeSignupRepo{}
	svc := newTestSignupService(repo, nil)

	_, err := svc.Register(context.Background(), model.SignupRecord{Name: "Ada"})

	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Empty(t, repo.records)
}

func TestRegister_StoreFailure(t *testing.T) {
	repo := &fakeSignupRepo{err: errors.New("duplicate key")}
	activity := &recordingLogger{result: Result{Success: true}}
	svc := newTestSignupService(repo, activity)

	_, err := svc.Register(context.Background(), model.SignupRecord{Email: "ada@example.com"})

	assert.True(t, errors.Is(err, apperror.ErrSinkWrite))
	assert.Empty(t, activity.events, "nothing is mirrored when the store write fails")
}

func TestRegister_ActivityFailureIsNotFatal(t *testing.T) {
	repo := &fakeSignupRepo{}
	activity := &recordingLogger{result: Result{Err: apperror.SinkWrite("Failed to log signup", errors.New("quota"))}}
	svc := newTestSignupService(repo, activity)

	out, err := svc.Register(context.Background(), model.SignupRecord{Email: "ada@example.com"})

	require.NoError(t, err)
	assert.False(t, out.Logged)
	assert.Len(t, repo.records, 1)
}
