package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/careerbot/internal/common"
	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"gorm.io/gorm"
)

type JobStore interface {
	CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error)
	GetJobByID(ctx context.Context, id string) (*Job, error)
	UpdateJobStatusRunning(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id, reply, intentKind string) error
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
}

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

func (s *Service) AsyncEnabled() bool {
	return s.jobs != nil && s.publisher != nil
}

// EnqueueMessage stores the message as a queued job and publishes it for the
// worker. A repeated idempotency key returns the existing job with created=false.
func (s *Service) EnqueueMessage(ctx context.Context, req Request, idempotencyKey string) (*Job, bool, error) {
	if !s.AsyncEnabled() {
		return nil, false, errx.Unavailable(ErrAsyncDisabled, ErrAsyncDisabled.Error())
	}
	if err := s.admit(ctx, req.SessionID, req.Message); err != nil {
		return nil, false, err
	}
	sess := s.sessions.LoadOrCreate(ctx, req.SessionID, req.UserID)

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:        jobID,
		UserID:    req.UserID,
		SessionID: sess.ID(),
		Prompt:    req.Message,
		Status:    JobQueued,
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		job.IdempotencyKey = &key
	}

	got, created, err := s.jobs.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, errx.WrapStore(err)
	}
	if !created {
		return got, false, nil
	}

	if err := s.publisher.PublishJob(ctx, got.ID); err != nil {
		_ = s.jobs.MarkJobFailed(context.WithoutCancel(ctx), got.ID, "enqueue failed: "+err.Error())
		return nil, false, errx.Unavailable(err, "failed to enqueue job")
	}
	return got, true, nil
}

// GetJob returns the job when it belongs to userID.
func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	if s.jobs == nil {
		return nil, errx.Unavailable(ErrAsyncDisabled, ErrAsyncDisabled.Error())
	}
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errx.NotFound(ErrJobNotFound, ErrJobNotFound.Error())
		}
		return nil, errx.WrapStore(err)
	}
	if job.UserID != userID {
		return nil, errx.NotFound(ErrJobNotFound, ErrJobNotFound.Error())
	}
	return job, nil
}

// RunJob is the worker entry point. It returns an error only when the
// delivery should be retried; permanent failures are recorded on the job.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	if s.jobs == nil {
		return ErrAsyncDisabled
	}
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logx.Warn().Str("job_id", jobID).Msg("job not found, dropping delivery")
			return nil
		}
		return err
	}
	if job.Finished() {
		return nil
	}
	if err := s.jobs.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}

	rep, err := s.SendMessage(ctx, Request{SessionID: job.SessionID, UserID: job.UserID, Message: job.Prompt})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return s.jobs.MarkJobFailed(context.WithoutCancel(ctx), jobID, err.Error())
	}
	return s.jobs.MarkJobSucceeded(context.WithoutCancel(ctx), jobID, rep.Response, string(rep.Intent))
}
