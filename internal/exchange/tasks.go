package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/database"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/notify"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/tracing"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Resolution outcomes used in logs and metrics
const (
	OutcomeAccepted         = "accepted"
	OutcomeRejected         = "rejected"
	OutcomeAutoApproved     = "auto_approved"
	OutcomeOwnerUnreachable = "owner_unreachable"
)

// RequestTask assigns the viewer a random video they have never been
// linked to
func (s *Service) RequestTask(ctx context.Context, viewerID int64) (details *models.TaskDetails, err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.request_task", map[string]interface{}{"viewer_id": viewerID})
	defer func() { finish(err) }()

	if _, err = s.authorize(ctx, viewerID); err != nil {
		return nil, err
	}

	owned, err := s.store.CountActiveVideos(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if owned == 0 {
		return nil, ErrNoOwnedVideo
	}

	details, err = s.store.AssignTask(ctx, viewerID)
	if errors.Is(err, database.ErrNoEligibleVideo) {
		metrics.RecordTaskRequest(false)
		return nil, ErrNoTaskAvailable
	}
	if err != nil {
		return nil, mapStoreError(err)
	}
	metrics.RecordTaskRequest(true)

	s.logger.LogTaskEvent(details.Task.ID, "assigned", details.Task.Status, map[string]interface{}{
		"viewer_id": viewerID,
		"video_id":  details.Video.ID,
	})

	s.send(ctx, viewerID, models.NotificationTaskAssigned, s.taskPayload(ctx, details))
	return details, nil
}

// SubmitProof records proof for an assigned task and asks the owner to
// review it. An owner who cannot be reached counts as an approval.
func (s *Service) SubmitProof(ctx context.Context, viewerID, taskID int64, proofRef, proofKind string) (details *models.TaskDetails, err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.submit_proof", map[string]interface{}{
		"viewer_id": viewerID,
		"task_id":   taskID,
	})
	defer func() { finish(err) }()

	if _, err = s.authorize(ctx, viewerID); err != nil {
		return nil, err
	}

	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return nil, validationError("proof is required")
	}
	if !models.ValidProofKind(proofKind) {
		return nil, validationError("proof must be a video or a photo, got %q", proofKind)
	}

	details, err = s.store.SubmitProof(ctx, taskID, viewerID, proofRef, proofKind)
	if err != nil {
		return nil, mapStoreError(err)
	}
	metrics.RecordProofSubmitted(proofKind)

	// Once the proof is committed the task must end up either armed or
	// resolved, even when the client hangs up during owner delivery.
	ctx = context.WithoutCancel(ctx)

	owner := details.Video.OwnerID
	payload := s.taskPayload(ctx, details)
	payload["viewer_id"] = viewerID
	payload["proof_kind"] = proofKind
	payload["proof_url"] = s.MediaURL(ctx, proofRef)
	payload["review_deadline"] = details.Task.UpdatedAt.Add(s.cfg.ReviewTimeout).UTC().Format(time.RFC3339)

	if deliveryErr := s.notifier.Notify(ctx, notify.New(owner, models.NotificationProofSubmitted, payload)); deliveryErr != nil {
		s.logger.WithTaskID(taskID).WithUserID(owner).WithError(deliveryErr).
			Warn("Owner unreachable, auto-approving proof")

		resolved, err := s.resolve(ctx, database.Resolution{
			TaskID:         taskID,
			To:             models.TaskStatusCompleted,
			IncrementViews: true,
			Strike:         database.StrikeNone,
		}, OutcomeOwnerUnreachable, details.Task.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if resolved.Applied {
			s.send(ctx, viewerID, models.NotificationOwnerUnreachableApproved, map[string]interface{}{
				"task_id": taskID,
				"title":   resolved.Video.Title,
			})
		}
		return &models.TaskDetails{Task: resolved.Task, Video: resolved.Video}, nil
	}

	s.timers.Schedule(s.cfg.ReviewTimeout, taskID)
	s.logger.LogTaskEvent(taskID, "proof_submitted", details.Task.Status, map[string]interface{}{
		"viewer_id":  viewerID,
		"proof_kind": proofKind,
	})
	return details, nil
}

// ResolveValid accepts a proof on behalf of the video owner
func (s *Service) ResolveValid(ctx context.Context, reviewerID, taskID int64) (details *models.TaskDetails, err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.resolve_valid", map[string]interface{}{
		"reviewer_id": reviewerID,
		"task_id":     taskID,
	})
	defer func() { finish(err) }()

	current, err := s.reviewable(ctx, reviewerID, taskID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolve(ctx, database.Resolution{
		TaskID:         taskID,
		To:             models.TaskStatusCompleted,
		IncrementViews: true,
		Strike:         database.StrikeNone,
	}, OutcomeAccepted, current.Task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !resolved.Applied {
		return nil, &AlreadyReviewedError{TaskID: taskID, Status: resolved.Task.Status}
	}

	s.send(ctx, resolved.Task.ViewerID, models.NotificationProofAccepted, map[string]interface{}{
		"task_id": taskID,
		"title":   resolved.Video.Title,
	})
	return &models.TaskDetails{Task: resolved.Task, Video: resolved.Video}, nil
}

// ResolveInvalid rejects a proof with a reason and gives the viewer a
// strike
func (s *Service) ResolveInvalid(ctx context.Context, reviewerID, taskID int64, reason string) (details *models.TaskDetails, err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.resolve_invalid", map[string]interface{}{
		"reviewer_id": reviewerID,
		"task_id":     taskID,
	})
	defer func() { finish(err) }()

	if strings.TrimSpace(reason) == "" {
		return nil, validationError("a rejection reason is required")
	}

	current, err := s.reviewable(ctx, reviewerID, taskID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolve(ctx, database.Resolution{
		TaskID: taskID,
		To:     models.TaskStatusInvalidProof,
		Reason: reason,
		Strike: database.StrikeViewer,
	}, OutcomeRejected, current.Task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !resolved.Applied {
		return nil, &AlreadyReviewedError{TaskID: taskID, Status: resolved.Task.Status}
	}

	s.send(ctx, resolved.Task.ViewerID, models.NotificationProofRejected, map[string]interface{}{
		"task_id":     taskID,
		"title":       resolved.Video.Title,
		"reason":      reason,
		"strikes":     resolved.Strikes,
		"max_strikes": s.cfg.MaxStrikes,
	})
	return &models.TaskDetails{Task: resolved.Task, Video: resolved.Video}, nil
}

// AutoApprove is the review timeout callback. It completes the task and
// penalizes the owner unless a review got there first.
func (s *Service) AutoApprove(ctx context.Context, taskID int64) (err error) {
	ctx, finish := tracing.Trace(ctx, "exchange.auto_approve", map[string]interface{}{"task_id": taskID})
	defer func() { finish(err) }()

	current, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.WithTaskID(taskID).Debug("Review timeout for a removed task")
		return nil
	}
	if err != nil {
		return err
	}

	resolved, err := s.resolve(ctx, database.Resolution{
		TaskID:         taskID,
		To:             models.TaskStatusCompleted,
		IncrementViews: true,
		Strike:         database.StrikeOwner,
	}, OutcomeAutoApproved, current.Task.UpdatedAt)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !resolved.Applied {
		s.logger.WithTaskID(taskID).WithField("status", resolved.Task.Status).
			Debug("Review timeout after resolution, nothing to do")
		return nil
	}

	s.send(ctx, resolved.Task.ViewerID, models.NotificationAutoApprovedViewer, map[string]interface{}{
		"task_id": taskID,
		"title":   resolved.Video.Title,
	})
	s.send(ctx, resolved.Video.OwnerID, models.NotificationAutoApprovedOwner, map[string]interface{}{
		"task_id":     taskID,
		"title":       resolved.Video.Title,
		"strikes":     resolved.Strikes,
		"max_strikes": s.cfg.MaxStrikes,
	})
	return nil
}

// RearmPendingReviews arms a timer for every proof still awaiting review,
// for whatever remains of its window
func (s *Service) RearmPendingReviews(ctx context.Context) (int, error) {
	tasks, err := s.store.ListTasksAwaitingReview(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	for _, t := range tasks {
		remaining := t.UpdatedAt.Add(s.cfg.ReviewTimeout).Sub(now)
		s.timers.Schedule(remaining, t.ID)
	}

	if len(tasks) > 0 {
		s.logger.Infof("Re-armed %d review timers", len(tasks))
	}
	return len(tasks), nil
}

// PendingReview returns the owner's oldest proof awaiting review, or nil
func (s *Service) PendingReview(ctx context.Context, ownerID int64) (*models.TaskDetails, error) {
	details, err := s.store.PendingReviewForOwner(ctx, ownerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return details, nil
}

// reviewable checks that reviewerID owns the task's video and that the
// task is awaiting review
func (s *Service) reviewable(ctx context.Context, reviewerID, taskID int64) (*models.TaskDetails, error) {
	current, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if current.Video.OwnerID != reviewerID {
		return nil, ErrNotOwner
	}

	switch {
	case current.Task.Status == models.TaskStatusProofSubmitted:
		return current, nil
	case current.Task.IsTerminal():
		return nil, &AlreadyReviewedError{TaskID: taskID, Status: current.Task.Status}
	default:
		return nil, fmt.Errorf("%w: task %d has no proof to review", ErrInvalidState, taskID)
	}
}

// resolve disarms the review timer and applies res. The store decides
// whether the task was still awaiting review.
func (s *Service) resolve(ctx context.Context, res database.Resolution, outcome string, submittedAt time.Time) (*database.ResolvedTask, error) {
	s.timers.Cancel(res.TaskID)

	resolved, err := s.store.ResolveTask(ctx, res)
	if err != nil {
		return nil, mapStoreError(err)
	}

	metrics.RecordResolution(outcome, resolved.Applied, s.now().Sub(submittedAt).Seconds())
	if !resolved.Applied {
		return resolved, nil
	}

	switch res.Strike {
	case database.StrikeViewer:
		metrics.RecordStrike("viewer")
	case database.StrikeOwner:
		metrics.RecordStrike("owner")
	}

	fields := map[string]interface{}{
		"outcome":        outcome,
		"views_received": resolved.Video.ViewsReceived,
	}
	if resolved.StrikedUserID != 0 {
		fields["striked_user_id"] = resolved.StrikedUserID
		fields["strikes"] = resolved.Strikes
	}
	s.logger.LogTaskEvent(res.TaskID, "resolved", resolved.Task.Status, fields)
	return resolved, nil
}

// taskPayload describes the video a task points at
func (s *Service) taskPayload(ctx context.Context, d *models.TaskDetails) map[string]interface{} {
	payload := map[string]interface{}{
		"task_id":        d.Task.ID,
		"video_id":       d.Video.ID,
		"title":          d.Video.Title,
		"length_minutes": d.Video.LengthMinutes,
		"instructions":   d.Video.ProcessInstructions,
		"thumbnail":      s.MediaURL(ctx, d.Video.ThumbnailRef),
	}
	if d.Video.HasWatchLink() {
		payload["link"] = d.Video.Link
	}
	return payload
}
