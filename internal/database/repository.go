package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

const (
	userColumns  = `id, username, is_subscribed, subscription_expiry, strikes, status, created_at`
	videoColumns = `v.id, v.owner_id, v.title, v.thumbnail_ref, v.link, v.length_minutes,
		v.process_instructions, v.is_active, v.views_received, v.created_at`
	taskColumns = `t.id, t.video_id, t.viewer_id, t.status, t.proof_ref, t.proof_kind,
		t.rejection_reason, t.created_at, t.updated_at`
)

// Repository is the Postgres backed entity store. Multi-statement operations
// run through crdbpgx.ExecuteTx so the same code works against CockroachDB,
// where serialization conflicts are retried.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying connection pool
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNoEligibleVideo) {
		status = "error"
	}
	metrics.RecordDatabaseOperation(operation, status, time.Since(start).Seconds())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.IsSubscribed, &u.SubscriptionExpiry,
		&u.Strikes, &u.Status, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.ThumbnailRef, &v.Link, &v.LengthMinutes,
		&v.ProcessInstructions, &v.IsActive, &v.ViewsReceived, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanTaskDetails(row rowScanner) (*models.TaskDetails, error) {
	var d models.TaskDetails
	t, v := &d.Task, &d.Video
	err := row.Scan(
		&t.ID, &t.VideoID, &t.ViewerID, &t.Status, &t.ProofRef, &t.ProofKind,
		&t.RejectionReason, &t.CreatedAt, &t.UpdatedAt,
		&v.ID, &v.OwnerID, &v.Title, &v.ThumbnailRef, &v.Link, &v.LengthMinutes,
		&v.ProcessInstructions, &v.IsActive, &v.ViewsReceived, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Users

// GetOrCreateUser returns the user with id, creating it on first contact
func (r *Repository) GetOrCreateUser(ctx context.Context, id int64, username string) (user *models.User, err error) {
	defer func(start time.Time) { observe("get_or_create_user", start, err) }(time.Now())

	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username)
		RETURNING ` + userColumns

	user, err = scanUser(r.db.Pool.QueryRow(ctx, query, id, username))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id int64) (user *models.User, err error) {
	defer func(start time.Time) { observe("get_user", start, err) }(time.Now())

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err = scanUser(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUserStatus updates a user's status
func (r *Repository) SetUserStatus(ctx context.Context, id int64, status string) (user *models.User, err error) {
	defer func(start time.Time) { observe("set_user_status", start, err) }(time.Now())

	query := `UPDATE users SET status = $2 WHERE id = $1 RETURNING ` + userColumns

	user, err = scanUser(r.db.Pool.QueryRow(ctx, query, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	return user, nil
}

// SetSubscription marks the user subscribed until expiry
func (r *Repository) SetSubscription(ctx context.Context, id int64, expiry time.Time) (user *models.User, err error) {
	defer func(start time.Time) { observe("set_subscription", start, err) }(time.Now())

	query := `
		UPDATE users SET is_subscribed = TRUE, subscription_expiry = $2
		WHERE id = $1
		RETURNING ` + userColumns

	user, err = scanUser(r.db.Pool.QueryRow(ctx, query, id, expiry))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return user, nil
}

// DeleteUser removes a user. Videos and tasks referencing the user cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { observe("delete_user", start, err) }(time.Now())

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserStats summarises a user's activity
func (r *Repository) UserStats(ctx context.Context, id int64) (stats *models.UserStats, err error) {
	defer func(start time.Time) { observe("user_stats", start, err) }(time.Now())

	query := `
		SELECT u.id, u.status, u.strikes,
		       (SELECT COUNT(*) FROM videos v WHERE v.owner_id = u.id AND v.is_active),
		       (SELECT COUNT(*) FROM tasks t WHERE t.viewer_id = u.id AND t.status = 'completed'),
		       (SELECT COALESCE(SUM(v.views_received), 0) FROM videos v WHERE v.owner_id = u.id)
		FROM users u
		WHERE u.id = $1
	`

	var s models.UserStats
	err = r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.UserID, &s.Status, &s.Strikes, &s.ActiveVideos, &s.TasksCompleted, &s.ViewsReceived,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &s, nil
}

// Videos

// CreateVideo stores a new video unless the owner already has maxActive
// active videos
func (r *Repository) CreateVideo(ctx context.Context, video *models.Video, maxActive int) (err error) {
	defer func(start time.Time) { observe("create_video", start, err) }(time.Now())

	err = crdbpgx.ExecuteTx(ctx, r.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Serialise concurrent adds for the same owner on the user row
		var ownerID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, video.OwnerID).Scan(&ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		var active int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM videos WHERE owner_id = $1 AND is_active`, video.OwnerID,
		).Scan(&active); err != nil {
			return err
		}
		if active >= maxActive {
			return ErrVideoLimitReached
		}

		query := `
			INSERT INTO videos (owner_id, title, thumbnail_ref, link, length_minutes, process_instructions, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING id, is_active, views_received, created_at
		`
		return tx.QueryRow(ctx, query,
			video.OwnerID, video.Title, video.ThumbnailRef, video.Link,
			video.LengthMinutes, video.ProcessInstructions,
		).Scan(&video.ID, &video.IsActive, &video.ViewsReceived, &video.CreatedAt)
	})
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrVideoLimitReached) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetVideo retrieves a video by ID
func (r *Repository) GetVideo(ctx context.Context, id int64) (video *models.Video, err error) {
	defer func(start time.Time) { observe("get_video", start, err) }(time.Now())

	query := `SELECT ` + videoColumns + ` FROM videos v WHERE v.id = $1`

	video, err = scanVideo(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// ListVideosByOwner retrieves all of an owner's videos, newest first
func (r *Repository) ListVideosByOwner(ctx context.Context, ownerID int64) (videos []*models.Video, err error) {
	defer func(start time.Time) { observe("list_videos", start, err) }(time.Now())

	query := `SELECT ` + videoColumns + ` FROM videos v WHERE v.owner_id = $1 ORDER BY v.created_at DESC, v.id DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}
	return videos, nil
}

// CountActiveVideos counts an owner's active videos
func (r *Repository) CountActiveVideos(ctx context.Context, ownerID int64) (count int, err error) {
	defer func(start time.Time) { observe("count_active_videos", start, err) }(time.Now())

	err = r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM videos WHERE owner_id = $1 AND is_active`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// SetVideoActive toggles visibility of a video the owner holds
func (r *Repository) SetVideoActive(ctx context.Context, ownerID, videoID int64, active bool) (video *models.Video, err error) {
	defer func(start time.Time) { observe("set_video_active", start, err) }(time.Now())

	query := `
		UPDATE videos v SET is_active = $3
		WHERE v.id = $1 AND v.owner_id = $2
		RETURNING ` + videoColumns

	video, err = scanVideo(r.db.Pool.QueryRow(ctx, query, videoID, ownerID, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update video: %w", err)
	}
	return video, nil
}

// Tasks

const taskDetailsQuery = `SELECT ` + taskColumns + `, ` + videoColumns + `
	FROM tasks t JOIN videos v ON v.id = t.video_id`

func getTaskDetails(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id int64) (*models.TaskDetails, error) {
	details, err := scanTaskDetails(q.QueryRow(ctx, taskDetailsQuery+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return details, err
}

// AssignTask picks a uniformly random eligible video for the viewer and
// creates an assigned task for it in one transaction. A video is eligible
// when it is active, its owner is active, it is not the viewer's own, and the
// viewer has never held a task for it.
func (r *Repository) AssignTask(ctx context.Context, viewerID int64) (details *models.TaskDetails, err error) {
	defer func(start time.Time) { observe("assign_task", start, err) }(time.Now())

	err = crdbpgx.ExecuteTx(ctx, r.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Serialize assignments per viewer so two concurrent requests cannot
		// draw the same video
		if _, err := tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, viewerID); err != nil {
			return err
		}

		query := `
			INSERT INTO tasks (video_id, viewer_id, status)
			SELECT v.id, $1, 'assigned'
			FROM videos v
			JOIN users u ON u.id = v.owner_id
			WHERE v.owner_id <> $1
			  AND v.is_active
			  AND u.status = 'active'
			  AND NOT EXISTS (
			      SELECT 1 FROM tasks seen WHERE seen.video_id = v.id AND seen.viewer_id = $1
			  )
			ORDER BY random()
			LIMIT 1
			ON CONFLICT (video_id, viewer_id) DO NOTHING
			RETURNING id
		`
		var taskID int64
		if err := tx.QueryRow(ctx, query, viewerID).Scan(&taskID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoEligibleVideo
			}
			return err
		}

		d, err := getTaskDetails(ctx, tx, taskID)
		if err != nil {
			return err
		}
		details = d
		return nil
	})
	if errors.Is(err, ErrNoEligibleVideo) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return details, nil
}

// GetTask retrieves a task with its video
func (r *Repository) GetTask(ctx context.Context, id int64) (details *models.TaskDetails, err error) {
	defer func(start time.Time) { observe("get_task", start, err) }(time.Now())

	details, err = getTaskDetails(ctx, r.db.Pool, id)
	if errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return details, nil
}

// SubmitProof records proof for an assigned task held by viewerID and moves
// it to proof_submitted
func (r *Repository) SubmitProof(ctx context.Context, taskID, viewerID int64, proofRef, proofKind string) (details *models.TaskDetails, err error) {
	defer func(start time.Time) { observe("submit_proof", start, err) }(time.Now())

	err = crdbpgx.ExecuteTx(ctx, r.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = 'proof_submitted', proof_ref = $3, proof_kind = $4, updated_at = NOW()
			WHERE id = $1 AND viewer_id = $2 AND status = 'assigned'
		`, taskID, viewerID, proofRef, proofKind)
		if err != nil {
			return err
		}

		d, err := getTaskDetails(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if d.Task.ViewerID != viewerID {
			return ErrTaskNotFound
		}
		if tag.RowsAffected() == 0 {
			return &TransitionError{TaskID: taskID, Current: d.Task.Status}
		}
		details = d
		return nil
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to submit proof: %w", err)
	}
	return details, nil
}

// ResolveTask applies a review outcome to a task that is still awaiting
// review. The status guard in the UPDATE makes concurrent resolutions of the
// same task apply exactly once; the losers observe Applied == false.
func (r *Repository) ResolveTask(ctx context.Context, res Resolution) (out *ResolvedTask, err error) {
	defer func(start time.Time) { observe("resolve_task", start, err) }(time.Now())

	err = crdbpgx.ExecuteTx(ctx, r.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		out = &ResolvedTask{}

		tag, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = $2, rejection_reason = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'proof_submitted'
		`, res.TaskID, res.To, res.Reason)
		if err != nil {
			return err
		}
		out.Applied = tag.RowsAffected() == 1

		if out.Applied && res.IncrementViews {
			if _, err := tx.Exec(ctx, `
				UPDATE videos SET views_received = views_received + 1
				WHERE id = (SELECT video_id FROM tasks WHERE id = $1)
			`, res.TaskID); err != nil {
				return err
			}
		}

		d, err := getTaskDetails(ctx, tx, res.TaskID)
		if err != nil {
			return err
		}
		out.Task, out.Video = d.Task, d.Video

		if !out.Applied {
			return nil
		}

		switch res.Strike {
		case StrikeViewer:
			out.StrikedUserID = d.Task.ViewerID
		case StrikeOwner:
			out.StrikedUserID = d.Video.OwnerID
		default:
			return nil
		}
		return tx.QueryRow(ctx,
			`UPDATE users SET strikes = strikes + 1 WHERE id = $1 RETURNING strikes`, out.StrikedUserID,
		).Scan(&out.Strikes)
	})
	if errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task: %w", err)
	}
	return out, nil
}

// ExpireOutstandingTasks marks every assigned or proof_submitted task the
// user takes part in, as viewer or as video owner, expired
func (r *Repository) ExpireOutstandingTasks(ctx context.Context, userID int64) (expired []*models.TaskDetails, err error) {
	defer func(start time.Time) { observe("expire_tasks", start, err) }(time.Now())

	err = crdbpgx.ExecuteTx(ctx, r.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		expired = nil

		rows, err := tx.Query(ctx, `
			UPDATE tasks t SET status = 'expired', updated_at = NOW()
			FROM videos v
			WHERE v.id = t.video_id
			  AND (t.viewer_id = $1 OR v.owner_id = $1)
			  AND t.status IN ('assigned', 'proof_submitted')
			RETURNING t.id
		`, userID)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}

		for _, id := range ids {
			d, err := getTaskDetails(ctx, tx, id)
			if err != nil {
				return err
			}
			expired = append(expired, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expire tasks: %w", err)
	}
	return expired, nil
}

// ListTasksAwaitingReview returns every task in proof_submitted
func (r *Repository) ListTasksAwaitingReview(ctx context.Context) (tasks []*models.Task, err error) {
	defer func(start time.Time) { observe("list_awaiting_review", start, err) }(time.Now())

	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.status = 'proof_submitted' ORDER BY t.updated_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.VideoID, &t.ViewerID, &t.Status, &t.ProofRef, &t.ProofKind,
			&t.RejectionReason, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// PendingReviewForOwner returns the oldest proof awaiting the owner's review
func (r *Repository) PendingReviewForOwner(ctx context.Context, ownerID int64) (details *models.TaskDetails, err error) {
	defer func(start time.Time) { observe("pending_review", start, err) }(time.Now())

	query := taskDetailsQuery + `
		WHERE v.owner_id = $1 AND t.status = 'proof_submitted'
		ORDER BY t.updated_at, t.id
		LIMIT 1`

	details, err = scanTaskDetails(r.db.Pool.QueryRow(ctx, query, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending review: %w", err)
	}
	return details, nil
}

// Settings

// ListSettings returns all stored settings
func (r *Repository) ListSettings(ctx context.Context) (settings []models.Setting, err error) {
	defer func(start time.Time) { observe("list_settings", start, err) }(time.Now())

	rows, err := r.db.Pool.Query(ctx, `SELECT name, is_enabled, value FROM settings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	settings, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.Setting])
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return settings, nil
}

// SaveSetting inserts or replaces a setting
func (r *Repository) SaveSetting(ctx context.Context, setting models.Setting) (err error) {
	defer func(start time.Time) { observe("save_setting", start, err) }(time.Now())

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO settings (name, is_enabled, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET is_enabled = EXCLUDED.is_enabled, value = EXCLUDED.value
	`, setting.Name, setting.IsEnabled, setting.Value)
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}
