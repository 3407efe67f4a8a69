package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

func seedVideo(t *testing.T, s *MemoryStore, ownerID int64, title string) *models.Video {
	t.Helper()
	ctx := context.Background()
	_, err := s.GetOrCreateUser(ctx, ownerID, "")
	require.NoError(t, err)
	v := &models.Video{OwnerID: ownerID, Title: title, ThumbnailRef: "thumb", LengthMinutes: 2, ProcessInstructions: "watch"}
	require.NoError(t, s.CreateVideo(ctx, v, 5))
	return v
}

func TestMemoryStore_GetOrCreateUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.GetOrCreateUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, u.Status)
	assert.Equal(t, 0, u.Strikes)

	again, err := s.GetOrCreateUser(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
	assert.Equal(t, u.CreatedAt, again.CreatedAt)

	_, err = s.GetUser(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateVideoLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.GetOrCreateUser(ctx, 1, "")

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateVideo(ctx, &models.Video{OwnerID: 1, Title: "v"}, 2))
	}
	err := s.CreateVideo(ctx, &models.Video{OwnerID: 1, Title: "v"}, 2)
	assert.ErrorIs(t, err, ErrVideoLimitReached)

	videos, err := s.ListVideosByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, videos, 2)

	_, err = s.SetVideoActive(ctx, 1, videos[0].ID, false)
	require.NoError(t, err)
	assert.NoError(t, s.CreateVideo(ctx, &models.Video{OwnerID: 1, Title: "v"}, 2))

	_, err = s.SetVideoActive(ctx, 2, videos[0].ID, true)
	assert.ErrorIs(t, err, ErrVideoNotFound)

	err = s.CreateVideo(ctx, &models.Video{OwnerID: 99}, 2)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStore_AssignTaskEligibility(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seedVideo(t, s, 1, "mine")
	other := seedVideo(t, s, 2, "theirs")

	d, err := s.AssignTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, other.ID, d.Video.ID)
	assert.Equal(t, models.TaskStatusAssigned, d.Task.Status)

	// Never the same video twice, whatever the earlier task's status
	_, err = s.AssignTask(ctx, 1)
	assert.ErrorIs(t, err, ErrNoEligibleVideo)

	seedVideo(t, s, 3, "paused owner")
	_, err = s.SetUserStatus(ctx, 3, models.UserStatusPaused)
	require.NoError(t, err)
	_, err = s.AssignTask(ctx, 1)
	assert.ErrorIs(t, err, ErrNoEligibleVideo)

	hidden := seedVideo(t, s, 4, "hidden")
	_, err = s.SetVideoActive(ctx, 4, hidden.ID, false)
	require.NoError(t, err)
	_, err = s.AssignTask(ctx, 1)
	assert.ErrorIs(t, err, ErrNoEligibleVideo)
}

func TestMemoryStore_AssignTaskUniform(t *testing.T) {
	s := NewMemoryStore()
	s.SetSeed(42)
	ctx := context.Background()

	const owners, viewers = 4, 4000
	picks := make(map[int64]int)
	for i := int64(1); i <= owners; i++ {
		picks[seedVideo(t, s, i, "clip").ID] = 0
	}

	for viewer := int64(100); viewer < 100+viewers; viewer++ {
		d, err := s.AssignTask(ctx, viewer)
		require.NoError(t, err)
		picks[d.Video.ID]++
	}

	require.Len(t, picks, owners)
	expected := viewers / owners
	for id, n := range picks {
		assert.InDelta(t, expected, n, float64(expected)*0.15, "video %d picked %d times", id, n)
	}
}

func TestMemoryStore_AssignTaskConcurrentViewer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedVideo(t, s, 1, "a")
	seedVideo(t, s, 2, "b")

	var wg sync.WaitGroup
	results := make(chan int64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.AssignTask(ctx, 9)
			assert.NoError(t, err)
			if err == nil {
				results <- d.Video.ID
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for id := range results {
		seen[id] = true
	}
	assert.Len(t, seen, 2)
}

func TestMemoryStore_SubmitProof(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedVideo(t, s, 1, "v")
	_, _ = s.GetOrCreateUser(ctx, 2, "")

	d, err := s.AssignTask(ctx, 2)
	require.NoError(t, err)

	_, err = s.SubmitProof(ctx, d.Task.ID, 3, "ref", models.ProofKindPhoto)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	got, err := s.SubmitProof(ctx, d.Task.ID, 2, "ref", models.ProofKindPhoto)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProofSubmitted, got.Task.Status)
	assert.Equal(t, "ref", got.Task.ProofRef)

	_, err = s.SubmitProof(ctx, d.Task.ID, 2, "ref", models.ProofKindPhoto)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.TaskStatusProofSubmitted, terr.Current)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStore_ResolveTask(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := seedVideo(t, s, 1, "v")
	_, _ = s.GetOrCreateUser(ctx, 2, "")

	d, _ := s.AssignTask(ctx, 2)
	_, err := s.SubmitProof(ctx, d.Task.ID, 2, "ref", models.ProofKindVideo)
	require.NoError(t, err)

	res, err := s.ResolveTask(ctx, Resolution{
		TaskID: d.Task.ID, To: models.TaskStatusCompleted, IncrementViews: true, Strike: StrikeOwner,
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(1), res.StrikedUserID)
	assert.Equal(t, 1, res.Strikes)
	assert.Equal(t, 1, res.Video.ViewsReceived)

	again, err := s.ResolveTask(ctx, Resolution{
		TaskID: d.Task.ID, To: models.TaskStatusInvalidProof, Reason: "late", Strike: StrikeViewer,
	})
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, models.TaskStatusCompleted, again.Task.Status)

	viewer, _ := s.GetUser(ctx, 2)
	assert.Equal(t, 0, viewer.Strikes)
	video, _ := s.GetVideo(ctx, v.ID)
	assert.Equal(t, 1, video.ViewsReceived)
}

func TestMemoryStore_ResolveTaskConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedVideo(t, s, 1, "v")
	_, _ = s.GetOrCreateUser(ctx, 2, "")
	d, _ := s.AssignTask(ctx, 2)
	_, _ = s.SubmitProof(ctx, d.Task.ID, 2, "ref", models.ProofKindVideo)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.ResolveTask(ctx, Resolution{TaskID: d.Task.ID, To: models.TaskStatusCompleted, IncrementViews: true})
			if err == nil && res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	video, _ := s.GetVideo(ctx, d.Video.ID)
	assert.Equal(t, 1, video.ViewsReceived)
}

func TestMemoryStore_ExpireAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedVideo(t, s, 1, "owner video")
	seedVideo(t, s, 2, "viewer video")
	_, _ = s.GetOrCreateUser(ctx, 3, "")

	asViewer, err := s.AssignTask(ctx, 2)
	require.NoError(t, err)
	asOwner, err := s.AssignTask(ctx, 1)
	require.NoError(t, err)
	unrelated, err := s.AssignTask(ctx, 3)
	require.NoError(t, err)
	_, _ = s.SubmitProof(ctx, asOwner.Task.ID, 1, "ref", models.ProofKindVideo)

	expired, err := s.ExpireOutstandingTasks(ctx, 2)
	require.NoError(t, err)

	ids := []int64{}
	for _, d := range expired {
		assert.Equal(t, models.TaskStatusExpired, d.Task.Status)
		ids = append(ids, d.Task.ID)
	}
	assert.Contains(t, ids, asViewer.Task.ID)
	assert.Contains(t, ids, asOwner.Task.ID)
	if unrelated.Video.OwnerID != 2 {
		assert.NotContains(t, ids, unrelated.Task.ID)
	}

	require.NoError(t, s.DeleteUser(ctx, 2))
	_, err = s.GetUser(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTask(ctx, asViewer.Task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	videos, _ := s.ListVideosByOwner(ctx, 2)
	assert.Empty(t, videos)

	assert.ErrorIs(t, s.DeleteUser(ctx, 2), ErrUserNotFound)
}

func TestMemoryStore_PendingReviewAndStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedVideo(t, s, 1, "v")
	_, _ = s.GetOrCreateUser(ctx, 2, "")

	_, err := s.PendingReviewForOwner(ctx, 1)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	d, _ := s.AssignTask(ctx, 2)
	_, _ = s.SubmitProof(ctx, d.Task.ID, 2, "ref", models.ProofKindVideo)

	pending, err := s.PendingReviewForOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, d.Task.ID, pending.Task.ID)

	awaiting, err := s.ListTasksAwaitingReview(ctx)
	require.NoError(t, err)
	assert.Len(t, awaiting, 1)

	_, err = s.ResolveTask(ctx, Resolution{TaskID: d.Task.ID, To: models.TaskStatusCompleted, IncrementViews: true})
	require.NoError(t, err)

	viewerStats, err := s.UserStats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, viewerStats.TasksCompleted)

	counts, err := s.CountTasksByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{models.TaskStatusCompleted: 1}, counts)

	ownerStats, err := s.UserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ownerStats.ActiveVideos)
	assert.Equal(t, 1, ownerStats.ViewsReceived)
}

func TestMemoryStore_Settings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveSetting(ctx, models.Setting{Name: models.SettingSubscriptionPrice, Value: "30"}))
	require.NoError(t, s.SaveSetting(ctx, models.Setting{Name: models.SettingAIModerationMode, IsEnabled: true}))
	require.NoError(t, s.SaveSetting(ctx, models.Setting{Name: models.SettingSubscriptionPrice, Value: "45"}))

	settings, err := s.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, models.SettingAIModerationMode, settings[0].Name)
	assert.Equal(t, "45", settings[1].Value)
}
