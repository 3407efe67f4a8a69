package database

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// MemoryStore keeps every entity in process memory behind one mutex. It
// honours the same contract as Repository and backs tests and the
// "memory" database driver.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	videos   map[int64]*models.Video
	tasks    map[int64]*models.Task
	settings map[string]models.Setting
	nextVid  int64
	nextTask int64
	rng      *rand.Rand
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*models.User),
		videos:   make(map[int64]*models.Video),
		tasks:    make(map[int64]*models.Task),
		settings: make(map[string]models.Setting),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetClock overrides the clock used for timestamps
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetSeed reseeds the random source used to pick videos
func (m *MemoryStore) SetSeed(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// Health always succeeds
func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) details(t *models.Task) *models.TaskDetails {
	return &models.TaskDetails{Task: *t, Video: *m.videos[t.VideoID]}
}

// Users

func (m *MemoryStore) GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		u = &models.User{
			ID:        id,
			Username:  username,
			Status:    models.UserStatusActive,
			CreatedAt: m.now(),
		}
		m.users[id] = u
	} else if username != "" {
		u.Username = username
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) SetUserStatus(ctx context.Context, id int64, status string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Status = status
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) SetSubscription(ctx context.Context, id int64, expiry time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsSubscribed = true
	u.SubscriptionExpiry = &expiry
	cp := *u
	return &cp, nil
}

// DeleteUser removes the user together with their videos and every task
// that references the user or one of those videos
func (m *MemoryStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	for tid, t := range m.tasks {
		if t.ViewerID == id || m.videos[t.VideoID].OwnerID == id {
			delete(m.tasks, tid)
		}
	}
	for vid, v := range m.videos {
		if v.OwnerID == id {
			delete(m.videos, vid)
		}
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) UserStats(ctx context.Context, id int64) (*models.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	stats := &models.UserStats{UserID: u.ID, Status: u.Status, Strikes: u.Strikes}
	for _, v := range m.videos {
		if v.OwnerID != id {
			continue
		}
		if v.IsActive {
			stats.ActiveVideos++
		}
		stats.ViewsReceived += v.ViewsReceived
	}
	for _, t := range m.tasks {
		if t.ViewerID == id && t.Status == models.TaskStatusCompleted {
			stats.TasksCompleted++
		}
	}
	return stats, nil
}

// Videos

func (m *MemoryStore) countActive(ownerID int64) int {
	n := 0
	for _, v := range m.videos {
		if v.OwnerID == ownerID && v.IsActive {
			n++
		}
	}
	return n
}

func (m *MemoryStore) CreateVideo(ctx context.Context, video *models.Video, maxActive int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[video.OwnerID]; !ok {
		return ErrUserNotFound
	}
	if m.countActive(video.OwnerID) >= maxActive {
		return ErrVideoLimitReached
	}

	m.nextVid++
	video.ID = m.nextVid
	video.IsActive = true
	video.ViewsReceived = 0
	video.CreatedAt = m.now()
	cp := *video
	m.videos[video.ID] = &cp
	return nil
}

func (m *MemoryStore) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) ListVideosByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var videos []*models.Video
	for _, v := range m.videos {
		if v.OwnerID == ownerID {
			cp := *v
			videos = append(videos, &cp)
		}
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].ID > videos[j].ID })
	return videos, nil
}

func (m *MemoryStore) CountActiveVideos(ctx context.Context, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActive(ownerID), nil
}

func (m *MemoryStore) SetVideoActive(ctx context.Context, ownerID, videoID int64, active bool) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok || v.OwnerID != ownerID {
		return nil, ErrVideoNotFound
	}
	v.IsActive = active
	cp := *v
	return &cp, nil
}

// Tasks

func (m *MemoryStore) AssignTask(ctx context.Context, viewerID int64) (*models.TaskDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]bool)
	for _, t := range m.tasks {
		if t.ViewerID == viewerID {
			seen[t.VideoID] = true
		}
	}

	var eligible []int64
	for id, v := range m.videos {
		owner := m.users[v.OwnerID]
		if v.OwnerID == viewerID || !v.IsActive || seen[id] {
			continue
		}
		if owner == nil || owner.Status != models.UserStatusActive {
			continue
		}
		eligible = append(eligible, id)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleVideo
	}
	// Map iteration order is not uniform, so sort before drawing
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
	videoID := eligible[m.rng.Intn(len(eligible))]

	now := m.now()
	m.nextTask++
	t := &models.Task{
		ID:        m.nextTask,
		VideoID:   videoID,
		ViewerID:  viewerID,
		Status:    models.TaskStatusAssigned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tasks[t.ID] = t
	return m.details(t), nil
}

func (m *MemoryStore) GetTask(ctx context.Context, id int64) (*models.TaskDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return m.details(t), nil
}

func (m *MemoryStore) SubmitProof(ctx context.Context, taskID, viewerID int64, proofRef, proofKind string) (*models.TaskDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.ViewerID != viewerID {
		return nil, ErrTaskNotFound
	}
	if t.Status != models.TaskStatusAssigned {
		return nil, &TransitionError{TaskID: taskID, Current: t.Status}
	}
	t.Status = models.TaskStatusProofSubmitted
	t.ProofRef = proofRef
	t.ProofKind = proofKind
	t.UpdatedAt = m.now()
	return m.details(t), nil
}

func (m *MemoryStore) ResolveTask(ctx context.Context, res Resolution) (*ResolvedTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[res.TaskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	v := m.videos[t.VideoID]

	out := &ResolvedTask{}
	if t.Status == models.TaskStatusProofSubmitted {
		out.Applied = true
		t.Status = res.To
		t.RejectionReason = res.Reason
		t.UpdatedAt = m.now()
		if res.IncrementViews {
			v.ViewsReceived++
		}

		switch res.Strike {
		case StrikeViewer:
			out.StrikedUserID = t.ViewerID
		case StrikeOwner:
			out.StrikedUserID = v.OwnerID
		}
		if u, ok := m.users[out.StrikedUserID]; ok && res.Strike != StrikeNone {
			u.Strikes++
			out.Strikes = u.Strikes
		}
	}
	out.Task, out.Video = *t, *v
	return out, nil
}

func (m *MemoryStore) ExpireOutstandingTasks(ctx context.Context, userID int64) ([]*models.TaskDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*models.TaskDetails
	now := m.now()
	for _, t := range m.tasks {
		if !t.IsOutstanding() {
			continue
		}
		if t.ViewerID != userID && m.videos[t.VideoID].OwnerID != userID {
			continue
		}
		t.Status = models.TaskStatusExpired
		t.UpdatedAt = now
		expired = append(expired, m.details(t))
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Task.ID < expired[j].Task.ID })
	return expired, nil
}

func (m *MemoryStore) ListTasksAwaitingReview(ctx context.Context) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []*models.Task
	for _, t := range m.tasks {
		if t.Status == models.TaskStatusProofSubmitted {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *MemoryStore) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func (m *MemoryStore) PendingReviewForOwner(ctx context.Context, ownerID int64) (*models.TaskDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *models.Task
	for _, t := range m.tasks {
		if t.Status != models.TaskStatusProofSubmitted || m.videos[t.VideoID].OwnerID != ownerID {
			continue
		}
		if oldest == nil || t.UpdatedAt.Before(oldest.UpdatedAt) ||
			(t.UpdatedAt.Equal(oldest.UpdatedAt) && t.ID < oldest.ID) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, ErrTaskNotFound
	}
	return m.details(oldest), nil
}

// Settings

func (m *MemoryStore) ListSettings(ctx context.Context) ([]models.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings := make([]models.Setting, 0, len(m.settings))
	for _, s := range m.settings {
		settings = append(settings, s)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Name < settings[j].Name })
	return settings, nil
}

func (m *MemoryStore) SaveSetting(ctx context.Context, setting models.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[setting.Name] = setting
	return nil
}
