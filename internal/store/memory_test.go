package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
)

func seedMission(t *testing.T, s *Memory, status models.MissionStatus) (*models.User, *models.Mission) {
	t.Helper()
	ctx := context.Background()
	client := models.NewUser("Client", uuid.NewString()+"@example.com", "hash", models.RoleClient)
	require.NoError(t, s.CreateUser(ctx, client))

	m := &models.Mission{
		ID: uuid.New(), ClientID: client.ID, Title: "Build an API", Description: "REST API",
		Category: "dev", Skills: []string{"go"}, Budget: 100000,
		Deadline: time.Now().Add(720 * time.Hour), Status: status,
	}
	require.NoError(t, s.CreateMission(ctx, m))
	return client, m
}

func TestMemoryUniqueEmail(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, models.NewUser("A", "a@example.com", "h", models.RoleClient)))
	err := s.CreateUser(ctx, models.NewUser("B", "a@example.com", "h", models.RoleFreelance))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryWithTxRollsBack(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	client, m := seedMission(t, s, models.MissionOpen)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		require.NoError(t, tx.IncrementProjectsPublished(ctx, client.ID))
		require.NoError(t, tx.IncrementMissionViews(ctx, m.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := s.GetUser(ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, u.ClientProfile.ProjectsPublished)

	got, err := s.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ViewsCount)
}

func TestMemoryConcurrentApplications(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, m := seedMission(t, s, models.MissionOpen)
	freelanceID := uuid.New()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateApplication(ctx, &models.Application{
				ID: uuid.New(), MissionID: m.ID, FreelanceID: freelanceID,
				CoverLetter: "me", ProposedBudget: 1, ProposedDeadline: time.Now().Add(time.Hour),
			})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicate):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)

	got, err := s.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ApplicationsCount)
}

func TestMemoryApplicationRequiresOpenMission(t *testing.T) {
	s := NewMemory()
	_, m := seedMission(t, s, models.MissionCompleted)
	err := s.CreateApplication(context.Background(), &models.Application{
		ID: uuid.New(), MissionID: m.ID, FreelanceID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrStale)
}

func TestMemoryOneActivePaymentPerMission(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	missionID := uuid.New()

	first := &models.Payment{ID: uuid.New(), MissionID: missionID, Amount: 10, Status: models.PaymentPending}
	require.NoError(t, s.CreatePayment(ctx, first))

	second := &models.Payment{ID: uuid.New(), MissionID: missionID, Amount: 10, Status: models.PaymentPending}
	assert.ErrorIs(t, s.CreatePayment(ctx, second), ErrDuplicate)

	first.Status = models.PaymentFailed
	require.NoError(t, s.UpdatePayment(ctx, first, models.PaymentPending))
	require.NoError(t, s.CreatePayment(ctx, second))

	// replaying the same transition finds the row already moved
	assert.ErrorIs(t, s.UpdatePayment(ctx, first, models.PaymentPending), ErrStale)
}

func TestMemoryRatingFromSumAndCount(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	u := models.NewUser("F", "f@example.com", "h", models.RoleFreelance)
	require.NoError(t, s.CreateUser(ctx, u))

	for _, score := range []int{5, 4, 4} {
		require.NoError(t, s.AddReviewScore(ctx, u.ID, score))
	}
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalReviews)
	assert.Equal(t, int64(13), got.RatingSum)
	assert.Equal(t, 4.33, got.Rating)
}

func TestMemoryListMissionsOrderingAndScope(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	client, older := seedMission(t, s, models.MissionOpen)

	urgent := &models.Mission{
		ID: uuid.New(), ClientID: client.ID, Title: "Fix checkout", Description: "Hotfix",
		Category: "dev", Budget: 5000, Deadline: time.Now().Add(48 * time.Hour),
		Status: models.MissionOpen, IsUrgent: true,
	}
	require.NoError(t, s.CreateMission(ctx, urgent))
	done := &models.Mission{
		ID: uuid.New(), ClientID: client.ID, Title: "Logo", Description: "Design",
		Category: "design", Budget: 5000, Deadline: time.Now().Add(48 * time.Hour),
		Status: models.MissionCompleted,
	}
	require.NoError(t, s.CreateMission(ctx, done))

	public, total, err := s.ListMissions(ctx, MissionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, urgent.ID, public[0].ID)
	assert.Equal(t, older.ID, public[1].ID)

	mine, total, err := s.ListMissions(ctx, MissionQuery{ClientID: &client.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, mine, 3)

	found, _, err := s.ListMissions(ctx, MissionQuery{Search: "HOTFIX", Skills: nil})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, urgent.ID, found[0].ID)

	bySkill, _, err := s.ListMissions(ctx, MissionQuery{Skills: []string{"rust", "go"}})
	require.NoError(t, err)
	require.Len(t, bySkill, 1)
	assert.Equal(t, older.ID, bySkill[0].ID)
}

func TestMemoryDeleteMissionCascades(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, m := seedMission(t, s, models.MissionOpen)
	fid := uuid.New()
	require.NoError(t, s.CreateApplication(ctx, &models.Application{ID: uuid.New(), MissionID: m.ID, FreelanceID: fid}))

	require.NoError(t, s.DeleteMission(ctx, m.ID, models.MissionOpen))

	_, err := s.GetMission(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	mine, err := s.ListFreelanceApplications(ctx, fid)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Page: 3, Limit: MaxLimit}, Page{Page: 3, Limit: 1000}.Normalize())
	assert.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
}

func TestMemoryListOpenCategories(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for i, cat := range []string{"web", "design", "web", "audio"} {
		m := &models.Mission{ID: uuid.New(), ClientID: uuid.New(), Title: "m", Category: cat, Budget: 10, Status: models.MissionOpen}
		require.NoError(t, s.CreateMission(ctx, m))
		if i == 3 {
			fid := uuid.New()
			require.NoError(t, s.TransitionMission(ctx, m.ID, MissionTransition{
				From: models.MissionOpen, To: models.MissionInProgress, FreelanceID: &fid, At: time.Now(),
			}))
		}
	}

	out, err := s.ListOpenCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"design", "web"}, out)
}
