package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/assistant/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAPITokenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateAPIToken(ctx, &domain.APIToken{
		Token:      "tok_abc",
		UserID:     "u1",
		BusinessID: "b1",
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)

	rec, err := s.GetAPIToken(ctx, "tok_abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "b1", rec.BusinessID)

	missing, err := s.GetAPIToken(ctx, "tok_nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetChatMessagesReturnsMostRecentOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := s.CreateChatMessage(ctx, &domain.ChatMessage{
			MessageID:  "msg_" + string(rune('a'+i)),
			BusinessID: "b1",
			UserID:     "u1",
			Role:       "user",
			Content:    string(rune('a' + i)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	messages, err := s.GetChatMessages(ctx, "b1", "u1", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// The newest three, oldest first.
	assert.Equal(t, "c", messages[0].Content)
	assert.Equal(t, "d", messages[1].Content)
	assert.Equal(t, "e", messages[2].Content)
}

func TestListCompletedJobsFiltersByTenantAndWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	recent := now.Add(-24 * time.Hour)
	old := now.Add(-90 * 24 * time.Hour)

	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j1", BusinessID: "b1", CustomerID: "c1", Title: "recent",
		Status: "completed", CompletedAt: &recent, CreatedAt: old,
	}))
	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j2", BusinessID: "b1", CustomerID: "c1", Title: "too old",
		Status: "completed", CompletedAt: &old, CreatedAt: old,
	}))
	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j3", BusinessID: "b2", CustomerID: "c2", Title: "other tenant",
		Status: "completed", CompletedAt: &recent, CreatedAt: old,
	}))
	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j4", BusinessID: "b1", CustomerID: "c1", Title: "not done",
		Status: "pending", CreatedAt: old,
	}))

	jobs, err := s.ListCompletedJobs(ctx, "b1", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].JobID)
}

func TestUpdateJobScheduleReportsMissingJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j1", BusinessID: "b1", CustomerID: "c1", Title: "t",
		Status: "pending", CreatedAt: time.Now(),
	}))

	when := time.Now().Add(48 * time.Hour)
	changed, err := s.UpdateJobSchedule(ctx, "b1", "j1", &when)
	require.NoError(t, err)
	assert.True(t, changed)

	job, err := s.GetJob(ctx, "b1", "j1")
	require.NoError(t, err)
	require.NotNil(t, job.ScheduledFor)
	assert.Equal(t, "scheduled", job.Status)

	// Clearing the schedule reverts to pending.
	changed, err = s.UpdateJobSchedule(ctx, "b1", "j1", nil)
	require.NoError(t, err)
	assert.True(t, changed)

	job, err = s.GetJob(ctx, "b1", "j1")
	require.NoError(t, err)
	assert.Nil(t, job.ScheduledFor)
	assert.Equal(t, "pending", job.Status)

	changed, err = s.UpdateJobSchedule(ctx, "b1", "j_missing", &when)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateInvoice(ctx, &domain.Invoice{
		InvoiceID: "inv_1", BusinessID: "b1", JobID: "j1", CustomerID: "c1",
		AmountCents: 12500, Status: "draft", CreatedAt: time.Now(),
	}))

	changed, err := s.UpdateInvoiceStatus(ctx, "b1", "inv_1", "void")
	require.NoError(t, err)
	assert.True(t, changed)

	inv, err := s.GetInvoice(ctx, "b1", "inv_1")
	require.NoError(t, err)
	assert.Equal(t, "void", inv.Status)

	changed, err = s.UpdateInvoiceStatus(ctx, "b1", "inv_missing", "void")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDeleteQuoteIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateQuote(ctx, &domain.Quote{
		QuoteID: "quo_1", BusinessID: "b1", CustomerID: "c1",
		AmountCents: 9900, Status: "open", CreatedAt: time.Now(),
	}))

	removed, err := s.DeleteQuote(ctx, "b1", "quo_1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteQuote(ctx, "b1", "quo_1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPerIDOperationsAreTenantScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, &domain.Job{
		JobID: "j1", BusinessID: "b1", CustomerID: "c1", Title: "t",
		Status: "pending", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.CreateInvoice(ctx, &domain.Invoice{
		InvoiceID: "inv_1", BusinessID: "b1", JobID: "j1", CustomerID: "c1",
		AmountCents: 12500, Status: "draft", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.CreateQuote(ctx, &domain.Quote{
		QuoteID: "quo_1", BusinessID: "b1", CustomerID: "c1",
		AmountCents: 9900, Status: "open", CreatedAt: time.Now(),
	}))

	// A different business sees none of b1's rows through the per-id paths.
	job, err := s.GetJob(ctx, "b2", "j1")
	require.NoError(t, err)
	assert.Nil(t, job)

	when := time.Now().Add(48 * time.Hour)
	changed, err := s.UpdateJobSchedule(ctx, "b2", "j1", &when)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.UpdateInvoiceStatus(ctx, "b2", "inv_1", "void")
	require.NoError(t, err)
	assert.False(t, changed)

	removed, err := s.DeleteQuote(ctx, "b2", "quo_1")
	require.NoError(t, err)
	assert.False(t, removed)

	// The rows are untouched for their own tenant.
	inv, err := s.GetInvoice(ctx, "b1", "inv_1")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "draft", inv.Status)

	quote, err := s.GetQuote(ctx, "b1", "quo_1")
	require.NoError(t, err)
	assert.NotNil(t, quote)
}

func TestPendingPlanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &domain.PendingPlanRecord{
		Plan: &domain.ExecutionPlan{
			PlanID: "plan_11112222",
			Name:   "Invoice completed jobs",
			Status: domain.PlanStatusPending,
			Steps: []*domain.PlanStep{
				{StepID: "step_aaaa0001", Name: "Create invoice", ToolName: "create_invoice", Status: domain.StepStatusPending},
			},
			CreatedAt: time.Now(),
		},
		PatternID:   "batch_invoice",
		Entities:    map[string]any{"jobs": []any{map[string]any{"job_id": "j1"}}},
		OwnerUserID: "u1",
		BusinessID:  "b1",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.CreatePendingPlan(ctx, rec))

	got, err := s.GetPendingPlan(ctx, "plan_11112222")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "batch_invoice", got.PatternID)
	assert.Equal(t, "u1", got.OwnerUserID)
	require.Len(t, got.Plan.Steps, 1)
	assert.Equal(t, "create_invoice", got.Plan.Steps[0].ToolName)

	missing, err := s.GetPendingPlan(ctx, "plan_ffffffff")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetMostRecentPendingPlan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"plan_00000001", "plan_00000002"} {
		rec := &domain.PendingPlanRecord{
			Plan:        &domain.ExecutionPlan{PlanID: id, Name: "p", Status: domain.PlanStatusPending, CreatedAt: base},
			PatternID:   "batch_invoice",
			OwnerUserID: "u1",
			BusinessID:  "b1",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreatePendingPlan(ctx, rec))
	}

	got, err := s.GetMostRecentPendingPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "plan_00000002", got.Plan.PlanID)

	none, err := s.GetMostRecentPendingPlan(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeletePendingPlanClaimsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &domain.PendingPlanRecord{
		Plan:        &domain.ExecutionPlan{PlanID: "plan_deadbeef", Name: "p", Status: domain.PlanStatusPending, CreatedAt: time.Now()},
		PatternID:   "batch_invoice",
		OwnerUserID: "u1",
		BusinessID:  "b1",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.CreatePendingPlan(ctx, rec))

	// A foreign user cannot claim the plan, and the failed attempt leaves
	// the row in place for its owner.
	claimed, err := s.DeletePendingPlan(ctx, "plan_deadbeef", "u2")
	require.NoError(t, err)
	assert.False(t, claimed)

	still, err := s.GetPendingPlan(ctx, "plan_deadbeef")
	require.NoError(t, err)
	assert.NotNil(t, still)

	claimed, err = s.DeletePendingPlan(ctx, "plan_deadbeef", "u1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.DeletePendingPlan(ctx, "plan_deadbeef", "u1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDeleteExpiredPendingPlans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mk := func(id string, createdAt time.Time) {
		rec := &domain.PendingPlanRecord{
			Plan:        &domain.ExecutionPlan{PlanID: id, Name: "p", Status: domain.PlanStatusPending, CreatedAt: createdAt},
			PatternID:   "batch_invoice",
			OwnerUserID: "u1",
			BusinessID:  "b1",
			CreatedAt:   createdAt,
		}
		require.NoError(t, s.CreatePendingPlan(ctx, rec))
	}
	mk("plan_0000000a", now.Add(-2*time.Hour))
	mk("plan_0000000b", now.Add(-time.Minute))

	removed, err := s.DeleteExpiredPendingPlans(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	survivor, err := s.GetPendingPlan(ctx, "plan_0000000b")
	require.NoError(t, err)
	assert.NotNil(t, survivor)
}
