package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/planner"
	"github.com/fieldline/assistant/internal/policy"
	"github.com/fieldline/assistant/internal/testutil"
)

func newToolEnv(t *testing.T) (*planner.Registry, planner.ExecContext) {
	t.Helper()

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	registry := planner.NewRegistry(engine)
	RegisterBuiltins(registry)

	db := testutil.NewTestSQLiteStore(t)
	ec := planner.ExecContext{
		UserID:     "u1",
		BusinessID: "b1",
		Store:      db,
		Log:        testutil.NewTestLogger(t),
	}
	return registry, ec
}

func seedJob(t *testing.T, ec planner.ExecContext, jobID, status string) {
	t.Helper()
	job := &domain.Job{
		JobID:      jobID,
		BusinessID: ec.BusinessID,
		CustomerID: "c1",
		Title:      "test job",
		Status:     status,
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
	if status == "completed" {
		done := time.Now().Add(-24 * time.Hour)
		job.CompletedAt = &done
	}
	require.NoError(t, ec.Store.CreateJob(context.Background(), job))
}

func TestRegisterBuiltinsExposesCatalog(t *testing.T) {
	registry, _ := newToolEnv(t)

	names := []string{}
	for _, d := range registry.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"create_invoice", "create_quote", "delete_quote", "list_completed_jobs",
		"schedule_job", "send_reminder", "unschedule_job", "void_invoice",
	}, names)
}

func TestListCompletedJobs(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "completed")
	seedJob(t, ec, "j2", "pending")

	result, err := registry.Execute(context.Background(), "list_completed_jobs", json.RawMessage(`{"days": 30}`), ec)
	require.NoError(t, err)

	var out struct {
		Jobs  []domain.Job `json:"jobs"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, "j1", out.Jobs[0].JobID)
}

func TestCreateAndVoidInvoice(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "completed")
	ctx := context.Background()

	result, err := registry.Execute(ctx, "create_invoice", json.RawMessage(`{"job_id":"j1","amount_cents":12500}`), ec)
	require.NoError(t, err)

	var created map[string]string
	require.NoError(t, json.Unmarshal(result, &created))
	require.NotEmpty(t, created["invoice_id"])

	inv, err := ec.Store.GetInvoice(ctx, ec.BusinessID, created["invoice_id"])
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "draft", inv.Status)
	assert.Equal(t, "c1", inv.CustomerID)

	// void_invoice accepts create_invoice's result verbatim.
	_, err = registry.Execute(ctx, "void_invoice", result, ec)
	require.NoError(t, err)

	inv, err = ec.Store.GetInvoice(ctx, ec.BusinessID, created["invoice_id"])
	require.NoError(t, err)
	assert.Equal(t, "void", inv.Status)
}

func TestCreateInvoiceUnknownJob(t *testing.T) {
	registry, ec := newToolEnv(t)

	_, err := registry.Execute(context.Background(), "create_invoice", json.RawMessage(`{"job_id":"nope","amount_cents":100}`), ec)
	var failed *domain.ToolExecutionFailedError
	require.ErrorAs(t, err, &failed)
}

func TestCreateInvoiceBlockedByPolicy(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "completed")

	// Over the $50k guardrail.
	_, err := registry.Execute(context.Background(), "create_invoice", json.RawMessage(`{"job_id":"j1","amount_cents":6000000}`), ec)
	var failed *domain.ToolExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Error(), "blocked by policy")
}

func TestScheduleAndUnscheduleJob(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "pending")
	ctx := context.Background()

	_, err := registry.Execute(ctx, "schedule_job", json.RawMessage(`{"job_id":"j1","date":"2026-09-15"}`), ec)
	require.NoError(t, err)

	job, err := ec.Store.GetJob(ctx, ec.BusinessID, "j1")
	require.NoError(t, err)
	assert.Equal(t, "scheduled", job.Status)
	require.NotNil(t, job.ScheduledFor)

	_, err = registry.Execute(ctx, "unschedule_job", json.RawMessage(`{"job_id":"j1"}`), ec)
	require.NoError(t, err)

	job, err = ec.Store.GetJob(ctx, ec.BusinessID, "j1")
	require.NoError(t, err)
	assert.Equal(t, "pending", job.Status)
	assert.Nil(t, job.ScheduledFor)
}

func TestScheduleJobRejectsBadDate(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "pending")

	_, err := registry.Execute(context.Background(), "schedule_job", json.RawMessage(`{"job_id":"j1","date":"next tuesday"}`), ec)
	assert.Error(t, err)
}

func TestCreateAndDeleteQuote(t *testing.T) {
	registry, ec := newToolEnv(t)
	ctx := context.Background()

	result, err := registry.Execute(ctx, "create_quote", json.RawMessage(`{"customer_id":"c1","amount_cents":50000}`), ec)
	require.NoError(t, err)

	var created map[string]string
	require.NoError(t, json.Unmarshal(result, &created))

	quote, err := ec.Store.GetQuote(ctx, ec.BusinessID, created["quote_id"])
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, "open", quote.Status)

	_, err = registry.Execute(ctx, "delete_quote", result, ec)
	require.NoError(t, err)

	quote, err = ec.Store.GetQuote(ctx, ec.BusinessID, created["quote_id"])
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestToolsCannotTouchAnotherTenant(t *testing.T) {
	registry, ec := newToolEnv(t)
	seedJob(t, ec, "j1", "completed")
	seedJob(t, ec, "j2", "pending")
	ctx := context.Background()

	result, err := registry.Execute(ctx, "create_invoice", json.RawMessage(`{"job_id":"j1","amount_cents":12500}`), ec)
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal(result, &created))

	quoteResult, err := registry.Execute(ctx, "create_quote", json.RawMessage(`{"customer_id":"c1","amount_cents":50000}`), ec)
	require.NoError(t, err)

	// The same ids presented by a caller from another business behave as
	// not found.
	outsider := ec
	outsider.BusinessID = "b2"

	var failed *domain.ToolExecutionFailedError
	_, err = registry.Execute(ctx, "create_invoice", json.RawMessage(`{"job_id":"j1","amount_cents":100}`), outsider)
	require.ErrorAs(t, err, &failed)

	_, err = registry.Execute(ctx, "void_invoice", result, outsider)
	require.ErrorAs(t, err, &failed)

	_, err = registry.Execute(ctx, "schedule_job", json.RawMessage(`{"job_id":"j2","date":"2026-09-15"}`), outsider)
	require.ErrorAs(t, err, &failed)

	_, err = registry.Execute(ctx, "delete_quote", quoteResult, outsider)
	require.ErrorAs(t, err, &failed)

	// Nothing changed for the owning business.
	inv, err := ec.Store.GetInvoice(ctx, ec.BusinessID, created["invoice_id"])
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "draft", inv.Status)

	job, err := ec.Store.GetJob(ctx, ec.BusinessID, "j2")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "pending", job.Status)
	assert.Nil(t, job.ScheduledFor)

	var quote map[string]string
	require.NoError(t, json.Unmarshal(quoteResult, &quote))
	q, err := ec.Store.GetQuote(ctx, ec.BusinessID, quote["quote_id"])
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestSendReminderValidatesChannel(t *testing.T) {
	registry, ec := newToolEnv(t)
	ctx := context.Background()

	_, err := registry.Execute(ctx, "send_reminder", json.RawMessage(`{"customer_id":"c1","channel":"email","body":"hello"}`), ec)
	require.NoError(t, err)

	// Blocked by the channel guardrail before the tool body runs.
	_, err = registry.Execute(ctx, "send_reminder", json.RawMessage(`{"customer_id":"c1","channel":"carrier_pigeon","body":"hello"}`), ec)
	var failed *domain.ToolExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Error(), "blocked by policy")
}
