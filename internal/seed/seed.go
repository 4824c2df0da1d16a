// Package seed loads a small demo dataset for local development.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldline/assistant/internal/domain"
	store "github.com/fieldline/assistant/internal/repository"
)

// Demo inserts a demo tenant: one API token and a handful of jobs in
// various states. Token "demo-token" maps to user usr_demo in business
// biz_demo.
func Demo(ctx context.Context, st store.Store) error {
	token := &domain.APIToken{
		Token:      "demo-token",
		UserID:     "usr_demo",
		BusinessID: "biz_demo",
		CreatedAt:  time.Now(),
	}
	if err := st.CreateAPIToken(ctx, token); err != nil {
		return fmt.Errorf("seed api token: %w", err)
	}

	now := time.Now()
	completed := []struct {
		id, customer, title string
		daysAgo             int
	}{
		{"job_a1", "cus_alvarez", "Water heater replacement", 3},
		{"job_b2", "cus_bennett", "Furnace inspection", 7},
		{"job_c3", "cus_osei", "Duct cleaning", 12},
	}
	for _, j := range completed {
		done := now.AddDate(0, 0, -j.daysAgo)
		job := &domain.Job{
			JobID:       j.id,
			BusinessID:  "biz_demo",
			CustomerID:  j.customer,
			Title:       j.title,
			Status:      "completed",
			CompletedAt: &done,
			CreatedAt:   done.AddDate(0, 0, -2),
		}
		if err := st.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("seed job %s: %w", j.id, err)
		}
	}

	pending := &domain.Job{
		JobID:      "job_d4",
		BusinessID: "biz_demo",
		CustomerID: "cus_alvarez",
		Title:      "Annual maintenance visit",
		Status:     "pending",
		CreatedAt:  now,
	}
	if err := st.CreateJob(ctx, pending); err != nil {
		return fmt.Errorf("seed job %s: %w", pending.JobID, err)
	}

	return nil
}
