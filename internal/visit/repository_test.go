package visit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
)

var fixedNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestScheduleAndList(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	v, err := repo.Schedule(ctx, propID, "buyer", "2026-02-12", "met with Brian")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if v.ID == "" {
		t.Error("expected generated ID")
	}
	if v.PropertyID != propID {
		t.Errorf("property_id = %q, want %q", v.PropertyID, propID)
	}
	if v.Status != Scheduled {
		t.Errorf("status = %q, want %q", v.Status, Scheduled)
	}
	if v.Notes != "met with Brian" {
		t.Errorf("notes = %q, want %q", v.Notes, "met with Brian")
	}

	visits, err := repo.ListByUser(ctx, "buyer")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visits) != 1 {
		t.Fatalf("got %d visits, want 1", len(visits))
	}
}

func TestScheduleErrors(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		property string
		user     string
		date     string
		want     apperr.Kind
	}{
		{"invalid date", propID, "buyer", "not-a-date", apperr.Validation},
		{"date in the past", propID, "buyer", "2026-02-09", apperr.Validation},
		{"missing user", propID, "", "2026-02-12", apperr.Validation},
		{"unknown property", "nope", "buyer", "2026-02-12", apperr.NotFound},
		{"owner visiting own listing", propID, "owner", "2026-02-12", apperr.Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Schedule(ctx, tt.property, tt.user, tt.date, "")
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("kind = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestListOrderByDateDesc(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	for _, d := range []string{"2026-02-15", "2026-04-01", "2026-03-01"} {
		if _, err := repo.Schedule(ctx, propID, "buyer", d, ""); err != nil {
			t.Fatalf("schedule %s: %v", d, err)
		}
	}

	visits, err := repo.ListByPropertyID(ctx, propID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visits) != 3 {
		t.Fatalf("got %d visits, want 3", len(visits))
	}
	if visits[0].VisitDate != "2026-04-01" {
		t.Errorf("first = %q, want newest", visits[0].VisitDate)
	}
	if visits[2].VisitDate != "2026-02-15" {
		t.Errorf("last = %q, want oldest", visits[2].VisitDate)
	}
}

func TestCancel(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	v, err := repo.Schedule(ctx, propID, "buyer", "2026-02-12", "")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if _, err := repo.Cancel(ctx, v.ID, "someone-else"); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("cancel by stranger err = %v, want forbidden", err)
	}

	got, err := repo.Cancel(ctx, v.ID, "buyer")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != Cancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}

	if _, err := repo.Cancel(ctx, v.ID, "buyer"); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("second cancel err = %v, want conflict", err)
	}
}

func TestReschedule(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	v, err := repo.Schedule(ctx, propID, "buyer", "2026-02-12", "")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := repo.Reschedule(ctx, v.ID, "buyer", "2026-02-20")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got.VisitDate != "2026-02-20" {
		t.Errorf("visit_date = %q, want 2026-02-20", got.VisitDate)
	}
	if got.Status != Scheduled {
		t.Errorf("status = %q, want scheduled", got.Status)
	}

	if _, err := repo.Reschedule(ctx, v.ID, "buyer", "20/02/2026"); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("bad date err = %v, want validation", err)
	}
	if _, err := repo.Reschedule(ctx, v.ID, "buyer", "2026-02-01"); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("past date err = %v, want validation", err)
	}
	if got, _ := repo.Get(ctx, v.ID); got.VisitDate != "2026-02-20" {
		t.Errorf("visit_date = %q after rejected reschedule, want 2026-02-20", got.VisitDate)
	}
}

func TestScheduleTodayIsAllowed(t *testing.T) {
	repo, propID := testSetup(t)

	v, err := repo.Schedule(context.Background(), propID, "buyer", fixedNow.Format(DateLayout), "")
	if err != nil {
		t.Fatalf("schedule today: %v", err)
	}
	if v.VisitDate != "2026-02-10" {
		t.Errorf("visit_date = %q, want 2026-02-10", v.VisitDate)
	}
}

func TestComplete(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	past := insertVisit(t, repo, propID, "buyer", "2026-02-08")
	future, err := repo.Schedule(ctx, propID, "buyer", "2026-03-01", "")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := repo.Complete(ctx, past.ID, "buyer", "great light, small kitchen")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != Completed {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Notes != "great light, small kitchen" {
		t.Errorf("notes = %q", got.Notes)
	}

	if _, err := repo.Complete(ctx, future.ID, "buyer", ""); !apperr.IsKind(err, apperr.Precondition) {
		t.Errorf("future complete err = %v, want precondition", err)
	}
	if _, err := repo.Complete(ctx, past.ID, "buyer", ""); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("re-complete err = %v, want conflict", err)
	}

	today, err := repo.Schedule(ctx, propID, "buyer", "2026-02-10", "")
	if err != nil {
		t.Fatalf("schedule today: %v", err)
	}
	if _, err := repo.Complete(ctx, today.ID, "buyer", "on time"); err != nil {
		t.Errorf("complete on the visit date: %v", err)
	}
}

func TestHasCompletedVisit(t *testing.T) {
	repo, propID := testSetup(t)
	ctx := context.Background()

	ok, err := repo.HasCompletedVisit(ctx, propID, "buyer")
	if err != nil {
		t.Fatalf("has completed: %v", err)
	}
	if ok {
		t.Error("expected no completed visit yet")
	}

	v := insertVisit(t, repo, propID, "buyer", "2026-02-01")
	if ok, _ := repo.HasCompletedVisit(ctx, propID, "buyer"); ok {
		t.Error("scheduled visit must not count")
	}

	if _, err := repo.Complete(ctx, v.ID, "buyer", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	ok, err = repo.HasCompletedVisit(ctx, propID, "buyer")
	if err != nil {
		t.Fatalf("has completed: %v", err)
	}
	if !ok {
		t.Error("expected completed visit")
	}

	if ok, _ := repo.HasCompletedVisit(ctx, propID, "other"); ok {
		t.Error("another user's visit must not count")
	}
}

func TestStatusValid(t *testing.T) {
	tests := []struct {
		s    Status
		want bool
	}{
		{Scheduled, true},
		{Completed, true},
		{Cancelled, true},
		{"cancelling", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.s.IsValid(); got != tt.want {
			t.Errorf("Status(%q).IsValid() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

// insertVisit seeds a scheduled visit directly, bypassing the upcoming-date check.
func insertVisit(t *testing.T, repo *Repository, propID, userID, date string) *Visit {
	t.Helper()
	id := "visit-" + date
	_, err := repo.db.ExecContext(context.Background(),
		`INSERT INTO visits (id, property_id, user_id, visit_date, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		id, propID, userID, date, string(Scheduled), fixedNow, fixedNow,
	)
	if err != nil {
		t.Fatalf("insert visit: %v", err)
	}
	v, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get visit: %v", err)
	}
	return v
}

func testSetup(t *testing.T) (*Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	_, err = d.Exec(
		`INSERT INTO properties (id, owner_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"prop-1", "owner", "123 Test St", fixedNow, fixedNow,
	)
	if err != nil {
		t.Fatalf("insert property: %v", err)
	}

	return NewRepository(d).WithClock(func() time.Time { return fixedNow }), "prop-1"
}
