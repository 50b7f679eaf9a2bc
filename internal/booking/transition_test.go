package booking

import (
	"testing"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
)

func testJob(status models.JobStatus, due time.Time) *models.Job {
	return &models.Job{
		ID:             7,
		CustomerID:     3,
		FromLanguageID: 11,
		Due:            due,
		Duration:       60,
		Status:         status,
		JobType:        models.JobTypePaid,
		CreatedAt:      due.Add(-48 * time.Hour),
	}
}

func hasIntent(intents []NotificationIntent, kind IntentKind) bool {
	for _, in := range intents {
		if in.Kind == kind {
			return true
		}
	}
	return false
}

func TestTimedoutToPendingReopens(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusTimedout, now.Add(30*time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusPending})
	if !d.StatusChanged {
		t.Fatalf("expected status change, got rejection %q", d.StatusRejectedMsg)
	}
	if d.Job.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", d.Job.Status)
	}
	if !d.Job.CreatedAt.Equal(now) {
		t.Errorf("created_at not reset: %v", d.Job.CreatedAt)
	}
	want := now.Add(16 * time.Hour)
	if !d.Job.WillExpireAt.Equal(want) {
		t.Errorf("will_expire_at = %v, want %v", d.Job.WillExpireAt, want)
	}
	if !hasIntent(d.Notifications, IntentJobReopened) || !hasIntent(d.Notifications, IntentBroadcastPool) {
		t.Errorf("missing reopen intents: %+v", d.Notifications)
	}
}

func TestTimedoutToAssignedRequiresTranslatorChange(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusTimedout, now.Add(48*time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusAssigned})
	if d.StatusChanged {
		t.Fatal("transition without translator change must be rejected")
	}

	d = eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusAssigned, TranslatorID: 42})
	if !d.StatusChanged || !d.TranslatorChanged {
		t.Fatalf("expected accepted transition with reassignment, got %+v", d)
	}
	if d.Reassign == nil || d.Reassign.NewAssignment.TranslatorID != 42 {
		t.Fatalf("bad reassign plan: %+v", d.Reassign)
	}
	if !hasIntent(d.Notifications, IntentJobAccepted) {
		t.Errorf("missing job-accepted intent: %+v", d.Notifications)
	}
}

func TestCompletedOnlyReachesTimedoutWithComment(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusCompleted, now.Add(48*time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusPending})
	if d.StatusChanged {
		t.Fatal("completed -> pending must be rejected")
	}

	d = eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusTimedout})
	if d.StatusChanged {
		t.Fatal("completed -> timedout without comment must be rejected")
	}

	d = eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusTimedout, AdminComments: "no-show"})
	if !d.StatusChanged {
		t.Fatalf("expected accepted transition, got %q", d.StatusRejectedMsg)
	}
	if d.Job.AdminComments != "no-show" {
		t.Errorf("admin comment not stored: %q", d.Job.AdminComments)
	}
}

func TestStartedToCompletedNeedsSessionTime(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusStarted, now.Add(2*time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusCompleted, AdminComments: "done"})
	if d.StatusChanged {
		t.Fatal("completion without session time must be rejected")
	}

	d = eng.ApplyTransition(job, nil, ChangeRequest{
		Status: models.StatusCompleted, AdminComments: "done", SessionTime: "1:30:00",
	})
	if !d.StatusChanged {
		t.Fatalf("expected accepted transition, got %q", d.StatusRejectedMsg)
	}
	if d.Job.EndAt == nil || !d.Job.EndAt.Equal(now) {
		t.Errorf("end_at = %v, want %v", d.Job.EndAt, now)
	}
	if d.Job.SessionTime != "1:30:00" {
		t.Errorf("session_time = %q", d.Job.SessionTime)
	}

	var forTexts []string
	for _, in := range d.Notifications {
		if in.Kind == IntentSessionEnded {
			forTexts = append(forTexts, in.Data["for_text"])
			if got := in.Data["session_time"]; got != "1 tim 30 min" {
				t.Errorf("session text = %q", got)
			}
		}
	}
	if len(forTexts) != 2 || forTexts[0] != "faktura" || forTexts[1] != "lön" {
		t.Errorf("session-ended recipients = %v", forTexts)
	}
}

func TestPendingToAssignedWithTranslator(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusPending, now.Add(48*time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusAssigned, TranslatorID: 9})
	if !d.StatusChanged {
		t.Fatalf("expected accepted transition, got %q", d.StatusRejectedMsg)
	}
	for _, kind := range []IntentKind{IntentJobAccepted, IntentNewTranslator, IntentSessionStartReminder} {
		if !hasIntent(d.Notifications, kind) {
			t.Errorf("missing %s intent", kind)
		}
	}
	reminders := 0
	for _, in := range d.Notifications {
		if in.Kind == IntentSessionStartReminder {
			reminders++
		}
	}
	if reminders != 2 {
		t.Errorf("reminders = %d, want one per party", reminders)
	}
}

func TestAssignedWithdrawNotifiesBothParties(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusAssigned, now.Add(48*time.Hour))
	current := &models.TranslatorAssignment{ID: 5, JobID: job.ID, TranslatorID: 9, AssignedAt: now.Add(-time.Hour)}

	d := eng.ApplyTransition(job, current, ChangeRequest{Status: models.StatusWithdrawBefore24})
	if !d.StatusChanged {
		t.Fatalf("expected accepted transition, got %q", d.StatusRejectedMsg)
	}
	if !hasIntent(d.Notifications, IntentCancelledCustomer) || !hasIntent(d.Notifications, IntentCancelledTranslator) {
		t.Errorf("missing cancellation intents: %+v", d.Notifications)
	}
}

func TestAssignedToTimedoutRequiresComment(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusAssigned, now.Add(48*time.Hour))

	if d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusTimedout}); d.StatusChanged {
		t.Fatal("assigned -> timedout without comment must be rejected")
	}
}

func TestPastDueSuppressesNotifications(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusPending, now.Add(-time.Hour))

	d := eng.ApplyTransition(job, nil, ChangeRequest{Status: models.StatusWithdrawBefore24})
	if !d.StatusChanged {
		t.Fatalf("expected status change, got %q", d.StatusRejectedMsg)
	}
	if len(d.Notifications) != 0 {
		t.Errorf("past-due change must be silent, got %+v", d.Notifications)
	}
}

func TestDueImmutableAfterSessionStart(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusStarted, now.Add(time.Hour))
	newDue := now.Add(5 * time.Hour)

	d := eng.ApplyTransition(job, nil, ChangeRequest{Due: &newDue})
	if !d.Job.Due.Equal(job.Due) {
		t.Errorf("due mutated on a started job: %v", d.Job.Due)
	}
	if d.StatusRejectedMsg == "" {
		t.Error("expected rejection message")
	}
}

func TestDueChangeOnPendingJob(t *testing.T) {
	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := NewTransitionEngine(FixedClock{T: now})
	job := testJob(models.StatusPending, now.Add(24*time.Hour))
	newDue := now.Add(72 * time.Hour)

	d := eng.ApplyTransition(job, nil, ChangeRequest{Due: &newDue})
	if !d.Accepted || !d.Job.Due.Equal(newDue) {
		t.Fatalf("due change not applied: %+v", d)
	}
	if !hasIntent(d.Notifications, IntentDueChanged) {
		t.Errorf("missing due-changed intent: %+v", d.Notifications)
	}
}
