package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbfs "github.com/tolkbridge/tolka/db"
	dbpkg "github.com/tolkbridge/tolka/internal/db"
	"github.com/tolkbridge/tolka/internal/models"
	sqlite "github.com/tolkbridge/tolka/internal/repository/sqlite"
	"github.com/tolkbridge/tolka/pkg/repository"
)

func setupRepo(t *testing.T) *sqlite.Repo {
	t.Helper()
	ctx := context.Background()

	d, err := dbpkg.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	return sqlite.New(d, nil)
}

func seedCustomer(t *testing.T, repo *sqlite.Repo, email string) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), &models.User{
		Role: models.RoleCustomer, Active: true, Email: email, Name: "Customer",
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return id
}

func seedTranslator(t *testing.T, repo *sqlite.Repo, email string, langs []int64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := repo.CreateUser(ctx, &models.User{
		Role: models.RoleTranslator, Active: true, Email: email, Name: "Translator",
	})
	if err != nil {
		t.Fatalf("seed translator: %v", err)
	}
	err = repo.UpsertTranslatorProfile(ctx, &models.TranslatorProfile{
		UserID:             id,
		TranslatorType:     models.TranslatorProfessional,
		Gender:             models.GenderFemale,
		CertificationLevel: models.LevelCertified,
		Town:               "Stockholm",
		Languages:          langs,
	})
	if err != nil {
		t.Fatalf("seed translator profile: %v", err)
	}
	return id
}

func TestJobCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateJob(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil job")
	}

	if _, err := repo.GetJob(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing job, got %v", err)
	}

	customerID := seedCustomer(t, repo, "crud@example.com")
	due := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	job := &models.Job{
		CustomerID:           customerID,
		FromLanguageID:       3,
		Due:                  due,
		Duration:             60,
		Status:               models.StatusPending,
		Gender:               models.GenderFemale,
		Certified:            models.CertifiedYes,
		CustomerPhysicalType: true,
		Town:                 "Stockholm",
		JobType:              models.JobTypePaid,
		UserEmail:            "crud@example.com",
		WillExpireAt:         due.Add(-24 * time.Hour),
		CreatedAt:            due.Add(-72 * time.Hour),
	}
	id, err := repo.CreateJob(ctx, job)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	got, err := repo.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if !got.Due.Equal(due) {
		t.Errorf("due mismatch: got %v want %v", got.Due, due)
	}
	if got.Status != models.StatusPending || got.Gender != models.GenderFemale {
		t.Errorf("unexpected status/gender after roundtrip: %s/%s", got.Status, got.Gender)
	}
	if !got.CustomerPhysicalType || got.CustomerPhoneType {
		t.Errorf("physical/phone flags lost in roundtrip")
	}
	if got.EndAt != nil {
		t.Errorf("expected nil end_at, got %v", got.EndAt)
	}

	got.Status = models.StatusTimedout
	got.AdminComments = "no taker"
	if err := repo.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	reread, err := repo.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob after update failed: %v", err)
	}
	if reread.Status != models.StatusTimedout || reread.AdminComments != "no taker" {
		t.Errorf("update not persisted: %s / %q", reread.Status, reread.AdminComments)
	}
}

func TestClaimJobOnlyOnce(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "claim@example.com")
	t1 := seedTranslator(t, repo, "t1@example.com", []int64{3})
	t2 := seedTranslator(t, repo, "t2@example.com", []int64{3})

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	jobID, err := repo.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 3, Due: now.Add(48 * time.Hour),
		Duration: 30, Status: models.StatusPending, Gender: models.GenderFemale,
		Certified: models.CertifiedYes, JobType: models.JobTypePaid,
		WillExpireAt: now.Add(24 * time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	ok, err := repo.ClaimJob(ctx, jobID, t1, now)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first claim to win")
	}

	ok, err = repo.ClaimJob(ctx, jobID, t2, now)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if ok {
		t.Fatalf("expected second claim to lose")
	}

	job, err := repo.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != models.StatusAssigned {
		t.Errorf("expected assigned status, got %s", job.Status)
	}

	a, err := repo.ActiveAssignment(ctx, jobID)
	if err != nil {
		t.Fatalf("ActiveAssignment failed: %v", err)
	}
	if a.TranslatorID != t1 {
		t.Errorf("expected winner %d on the assignment, got %d", t1, a.TranslatorID)
	}

	// Reopening the job makes it claimable again.
	if err := repo.CancelActiveAssignments(ctx, jobID, now.Add(time.Hour)); err != nil {
		t.Fatalf("CancelActiveAssignments failed: %v", err)
	}
	job.Status = models.StatusPending
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	ok, err = repo.ClaimJob(ctx, jobID, t2, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("claim after reopen errored: %v", err)
	}
	if !ok {
		t.Fatalf("expected claim to succeed after reopen")
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "assign@example.com")
	trID := seedTranslator(t, repo, "assign-t@example.com", []int64{1})

	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	jobID, err := repo.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 1, Due: now.Add(24 * time.Hour),
		Duration: 30, Status: models.StatusAssigned, Gender: models.GenderFemale,
		Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
		WillExpireAt: now.Add(12 * time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	aID, err := repo.CreateAssignment(ctx, &models.TranslatorAssignment{
		JobID: jobID, TranslatorID: trID, AssignedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}

	active, err := repo.ActiveAssignment(ctx, jobID)
	if err != nil {
		t.Fatalf("ActiveAssignment failed: %v", err)
	}
	if active.ID != aID || !active.Active() {
		t.Fatalf("expected active assignment %d", aID)
	}

	done := now.Add(25 * time.Hour)
	if err := repo.CompleteAssignment(ctx, aID, done, trID); err != nil {
		t.Fatalf("CompleteAssignment failed: %v", err)
	}
	if _, err := repo.ActiveAssignment(ctx, jobID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no active assignment after completion, got %v", err)
	}

	latest, err := repo.LatestCompletedAssignment(ctx, jobID)
	if err != nil {
		t.Fatalf("LatestCompletedAssignment failed: %v", err)
	}
	if latest.ID != aID || latest.CompletedBy != trID {
		t.Errorf("unexpected completed assignment: %+v", latest)
	}

	all, err := repo.Assignments(ctx, jobID)
	if err != nil {
		t.Fatalf("Assignments failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 assignment row, got %d", len(all))
	}
}

func TestSwapAssignmentReplacesActive(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "swap@example.com")
	oldTr := seedTranslator(t, repo, "swap-old@example.com", []int64{1})
	newTr := seedTranslator(t, repo, "swap-new@example.com", []int64{1})

	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	jobID, err := repo.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 1, Due: now.Add(48 * time.Hour),
		Duration: 60, Status: models.StatusAssigned, Gender: models.GenderFemale,
		Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
		WillExpireAt: now.Add(24 * time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	oldID, err := repo.CreateAssignment(ctx, &models.TranslatorAssignment{
		JobID: jobID, TranslatorID: oldTr, AssignedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}

	_, err = repo.SwapAssignment(ctx, oldID, &models.TranslatorAssignment{
		JobID: jobID, TranslatorID: newTr, AssignedAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SwapAssignment failed: %v", err)
	}

	active, err := repo.ActiveAssignment(ctx, jobID)
	if err != nil {
		t.Fatalf("ActiveAssignment failed: %v", err)
	}
	if active.TranslatorID != newTr {
		t.Errorf("expected new translator %d to be active, got %d", newTr, active.TranslatorID)
	}

	all, err := repo.Assignments(ctx, jobID)
	if err != nil {
		t.Fatalf("Assignments failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 assignment rows, got %d", len(all))
	}
	if all[0].CancelAt == nil {
		t.Errorf("expected original assignment to be cancelled")
	}
}

func TestHasActiveAssignmentAt(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "busy@example.com")
	trID := seedTranslator(t, repo, "busy-t@example.com", []int64{1})

	due := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	jobID, err := repo.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 1, Due: due,
		Duration: 30, Status: models.StatusAssigned, Gender: models.GenderFemale,
		Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
		WillExpireAt: due.Add(-24 * time.Hour), CreatedAt: due.Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if _, err := repo.CreateAssignment(ctx, &models.TranslatorAssignment{
		JobID: jobID, TranslatorID: trID, AssignedAt: due.Add(-24 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}

	busy, err := repo.HasActiveAssignmentAt(ctx, trID, due)
	if err != nil {
		t.Fatalf("HasActiveAssignmentAt failed: %v", err)
	}
	if !busy {
		t.Errorf("expected translator to be busy at %v", due)
	}

	free, err := repo.HasActiveAssignmentAt(ctx, trID, due.Add(time.Hour))
	if err != nil {
		t.Fatalf("HasActiveAssignmentAt failed: %v", err)
	}
	if free {
		t.Errorf("expected translator to be free one hour later")
	}
}

func TestListExpiredPending(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "expiry@example.com")
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mk := func(expireAt time.Time, status models.JobStatus) int64 {
		t.Helper()
		id, err := repo.CreateJob(ctx, &models.Job{
			CustomerID: customerID, FromLanguageID: 1, Due: now.Add(48 * time.Hour),
			Duration: 30, Status: status, Gender: models.GenderFemale,
			Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
			WillExpireAt: expireAt, CreatedAt: now.Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
		return id
	}

	expiredID := mk(now.Add(-time.Minute), models.StatusPending)
	mk(now.Add(time.Hour), models.StatusPending)
	mk(now.Add(-time.Minute), models.StatusAssigned)

	jobs, err := repo.ListExpiredPending(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredPending failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 expired job, got %d", len(jobs))
	}
	if jobs[0].ID != expiredID {
		t.Errorf("expected job %d, got %d", expiredID, jobs[0].ID)
	}
}

func TestListByTranslatorExcludesCancelled(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	customerID := seedCustomer(t, repo, "list@example.com")
	trID := seedTranslator(t, repo, "list-t@example.com", []int64{1})

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mkJob := func() int64 {
		t.Helper()
		id, err := repo.CreateJob(ctx, &models.Job{
			CustomerID: customerID, FromLanguageID: 1, Due: now.Add(48 * time.Hour),
			Duration: 30, Status: models.StatusAssigned, Gender: models.GenderFemale,
			Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
			WillExpireAt: now.Add(24 * time.Hour), CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
		return id
	}

	keptID := mkJob()
	droppedID := mkJob()
	if _, err := repo.CreateAssignment(ctx, &models.TranslatorAssignment{JobID: keptID, TranslatorID: trID, AssignedAt: now}); err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}
	cancelledID, err := repo.CreateAssignment(ctx, &models.TranslatorAssignment{JobID: droppedID, TranslatorID: trID, AssignedAt: now})
	if err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}
	if err := repo.CancelAssignment(ctx, cancelledID, now.Add(time.Minute)); err != nil {
		t.Fatalf("CancelAssignment failed: %v", err)
	}

	jobs, err := repo.ListByTranslator(ctx, trID, []models.JobStatus{models.StatusAssigned})
	if err != nil {
		t.Fatalf("ListByTranslator failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != keptID {
		t.Fatalf("expected only job %d, got %+v", keptID, jobs)
	}
}

func TestUserDirectory(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if _, err := repo.GetUser(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	customerID := seedCustomer(t, repo, "dir@example.com")
	if err := repo.UpsertCustomerProfile(ctx, &models.CustomerProfile{
		UserID: customerID, ConsumerType: models.ConsumerRWS, Town: "Malmö",
	}); err != nil {
		t.Fatalf("UpsertCustomerProfile failed: %v", err)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "dir@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != customerID || byEmail.Role != models.RoleCustomer {
		t.Errorf("unexpected user by email: %+v", byEmail)
	}

	cp, err := repo.CustomerProfile(ctx, customerID)
	if err != nil {
		t.Fatalf("CustomerProfile failed: %v", err)
	}
	if cp.ConsumerType != models.ConsumerRWS || cp.Town != "Malmö" {
		t.Errorf("unexpected customer profile: %+v", cp)
	}

	langID, err := repo.CreateLanguage(ctx, "spanska")
	if err != nil {
		t.Fatalf("CreateLanguage failed: %v", err)
	}
	name, err := repo.LanguageName(ctx, langID)
	if err != nil {
		t.Fatalf("LanguageName failed: %v", err)
	}
	if name != "spanska" {
		t.Errorf("expected language spanska, got %q", name)
	}

	trID := seedTranslator(t, repo, "dir-t@example.com", []int64{langID})
	tp, err := repo.TranslatorProfile(ctx, trID)
	if err != nil {
		t.Fatalf("TranslatorProfile failed: %v", err)
	}
	if len(tp.Languages) != 1 || tp.Languages[0] != langID {
		t.Errorf("expected language %d on profile, got %v", langID, tp.Languages)
	}

	all, err := repo.ListActiveTranslators(ctx)
	if err != nil {
		t.Fatalf("ListActiveTranslators failed: %v", err)
	}
	if len(all) != 1 || all[0].UserID != trID {
		t.Errorf("expected 1 active translator, got %+v", all)
	}

	if err := repo.AddBlacklist(ctx, customerID, trID); err != nil {
		t.Fatalf("AddBlacklist failed: %v", err)
	}
	blocked, err := repo.IsBlacklisted(ctx, customerID, trID)
	if err != nil {
		t.Fatalf("IsBlacklisted failed: %v", err)
	}
	if !blocked {
		t.Errorf("expected translator to be blacklisted")
	}
}
