package booking

import (
	"context"
	"testing"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository/mock"
)

func matchJob() *models.Job {
	return &models.Job{
		ID:                   1,
		CustomerID:           100,
		FromLanguageID:       5,
		Due:                  time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC),
		Duration:             60,
		Status:               models.StatusPending,
		JobType:              models.JobTypePaid,
		CustomerPhoneType:    true,
		CustomerPhysicalType: false,
	}
}

func professional(id int64, langs ...int64) models.TranslatorProfile {
	return models.TranslatorProfile{
		UserID:             id,
		TranslatorType:     models.TranslatorProfessional,
		Languages:          langs,
		CertificationLevel: models.LevelCertified,
		Town:               "Stockholm",
	}
}

func TestEligibleTranslatorsFilters(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	job := matchJob()

	speaks := professional(1, 5)
	wrongLang := professional(2, 6, 7)
	wrongType := professional(3, 5)
	wrongType.TranslatorType = models.TranslatorVolunteer
	blacklisted := professional(4, 5)
	if err := m.Users.AddBlacklist(ctx, job.CustomerID, blacklisted.UserID); err != nil {
		t.Fatal(err)
	}

	got, err := matcher.EligibleTranslators(ctx, job,
		[]models.TranslatorProfile{speaks, wrongLang, wrongType, blacklisted})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("eligible = %+v, want only translator 1", got)
	}
}

func TestEligibleTranslatorsTownForPhysicalJobs(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	job := matchJob()
	job.CustomerPhoneType = false
	job.CustomerPhysicalType = true
	job.Town = "Stockholm"

	local := professional(1, 5)
	remote := professional(2, 5)
	remote.Town = "Göteborg"

	got, err := matcher.EligibleTranslators(ctx, job, []models.TranslatorProfile{local, remote})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("eligible = %+v, want only the local translator", got)
	}

	// With phone allowed the remote translator qualifies again.
	job.CustomerPhoneType = true
	got, err = matcher.EligibleTranslators(ctx, job, []models.TranslatorProfile{local, remote})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("eligible = %+v, want both", got)
	}
}

func TestEligibleTranslatorsGenderAndCertification(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	job := matchJob()
	job.Gender = models.GenderFemale
	job.Certified = models.CertifiedLaw

	match := professional(1, 5)
	match.Gender = models.GenderFemale
	match.CertificationLevel = models.LevelCertifiedLaw

	wrongGender := professional(2, 5)
	wrongGender.Gender = models.GenderMale
	wrongGender.CertificationLevel = models.LevelCertifiedLaw

	wrongLevel := professional(3, 5)
	wrongLevel.Gender = models.GenderFemale
	wrongLevel.CertificationLevel = models.LevelCertified

	got, err := matcher.EligibleTranslators(ctx, job,
		[]models.TranslatorProfile{match, wrongGender, wrongLevel})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("eligible = %+v, want only translator 1", got)
	}
}

func TestEligibleTranslatorsUniqueByID(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	job := matchJob()
	p := professional(1, 5)

	got, err := matcher.EligibleTranslators(ctx, job, []models.TranslatorProfile{p, p, p})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("eligible = %+v, want deduplicated pool", got)
	}
}

func TestSpecificTranslatorJob(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	job := matchJob()
	job.SpecificTranslatorID = 1

	target := professional(1, 5)
	other := professional(2, 5)

	got, err := matcher.EligibleTranslators(ctx, job, []models.TranslatorProfile{target, other})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("eligible = %+v, want only the targeted translator", got)
	}

	// A clashing booking at the same hour removes the target too.
	clashID, err := m.Jobs.CreateJob(ctx, &models.Job{
		CustomerID: 200, FromLanguageID: 5, Due: job.Due, Status: models.StatusAssigned,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Jobs.CreateAssignment(ctx, &models.TranslatorAssignment{
		JobID: clashID, TranslatorID: 1, AssignedAt: job.Due.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	got, err = matcher.EligibleTranslators(ctx, job, []models.TranslatorProfile{target, other})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("eligible = %+v, want none", got)
	}
}

func TestRequiredTranslatorType(t *testing.T) {
	cases := []struct {
		jt   models.JobType
		want models.TranslatorType
	}{
		{models.JobTypePaid, models.TranslatorProfessional},
		{models.JobTypeRWS, models.TranslatorRWS},
		{models.JobTypeUnpaid, models.TranslatorVolunteer},
	}
	for _, tc := range cases {
		if got := RequiredTranslatorType(tc.jt); got != tc.want {
			t.Errorf("RequiredTranslatorType(%s) = %s, want %s", tc.jt, got, tc.want)
		}
	}
}

func TestPotentialJobsFor(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMocks()
	matcher := NewMatcher(m.Repository())

	p := professional(1, 5)

	matching := *matchJob()
	wrongLang := *matchJob()
	wrongLang.ID = 2
	wrongLang.FromLanguageID = 9

	got, err := matcher.PotentialJobsFor(ctx, &p, []models.Job{matching, wrongLang})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != matching.ID {
		t.Fatalf("potential = %+v, want only job %d", got, matching.ID)
	}
}
