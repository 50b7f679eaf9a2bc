package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

// Matcher narrows a candidate pool down to the translators allowed to see
// and accept a given job. Every stage only removes candidates.
type Matcher struct {
	repo *repository.Repository
}

func NewMatcher(repo *repository.Repository) *Matcher {
	return &Matcher{repo: repo}
}

// RequiredTranslatorType maps a job type to the translator type allowed to
// take it.
func RequiredTranslatorType(jt models.JobType) models.TranslatorType {
	switch jt {
	case models.JobTypePaid:
		return models.TranslatorProfessional
	case models.JobTypeRWS:
		return models.TranslatorRWS
	default:
		return models.TranslatorVolunteer
	}
}

// AllowedCertificationLevels maps a job's certification requirement to the
// set of translator levels that satisfy it.
func AllowedCertificationLevels(req models.CertifiedRequirement) map[models.CertificationLevel]bool {
	out := make(map[models.CertificationLevel]bool)
	switch req {
	case models.CertifiedNone:
		for _, l := range models.AllCertificationLevels {
			out[l] = true
		}
	case models.CertifiedYes, models.CertifiedBoth:
		out[models.LevelCertified] = true
		out[models.LevelCertifiedLaw] = true
		out[models.LevelCertifiedHealth] = true
	case models.CertifiedLaw, models.CertifiedNLaw:
		out[models.LevelCertifiedLaw] = true
	case models.CertifiedHealth, models.CertifiedNHealth:
		out[models.LevelCertifiedHealth] = true
	case models.CertifiedNormal:
		out[models.LevelLayman] = true
		out[models.LevelReadCourses] = true
	}
	return out
}

// EligibleTranslators runs the narrowing pipeline over the pool and returns
// the eligible profiles, unique by translator id.
func (m *Matcher) EligibleTranslators(ctx context.Context, job *models.Job, pool []models.TranslatorProfile) ([]models.TranslatorProfile, error) {
	if job == nil {
		return nil, fmt.Errorf("job is nil")
	}

	requiredType := RequiredTranslatorType(job.JobType)
	allowedLevels := AllowedCertificationLevels(job.Certified)

	customerTown, err := m.customerTown(ctx, job)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(pool))
	var out []models.TranslatorProfile
	for _, p := range pool {
		if seen[p.UserID] {
			continue
		}
		if p.TranslatorType != requiredType {
			continue
		}
		if !allowedLevels[p.CertificationLevel] {
			continue
		}
		if !p.Speaks(job.FromLanguageID) {
			continue
		}
		if job.Gender != "" && p.Gender != job.Gender {
			continue
		}

		blocked, err := m.repo.Users.IsBlacklisted(ctx, job.CustomerID, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("blacklist check: %w", err)
		}
		if blocked {
			continue
		}

		// Phone-unavailable physical jobs require the translator on site.
		if !job.CustomerPhoneType && job.CustomerPhysicalType && p.Town != customerTown {
			continue
		}

		ok, err := m.specificJobAllows(ctx, job, p.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		seen[p.UserID] = true
		out = append(out, p)
	}

	return out, nil
}

// specificJobAllows applies the pre-targeted job rule: a job aimed at one
// particular translator is only visible to that translator, and only while
// they can still legally accept it.
func (m *Matcher) specificJobAllows(ctx context.Context, job *models.Job, translatorID int64) (bool, error) {
	if job.SpecificTranslatorID == 0 {
		return true, nil
	}
	if job.SpecificTranslatorID != translatorID {
		return false, nil
	}
	if job.Status != models.StatusPending {
		return false, nil
	}
	booked, err := m.repo.Jobs.HasActiveAssignmentAt(ctx, translatorID, job.Due)
	if err != nil {
		return false, fmt.Errorf("double booking check: %w", err)
	}
	return !booked, nil
}

func (m *Matcher) customerTown(ctx context.Context, job *models.Job) (string, error) {
	if job.Town != "" {
		return job.Town, nil
	}
	profile, err := m.repo.Users.CustomerProfile(ctx, job.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("customer profile: %w", err)
	}
	return profile.Town, nil
}

// PotentialJobsFor filters pending jobs down to those the translator may
// accept, from the translator's point of view.
func (m *Matcher) PotentialJobsFor(ctx context.Context, profile *models.TranslatorProfile, pending []models.Job) ([]models.Job, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is nil")
	}

	pool := []models.TranslatorProfile{*profile}
	var out []models.Job
	for i := range pending {
		eligible, err := m.EligibleTranslators(ctx, &pending[i], pool)
		if err != nil {
			return nil, err
		}
		if len(eligible) > 0 {
			out = append(out, pending[i])
		}
	}

	return out, nil
}
