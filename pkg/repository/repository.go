package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
)

// Store interfaces for the booking domain. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

// ErrNotFound is returned when a referenced job, user or assignment does
// not exist. Callers surface it as a distinct fail condition.
var ErrNotFound = errors.New("not found")

type JobStore interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	ListPending(ctx context.Context) ([]models.Job, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]models.Job, error)
	ListByCustomer(ctx context.Context, customerID int64, statuses []models.JobStatus) ([]models.Job, error)
	ListByTranslator(ctx context.Context, translatorID int64, statuses []models.JobStatus) ([]models.Job, error)

	// ClaimJob atomically assigns the job to the translator: the status
	// flips pending -> assigned and an assignment row is created only if
	// the job is still pending and has no active assignment. Exactly one
	// concurrent claim can succeed.
	ClaimJob(ctx context.Context, jobID, translatorID int64, now time.Time) (bool, error)

	CreateAssignment(ctx context.Context, a *models.TranslatorAssignment) (int64, error)
	CancelAssignment(ctx context.Context, id int64, at time.Time) error
	CancelActiveAssignments(ctx context.Context, jobID int64, at time.Time) error
	CompleteAssignment(ctx context.Context, id int64, at time.Time, completedBy int64) error
	ActiveAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error)
	LatestCompletedAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error)
	Assignments(ctx context.Context, jobID int64) ([]models.TranslatorAssignment, error)

	// SwapAssignment cancels the given assignment and inserts the new one
	// in a single transaction, preserving the at-most-one-active-assignment
	// invariant. cancelID may be zero when there is no active assignment.
	SwapAssignment(ctx context.Context, cancelID int64, a *models.TranslatorAssignment) (int64, error)

	// HasActiveAssignmentAt reports whether the translator already holds an
	// active assignment whose job is due at exactly the given time.
	HasActiveAssignmentAt(ctx context.Context, translatorID int64, due time.Time) (bool, error)
}

type UserDirectory interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TranslatorProfile(ctx context.Context, userID int64) (*models.TranslatorProfile, error)
	CustomerProfile(ctx context.Context, userID int64) (*models.CustomerProfile, error)
	UpsertTranslatorProfile(ctx context.Context, p *models.TranslatorProfile) error
	UpsertCustomerProfile(ctx context.Context, p *models.CustomerProfile) error
	ListActiveTranslators(ctx context.Context) ([]models.TranslatorProfile, error)
	IsBlacklisted(ctx context.Context, customerID, translatorID int64) (bool, error)
	AddBlacklist(ctx context.Context, customerID, translatorID int64) error
	CreateLanguage(ctx context.Context, name string) (int64, error)
	LanguageName(ctx context.Context, id int64) (string, error)
}

// Repository bundles the store contracts a service needs.
type Repository struct {
	Jobs  JobStore
	Users UserDirectory
}
