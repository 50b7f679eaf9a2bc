package mock

import (
	"context"
	"sync"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

// Test helpers and mocks. Everything is in-memory and mutex-guarded so the
// claim path can be exercised concurrently.

type Mocks struct {
	Jobs  *JobStore
	Users *UserDirectory
}

func NewMocks() *Mocks {
	return &Mocks{
		Jobs: &JobStore{
			jobs:        make(map[int64]*models.Job),
			assignments: make(map[int64]*models.TranslatorAssignment),
		},
		Users: &UserDirectory{
			users:       make(map[int64]*models.User),
			translators: make(map[int64]*models.TranslatorProfile),
			customers:   make(map[int64]*models.CustomerProfile),
			languages:   make(map[int64]string),
			blacklist:   make(map[[2]int64]bool),
		},
	}
}

// Repository bundles the mocks behind the store contracts.
func (m *Mocks) Repository() *repository.Repository {
	return &repository.Repository{Jobs: m.Jobs, Users: m.Users}
}

type JobStore struct {
	mu          sync.Mutex
	jobs        map[int64]*models.Job
	assignments map[int64]*models.TranslatorAssignment
	nextJob     int64
	nextAssign  int64

	ClaimCalls int
	FailWith   error // when set, every call errors
}

var _ repository.JobStore = (*JobStore)(nil)

func (s *JobStore) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.nextJob++
	cp := *j
	cp.ID = s.nextJob
	s.jobs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *JobStore) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *JobStore) UpdateJob(ctx context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.jobs[j.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *JobStore) ListPending(ctx context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []models.Job
	for _, j := range s.jobs {
		if j.Status == models.StatusPending {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *JobStore) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []models.Job
	for _, j := range s.jobs {
		if j.Status == models.StatusPending && !j.WillExpireAt.IsZero() && !j.WillExpireAt.After(now) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *JobStore) ListByCustomer(ctx context.Context, customerID int64, statuses []models.JobStatus) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		if j.CustomerID == customerID && statusIn(j.Status, statuses) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *JobStore) ListByTranslator(ctx context.Context, translatorID int64, statuses []models.JobStatus) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, a := range s.assignments {
		if a.TranslatorID != translatorID || a.CancelAt != nil {
			continue
		}
		j, ok := s.jobs[a.JobID]
		if ok && statusIn(j.Status, statuses) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *JobStore) ClaimJob(ctx context.Context, jobID, translatorID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClaimCalls++
	if s.FailWith != nil {
		return false, s.FailWith
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if j.Status != models.StatusPending {
		return false, nil
	}
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			return false, nil
		}
	}
	j.Status = models.StatusAssigned
	s.nextAssign++
	s.assignments[s.nextAssign] = &models.TranslatorAssignment{
		ID: s.nextAssign, JobID: jobID, TranslatorID: translatorID, AssignedAt: now,
	}
	return true, nil
}

func (s *JobStore) CreateAssignment(ctx context.Context, a *models.TranslatorAssignment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAssign++
	cp := *a
	cp.ID = s.nextAssign
	s.assignments[cp.ID] = &cp
	return cp.ID, nil
}

func (s *JobStore) CancelAssignment(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.CancelAt = &at
	return nil
}

func (s *JobStore) CancelActiveAssignments(ctx context.Context, jobID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			t := at
			a.CancelAt = &t
		}
	}
	return nil
}

func (s *JobStore) CompleteAssignment(ctx context.Context, id int64, at time.Time, completedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.CompletedAt = &at
	a.CompletedBy = completedBy
	return nil
}

func (s *JobStore) ActiveAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *JobStore) LatestCompletedAssignment(ctx context.Context, jobID int64) (*models.TranslatorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.TranslatorAssignment
	for _, a := range s.assignments {
		if a.JobID != jobID || a.CompletedAt == nil {
			continue
		}
		if latest == nil || a.CompletedAt.After(*latest.CompletedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *JobStore) Assignments(ctx context.Context, jobID int64) ([]models.TranslatorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TranslatorAssignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *JobStore) SwapAssignment(ctx context.Context, cancelID int64, a *models.TranslatorAssignment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancelID != 0 {
		old, ok := s.assignments[cancelID]
		if !ok {
			return 0, repository.ErrNotFound
		}
		at := a.AssignedAt
		old.CancelAt = &at
	}
	s.nextAssign++
	cp := *a
	cp.ID = s.nextAssign
	s.assignments[cp.ID] = &cp
	return cp.ID, nil
}

func (s *JobStore) HasActiveAssignmentAt(ctx context.Context, translatorID int64, due time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.TranslatorID != translatorID || !a.Active() {
			continue
		}
		j, ok := s.jobs[a.JobID]
		if ok && j.Due.Equal(due) {
			return true, nil
		}
	}
	return false, nil
}

func statusIn(s models.JobStatus, set []models.JobStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type UserDirectory struct {
	mu          sync.Mutex
	users       map[int64]*models.User
	translators map[int64]*models.TranslatorProfile
	customers   map[int64]*models.CustomerProfile
	languages   map[int64]string
	blacklist   map[[2]int64]bool
	nextUser    int64
	nextLang    int64
}

var _ repository.UserDirectory = (*UserDirectory)(nil)

func (d *UserDirectory) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUser++
	cp := *u
	cp.ID = d.nextUser
	d.users[cp.ID] = &cp
	return cp.ID, nil
}

func (d *UserDirectory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *UserDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (d *UserDirectory) TranslatorProfile(ctx context.Context, userID int64) (*models.TranslatorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.translators[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *UserDirectory) CustomerProfile(ctx context.Context, userID int64) (*models.CustomerProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.customers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *UserDirectory) UpsertTranslatorProfile(ctx context.Context, p *models.TranslatorProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.translators[p.UserID] = &cp
	return nil
}

func (d *UserDirectory) UpsertCustomerProfile(ctx context.Context, p *models.CustomerProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.customers[p.UserID] = &cp
	return nil
}

func (d *UserDirectory) ListActiveTranslators(ctx context.Context) ([]models.TranslatorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.TranslatorProfile
	for id, p := range d.translators {
		u, ok := d.users[id]
		if ok && (!u.Active || u.Role != models.RoleTranslator) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (d *UserDirectory) IsBlacklisted(ctx context.Context, customerID, translatorID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blacklist[[2]int64{customerID, translatorID}], nil
}

func (d *UserDirectory) AddBlacklist(ctx context.Context, customerID, translatorID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blacklist[[2]int64{customerID, translatorID}] = true
	return nil
}

func (d *UserDirectory) CreateLanguage(ctx context.Context, name string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextLang++
	d.languages[d.nextLang] = name
	return d.nextLang, nil
}

func (d *UserDirectory) LanguageName(ctx context.Context, id int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.languages[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}
