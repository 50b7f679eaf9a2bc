package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tolkbridge/tolka/internal/config"
	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

// Notifier forwards notification intents to the transports. Dispatch is
// best effort: failures are logged by the implementation and never bubble
// back into the state mutation that triggered them.
type Notifier interface {
	Dispatch(ctx context.Context, job *models.Job, intents []NotificationIntent)
	// Broadcast pushes the job to every eligible translator, optionally
	// excluding one (the translator who just walked away).
	Broadcast(ctx context.Context, job *models.Job, excludeTranslatorID int64)
}

// Result is the structured outcome of a booking operation. Business
// failures are values, not errors.
type Result struct {
	Status    string       `json:"status"`
	Message   string       `json:"message,omitempty"`
	FieldName string       `json:"field_name,omitempty"`
	Job       *models.Job  `json:"job,omitempty"`
	List      []models.Job `json:"list,omitempty"`
}

const (
	statusSuccess = "success"
	statusFail    = "fail"
)

func fail(msg string) *Result { return &Result{Status: statusFail, Message: msg} }

func fieldFail(field, msg string) *Result {
	return &Result{Status: statusFail, Message: msg, FieldName: field}
}

const (
	msgFillAllFields = "Du måste fylla in alla fält"
	msgMakeAChoice   = "Du måste göra ett val här"
	msgPastBooking   = "Can't create booking in past"
	msgAlreadyBooked = "Du har redan en bokning den tiden! Bokningen är inte accepterad."
	msgInvalidStatus = "Jobbstatus ogiltig, vänligen kontrollera."
)

// Service orchestrates the booking lifecycle: creation, acceptance,
// updates, cancellation and completion. All state changes go through the
// repository; all notifications go through the Notifier after commit.
type Service struct {
	repo     *repository.Repository
	matcher  *Matcher
	engine   *TransitionEngine
	notifier Notifier
	clock    Clock
	cfg      config.BookingConfig
	logger   *slog.Logger
}

func NewService(repo *repository.Repository, notifier Notifier, cfg config.BookingConfig, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		matcher:  NewMatcher(repo),
		engine:   NewTransitionEngine(clock),
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Matcher exposes the eligibility pipeline for collaborators that resolve
// broadcast pools.
func (s *Service) Matcher() *Matcher { return s.matcher }

// CreateRequest carries the raw booking form. The due date and time come
// in as the client sends them and are parsed here.
type CreateRequest struct {
	FromLanguageID       int64
	Immediate            bool
	DueDate              string // "01/02/2006"
	DueTime              string // "15:04"
	CustomerPhoneType    *bool  // nil means the customer made no choice
	CustomerPhysicalType bool
	Duration             int // minutes
	JobFor               []string
	Town                 string
	Address              string
	Instructions         string
	SpecificTranslatorID int64
	ByAdmin              bool
}

const dueLayout = "01/02/2006 15:04"

// ParseDue parses the client's due date and time fields into a UTC
// timestamp.
func ParseDue(date, clock string) (time.Time, error) {
	return time.ParseInLocation(dueLayout, date+" "+clock, time.UTC)
}

// Create validates the form, derives the booking attributes and persists a
// pending job. Validation and past-due problems come back as fail results.
func (s *Service) Create(ctx context.Context, customerID int64, req CreateRequest) *Result {
	if req.FromLanguageID == 0 {
		return fieldFail("from_language_id", msgFillAllFields)
	}
	if !req.Immediate {
		if req.DueDate == "" {
			return fieldFail("due_date", msgFillAllFields)
		}
		if req.DueTime == "" {
			return fieldFail("due_time", msgFillAllFields)
		}
	}
	if req.CustomerPhoneType == nil {
		return fieldFail("customer_phone_type", msgMakeAChoice)
	}
	if req.Duration == 0 {
		return fieldFail("duration", msgFillAllFields)
	}

	now := s.clock.Now()
	job := models.Job{
		CustomerID:           customerID,
		FromLanguageID:       req.FromLanguageID,
		Immediate:            req.Immediate,
		Duration:             req.Duration,
		Status:               models.StatusPending,
		CustomerPhoneType:    *req.CustomerPhoneType,
		CustomerPhysicalType: req.CustomerPhysicalType,
		Town:                 req.Town,
		Address:              req.Address,
		Instructions:         req.Instructions,
		SpecificTranslatorID: req.SpecificTranslatorID,
		CreatedAt:            now,
	}

	if req.Immediate {
		job.Due = now.Add(time.Duration(s.cfg.ImmediateOffsetMinutes) * time.Minute)
		// an immediate session always happens over the phone
		job.CustomerPhoneType = true
	} else {
		due, err := ParseDue(req.DueDate, req.DueTime)
		if err != nil {
			return fieldFail("due_date", msgFillAllFields)
		}
		if !due.After(now) {
			return fail(msgPastBooking)
		}
		job.Due = due
	}

	job.Gender = genderFromJobFor(req.JobFor)
	job.Certified = certificationFromJobFor(req.JobFor)

	jobType, err := s.jobTypeForCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error("resolve job type", "customer_id", customerID, "error", err)
		return fail("internal error")
	}
	job.JobType = jobType
	job.WillExpireAt = WillExpireAt(job.Due, now)

	id, err := s.repo.Jobs.CreateJob(ctx, &job)
	if err != nil {
		s.logger.Error("create job", "customer_id", customerID, "error", err)
		return fail("internal error")
	}
	job.ID = id

	s.logger.Info("job created",
		"job_id", id, "customer_id", customerID, "due", job.Due,
		"job_type", job.JobType, "immediate", job.Immediate, "by_admin", req.ByAdmin)

	return &Result{Status: statusSuccess, Job: &job}
}

// genderFromJobFor reads the desired gender out of the job_for tag list.
func genderFromJobFor(jobFor []string) models.Gender {
	for _, tag := range jobFor {
		switch tag {
		case "male":
			return models.GenderMale
		case "female":
			return models.GenderFemale
		}
	}
	return ""
}

// certificationFromJobFor collapses the job_for tags into a certification
// requirement. "normal" combined with a certified tag widens the pool to
// both groups.
func certificationFromJobFor(jobFor []string) models.CertifiedRequirement {
	tags := make(map[string]bool, len(jobFor))
	for _, t := range jobFor {
		tags[t] = true
	}
	switch {
	case tags["normal"] && tags["certified"]:
		return models.CertifiedBoth
	case tags["normal"] && tags["certified_in_law"]:
		return models.CertifiedNLaw
	case tags["normal"] && tags["certified_in_health"]:
		return models.CertifiedNHealth
	case tags["certified"]:
		return models.CertifiedYes
	case tags["certified_in_law"]:
		return models.CertifiedLaw
	case tags["certified_in_health"]:
		return models.CertifiedHealth
	}
	return models.CertifiedNormal
}

func (s *Service) jobTypeForCustomer(ctx context.Context, customerID int64) (models.JobType, error) {
	profile, err := s.repo.Users.CustomerProfile(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.JobTypePaid, nil
		}
		return "", fmt.Errorf("customer profile: %w", err)
	}
	switch profile.ConsumerType {
	case models.ConsumerRWS:
		return models.JobTypeRWS, nil
	case models.ConsumerNGO:
		return models.JobTypeUnpaid, nil
	}
	return models.JobTypePaid, nil
}

// JobEmailRequest attaches contact details to a freshly created job.
type JobEmailRequest struct {
	UserEmail    string
	Reference    string
	Address      string
	Instructions string
	Town         string
}

// StoreJobEmail finishes the creation flow: it stores the contact override,
// confirms the booking by mail and broadcasts the job to the translator
// pool.
func (s *Service) StoreJobEmail(ctx context.Context, jobID int64, req JobEmailRequest) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("store job email", jobID, err)
	}

	job.UserEmail = req.UserEmail
	job.Reference = req.Reference
	if req.Address != "" || req.Town != "" || req.Instructions != "" {
		profile, err := s.repo.Users.CustomerProfile(ctx, job.CustomerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("customer profile", "job_id", jobID, "error", err)
			return fail("internal error")
		}
		job.Address = fallback(req.Address, profileAddress(profile))
		job.Instructions = fallback(req.Instructions, profileInstructions(profile))
		job.Town = fallback(req.Town, profileTown(profile))
	}

	if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("store job email", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	s.notifier.Dispatch(ctx, job, []NotificationIntent{
		{Kind: IntentJobCreated, Audience: AudienceCustomer},
	})
	s.notifier.Broadcast(ctx, job, 0)

	return &Result{Status: statusSuccess, Job: job}
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func profileAddress(p *models.CustomerProfile) string {
	if p == nil {
		return ""
	}
	return p.Address
}

func profileInstructions(p *models.CustomerProfile) string {
	if p == nil {
		return ""
	}
	return p.Instructions
}

func profileTown(p *models.CustomerProfile) string {
	if p == nil {
		return ""
	}
	return p.Town
}

// UpdateRequest is an admin edit of an existing job. A translator may be
// named by id or by email; email wins the lookup when both are present.
type UpdateRequest struct {
	ChangeRequest
	TranslatorEmail string
	Reference       *string
}

// Update applies an admin edit: translator reassignment, due or language
// change and a status transition, then dispatches whatever notifications
// the transition produced. A rejected status change does not abort the
// rest of the edit.
func (s *Service) Update(ctx context.Context, jobID, actorID int64, req UpdateRequest) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("update job", jobID, err)
	}

	if req.TranslatorEmail != "" {
		u, err := s.repo.Users.GetUserByEmail(ctx, req.TranslatorEmail)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fail("translator not found")
			}
			s.logger.Error("translator lookup", "job_id", jobID, "error", err)
			return fail("internal error")
		}
		req.TranslatorID = u.ID
	}

	current, err := s.repo.Jobs.ActiveAssignment(ctx, jobID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("active assignment", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	decision := s.engine.ApplyTransition(job, current, req.ChangeRequest)
	if decision.StatusRejectedMsg != "" {
		s.logger.Warn("status change rejected",
			"job_id", jobID, "actor_id", actorID, "reason", decision.StatusRejectedMsg)
	}

	if req.AdminComments != "" {
		decision.Job.AdminComments = req.AdminComments
	}
	if req.Reference != nil {
		decision.Job.Reference = *req.Reference
	}

	if decision.Reassign != nil {
		if _, err := s.repo.Jobs.SwapAssignment(ctx, decision.Reassign.CancelAssignmentID, &decision.Reassign.NewAssignment); err != nil {
			s.logger.Error("swap assignment", "job_id", jobID, "error", err)
			return fail("internal error")
		}
	}

	if err := s.repo.Jobs.UpdateJob(ctx, decision.Job); err != nil {
		s.logger.Error("update job", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	s.auditLogs(ctx, jobID, actorID, decision)
	s.dispatchDecision(ctx, decision)

	return &Result{Status: statusSuccess, Job: decision.Job, Message: decision.StatusRejectedMsg}
}

// auditLogs writes one line per changed field, with translator ids
// resolved to emails where possible.
func (s *Service) auditLogs(ctx context.Context, jobID, actorID int64, d Decision) {
	for _, l := range d.Logs {
		oldVal, newVal := l.Old, l.New
		if l.Field == "translator" && d.Reassign != nil {
			oldVal = s.emailForLog(ctx, d.Reassign.OldTranslatorID)
			newVal = s.emailForLog(ctx, d.Reassign.NewAssignment.TranslatorID)
		}
		s.logger.Info("job updated",
			"job_id", jobID, "actor_id", actorID,
			"field", l.Field, "old", oldVal, "new", newVal)
	}
}

func (s *Service) emailForLog(ctx context.Context, userID int64) string {
	if userID == 0 {
		return ""
	}
	u, err := s.repo.Users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Sprintf("user:%d", userID)
	}
	return u.Email
}

func (s *Service) dispatchDecision(ctx context.Context, d Decision) {
	var direct []NotificationIntent
	for _, in := range d.Notifications {
		if in.Kind == IntentBroadcastPool {
			s.notifier.Broadcast(ctx, d.Job, 0)
			continue
		}
		direct = append(direct, in)
	}
	if len(direct) > 0 {
		s.notifier.Dispatch(ctx, d.Job, direct)
	}
}

// Accept lets a translator take a pending job. The claim itself is a
// single conditional write; losing a race is a business failure, not an
// error.
func (s *Service) Accept(ctx context.Context, jobID, translatorID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("accept job", jobID, err)
	}

	booked, err := s.repo.Jobs.HasActiveAssignmentAt(ctx, translatorID, job.Due)
	if err != nil {
		s.logger.Error("double booking check", "job_id", jobID, "error", err)
		return fail("internal error")
	}
	if booked {
		return fail(msgAlreadyBooked)
	}

	ok, err := s.repo.Jobs.ClaimJob(ctx, jobID, translatorID, s.clock.Now())
	if err != nil {
		s.logger.Error("claim job", "job_id", jobID, "translator_id", translatorID, "error", err)
		return fail("internal error")
	}
	if !ok {
		return fail(msgInvalidStatus)
	}
	job.Status = models.StatusAssigned

	s.logger.Info("job accepted", "job_id", jobID, "translator_id", translatorID)
	s.notifier.Dispatch(ctx, job, []NotificationIntent{
		{Kind: IntentJobAccepted, Audience: AudienceCustomer},
	})

	list, err := s.PotentialJobs(ctx, translatorID)
	if err != nil {
		s.logger.Error("potential jobs", "translator_id", translatorID, "error", err)
	}
	return &Result{Status: statusSuccess, Job: job, List: list}
}

// AcceptWithID is the deep-link variant of Accept; the fail and success
// messages quote the job details so they can stand alone in a push.
func (s *Service) AcceptWithID(ctx context.Context, jobID, translatorID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("accept job", jobID, err)
	}
	lang := s.languageName(ctx, job.FromLanguageID)
	due := formatTime(job.Due)

	booked, err := s.repo.Jobs.HasActiveAssignmentAt(ctx, translatorID, job.Due)
	if err != nil {
		s.logger.Error("double booking check", "job_id", jobID, "error", err)
		return fail("internal error")
	}
	if booked {
		return fail(fmt.Sprintf("Du har redan en bokning den tiden %s. Du har inte fått denna tolkning", due))
	}

	ok, err := s.repo.Jobs.ClaimJob(ctx, jobID, translatorID, s.clock.Now())
	if err != nil {
		s.logger.Error("claim job", "job_id", jobID, "translator_id", translatorID, "error", err)
		return fail("internal error")
	}
	if !ok {
		return fail(fmt.Sprintf(
			"Denna %stolkning %dmin %s har redan accepterats av annan tolk. Du har inte fått denna tolkning",
			lang, job.Duration, due))
	}
	job.Status = models.StatusAssigned

	s.logger.Info("job accepted", "job_id", jobID, "translator_id", translatorID)
	s.notifier.Dispatch(ctx, job, []NotificationIntent{
		{Kind: IntentJobAccepted, Audience: AudienceCustomer},
	})

	return &Result{
		Status: statusSuccess,
		Job:    job,
		Message: fmt.Sprintf("Du har nu accepterat och fått bokningen för %stolk %dmin %s",
			lang, job.Duration, due),
	}
}

// Cancel handles both sides of a cancellation. The customer may always
// cancel; which withdraw status applies depends on the 24 hour boundary,
// inclusive at exactly 24h. A translator can only walk away with more than
// 24h of margin, in which case the job goes back to the pool.
func (s *Service) Cancel(ctx context.Context, jobID, actorID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("cancel job", jobID, err)
	}
	actor, err := s.repo.Users.GetUser(ctx, actorID)
	if err != nil {
		return s.failFromErr("cancel job", jobID, err)
	}

	now := s.clock.Now()
	current, err := s.repo.Jobs.ActiveAssignment(ctx, jobID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("active assignment", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	if actor.Role == models.RoleTranslator {
		return s.cancelByTranslator(ctx, job, current, now)
	}
	return s.cancelByCustomer(ctx, job, current, now)
}

func (s *Service) cancelByCustomer(ctx context.Context, job *models.Job, current *models.TranslatorAssignment, now time.Time) *Result {
	if job.Due.Sub(now) >= 24*time.Hour {
		job.Status = models.StatusWithdrawBefore24
	} else {
		job.Status = models.StatusWithdrawAfter24
	}
	if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("cancel job", "job_id", job.ID, "error", err)
		return fail("internal error")
	}
	s.logger.Info("job cancelled by customer", "job_id", job.ID, "status", job.Status)

	if current != nil {
		s.notifier.Dispatch(ctx, job, []NotificationIntent{
			{Kind: IntentCancelledTranslator, UserID: current.TranslatorID},
		})
	}
	return &Result{Status: statusSuccess, Job: job}
}

func (s *Service) cancelByTranslator(ctx context.Context, job *models.Job, current *models.TranslatorAssignment, now time.Time) *Result {
	if job.Due.Sub(now) <= 24*time.Hour {
		return fail(fmt.Sprintf(
			"Du kan inte avboka en bokning som sker inom 24 timmar. Vänligen ring på %s och gör din avbokning över telefon. Tack!",
			s.cfg.SupportPhone))
	}

	s.notifier.Dispatch(ctx, job, []NotificationIntent{
		{Kind: IntentCancelledCustomer, Audience: AudienceCustomer},
	})

	job.Status = models.StatusPending
	job.CreatedAt = now
	job.WillExpireAt = WillExpireAt(job.Due, now)
	if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("cancel job", "job_id", job.ID, "error", err)
		return fail("internal error")
	}
	if err := s.repo.Jobs.CancelActiveAssignments(ctx, job.ID, now); err != nil {
		s.logger.Error("cancel assignments", "job_id", job.ID, "error", err)
		return fail("internal error")
	}

	var exclude int64
	if current != nil {
		exclude = current.TranslatorID
	}
	s.logger.Info("job cancelled by translator", "job_id", job.ID, "translator_id", exclude)
	s.notifier.Broadcast(ctx, job, exclude)

	return &Result{Status: statusSuccess, Job: job}
}

// End closes a started session. The stored session time is the due-to-now
// interval, and both parties get a wrap-up mail with role-specific
// wording.
func (s *Service) End(ctx context.Context, jobID, actorID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("end job", jobID, err)
	}
	if job.Status != models.StatusStarted {
		return fail(msgInvalidStatus)
	}

	now := s.clock.Now()
	job.Status = models.StatusCompleted
	job.EndAt = &now
	job.SessionTime = SessionDuration(job.Due, now)
	if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("end job", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	sessionText := FormatSessionText(job.SessionTime)
	intents := []NotificationIntent{
		{Kind: IntentSessionEnded, Audience: AudienceCustomer,
			Data: map[string]string{"session_time": sessionText, "for_text": "faktura"}},
	}

	current, err := s.repo.Jobs.ActiveAssignment(ctx, jobID)
	if err == nil {
		intents = append(intents, NotificationIntent{
			Kind: IntentSessionEnded, UserID: current.TranslatorID,
			Data: map[string]string{"session_time": sessionText, "for_text": "lön"},
		})
		if err := s.repo.Jobs.CompleteAssignment(ctx, current.ID, now, actorID); err != nil {
			s.logger.Error("complete assignment", "job_id", jobID, "error", err)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("active assignment", "job_id", jobID, "error", err)
	}

	s.logger.Info("session ended", "job_id", jobID, "session_time", job.SessionTime)
	s.notifier.Dispatch(ctx, job, intents)

	return &Result{Status: statusSuccess, Job: job}
}

// CustomerNotCall marks a started session the customer never showed up
// for. The translator still gets credited with a completed assignment.
func (s *Service) CustomerNotCall(ctx context.Context, jobID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("customer not call", jobID, err)
	}
	if job.Status != models.StatusStarted {
		return fail(msgInvalidStatus)
	}

	now := s.clock.Now()
	job.Status = models.StatusNotCarriedOutCustomer
	job.EndAt = &now
	if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
		s.logger.Error("customer not call", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	current, err := s.repo.Jobs.ActiveAssignment(ctx, jobID)
	if err == nil {
		if err := s.repo.Jobs.CompleteAssignment(ctx, current.ID, now, current.TranslatorID); err != nil {
			s.logger.Error("complete assignment", "job_id", jobID, "error", err)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("active assignment", "job_id", jobID, "error", err)
	}

	s.logger.Info("session closed, customer absent", "job_id", jobID)
	return &Result{Status: statusSuccess, Job: job}
}

// Reopen puts a cancelled or expired job back on the market. A timedout
// job is cloned into a fresh row so the expired one stays on record;
// anything else is reset in place. Either way the pool hears about it.
func (s *Service) Reopen(ctx context.Context, jobID int64) *Result {
	job, err := s.repo.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return s.failFromErr("reopen job", jobID, err)
	}

	now := s.clock.Now()
	if err := s.repo.Jobs.CancelActiveAssignments(ctx, jobID, now); err != nil {
		s.logger.Error("cancel assignments", "job_id", jobID, "error", err)
		return fail("internal error")
	}

	reopened := job
	if job.Status == models.StatusTimedout {
		clone := *job
		clone.ID = 0
		clone.Status = models.StatusPending
		clone.CreatedAt = now
		clone.EndAt = nil
		clone.SessionTime = ""
		clone.WillExpireAt = WillExpireAt(clone.Due, now)
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%d", jobID)
		id, err := s.repo.Jobs.CreateJob(ctx, &clone)
		if err != nil {
			s.logger.Error("reopen job", "job_id", jobID, "error", err)
			return fail("internal error")
		}
		clone.ID = id
		reopened = &clone
	} else {
		job.Status = models.StatusPending
		job.CreatedAt = now
		job.WillExpireAt = WillExpireAt(job.Due, now)
		if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
			s.logger.Error("reopen job", "job_id", jobID, "error", err)
			return fail("internal error")
		}
	}

	s.logger.Info("job reopened", "job_id", jobID, "reopened_id", reopened.ID)
	s.notifier.Broadcast(ctx, reopened, 0)

	return &Result{Status: statusSuccess, Job: reopened, Message: "Tolk cancelled!"}
}

// PotentialJobs is the translator's feed: every pending job the matcher
// lets them see.
func (s *Service) PotentialJobs(ctx context.Context, translatorID int64) ([]models.Job, error) {
	profile, err := s.repo.Users.TranslatorProfile(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("translator profile: %w", err)
	}
	pending, err := s.repo.Jobs.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending jobs: %w", err)
	}
	return s.matcher.PotentialJobsFor(ctx, profile, pending)
}

// UserJobsResult splits a user's open bookings into the emergency and
// normal lanes.
type UserJobsResult struct {
	EmergencyJobs []models.Job `json:"emergency_jobs"`
	NormalJobs    []models.Job `json:"normal_jobs"`
	UserType      string       `json:"user_type"`
}

var openStatuses = []models.JobStatus{
	models.StatusPending, models.StatusAssigned, models.StatusStarted,
}

// UserJobs returns the open bookings for a customer or translator.
func (s *Service) UserJobs(ctx context.Context, userID int64) (*UserJobsResult, error) {
	user, err := s.repo.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}

	var jobs []models.Job
	out := &UserJobsResult{}
	switch user.Role {
	case models.RoleCustomer:
		out.UserType = "customer"
		jobs, err = s.repo.Jobs.ListByCustomer(ctx, userID, openStatuses)
	case models.RoleTranslator:
		out.UserType = "translator"
		jobs, err = s.repo.Jobs.ListByTranslator(ctx, userID, openStatuses)
	default:
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	for _, j := range jobs {
		if j.Immediate {
			out.EmergencyJobs = append(out.EmergencyJobs, j)
		} else {
			out.NormalJobs = append(out.NormalJobs, j)
		}
	}
	return out, nil
}

func (s *Service) languageName(ctx context.Context, id int64) string {
	name, err := s.repo.Users.LanguageName(ctx, id)
	if err != nil {
		return ""
	}
	return name
}

func (s *Service) failFromErr(op string, jobID int64, err error) *Result {
	if errors.Is(err, repository.ErrNotFound) {
		return fail("not found")
	}
	s.logger.Error(op, "job_id", jobID, "error", err)
	return fail("internal error")
}
