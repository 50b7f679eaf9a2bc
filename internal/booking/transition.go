package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
)

// IntentKind identifies a downstream notification the orchestration layer
// must dispatch after a transition commits.
type IntentKind string

const (
	IntentJobCreated           IntentKind = "job_created"            // confirmation mail to customer
	IntentJobReopened          IntentKind = "job_reopened"           // mail to customer
	IntentBroadcastPool        IntentKind = "broadcast_pool"         // push to the eligible translator pool
	IntentJobAccepted          IntentKind = "job_accepted"           // mail to customer
	IntentNewTranslator        IntentKind = "new_translator"         // mail to the newly assigned translator
	IntentSessionStartReminder IntentKind = "session_start_reminder" // push to one user
	IntentBookingChanged       IntentKind = "booking_changed"        // generic status-change mail to customer
	IntentSessionEnded         IntentKind = "session_ended"          // mail, role framing in Data["for_text"]
	IntentCancelledCustomer    IntentKind = "cancelled_customer"
	IntentCancelledTranslator  IntentKind = "cancelled_translator"
	IntentJobExpired           IntentKind = "job_expired" // push to customer, nobody accepted in time
	IntentDueChanged           IntentKind = "due_changed"
	IntentLanguageChanged      IntentKind = "language_changed"
	IntentTranslatorChanged    IntentKind = "translator_changed"
)

// Audience selects who receives an intent when no explicit user id is set.
type Audience string

const (
	AudienceCustomer   Audience = "customer"
	AudienceTranslator Audience = "translator" // the job's active translator
	AudiencePool       Audience = "pool"
)

// NotificationIntent is a pure description of a notification; the engine
// never talks to a transport.
type NotificationIntent struct {
	Kind     IntentKind
	Audience Audience
	UserID   int64 // explicit recipient, 0 when derived from the audience
	Data     map[string]string
}

// ChangeRequest is an admin/customer update against a job. Translator
// references are resolved to ids before the engine runs.
type ChangeRequest struct {
	Status         models.JobStatus // empty means no status change requested
	AdminComments  string
	SessionTime    string // "h:m:s", required for started -> completed
	Due            *time.Time
	FromLanguageID *int64
	TranslatorID   int64 // 0 means no reassignment requested
}

// ChangeLog is one audit entry for a field mutation.
type ChangeLog struct {
	Field string
	Old   string
	New   string
}

// ReassignPlan describes the assignment swap the store must apply
// atomically alongside the job mutation.
type ReassignPlan struct {
	CancelAssignmentID int64 // 0 when there was no active assignment
	OldTranslatorID    int64
	NewAssignment      models.TranslatorAssignment
}

// Decision is the outcome of applying a ChangeRequest. Job is a mutated
// copy; the caller persists it together with the reassign plan and then
// dispatches the notifications.
type Decision struct {
	Accepted          bool   // something changed
	StatusChanged     bool   // the requested status was applied
	StatusRejectedMsg string // set when a requested status could not apply
	TranslatorChanged bool
	Reassign          *ReassignPlan
	Notifications     []NotificationIntent
	Job               *models.Job
	Logs              []ChangeLog
}

// TransitionEngine validates and applies status changes. It is pure: all
// persistence and dispatch is left to the caller.
type TransitionEngine struct {
	clock Clock
}

func NewTransitionEngine(clock Clock) *TransitionEngine {
	if clock == nil {
		clock = SystemClock()
	}
	return &TransitionEngine{clock: clock}
}

type transitionKey struct {
	from, to models.JobStatus
}

// guardFunc applies one legal transition to d.Job, appending intents and
// logs. It returns false when the request does not satisfy the guard; the
// engine then leaves the status untouched.
type guardFunc func(e *TransitionEngine, d *Decision, req ChangeRequest) bool

var transitions = map[transitionKey]guardFunc{}

func register(from models.JobStatus, fn guardFunc, targets ...models.JobStatus) {
	for _, to := range targets {
		transitions[transitionKey{from, to}] = fn
	}
}

var nonPendingStatuses = []models.JobStatus{
	models.StatusAssigned, models.StatusStarted, models.StatusCompleted,
	models.StatusWithdrawBefore24, models.StatusWithdrawAfter24,
	models.StatusNotCarriedOutCustomer,
}

func init() {
	register(models.StatusTimedout, timedoutToPending, models.StatusPending)
	register(models.StatusTimedout, timedoutToOther, nonPendingStatuses...)

	register(models.StatusCompleted, completedToTimedout, models.StatusTimedout)

	register(models.StatusStarted, startedToCompleted, models.StatusCompleted)
	register(models.StatusStarted, startedToOther,
		models.StatusPending, models.StatusAssigned, models.StatusTimedout,
		models.StatusWithdrawBefore24, models.StatusWithdrawAfter24,
		models.StatusNotCarriedOutCustomer)

	register(models.StatusPending, pendingToAssigned, models.StatusAssigned)
	register(models.StatusPending, pendingToTimedout, models.StatusTimedout)
	register(models.StatusPending, pendingToOther,
		models.StatusStarted, models.StatusCompleted,
		models.StatusWithdrawBefore24, models.StatusWithdrawAfter24,
		models.StatusNotCarriedOutCustomer)

	register(models.StatusWithdrawAfter24, withdrawAfter24ToTimedout, models.StatusTimedout)

	register(models.StatusAssigned, assignedToWithdraw,
		models.StatusWithdrawBefore24, models.StatusWithdrawAfter24)
	register(models.StatusAssigned, assignedToTimedout, models.StatusTimedout)
}

// ApplyTransition computes the full effect of a change request: translator
// reassignment, due change, language change and the status transition, in
// that order. Aux changes that pass their own checks apply even when the
// requested status is rejected; the rejection is reported separately.
func (e *TransitionEngine) ApplyTransition(job *models.Job, current *models.TranslatorAssignment, req ChangeRequest) Decision {
	now := e.clock.Now()
	mutated := *job
	d := Decision{Job: &mutated}

	e.planReassignment(&d, current, req.TranslatorID, now)

	if req.Due != nil && !req.Due.Equal(job.Due) {
		if job.Status == models.StatusStarted || job.Status == models.StatusCompleted {
			// due is immutable once the session ran
			d.StatusRejectedMsg = "due date can no longer be changed"
		} else {
			d.Logs = append(d.Logs, ChangeLog{Field: "due", Old: formatTime(job.Due), New: formatTime(*req.Due)})
			d.Notifications = append(d.Notifications, NotificationIntent{
				Kind: IntentDueChanged, Audience: AudienceCustomer,
				Data: map[string]string{"old_time": formatTime(job.Due)},
			})
			mutated.Due = *req.Due
			d.Accepted = true
		}
	}

	if req.FromLanguageID != nil && *req.FromLanguageID != job.FromLanguageID {
		d.Logs = append(d.Logs, ChangeLog{
			Field: "from_language_id",
			Old:   strconv.FormatInt(job.FromLanguageID, 10),
			New:   strconv.FormatInt(*req.FromLanguageID, 10),
		})
		d.Notifications = append(d.Notifications, NotificationIntent{
			Kind: IntentLanguageChanged, Audience: AudienceCustomer,
			Data: map[string]string{"old_lang": strconv.FormatInt(job.FromLanguageID, 10)},
		})
		mutated.FromLanguageID = *req.FromLanguageID
		d.Accepted = true
	}

	if req.Status != "" && req.Status != job.Status {
		fn, ok := transitions[transitionKey{job.Status, req.Status}]
		if !ok {
			d.StatusRejectedMsg = fmt.Sprintf("illegal transition %s -> %s", job.Status, req.Status)
		} else if fn(e, &d, req) {
			d.Logs = append(d.Logs, ChangeLog{Field: "status", Old: string(job.Status), New: string(req.Status)})
			mutated.Status = req.Status
			d.StatusChanged = true
			d.Accepted = true
		} else if d.StatusRejectedMsg == "" {
			d.StatusRejectedMsg = fmt.Sprintf("transition %s -> %s rejected", job.Status, req.Status)
		}
	}

	// A booking already in the past changes silently.
	if !mutated.Due.After(now) {
		d.Notifications = nil
	}

	return d
}

func (e *TransitionEngine) planReassignment(d *Decision, current *models.TranslatorAssignment, newTranslatorID int64, now time.Time) {
	if newTranslatorID == 0 {
		return
	}
	if current != nil && current.TranslatorID == newTranslatorID {
		return
	}

	plan := ReassignPlan{
		NewAssignment: models.TranslatorAssignment{
			JobID:        d.Job.ID,
			TranslatorID: newTranslatorID,
			AssignedAt:   now,
		},
	}
	oldID := int64(0)
	if current != nil {
		oldID = current.TranslatorID
		if current.Active() {
			plan.CancelAssignmentID = current.ID
		}
		// clone the row, only the translator changes
		plan.NewAssignment.JobID = current.JobID
	}
	plan.OldTranslatorID = oldID

	d.Reassign = &plan
	d.TranslatorChanged = true
	d.Accepted = true
	d.Logs = append(d.Logs, ChangeLog{
		Field: "translator",
		Old:   strconv.FormatInt(oldID, 10),
		New:   strconv.FormatInt(newTranslatorID, 10),
	})
	d.Notifications = append(d.Notifications, NotificationIntent{
		Kind: IntentTranslatorChanged, Audience: AudienceCustomer,
	})
}

func timedoutToPending(e *TransitionEngine, d *Decision, req ChangeRequest) bool {
	now := e.clock.Now()
	d.Job.CreatedAt = now
	d.Job.WillExpireAt = WillExpireAt(d.Job.Due, now)
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentJobReopened, Audience: AudienceCustomer},
		NotificationIntent{Kind: IntentBroadcastPool, Audience: AudiencePool},
	)
	return true
}

func timedoutToOther(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if !d.TranslatorChanged {
		return false
	}
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentJobAccepted, Audience: AudienceCustomer})
	return true
}

func completedToTimedout(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	return true
}

func startedToCompleted(e *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" || req.SessionTime == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	now := e.clock.Now()
	d.Job.EndAt = &now
	d.Job.SessionTime = req.SessionTime

	sessionText := FormatSessionText(req.SessionTime)
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentSessionEnded, Audience: AudienceCustomer,
			Data: map[string]string{"session_time": sessionText, "for_text": "faktura"}},
		NotificationIntent{Kind: IntentSessionEnded, Audience: AudienceTranslator,
			Data: map[string]string{"session_time": sessionText, "for_text": "lön"}},
	)
	return true
}

func startedToOther(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	return true
}

func pendingToAssigned(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	d.Job.AdminComments = req.AdminComments
	if d.TranslatorChanged {
		d.Notifications = append(d.Notifications,
			NotificationIntent{Kind: IntentJobAccepted, Audience: AudienceCustomer},
			NotificationIntent{Kind: IntentNewTranslator, UserID: d.Reassign.NewAssignment.TranslatorID},
			NotificationIntent{Kind: IntentSessionStartReminder, Audience: AudienceCustomer},
			NotificationIntent{Kind: IntentSessionStartReminder, UserID: d.Reassign.NewAssignment.TranslatorID},
		)
		return true
	}
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentBookingChanged, Audience: AudienceCustomer})
	return true
}

func pendingToTimedout(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentBookingChanged, Audience: AudienceCustomer})
	return true
}

func pendingToOther(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	d.Job.AdminComments = req.AdminComments
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentBookingChanged, Audience: AudienceCustomer})
	return true
}

func withdrawAfter24ToTimedout(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	return true
}

func assignedToWithdraw(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	d.Job.AdminComments = req.AdminComments
	d.Notifications = append(d.Notifications,
		NotificationIntent{Kind: IntentCancelledCustomer, Audience: AudienceCustomer},
		NotificationIntent{Kind: IntentCancelledTranslator, Audience: AudienceTranslator},
	)
	return true
}

func assignedToTimedout(_ *TransitionEngine, d *Decision, req ChangeRequest) bool {
	if req.AdminComments == "" {
		return false
	}
	d.Job.AdminComments = req.AdminComments
	return true
}

// SessionDuration renders the h:m:s interval between due and end.
func SessionDuration(due, end time.Time) string {
	d := end.Sub(due)
	if d < 0 {
		d = -d
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%d:%d", h, m, s)
}

// FormatSessionText turns an "h:m:s" interval into the user-facing
// "h tim m min" wording.
func FormatSessionText(sessionTime string) string {
	parts := strings.Split(sessionTime, ":")
	if len(parts) < 2 {
		return sessionTime
	}
	return parts[0] + " tim " + parts[1] + " min"
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
