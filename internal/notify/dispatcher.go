package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/config"
	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/mailer"
	"github.com/tolkbridge/tolka/pkg/push"
	"github.com/tolkbridge/tolka/pkg/repository"
	"github.com/tolkbridge/tolka/pkg/sms"
)

// Pusher is the slice of the push client the dispatcher needs.
type Pusher interface {
	Send(ctx context.Context, n *push.Notification) error
	AppID() string
}

// Dispatcher turns notification intents into mails, pushes and texts. All
// sends are best effort: a transport failure is logged and swallowed, the
// triggering state change has already committed.
type Dispatcher struct {
	repo    *repository.Repository
	matcher *booking.Matcher
	pusher  Pusher
	mailer  mailer.Mailer
	sms     sms.Sender
	smsFrom string
	cfg     config.NotifyConfig
	clock   booking.Clock
	logger  *slog.Logger
}

var _ booking.Notifier = (*Dispatcher)(nil)

func NewDispatcher(repo *repository.Repository, matcher *booking.Matcher, pusher Pusher, m mailer.Mailer, s sms.Sender, smsFrom string, cfg config.NotifyConfig, clock booking.Clock, logger *slog.Logger) *Dispatcher {
	if clock == nil {
		clock = booking.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repo:    repo,
		matcher: matcher,
		pusher:  pusher,
		mailer:  m,
		sms:     s,
		smsFrom: smsFrom,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

// Broadcast pushes a pending job to every eligible translator and texts
// the ones with a phone number. Recipients in the quiet-hours window who
// have not asked for night notifications get a deferred push instead.
func (d *Dispatcher) Broadcast(ctx context.Context, job *models.Job, excludeTranslatorID int64) {
	batchID := uuid.NewString()

	pool, err := d.repo.Users.ListActiveTranslators(ctx)
	if err != nil {
		d.logger.Error("broadcast: list translators", "job_id", job.ID, "error", err)
		return
	}
	eligible, err := d.matcher.EligibleTranslators(ctx, job, pool)
	if err != nil {
		d.logger.Error("broadcast: match translators", "job_id", job.ID, "error", err)
		return
	}

	now := d.clock.Now()
	night := d.isNight(now)

	var immediate, delayed []models.User
	for _, p := range eligible {
		if p.UserID == excludeTranslatorID {
			continue
		}
		if p.NotGetNotification {
			continue
		}
		if job.Immediate && p.NotGetEmergency {
			continue
		}
		u, err := d.repo.Users.GetUser(ctx, p.UserID)
		if err != nil {
			d.logger.Error("broadcast: load translator", "job_id", job.ID, "user_id", p.UserID, "error", err)
			continue
		}
		if night && p.NotGetNighttime {
			delayed = append(delayed, *u)
		} else {
			immediate = append(immediate, *u)
		}
	}

	lang := d.languageName(ctx, job.FromLanguageID)
	var text string
	if job.Immediate {
		text = fmt.Sprintf("Ny akutbokning för %stolk %dmin", lang, job.Duration)
	} else {
		text = fmt.Sprintf("Ny bokning för %stolk %dmin %s", lang, job.Duration, formatDue(job.Due))
	}
	data := map[string]string{"notification_type": "suitable_job"}

	d.logger.Info("broadcast",
		"job_id", job.ID, "batch_id", batchID,
		"immediate_recipients", len(immediate), "delayed_recipients", len(delayed))

	d.sendPush(ctx, job, immediate, data, text, false)
	d.sendPush(ctx, job, delayed, data, text, true)
	d.sendSMS(ctx, job, append(immediate, delayed...))
}

// Dispatch routes every intent to its transport. Audience recipients are
// resolved here; intents with an explicit user id win over the audience.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job, intents []booking.NotificationIntent) {
	for _, intent := range intents {
		recipient, err := d.resolveRecipient(ctx, job, intent)
		if err != nil {
			d.logger.Error("dispatch: resolve recipient",
				"job_id", job.ID, "kind", intent.Kind, "error", err)
			continue
		}
		if recipient == nil {
			continue
		}
		d.deliver(ctx, job, intent, recipient)
	}
}

func (d *Dispatcher) resolveRecipient(ctx context.Context, job *models.Job, intent booking.NotificationIntent) (*models.User, error) {
	if intent.UserID != 0 {
		return d.repo.Users.GetUser(ctx, intent.UserID)
	}
	switch intent.Audience {
	case booking.AudienceCustomer:
		return d.repo.Users.GetUser(ctx, job.CustomerID)
	case booking.AudienceTranslator:
		a, err := d.repo.Jobs.ActiveAssignment(ctx, job.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return d.repo.Users.GetUser(ctx, a.TranslatorID)
	}
	return nil, fmt.Errorf("no recipient for intent %s", intent.Kind)
}

func (d *Dispatcher) deliver(ctx context.Context, job *models.Job, intent booking.NotificationIntent, to *models.User) {
	lang := d.languageName(ctx, job.FromLanguageID)
	due := formatDue(job.Due)

	switch intent.Kind {
	case booking.IntentJobCreated:
		d.mail(ctx, job, to,
			fmt.Sprintf("Vi har mottagit er tolkbokning. Bokningsnr: #%d", job.ID),
			mailer.TemplateJobCreated, intent.Data)

	case booking.IntentJobAccepted:
		d.mail(ctx, job, to,
			fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %d)", job.ID),
			mailer.TemplateJobAccepted, intent.Data)

	case booking.IntentJobReopened:
		d.mail(ctx, job, to,
			fmt.Sprintf("Vi har nu återöppnat er bokning av %stolk för bokning #%d", lang, job.ID),
			mailer.TemplateJobChangeStatusToCustomer, intent.Data)

	case booking.IntentSessionEnded:
		d.mail(ctx, job, to,
			fmt.Sprintf("Information om avslutad tolkning för bokningsnummer # %d", job.ID),
			mailer.TemplateSessionEnded, intent.Data)

	case booking.IntentBookingChanged:
		d.mail(ctx, job, to,
			fmt.Sprintf("Avbokning av bokningsnr: #%d", job.ID),
			mailer.TemplateStatusChangedCustomer, intent.Data)

	case booking.IntentNewTranslator:
		d.mail(ctx, job, to,
			fmt.Sprintf("Meddelande om tilldelning av tolkuppdrag för uppdrag # %d", job.ID),
			mailer.TemplateJobChangedTranslatorNewTr, intent.Data)

	case booking.IntentTranslatorChanged:
		d.mail(ctx, job, to,
			fmt.Sprintf("Meddelande om tilldelning av tolkuppdrag för uppdrag # %d", job.ID),
			mailer.TemplateJobChangedTranslatorCust, intent.Data)

	case booking.IntentDueChanged:
		d.mail(ctx, job, to,
			fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %d", job.ID),
			mailer.TemplateJobChangedDate, intent.Data)

	case booking.IntentLanguageChanged:
		d.mail(ctx, job, to,
			fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %d", job.ID),
			mailer.TemplateJobChangedLang, intent.Data)

	case booking.IntentCancelledCustomer:
		text := fmt.Sprintf(
			"Er %stolk, %dmin %s, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.",
			lang, job.Duration, due)
		d.pushToUser(ctx, job, to, "job_cancelled", text)

	case booking.IntentCancelledTranslator:
		text := fmt.Sprintf(
			"Kunden har avbokat bokningen för %stolk, %dmin, %s. Var god och kolla dina tidigare bokningar för detaljer.",
			lang, job.Duration, due)
		d.pushToUser(ctx, job, to, "job_cancelled", text)

	case booking.IntentJobExpired:
		text := fmt.Sprintf(
			"Tyvärr har ingen tolk accepterat er bokning: (%s, %dmin, %s). Vänligen pröva boka om tiden.",
			lang, job.Duration, due)
		d.pushToUser(ctx, job, to, "job_expired", text)

	case booking.IntentSessionStartReminder:
		d.pushToUser(ctx, job, to, "session_start_remind", d.reminderText(job, lang))

	default:
		d.logger.Warn("dispatch: unhandled intent", "job_id", job.ID, "kind", intent.Kind)
	}
}

func (d *Dispatcher) reminderText(job *models.Job, lang string) string {
	where := "telefon"
	if job.CustomerPhysicalType && !job.CustomerPhoneType {
		where = "på plats i " + job.Town
	}
	return fmt.Sprintf(
		"Detta är en påminnelse om att du har en %stolkning (%s) kl %s på %s som vara i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
		lang, where, job.Due.UTC().Format("15:04"), job.Due.UTC().Format("2006-01-02"), job.Duration)
}

func (d *Dispatcher) mail(ctx context.Context, job *models.Job, to *models.User, subject, template string, data map[string]string) {
	if d.mailer == nil {
		return
	}
	if err := d.mailer.Send(ctx, to.ContactEmail(job), to.Name, subject, template, data); err != nil {
		d.logger.Error("dispatch: mail failed",
			"job_id", job.ID, "to", to.Email, "template", template, "error", err)
	}
}

// pushToUser sends a single-recipient push, honoring the recipient's
// suppression and quiet-hours preferences.
func (d *Dispatcher) pushToUser(ctx context.Context, job *models.Job, to *models.User, notificationType, text string) {
	profile, err := d.repo.Users.TranslatorProfile(ctx, to.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		d.logger.Error("dispatch: load profile", "job_id", job.ID, "user_id", to.ID, "error", err)
		return
	}
	if profile != nil && profile.NotGetNotification {
		return
	}
	delay := profile != nil && profile.NotGetNighttime && d.isNight(d.clock.Now())

	data := map[string]string{"notification_type": notificationType}
	d.sendPush(ctx, job, []models.User{*to}, data, text, delay)
}

func (d *Dispatcher) sendPush(ctx context.Context, job *models.Job, recipients []models.User, data map[string]string, text string, delay bool) {
	if d.pusher == nil || len(recipients) == 0 {
		return
	}

	emails := make([]string, 0, len(recipients))
	for _, u := range recipients {
		emails = append(emails, u.Email)
	}

	payload := map[string]string{}
	for k, v := range data {
		payload[k] = v
	}
	n := push.NewNotification(d.pusher.AppID(), emails, job.ID, payload,
		map[string]string{"en": text}, job.Immediate)
	if delay {
		n.Delay(d.nextBusinessTime(d.clock.Now()))
	}

	if err := d.pusher.Send(ctx, n); err != nil {
		d.logger.Error("dispatch: push failed",
			"job_id", job.ID, "recipients", len(recipients), "delayed", delay, "error", err)
	}
}

// sendSMS texts the job details to every recipient with a phone number.
// The wording tracks the session modality; physical sessions name the
// town.
func (d *Dispatcher) sendSMS(ctx context.Context, job *models.Job, recipients []models.User) {
	if d.sms == nil || len(recipients) == 0 {
		return
	}

	var text string
	duration := formatDuration(job.Duration)
	date := job.Due.UTC().Format("02.01.2006")
	clock := job.Due.UTC().Format("15:04")
	switch {
	case job.CustomerPhysicalType && !job.CustomerPhoneType:
		text = fmt.Sprintf(
			"Du har fått ett tolkuppdrag på plats i %s den %s kl %s, längd %s. Uppdragsnummer: %d. Svara i appen om du vill ta uppdraget.",
			job.Town, date, clock, duration, job.ID)
	case job.CustomerPhoneType:
		text = fmt.Sprintf(
			"Du har fått ett telefontolkuppdrag den %s kl %s, längd %s. Uppdragsnummer: %d. Svara i appen om du vill ta uppdraget.",
			date, clock, duration, job.ID)
	default:
		return
	}

	for _, u := range recipients {
		if u.Phone == "" {
			continue
		}
		status, err := d.sms.Send(ctx, d.smsFrom, u.Phone, text)
		if err != nil {
			d.logger.Error("dispatch: sms failed", "job_id", job.ID, "to", u.Phone, "error", err)
			continue
		}
		d.logger.Info("sms sent", "job_id", job.ID, "to", u.Email, "status", status)
	}
}

// isNight reports whether t falls inside the quiet-hours window. The
// window wraps midnight when NightStart is later than NightEnd.
func (d *Dispatcher) isNight(t time.Time) bool {
	start := parseClock(d.cfg.NightStart, 22*time.Hour)
	end := parseClock(d.cfg.NightEnd, 6*time.Hour)
	day := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute

	if start > end {
		return day >= start || day < end
	}
	return day >= start && day < end
}

// nextBusinessTime is the send_after point for a delayed push: the coming
// business-day start, or now if business hours already began today and
// quiet hours sit before them.
func (d *Dispatcher) nextBusinessTime(now time.Time) time.Time {
	business := parseClock(d.cfg.BusinessStart, 9*time.Hour)
	day := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute

	start := now.Truncate(24 * time.Hour).Add(business)
	if day >= business {
		start = start.Add(24 * time.Hour)
	}
	return start
}

func parseClock(s string, def time.Duration) time.Duration {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return def
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func (d *Dispatcher) languageName(ctx context.Context, id int64) string {
	name, err := d.repo.Users.LanguageName(ctx, id)
	if err != nil {
		return ""
	}
	return name
}

func formatDue(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatDuration(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	if h == 0 {
		return fmt.Sprintf("%d min", m)
	}
	if m == 0 {
		return fmt.Sprintf("%d tim", h)
	}
	return fmt.Sprintf("%d tim %d min", h, m)
}
