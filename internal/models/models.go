package models

import "time"

// JobStatus is the booking lifecycle state.
type JobStatus string

const (
	StatusPending               JobStatus = "pending"
	StatusAssigned              JobStatus = "assigned"
	StatusStarted               JobStatus = "started"
	StatusCompleted             JobStatus = "completed"
	StatusTimedout              JobStatus = "timedout"
	StatusWithdrawBefore24      JobStatus = "withdrawbefore24"
	StatusWithdrawAfter24       JobStatus = "withdrawafter24"
	StatusNotCarriedOutCustomer JobStatus = "not_carried_out_customer"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusStarted, StatusCompleted,
		StatusTimedout, StatusWithdrawBefore24, StatusWithdrawAfter24,
		StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// CertificationLevel is a translator qualification tier.
type CertificationLevel string

const (
	LevelCertified       CertificationLevel = "certified"
	LevelCertifiedLaw    CertificationLevel = "certified_in_law"
	LevelCertifiedHealth CertificationLevel = "certified_in_health"
	LevelLayman          CertificationLevel = "layman"
	LevelReadCourses     CertificationLevel = "read_translation_courses"
)

// AllCertificationLevels lists every tier, used when a job carries no
// certification requirement.
var AllCertificationLevels = []CertificationLevel{
	LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth,
	LevelLayman, LevelReadCourses,
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// CertifiedRequirement is the requirement tag derived from the job_for list
// at creation time.
type CertifiedRequirement string

const (
	CertifiedNone    CertifiedRequirement = ""
	CertifiedYes     CertifiedRequirement = "yes"
	CertifiedBoth    CertifiedRequirement = "both"
	CertifiedLaw     CertifiedRequirement = "law"
	CertifiedNLaw    CertifiedRequirement = "n_law"
	CertifiedHealth  CertifiedRequirement = "health"
	CertifiedNHealth CertifiedRequirement = "n_health"
	CertifiedNormal  CertifiedRequirement = "normal"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Job is the booking aggregate root. Times are UTC. Booleans are real
// booleans; legacy yes/no strings from clients are normalized at the API
// boundary.
type Job struct {
	ID                   int64                `json:"id"`
	CustomerID           int64                `json:"customer_id"`
	FromLanguageID       int64                `json:"from_language_id"`
	Due                  time.Time            `json:"due"`
	Immediate            bool                 `json:"immediate"`
	Duration             int                  `json:"duration"` // minutes
	Status               JobStatus            `json:"status"`
	Gender               Gender               `json:"gender,omitempty"` // empty means no preference
	Certified            CertifiedRequirement `json:"certified,omitempty"`
	CustomerPhoneType    bool                 `json:"customer_phone_type"`
	CustomerPhysicalType bool                 `json:"customer_physical_type"`
	Town                 string               `json:"town,omitempty"`
	JobType              JobType              `json:"job_type"`
	AdminComments        string               `json:"admin_comments,omitempty"`
	UserEmail            string               `json:"user_email,omitempty"` // contact override
	Reference            string               `json:"reference,omitempty"`
	Address              string               `json:"address,omitempty"`
	Instructions         string               `json:"instructions,omitempty"`
	SpecificTranslatorID int64                `json:"specific_translator_id,omitempty"`
	WillExpireAt         time.Time            `json:"will_expire_at"`
	SessionTime          string               `json:"session_time,omitempty"` // "h:m:s"
	EndAt                *time.Time           `json:"end_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
}

// TranslatorAssignment links a translator to a job. Rows are append-only;
// cancellation and completion are field updates, never deletes.
type TranslatorAssignment struct {
	ID           int64      `json:"id"`
	JobID        int64      `json:"job_id"`
	TranslatorID int64      `json:"translator_id"`
	AssignedAt   time.Time  `json:"assigned_at"`
	CancelAt     *time.Time `json:"cancel_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CompletedBy  int64      `json:"completed_by,omitempty"`
}

// Active reports whether the assignment is the current one for its job:
// neither cancelled nor completed.
func (a *TranslatorAssignment) Active() bool {
	return a != nil && a.CancelAt == nil && a.CompletedAt == nil
}

type User struct {
	ID           int64  `json:"id"`
	Role         Role   `json:"role"`
	Active       bool   `json:"active"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	PasswordHash string `json:"-"`
}

// ContactEmail returns the job-level contact override when set, the
// account email otherwise.
func (u *User) ContactEmail(j *Job) string {
	if j != nil && j.UserEmail != "" {
		return j.UserEmail
	}
	return u.Email
}

// TranslatorProfile carries per-translator matching and notification meta.
type TranslatorProfile struct {
	UserID             int64              `json:"user_id"`
	TranslatorType     TranslatorType     `json:"translator_type"`
	Languages          []int64            `json:"languages"`
	Gender             Gender             `json:"gender,omitempty"`
	CertificationLevel CertificationLevel `json:"certification_level"`
	Town               string             `json:"town,omitempty"`
	NotGetEmergency    bool               `json:"not_get_emergency"`
	NotGetNighttime    bool               `json:"not_get_nighttime"`
	NotGetNotification bool               `json:"not_get_notification"`
}

// Speaks reports whether the translator covers the given language.
func (p *TranslatorProfile) Speaks(langID int64) bool {
	for _, id := range p.Languages {
		if id == langID {
			return true
		}
	}
	return false
}

// ConsumerType drives job_type derivation at creation.
type ConsumerType string

const (
	ConsumerRWS ConsumerType = "rwsconsumer"
	ConsumerNGO ConsumerType = "ngo"
)

type CustomerProfile struct {
	UserID       int64        `json:"user_id"`
	ConsumerType ConsumerType `json:"consumer_type,omitempty"`
	CustomerType string       `json:"customer_type,omitempty"`
	Town         string       `json:"town,omitempty"`
	Address      string       `json:"address,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
}

type Language struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// YesNo normalizes a legacy "yes"/"no" string flag at the ingestion
// boundary. Anything other than "yes" is false.
func YesNo(s string) bool {
	return s == "yes"
}
