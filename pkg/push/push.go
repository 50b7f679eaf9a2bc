package push

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Notification is the exact wire payload the push provider consumes. Field
// names match the provider API and must not change.
type Notification struct {
	AppID         string            `json:"app_id"`
	Tags          []TagFilter       `json:"tags"`
	Data          map[string]string `json:"data"`
	Title         map[string]string `json:"title"`
	Contents      map[string]string `json:"contents"`
	IOSBadgeType  string            `json:"ios_badgeType"`
	IOSBadgeCount int               `json:"ios_badgeCount"`
	AndroidSound  string            `json:"android_sound"`
	IOSSound      string            `json:"ios_sound"`
	SendAfter     string            `json:"send_after,omitempty"`
}

// TagFilter is one element of the provider's tag targeting expression.
// Filter rows are OR-combined by interleaving operator rows.
type TagFilter struct {
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

const (
	soundNormal    = "normal_booking"
	soundEmergency = "emergency_booking"

	badgeTypeIncrease = "Increase"
)

// NewNotification builds a payload targeting the given emails, with the
// booking sound picked by urgency.
func NewNotification(appID string, emails []string, jobID int64, data map[string]string, contents map[string]string, emergency bool) *Notification {
	if data == nil {
		data = map[string]string{}
	}
	data["job_id"] = fmt.Sprintf("%d", jobID)

	sound := soundNormal
	if emergency {
		sound = soundEmergency
	}

	return &Notification{
		Tags:          EmailTags(emails),
		Data:          data,
		Title:         map[string]string{"en": "Tolka"},
		Contents:      contents,
		IOSBadgeType:  badgeTypeIncrease,
		IOSBadgeCount: 1,
		AndroidSound:  sound,
		IOSSound:      sound + ".mp3",
		AppID:         appID,
	}
}

// Delay schedules the notification instead of sending immediately.
func (n *Notification) Delay(at time.Time) {
	n.SendAfter = at.UTC().Format("2006-01-02 15:04:05 MST")
}

// EmailTags builds the OR-combined email-equality targeting expression.
// Emails are matched case-insensitively, so they are lowered here.
func EmailTags(emails []string) []TagFilter {
	out := make([]TagFilter, 0, 2*len(emails))
	for i, email := range emails {
		if i > 0 {
			out = append(out, TagFilter{Operator: "OR"})
		}
		out = append(out, TagFilter{
			Key:      "email",
			Relation: "=",
			Value:    strings.ToLower(email),
		})
	}
	return out
}

// MarshalBody renders the outbound JSON body.
func (n *Notification) MarshalBody() ([]byte, error) {
	return json.Marshal(n)
}
