package booking

import "time"

// Unaccepted-booking expiry tiers. The lead time grows as urgency drops,
// except the final band which anchors on the due time again. Only four
// scenarios are contractual (2h, 20h, 50h, 100h to due); the cut points
// between them live here and nowhere else.
const (
	expiryDueAnchoredMax = 3 * time.Hour  // up to here the job simply expires at due
	expiryShortGraceMax  = 24 * time.Hour // up to here: created + 90min
	expiryLongGraceMax   = 72 * time.Hour // up to here: created + 16h
	expiryShortGrace     = 90 * time.Minute
	expiryLongGrace      = 16 * time.Hour
	expiryFarFuture      = 48 * time.Hour // beyond 72h: due - 48h
)

// WillExpireAt computes when an unaccepted job stops being offered, from
// its due time and creation time.
func WillExpireAt(due, created time.Time) time.Time {
	diff := due.Sub(created)
	switch {
	case diff <= expiryDueAnchoredMax:
		return due
	case diff <= expiryShortGraceMax:
		return created.Add(expiryShortGrace)
	case diff <= expiryLongGraceMax:
		return created.Add(expiryLongGrace)
	default:
		return due.Add(-expiryFarFuture)
	}
}
