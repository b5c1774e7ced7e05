package risk

import (
	"strings"
	"time"

	"signal-trade-bot-go/internal/models"
)

// CooldownTracker enforces a minimum gap between trades on the same symbol.
type CooldownTracker struct {
	Hours float64
}

// InCooldown reports whether last was opened less than Hours before now.
// A nil trade or an unknown open time is never in cooldown.
func (c CooldownTracker) InCooldown(last *models.Trade, now time.Time) bool {
	if last == nil || last.OpenedAt.IsZero() {
		return false
	}
	elapsed := now.UTC().Sub(last.OpenedAt.UTC())
	return elapsed < time.Duration(c.Hours*float64(time.Hour))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp reads an ISO-8601 timestamp with or without a zone suffix.
// Naive values are taken as UTC. The zero time is returned for unparseable input,
// which InCooldown treats as "not in cooldown".
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "+00:00") {
		s = strings.TrimSuffix(s, "+00:00") + "Z"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
