package client

import (
	"fmt"
	"time"

	"marketchat/internal/core/domain"
)

// FormatLastSeen renders a lastSeenAt timestamp relative to now. Missing or unparsable
// values read as unknown; future values as just now.
func FormatLastSeen(lastSeenAt string, now time.Time) string {
	if lastSeenAt == "" {
		return "Last seen: unknown"
	}
	at, err := domain.ParseTime(lastSeenAt)
	if err != nil {
		return "Last seen: unknown"
	}
	diff := now.Sub(at)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Minute:
		return "Last seen: just now"
	case diff < time.Hour:
		return fmt.Sprintf("Last seen: %d min ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("Last seen: %dh ago", int(diff/time.Hour))
	default:
		return fmt.Sprintf("Last seen: %dd ago", int(diff/(24*time.Hour)))
	}
}

// PresenceLabel is "Online" for a live user and FormatLastSeen otherwise.
func PresenceLabel(user domain.UserView, now time.Time) string {
	if user.IsOnline {
		return "Online"
	}
	if user.LastSeenAt == nil {
		return FormatLastSeen("", now)
	}
	return FormatLastSeen(*user.LastSeenAt, now)
}
