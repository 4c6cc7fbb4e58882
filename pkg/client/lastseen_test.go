package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
)

func TestFormatLastSeen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) string { return domain.FormatTime(now.Add(-d)) }

	cases := []struct {
		in   string
		want string
	}{
		{"", "Last seen: unknown"},
		{"yesterday", "Last seen: unknown"},
		{ago(0), "Last seen: just now"},
		{ago(59 * time.Second), "Last seen: just now"},
		{ago(-time.Hour), "Last seen: just now"},
		{ago(time.Minute), "Last seen: 1 min ago"},
		{ago(59 * time.Minute), "Last seen: 59 min ago"},
		{ago(time.Hour), "Last seen: 1h ago"},
		{ago(23*time.Hour + 59*time.Minute), "Last seen: 23h ago"},
		{ago(24 * time.Hour), "Last seen: 1d ago"},
		{ago(10 * 24 * time.Hour), "Last seen: 10d ago"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatLastSeen(tc.in, now), tc.in)
	}
}

func TestPresenceLabel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seen := domain.FormatTime(now.Add(-5 * time.Minute))

	require.Equal(t, "Online", PresenceLabel(domain.UserView{IsOnline: true}, now))
	require.Equal(t, "Last seen: 5 min ago", PresenceLabel(domain.UserView{LastSeenAt: &seen}, now))
	require.Equal(t, "Last seen: unknown", PresenceLabel(domain.UserView{}, now))
}
