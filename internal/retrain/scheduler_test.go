package retrain

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("0 3 * * *")
	require.NoError(t, err)
	from := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 6, 16, 3, 0, 0, 0, time.UTC), s.Next(from))

	s, err = ParseSchedule(" @daily ")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), s.Next(from))

	for _, bad := range []string{"", "every day", "61 * * * *", "0 0 0 * * *"} {
		_, err := ParseSchedule(bad)
		require.Error(t, err, bad)
	}
}

func TestSchedulerStopsWithContext(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewScheduler("@every 1h", func(context.Context) error { return nil }, quiet)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Stop()

	_, err = NewScheduler("not a schedule", func(context.Context) error { return nil }, quiet)
	require.Error(t, err)
}
