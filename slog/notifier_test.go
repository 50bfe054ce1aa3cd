package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/flatfinder/mock"
	ffslog "github.com/fwojciec/flatfinder/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingNotifier_Send(t *testing.T) {
	t.Parallel()

	t.Run("delegates and logs at debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		var got string
		inner := &mock.Notifier{
			SendFn: func(_ context.Context, message string) error {
				got = message
				return nil
			},
		}

		err := ffslog.NewLoggingNotifier(inner, logger).Send(context.Background(), "hello")

		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Contains(t, buf.String(), "send notification")
		assert.Contains(t, buf.String(), "bytes=5")
	})

	t.Run("passes errors through", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		boom := errors.New("rate limited")
		inner := &mock.Notifier{
			SendFn: func(_ context.Context, _ string) error { return boom },
		}

		err := ffslog.NewLoggingNotifier(inner, logger).Send(context.Background(), "hello")

		require.ErrorIs(t, err, boom)
		assert.Contains(t, buf.String(), "err=\"rate limited\"")
	})
}
