package consumer

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestRun_NoBrokersReturnsImmediately(t *testing.T) {
	c := New(slog.New(slog.DiscardHandler), nil, Config{Topic: "calendar.settings.updated.v1"}, nil)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run must return without brokers instead of blocking or panicking")
	}
}

func TestRun_WhitespaceBrokersTreatedAsEmpty(t *testing.T) {
	c := New(slog.New(slog.DiscardHandler), nil, Config{Brokers: " , "}, nil)
	if c.reader != nil {
		t.Fatal("whitespace-only broker list must not construct a reader")
	}
}
