package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deskbot/app/client/slack"
	"deskbot/app/service/gateway"

	"github.com/samber/do"
)

const reconnectDelay = 2 * time.Second

// Service owns the socket connection lifecycle: connect, feed envelopes
// to the gateway, reconnect on failure.
type Service struct {
	slackClient *slack.Client
	gatewaySvc  *gateway.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		slackClient: do.MustInvoke[*slack.Client](di),
		gatewaySvc:  do.MustInvoke[*gateway.Service](di),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	auth, err := s.slackClient.AuthTest(ctx)
	for err != nil {
		slog.Error("auth.test failed", "error", err, "telegram", true)
		if sleepErr := sleepWithContext(ctx, reconnectDelay); sleepErr != nil {
			return
		}
		auth, err = s.slackClient.AuthTest(ctx)
	}

	s.gatewaySvc.SetBotUser(auth.UserID)
	slog.Info("Resolved bot identity", "bot_user_id", auth.UserID, "team", auth.Team)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.runIteration(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Socket loop error", "error", err)
			if err := sleepWithContext(ctx, reconnectDelay); err != nil {
				return
			}
		}
	}
}

func (s *Service) runIteration(ctx context.Context) error {
	conn, err := s.slackClient.ConnectSocket(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("Socket connected")

	return slack.ConsumeSocket(ctx, conn, func(envelope slack.Envelope) error {
		if err := s.gatewaySvc.HandleEnvelope(envelope); err != nil {
			slog.Warn("Failed to handle envelope", "type", envelope.Type, "error", err)
		}

		return nil
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
