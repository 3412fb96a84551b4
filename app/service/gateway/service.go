package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"deskbot/app/client/slack"
	"deskbot/app/service/agent"
	"deskbot/app/service/dispatch"
	"deskbot/app/service/history"
	"deskbot/app/service/ingest"

	"github.com/samber/do"
)

const taskTimeout = 2 * time.Minute

type Conversant interface {
	Respond(ctx context.Context, userID, message string) (string, error)
}

type Pipeline interface {
	Ingest(ctx context.Context, owner string, data []byte, fileName string) (*ingest.Document, error)
	List(ctx context.Context, owner string) ([]string, error)
	Delete(ctx context.Context, owner, storedName string) error
}

type Memory interface {
	Clear(ctx context.Context, userID string) error
}

// Platform is the slice of the chat platform the gateway needs.
type Platform interface {
	PostMessage(ctx context.Context, channelID, text string) error
	Respond(ctx context.Context, responseURL, text string) error
	FileInfo(ctx context.Context, fileID string) (*slack.FileInfo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Service turns platform events into agent, pipeline and memory calls and
// delivers the results back. Events are serialized per user id through
// the dispatcher.
type Service struct {
	platform   Platform
	agent      Conversant
	pipeline   Pipeline
	memory     Memory
	dispatcher *dispatch.Service

	botUserID string
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		platform:   do.MustInvoke[*slack.Client](di),
		agent:      do.MustInvoke[*agent.Service](di),
		pipeline:   do.MustInvoke[*ingest.Service](di),
		memory:     do.MustInvoke[*history.Service](di),
		dispatcher: do.MustInvoke[*dispatch.Service](di),
	}, nil
}

func NewWithDeps(platform Platform, conversant Conversant, pipeline Pipeline, memory Memory, dispatcher *dispatch.Service) *Service {
	return &Service{
		platform:   platform,
		agent:      conversant,
		pipeline:   pipeline,
		memory:     memory,
		dispatcher: dispatcher,
	}
}

// SetBotUser records the bot's own user id, resolved at connect time, so
// self-triggered events can be dropped.
func (s *Service) SetBotUser(userID string) {
	s.botUserID = userID
}

// HandleEnvelope parses one socket envelope and schedules its work on the
// user's worker. The envelope was already acknowledged by the socket
// loop; this never blocks on the actual handling.
func (s *Service) HandleEnvelope(envelope slack.Envelope) error {
	event, ok, err := slack.ParseEnvelope(envelope)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if event.UserID == "" {
		slog.Debug("Ignoring event without user id", "kind", string(event.Kind))
		return nil
	}

	submitted := s.dispatcher.Submit(event.UserID, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		switch event.Kind {
		case slack.EventMessage:
			s.handleMessage(ctx, event)
		case slack.EventFileShared:
			s.handleFileShared(ctx, event)
		case slack.EventCommand:
			s.handleCommand(ctx, event)
		}
	})
	if !submitted {
		slog.Warn("Dropped event, user queue is full", "user_id", event.UserID, "kind", string(event.Kind))
		s.notifyBusy(event)
	}

	return nil
}

// notifyBusy tells the user a dropped event was not handled. The
// envelope was already acked, so this is the only acknowledgment the
// user will ever get.
func (s *Service) notifyBusy(event slack.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const busyText = "I'm handling too many of your requests right now. Please try again in a moment."

	if event.Kind == slack.EventCommand {
		if err := s.platform.Respond(ctx, event.ResponseURL, busyText); err != nil {
			slog.Error("Failed to send busy response", "user_id", event.UserID, "error", err)
		}
		return
	}

	s.notify(ctx, event.ChannelID, busyText)
}

func (s *Service) handleMessage(ctx context.Context, event slack.InboundEvent) {
	if event.BotID != "" || event.Subtype == "bot_message" || event.UserID == s.botUserID {
		return
	}

	if event.ChannelType != "im" && !strings.Contains(event.Text, "<@"+s.botUserID+">") {
		return
	}

	reply, err := s.agent.Respond(ctx, event.UserID, event.Text)
	if err != nil {
		slog.Error("Agent turn failed",
			"user_id", event.UserID,
			"error", err,
			"telegram", true,
		)
	}

	if err := s.platform.PostMessage(ctx, event.ChannelID, reply); err != nil {
		slog.Error("Failed to post reply", "channel_id", event.ChannelID, "error", err)
	}
}

func (s *Service) handleFileShared(ctx context.Context, event slack.InboundEvent) {
	info, err := s.platform.FileInfo(ctx, event.FileID)
	if err != nil {
		slog.Error("Failed to resolve file info", "file_id", event.FileID, "error", err)
		s.notify(ctx, event.ChannelID, "Sorry, I couldn't look up that file.")
		return
	}

	// Only PDF uploads are accepted here, even though the pipeline can
	// extract more formats.
	if !strings.HasSuffix(strings.ToLower(info.Name), ".pdf") {
		s.notify(ctx, event.ChannelID, "Only PDF files are supported.")
		return
	}

	data, err := s.platform.Download(ctx, info.DownloadURL)
	if err != nil {
		slog.Error("Failed to download file", "file_id", event.FileID, "error", err)
		s.notify(ctx, event.ChannelID, "Sorry, I couldn't download '"+info.Name+"'.")
		return
	}

	if _, err := s.pipeline.Ingest(ctx, event.UserID, data, info.Name); err != nil {
		slog.Error("Failed to ingest file",
			"file_id", event.FileID,
			"name", info.Name,
			"error", err,
			"telegram", true,
		)
		s.notify(ctx, event.ChannelID, "Sorry, I couldn't ingest '"+info.Name+"'.")
		return
	}

	s.notify(ctx, event.ChannelID, "File '"+info.Name+"' ingested. You can now ask questions about it.")
}

func (s *Service) notify(ctx context.Context, channelID, text string) {
	if err := s.platform.PostMessage(ctx, channelID, text); err != nil {
		slog.Error("Failed to post message", "channel_id", channelID, "error", err)
	}
}
