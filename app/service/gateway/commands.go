package gateway

import (
	"context"
	"log/slog"
	"strings"

	"deskbot/app/client/slack"
	"deskbot/app/util/fault"
)

const helpText = `I can answer questions from documents you upload (PDF), solve math problems, draft emails and answer general questions.

Commands:
/list-documents - show your uploaded files
/delete-document <name> - delete one of your files
/clear-history - forget our conversation so far
/help - this message`

func (s *Service) handleCommand(ctx context.Context, event slack.InboundEvent) {
	var reply string

	switch event.Command {
	case "list-documents":
		reply = s.listDocuments(ctx, event.UserID)
	case "delete-document":
		reply = s.deleteDocument(ctx, event.UserID, event.ArgsText)
	case "clear-history":
		reply = s.clearHistory(ctx, event.UserID)
	case "help":
		reply = helpText
	default:
		reply = "Unknown command. Use /help to see what I can do."
	}

	if err := s.platform.Respond(ctx, event.ResponseURL, reply); err != nil {
		slog.Error("Failed to respond to command",
			"command", event.Command,
			"user_id", event.UserID,
			"error", err,
		)
	}
}

func (s *Service) listDocuments(ctx context.Context, userID string) string {
	names, err := s.pipeline.List(ctx, userID)
	if err != nil {
		slog.Error("Failed to list documents", "user_id", userID, "error", err)
		return "Sorry, I couldn't list your files right now."
	}

	if len(names) == 0 {
		return "You have no uploaded files."
	}

	return "Your uploaded files:\n" + strings.Join(names, "\n")
}

func (s *Service) deleteDocument(ctx context.Context, userID, name string) string {
	if name == "" {
		return "Usage: /delete-document <filename>"
	}

	if err := s.pipeline.Delete(ctx, userID, name); err != nil {
		if fault.HasCode(err, fault.CodeValidation) {
			return "File not found or not owned by you."
		}

		slog.Error("Failed to delete document", "user_id", userID, "name", name, "error", err)
		return "Sorry, I couldn't delete that file right now."
	}

	return "Deleted file: " + name
}

func (s *Service) clearHistory(ctx context.Context, userID string) string {
	if err := s.memory.Clear(ctx, userID); err != nil {
		slog.Error("Failed to clear history", "user_id", userID, "error", err)
		return "Sorry, I couldn't clear your history right now."
	}

	return "Your chat history has been cleared."
}
