package slack

import (
	"encoding/json"
	"strings"

	"deskbot/app/util/fault"
)

type EventKind string

const (
	EventMessage    EventKind = "message"
	EventFileShared EventKind = "file_shared"
	EventCommand    EventKind = "command"
)

// InboundEvent is the flattened view of a socket envelope the gateway
// dispatches on.
type InboundEvent struct {
	Kind EventKind

	UserID      string
	ChannelID   string
	ChannelType string
	Text        string

	// set for message events
	BotID   string
	Subtype string

	// set for file_shared events
	FileID string

	// set for command envelopes
	Command     string
	ArgsText    string
	ResponseURL string
}

type messagePayload struct {
	Event struct {
		Type        string `json:"type"`
		User        string `json:"user"`
		UserID      string `json:"user_id"`
		Text        string `json:"text"`
		Channel     string `json:"channel"`
		ChannelID   string `json:"channel_id"`
		ChannelType string `json:"channel_type"`
		BotID       string `json:"bot_id"`
		Subtype     string `json:"subtype"`
		FileID      string `json:"file_id"`
	} `json:"event"`
}

type commandPayload struct {
	Command     string `json:"command"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id"`
	Text        string `json:"text"`
	ResponseURL string `json:"response_url"`
}

// ParseEnvelope turns a socket envelope into an inbound event. The second
// return is false for envelope types this gateway does not handle.
func ParseEnvelope(envelope Envelope) (InboundEvent, bool, error) {
	switch envelope.Type {
	case "events_api":
		var payload messagePayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return InboundEvent{}, false, fault.Transport().Errorf("events_api payload decode: %w", err)
		}

		event := payload.Event
		switch event.Type {
		case "app_mention", "message":
			return InboundEvent{
				Kind:        EventMessage,
				UserID:      event.User,
				ChannelID:   event.Channel,
				ChannelType: event.ChannelType,
				Text:        strings.TrimSpace(event.Text),
				BotID:       event.BotID,
				Subtype:     event.Subtype,
			}, true, nil
		case "file_shared":
			userID := event.UserID
			if userID == "" {
				userID = event.User
			}
			// file_shared carries the channel as channel_id
			channelID := event.ChannelID
			if channelID == "" {
				channelID = event.Channel
			}
			return InboundEvent{
				Kind:      EventFileShared,
				UserID:    userID,
				ChannelID: channelID,
				FileID:    event.FileID,
			}, true, nil
		}

		return InboundEvent{}, false, nil

	case "slash_commands":
		var payload commandPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return InboundEvent{}, false, fault.Transport().Errorf("slash command payload decode: %w", err)
		}

		return InboundEvent{
			Kind:        EventCommand,
			UserID:      payload.UserID,
			ChannelID:   payload.ChannelID,
			Command:     strings.TrimPrefix(payload.Command, "/"),
			ArgsText:    strings.TrimSpace(payload.Text),
			ResponseURL: payload.ResponseURL,
		}, true, nil
	}

	return InboundEvent{}, false, nil
}
