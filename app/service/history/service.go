package history

import (
	"context"
	"encoding/json"
	"log/slog"

	"deskbot/app/client/kv"
	"deskbot/app/util/fault"

	"github.com/samber/do"
)

// Service stores per-user conversation history on the key-value backend.
// Appends go through an atomic server-side list push, so concurrent
// appends for the same user never lose a turn.
type Service struct {
	store kv.Store
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		store: do.MustInvoke[kv.Store](di),
	}, nil
}

func NewWithStore(store kv.Store) *Service {
	return &Service{store: store}
}

func historyKey(userID string) string {
	return "user:" + userID + ":history"
}

// Get returns the stored turns in insertion order. A user with no history
// yields an empty slice, not an error.
func (s *Service) Get(ctx context.Context, userID string) ([]Turn, error) {
	items, err := s.store.ListRange(ctx, historyKey(userID))
	if err != nil {
		return nil, fault.Storage().Errorf("failed to read history: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal(item, &turn); err != nil {
			return nil, fault.Storage().Errorf("corrupt history entry: %w", err)
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

func (s *Service) Append(ctx context.Context, userID string, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fault.Storage().Errorf("failed to marshal turn: %w", err)
	}

	if err := s.store.ListPush(ctx, historyKey(userID), data); err != nil {
		return fault.Storage().Errorf("failed to append turn: %w", err)
	}

	slog.Debug("Appended history turn", "user_id", userID)

	return nil
}

// Clear removes all history for the user. Clearing an absent history is a
// no-op success.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Del(ctx, historyKey(userID)); err != nil {
		return fault.Storage().Errorf("failed to clear history: %w", err)
	}

	slog.Info("Cleared history", "user_id", userID)

	return nil
}
