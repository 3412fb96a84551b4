package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"deskbot/app/client/kv"
	"deskbot/app/config"
	"deskbot/app/util/fault"

	"github.com/google/uuid"
	"github.com/samber/do"
)

// Indexer registers extracted text with the retrieval backend so doc_qa
// can find it later.
type Indexer interface {
	Index(ctx context.Context, owner, docName, text string) error
	Remove(ctx context.Context, owner, docName string) error
}

type Service struct {
	store   kv.Store
	indexer Indexer
	root    string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		return nil, fault.Storage().Errorf("failed to create storage root: %w", err)
	}

	return &Service{
		store:   do.MustInvoke[kv.Store](di),
		indexer: do.MustInvoke[Indexer](di),
		root:    cfg.Storage.Root,
	}, nil
}

func NewWithDeps(store kv.Store, indexer Indexer, root string) *Service {
	return &Service{store: store, indexer: indexer, root: root}
}

func docKey(storedName string) string {
	return "doc:" + storedName
}

func ownerDocsKey(owner string) string {
	return "docs:" + owner
}

// Validate checks the filename against the extraction allow-list.
func (s *Service) Validate(fileName string) error {
	if FormatForName(fileName) == FormatUnsupported {
		return fault.Validation().Errorf("unsupported file type %q, only .txt, .pdf and .docx are accepted", filepath.Ext(fileName))
	}

	return nil
}

// Ingest validates, extracts, registers and indexes one uploaded file.
// Registration comes before indexing, so the index never holds chunks of
// a document the user cannot list or delete; a failed index unregisters
// the document again.
func (s *Service) Ingest(ctx context.Context, owner string, data []byte, fileName string) (*Document, error) {
	if err := s.Validate(fileName); err != nil {
		return nil, err
	}

	text, err := ExtractText(data, fileName)
	if err != nil {
		return nil, err
	}

	storedName := owner + "-" + fileName

	artifactPath := filepath.Join(s.root, storedName)
	if err := os.WriteFile(artifactPath, data, 0644); err != nil {
		return nil, fault.Storage().Errorf("failed to store artifact: %w", err)
	}
	if err := os.WriteFile(artifactPath+".txt", []byte(text), 0644); err != nil {
		return nil, fault.Storage().Errorf("failed to store extracted text: %w", err)
	}

	doc := &Document{
		ID:         uuid.NewString(),
		Owner:      owner,
		Name:       fileName,
		StoredName: storedName,
		StoredAt:   artifactPath,
		Format:     FormatForName(fileName).String(),
		IngestedAt: time.Now().UTC(),
	}

	record, err := json.Marshal(doc)
	if err != nil {
		return nil, fault.Storage().Errorf("failed to marshal document record: %w", err)
	}
	if err := s.store.Set(ctx, docKey(storedName), record); err != nil {
		return nil, fault.Storage().Errorf("failed to register document: %w", err)
	}

	// re-ingesting the same file must not list it twice
	if err := s.store.ListRem(ctx, ownerDocsKey(owner), []byte(storedName)); err != nil {
		s.unregister(ctx, owner, storedName, artifactPath)
		return nil, fault.Storage().Errorf("failed to replace document name: %w", err)
	}
	if err := s.store.ListPush(ctx, ownerDocsKey(owner), []byte(storedName)); err != nil {
		s.unregister(ctx, owner, storedName, artifactPath)
		return nil, fault.Storage().Errorf("failed to register document name: %w", err)
	}

	if err := s.indexer.Index(ctx, owner, storedName, text); err != nil {
		s.unregister(ctx, owner, storedName, artifactPath)
		return nil, fault.Collaborator().Errorf("failed to index document: %w", err)
	}

	slog.Info("Ingested document",
		"owner", owner,
		"name", fileName,
		"format", doc.Format,
		"text_len", len(text),
	)

	return doc, nil
}

// unregister rolls a half-finished ingestion back so the document is
// neither listed nor retrievable. Best effort, errors are only logged.
func (s *Service) unregister(ctx context.Context, owner, storedName, artifactPath string) {
	if err := s.indexer.Remove(ctx, owner, storedName); err != nil {
		slog.Warn("Failed to unregister document chunks", "stored_name", storedName, "error", err)
	}
	if err := s.store.Del(ctx, docKey(storedName)); err != nil {
		slog.Warn("Failed to unregister document record", "stored_name", storedName, "error", err)
	}
	if err := s.store.ListRem(ctx, ownerDocsKey(owner), []byte(storedName)); err != nil {
		slog.Warn("Failed to unregister document name", "stored_name", storedName, "error", err)
	}

	_ = os.Remove(artifactPath + ".txt")
	_ = os.Remove(artifactPath)
}

// List returns the user's stored document names in ingestion order.
func (s *Service) List(ctx context.Context, owner string) ([]string, error) {
	items, err := s.store.ListRange(ctx, ownerDocsKey(owner))
	if err != nil {
		return nil, fault.Storage().Errorf("failed to list documents: %w", err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, string(item))
	}

	return names, nil
}

// Delete removes a stored document, but only for its recorded owner.
func (s *Service) Delete(ctx context.Context, owner, storedName string) error {
	record, err := s.store.Get(ctx, docKey(storedName))
	if errors.Is(err, kv.ErrNotFound) {
		return fault.Validation().Errorf("file %q not found", storedName)
	}
	if err != nil {
		return fault.Storage().Errorf("failed to read document record: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(record, &doc); err != nil {
		return fault.Storage().Errorf("corrupt document record: %w", err)
	}

	if doc.Owner != owner {
		return fault.Validation().Errorf("file %q is not owned by you", storedName)
	}

	if err := s.indexer.Remove(ctx, owner, storedName); err != nil {
		slog.Warn("Failed to remove document from index",
			"owner", owner,
			"stored_name", storedName,
			"error", err,
		)
	}

	_ = os.Remove(doc.StoredAt + ".txt")
	_ = os.Remove(doc.StoredAt)

	if err := s.store.Del(ctx, docKey(storedName)); err != nil {
		return fault.Storage().Errorf("failed to delete document record: %w", err)
	}
	if err := s.store.ListRem(ctx, ownerDocsKey(owner), []byte(storedName)); err != nil {
		return fault.Storage().Errorf("failed to delete document name: %w", err)
	}

	slog.Info("Deleted document", "owner", owner, "stored_name", storedName)

	return nil
}
