package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deskbot/app/client/kv"
	"deskbot/app/util/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	indexed  map[string]string
	removed  []string
	indexErr error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: make(map[string]string)}
}

func (f *fakeIndexer) Index(_ context.Context, owner, docName, text string) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed[owner+"/"+docName] = text
	return nil
}

func (f *fakeIndexer) Remove(_ context.Context, owner, docName string) error {
	f.removed = append(f.removed, owner+"/"+docName)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeIndexer) {
	t.Helper()

	indexer := newFakeIndexer()
	return NewWithDeps(kv.NewMemoryStore(), indexer, t.TempDir()), indexer
}

func TestIngestTextFile(t *testing.T) {
	ctx := context.Background()
	svc, indexer := newTestService(t)

	doc, err := svc.Ingest(ctx, "U1", []byte("hello world"), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "U1", doc.Owner)
	assert.True(t, strings.HasPrefix(doc.StoredName, "U1"))
	assert.Equal(t, "hello world", indexer.indexed["U1/U1-notes.txt"])

	extracted, err := os.ReadFile(doc.StoredAt + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(extracted))
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	svc, indexer := newTestService(t)

	_, err := svc.Ingest(context.Background(), "U1", []byte("junk"), "image.png")
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.CodeValidation))

	// rejection happens before extraction, nothing reached the index
	assert.Empty(t, indexer.indexed)
}

func TestListPreservesIngestionOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Ingest(ctx, "U1", []byte("a"), "first.txt")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "U1", []byte("b"), "second.txt")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "U2", []byte("c"), "other.txt")
	require.NoError(t, err)

	names, err := svc.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1-first.txt", "U1-second.txt"}, names)
}

func TestDeleteChecksOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	doc, err := svc.Ingest(ctx, "U1", []byte("hello"), "notes.txt")
	require.NoError(t, err)

	err = svc.Delete(ctx, "U2", doc.StoredName)
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.CodeValidation))

	// still listed for its real owner
	names, err := svc.List(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, names, 1)

	require.NoError(t, svc.Delete(ctx, "U1", doc.StoredName))

	names, err = svc.List(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = os.Stat(doc.StoredAt)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingDocument(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "U1", "U1-ghost.txt")
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.CodeValidation))
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	svc, indexer := newTestService(t)

	doc, err := svc.Ingest(ctx, "U1", []byte("hello"), "notes.txt")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "U1", doc.StoredName))
	assert.Equal(t, []string{"U1/" + doc.StoredName}, indexer.removed)
}

func TestReingestDoesNotDuplicateListing(t *testing.T) {
	ctx := context.Background()
	svc, indexer := newTestService(t)

	_, err := svc.Ingest(ctx, "U1", []byte("first draft"), "notes.txt")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "U1", []byte("second draft"), "notes.txt")
	require.NoError(t, err)

	names, err := svc.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1-notes.txt"}, names)

	// the index holds the latest content
	assert.Equal(t, "second draft", indexer.indexed["U1/U1-notes.txt"])
}

func TestFailedIndexLeavesNothingRegistered(t *testing.T) {
	ctx := context.Background()
	svc, indexer := newTestService(t)
	indexer.indexErr = errors.New("embedding backend down")

	_, err := svc.Ingest(ctx, "U1", []byte("hello"), "notes.txt")
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.CodeCollaborator))

	names, err := svc.List(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, names)

	err = svc.Delete(ctx, "U1", "U1-notes.txt")
	assert.True(t, fault.HasCode(err, fault.CodeValidation))

	_, err = os.Stat(filepath.Join(svc.root, "U1-notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestIngestWritesRawArtifact(t *testing.T) {
	ctx := context.Background()
	indexer := newFakeIndexer()
	root := t.TempDir()
	svc := NewWithDeps(kv.NewMemoryStore(), indexer, root)

	doc, err := svc.Ingest(ctx, "U1", []byte("raw bytes"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "U1-notes.txt"), doc.StoredAt)

	raw, err := os.ReadFile(doc.StoredAt)
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", string(raw))
}
