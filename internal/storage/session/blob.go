package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/blob"
)

const sessionPrefix = "sessions"

// BlobStore keeps one JSON document per session in a blob.Storage,
// at sessions/<id>.json.
type BlobStore struct {
	blobs  blob.Storage
	logger *zap.Logger
}

// NewBlobStore creates a BlobStore over blobs.
func NewBlobStore(blobs blob.Storage, logger *zap.Logger) *BlobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{blobs: blobs, logger: logger}
}

var _ Store = (*BlobStore)(nil)

func sessionPath(id string) string {
	return path.Join(sessionPrefix, id+".json")
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func (b *BlobStore) Save(ctx context.Context, s *simulation.Session) error {
	if s == nil || !validID(s.ID) {
		return fmt.Errorf("save session: %w", storage.ErrInvalidInput)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return b.blobs.Write(ctx, sessionPath(s.ID), data)
}

func (b *BlobStore) Get(ctx context.Context, id string) (*simulation.Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("session %q: %w", id, storage.ErrNotFound)
	}
	return b.read(ctx, sessionPath(id))
}

func (b *BlobStore) read(ctx context.Context, p string) (*simulation.Session, error) {
	data, err := b.blobs.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	var s simulation.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	if s.Trades == nil {
		s.Trades = []simulation.Trade{}
	}
	return &s, nil
}

// List reads every document; unreadable ones are logged and skipped.
func (b *BlobStore) List(ctx context.Context, f Filter) ([]*simulation.Session, error) {
	paths, err := b.blobs.List(ctx, sessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	all := make([]*simulation.Session, 0, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		s, err := b.read(ctx, p)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			b.logger.Warn("skipping unreadable session", zap.String("path", p), zap.Error(err))
			continue
		}
		all = append(all, s)
	}
	return Select(all, f), nil
}

func (b *BlobStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("session %q: %w", id, storage.ErrNotFound)
	}
	p := sessionPath(id)
	exists, err := b.blobs.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("check session %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return b.blobs.Delete(ctx, p)
}
