package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/blob"
)

// Store persists the whole journal as one snapshot.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// MemoryStore keeps the snapshot in memory
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}

func (m *MemoryStore) Save(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]Record(nil), records...)
	return nil
}

const snapshotPath = "journal/records.json"

type snapshot struct {
	Records []Record `json:"records"`
}

// BlobStore writes the snapshot as an indented JSON document.
type BlobStore struct {
	blobs blob.Storage
}

func NewBlobStore(blobs blob.Storage) *BlobStore {
	return &BlobStore{blobs: blobs}
}

// Load returns an empty journal when no snapshot was written yet.
func (b *BlobStore) Load(ctx context.Context) ([]Record, error) {
	data, err := b.blobs.Read(ctx, snapshotPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return snap.Records, nil
}

func (b *BlobStore) Save(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(snapshot{Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	return b.blobs.Write(ctx, snapshotPath, data)
}
