package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var _ URLStorer = (*memoryStore)(nil)

var errClosed = errors.New("memory store is closed")

type memoryStore struct {
	sync.Mutex
	urls map[string]*URLRecord
}

func (ms *memoryStore) Get(id string) (*URLRecord, error) {
	ms.Lock()
	defer ms.Unlock()
	if ms.urls == nil {
		return nil, errClosed
	}
	r, ok := ms.urls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (ms *memoryStore) SetRecord(record *URLRecord) error {
	ms.Lock()
	defer ms.Unlock()
	if ms.urls == nil {
		return errClosed
	}
	ms.urls[record.ID] = record
	return nil
}

func (ms *memoryStore) List(includeExpired bool) ([]*URLRecord, error) {
	records := []*URLRecord{}
	ms.Lock()
	defer ms.Unlock()
	if ms.urls == nil {
		return nil, errClosed
	}

	for _, value := range ms.urls {
		if !includeExpired && value.Expires.Before(time.Now().UTC()) {
			continue
		}
		records = append(records, value)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (ms *memoryStore) Close() error {
	ms.Lock()
	defer ms.Unlock()
	ms.urls = nil
	return nil
}

// NewMemoryStore returns an in-memory URLStorer.
func NewMemoryStore() URLStorer {
	return &memoryStore{
		urls: make(map[string]*URLRecord),
	}
}
