package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store. It is safe for concurrent use and records
// how often each key was opened.
type MemStore struct {
	mu       sync.RWMutex
	buckets  map[string]map[string][]byte
	failures map[string]error
	listErr  error
	opens    map[string]int

	// PageSize splits listings into pages of this many keys; ListPages
	// reports how many pages the last listings produced.
	PageSize  int
	listPages int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets:  make(map[string]map[string][]byte),
		failures: make(map[string]error),
		opens:    make(map[string]int),
	}
}

// Put stores data under bucket/key, replacing any previous value.
func (m *MemStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = append([]byte(nil), data...)
}

// PutString is Put for string content.
func (m *MemStore) PutString(bucket, key, data string) {
	m.Put(bucket, key, []byte(data))
}

// FailOpen makes every Open of key return err. The key stays listed.
func (m *MemStore) FailOpen(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = err
}

// FailList makes List return err after the first page has been delivered.
func (m *MemStore) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// List delivers keys under prefix in lexical order, page by page.
func (m *MemStore) List(ctx context.Context, bucket, prefix string, fn func(ObjectInfo) error) error {
	m.mu.RLock()
	var infos []ObjectInfo
	for key, data := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	listErr := m.listErr
	pageSize := m.PageSize
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	if pageSize <= 0 {
		pageSize = 1000
	}

	pages := 0
	for start := 0; start < len(infos) || pages == 0; start += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pages > 0 && listErr != nil {
			return fmt.Errorf("list %s/%s page %d: %w", bucket, prefix, pages+1, listErr)
		}
		pages++

		end := start + pageSize
		if end > len(infos) {
			end = len(infos)
		}
		for _, info := range infos[start:end] {
			if err := fn(info); err != nil {
				return err
			}
		}
	}

	m.mu.Lock()
	m.listPages += pages
	m.mu.Unlock()

	if listErr != nil {
		return fmt.Errorf("list %s/%s: %w", bucket, prefix, listErr)
	}
	return nil
}

// Open returns a reader over the stored bytes.
func (m *MemStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens[key]++
	if err, ok := m.failures[key]; ok {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Opens returns how many times key was opened.
func (m *MemStore) Opens(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens[key]
}

// TotalOpens returns the number of Open calls across all keys.
func (m *MemStore) TotalOpens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.opens {
		total += n
	}
	return total
}

// ListPages returns how many pages all completed listings have produced.
func (m *MemStore) ListPages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPages
}
