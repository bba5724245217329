package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed storage.Backend. The file is an
// append-only log: a recrawl of a URL appends a newer line, and readers
// resolve the latest line per URL.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	return &jsonBackend{
		file: f,
	}, nil
}

func (b *jsonBackend) Save(ctx context.Context, result *crawlresult.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.file.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	return nil
}

func (b *jsonBackend) Get(ctx context.Context, url string) (*crawlresult.Result, error) {
	all, err := b.readAll()
	if err != nil {
		return nil, err
	}
	// Last write wins: scan from the newest line backwards.
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].URL == url {
			return all[i], nil
		}
	}
	return nil, nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*crawlresult.Result, error) {
	all, err := b.readAll()
	if err != nil {
		return nil, err
	}

	// Keep only the newest line per URL, since Save appends on recrawl.
	latest := make(map[string]int, len(all))
	for i, r := range all {
		latest[r.URL] = i
	}

	var allFiltered []*crawlresult.Result
	for i, r := range all {
		if latest[r.URL] != i {
			continue
		}
		if filter.URL != "" && r.URL != filter.URL {
			continue
		}
		if filter.StatusCode != nil && r.StatusCode != *filter.StatusCode {
			continue
		}
		if filter.MIME != "" && r.FileInfo.MIME != filter.MIME {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		allFiltered = append(allFiltered, r)
	}

	// Order by created_at DESC (reverse the slice)
	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	// Apply Offset
	if filter.Offset > 0 {
		if filter.Offset >= len(allFiltered) {
			return []*crawlresult.Result{}, nil
		}
		allFiltered = allFiltered[filter.Offset:]
	}

	// Apply Limit
	if filter.Limit > 0 && filter.Limit < len(allFiltered) {
		allFiltered = allFiltered[:filter.Limit]
	}

	return allFiltered, nil
}

func (b *jsonBackend) readAll() ([]*crawlresult.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var all []*crawlresult.Result
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r crawlresult.Result
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		all = append(all, &r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return all, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
