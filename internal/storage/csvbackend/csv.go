package csvbackend

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. The record column carries the
// base64 of the canonical binary encoding, so the full slim result
// survives the round trip; the rest are human-readable summary columns.
var headers = []string{
	"url",
	"status_code",
	"mime",
	"language",
	"created_at",
	"link_count",
	"record_base64",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	// Check if file is empty to write headers
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("context: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("context: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("context: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, result *crawlresult.Result) error {
	record := []string{
		result.URL,
		strconv.Itoa(result.StatusCode),
		result.FileInfo.MIME,
		result.Language.ISO6391,
		result.CreatedAt.Format(time.RFC3339Nano),
		strconv.Itoa(len(result.ExtractedLinks)),
		base64.StdEncoding.EncodeToString(result.Encode()),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (just in case)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	return nil
}

func (b *csvBackend) Get(ctx context.Context, url string) (*crawlresult.Result, error) {
	all, err := b.readAll()
	if err != nil {
		return nil, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].URL == url {
			return all[i], nil
		}
	}
	return nil, nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*crawlresult.Result, error) {
	all, err := b.readAll()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]int, len(all))
	for i, r := range all {
		latest[r.URL] = i
	}

	var allFiltered []*crawlresult.Result
	for i, res := range all {
		if latest[res.URL] != i {
			continue
		}
		if filter.URL != "" && res.URL != filter.URL {
			continue
		}
		if filter.StatusCode != nil && res.StatusCode != *filter.StatusCode {
			continue
		}
		if filter.MIME != "" && res.FileInfo.MIME != filter.MIME {
			continue
		}
		if filter.Since != nil && res.CreatedAt.Before(*filter.Since) {
			continue
		}
		allFiltered = append(allFiltered, res)
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

func (b *csvBackend) readAll() ([]*crawlresult.Result, error) {
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

	r := csv.NewReader(b.file)

	// Read headers
	_, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("context: %w", err)
	}

	var all []*crawlresult.Result
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		raw, err := base64.StdEncoding.DecodeString(record[6])
		if err != nil {
			continue // skip malformed rows
		}
		res, err := crawlresult.Decode(raw)
		if err != nil {
			continue // skip malformed rows
		}
		all = append(all, &res)
	}

	return all, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
