package warcstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePathProvider emits unique WARC file paths via the
// service_job_worker_timestamp_serial.warc template. A
// per-process mutex plus an O_CREATE|O_EXCL probe stand in for the
// original's cross-process file lock: good enough for one crawler process
// per run directory, which is this core's ownership model.
type FilePathProvider struct {
	mu      sync.Mutex
	dir     string
	service string
	job     string
	worker  string
	serial  uint64
}

// NewFilePathProvider builds a provider rooted at dir, naming files for the
// given service/job/worker identifiers.
func NewFilePathProvider(dir, service, job, worker string) *FilePathProvider {
	return &FilePathProvider{dir: dir, service: service, job: job, worker: worker}
}

// Next returns a fresh, never-before-returned WARC file path and creates
// the (empty) file so a concurrent provider in another process can't pick
// the same name.
func (p *FilePathProvider) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("context: creating warc directory %q: %w", p.dir, err)
	}

	for {
		p.serial++
		name := fmt.Sprintf("%s_%s_%s_%d_%d.warc", p.service, p.job, p.worker, time.Now().UnixNano(), p.serial)
		path := filepath.Join(p.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return path, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", fmt.Errorf("context: reserving warc file path %q: %w", path, err)
	}
}
