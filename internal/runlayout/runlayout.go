// Package runlayout owns the on-disk directory structure of one crawl
// run:
//
//	<root>/<mode>_<base32-time>_<base32-rand>/
//	  worker_<i>/<service>_<job>_<worker>_<ts64>_<serial>.warc
//	  big_files/<url64>_<ts64>_<serial>.dat
//	  index.db
//	  link_state.db
//	  queue.dat
package runlayout

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// noPad is the base32 alphabet used in run directory and big-file names:
// standard alphabet, no padding, lower-cased for readable paths.
var noPad = base32.StdEncoding.WithPadding(base32.NoPadding)

const (
	indexDBName     = "index.db"
	linkStateDBName = "link_state.db"
	queueFileName   = "queue.dat"
	bigFilesDirName = "big_files"
)

// Run is the resolved directory layout of one crawl session.
type Run struct {
	// Dir is the session directory, <root>/<mode>_<time>_<rand>.
	Dir string
	// Mode is the subcommand that started the run ("single" or "multi").
	Mode string

	bigFileSerial atomic.Uint64
}

// New allocates a fresh session directory under root. The name embeds the
// creation time and a random component so concurrent runs under the same
// root never collide.
func New(root, mode string) (*Run, error) {
	stamp := encodeTime(time.Now())
	entropy, err := randomComponent()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, fmt.Sprintf("%s_%s_%s", mode, stamp, entropy))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("context: creating run directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, bigFilesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("context: creating big_files directory: %w", err)
	}
	return &Run{Dir: dir, Mode: mode}, nil
}

// Attach resumes an existing session directory, e.g. after a crash: the
// queue file, link-state DB and index DB inside it are picked up as-is.
func Attach(dir string) (*Run, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("context: attaching to run directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("context: run path %q is not a directory", dir)
	}
	base := filepath.Base(dir)
	mode := base
	if i := strings.Index(base, "_"); i > 0 {
		mode = base[:i]
	}
	if err := os.MkdirAll(filepath.Join(dir, bigFilesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("context: creating big_files directory: %w", err)
	}
	return &Run{Dir: dir, Mode: mode}, nil
}

// WorkerDir returns (and creates) the WARC directory for worker i.
func (r *Run) WorkerDir(i int) (string, error) {
	dir := filepath.Join(r.Dir, fmt.Sprintf("worker_%d", i))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("context: creating worker directory %q: %w", dir, err)
	}
	return dir, nil
}

// IndexDBPath returns the path of the slim-result index database.
func (r *Run) IndexDBPath() string { return filepath.Join(r.Dir, indexDBName) }

// LinkStateDBPath returns the path of the link-state database.
func (r *Run) LinkStateDBPath() string { return filepath.Join(r.Dir, linkStateDBName) }

// QueueFilePath returns the path of the durable URL queue file.
func (r *Run) QueueFilePath() string { return filepath.Join(r.Dir, queueFileName) }

// BigFilePath allocates a fresh path under big_files/ for a body too large
// to embed in a WARC record, named <url64>_<ts64>_<serial>.dat.
func (r *Run) BigFilePath(url string) string {
	name := fmt.Sprintf("%s_%d_%d.dat",
		encodeURLComponent(url), time.Now().UnixNano(), r.bigFileSerial.Add(1))
	return filepath.Join(r.Dir, bigFilesDirName, name)
}

func encodeTime(t time.Time) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	return strings.ToLower(noPad.EncodeToString(buf[:]))
}

func randomComponent() (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("context: generating run directory entropy: %w", err)
	}
	return strings.ToLower(noPad.EncodeToString(buf[:])), nil
}

// encodeURLComponent renders url as a filesystem-safe base32 token,
// truncated so the resulting file name stays within common path limits.
func encodeURLComponent(url string) string {
	enc := strings.ToLower(noPad.EncodeToString([]byte(url)))
	if len(enc) > 64 {
		enc = enc[:64]
	}
	return enc
}
