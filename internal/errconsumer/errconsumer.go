// Package errconsumer funnels every error the crawl loop produces through
// one classifier: each error is either recovered from (logged,
// the worker keeps going) or aborts the worker. Only queue file errors and
// a corrupt WARC writer are worker-fatal by default.
package errconsumer

import (
	"errors"
	"log/slog"

	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/warcstore"
)

// Decision is the classification of one consumed error.
type Decision int

const (
	// RecoverAndContinue means the error was logged and the worker should
	// move on to the next URL.
	RecoverAndContinue Decision = iota
	// AbortWorker means the worker cannot make further progress and must
	// stop (the rest of the pool keeps running).
	AbortWorker
)

// Consumer classifies crawl-pipeline errors.
type Consumer interface {
	Consume(err error) Decision
}

// Default is the standard Consumer: structured logging with a severity
// matching the decision, and only queue/writer fatals abort the worker.
type Default struct {
	logger *slog.Logger
}

// New builds a Default consumer. logger defaults to slog.Default() if nil.
func New(logger *slog.Logger) *Default {
	if logger == nil {
		logger = slog.Default()
	}
	return &Default{logger: logger}
}

// Consume logs err and returns the decision for it.
func (c *Default) Consume(err error) Decision {
	if err == nil {
		return RecoverAndContinue
	}
	switch {
	case errors.Is(err, queue.ErrIO):
		c.logger.Error("queue file error, aborting worker", "error", err)
		return AbortWorker
	case errors.Is(err, warcstore.ErrCorrupt):
		c.logger.Error("warc writer is corrupt, aborting worker", "error", err)
		return AbortWorker
	case errors.Is(err, queue.ErrCodec):
		c.logger.Warn("dropping undecodable queue entry", "error", err)
		return RecoverAndContinue
	default:
		c.logger.Warn("recovering from crawl error", "error", err)
		return RecoverAndContinue
	}
}
