package errconsumer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/warcstore"
)

func TestClassification(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name string
		err  error
		want Decision
	}{
		{"nil", nil, RecoverAndContinue},
		{"queue io", fmt.Errorf("wrapping: %w", queue.ErrIO), AbortWorker},
		{"queue codec", fmt.Errorf("wrapping: %w", queue.ErrCodec), RecoverAndContinue},
		{"warc corrupt", fmt.Errorf("wrapping: %w", warcstore.ErrCorrupt), AbortWorker},
		{"fetch failure", errors.New("connection refused"), RecoverAndContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Consume(tt.err); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}
