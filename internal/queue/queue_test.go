package queue

import (
	"path/filepath"
	"testing"

	"github.com/FranksOps/atra/internal/atraurl"
)

func mustSeed(t *testing.T, raw string) atraurl.URL {
	t.Helper()
	u, err := atraurl.FromSeed(raw)
	if err != nil {
		t.Fatalf("seeding %q: %v", raw, err)
	}
	return u
}

func TestEnqueueDequeueOrderFIFO(t *testing.T) {
	q, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range []string{"https://www.test1.de", "https://www.test2.de", "https://www.test3.de"} {
		if err := q.Enqueue(NewSeed(mustSeed(t, raw))); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := q.Len(), 3; got != want {
		t.Fatalf("got len %d want %d", got, want)
	}
	for _, want := range []string{"https://www.test1.de/", "https://www.test2.de/", "https://www.test3.de/"} {
		e, ok, err := q.Dequeue()
		if err != nil || !ok {
			t.Fatalf("dequeue: ok=%v err=%v", ok, err)
		}
		if got := e.Target.String(); got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	if !q.IsEmpty() {
		t.Fatalf("expected queue to be empty")
	}
}

func TestEnqueueAllThenDequeueN(t *testing.T) {
	q, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		NewSeed(mustSeed(t, "https://www.test1.de")),
		NewSeed(mustSeed(t, "https://www.test2.de")),
		NewSeed(mustSeed(t, "https://www.test3.de")),
	}
	if err := q.EnqueueAll(entries); err != nil {
		t.Fatal(err)
	}
	got, err := q.DequeueN(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries want 3", len(got))
	}
	if got[0].Target.String() != "https://www.test1.de/" {
		t.Fatalf("unexpected first entry: %s", got[0])
	}
}

func TestDequeueOnEmptyQueue(t *testing.T) {
	q, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := q.Dequeue()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected ok=false on empty queue")
	}
}

func TestSubscribeWakesOnEnqueue(t *testing.T) {
	q, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	ch := q.Subscribe()
	if err := q.Enqueue(NewSeed(mustSeed(t, "https://www.test1.de"))); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	default:
		t.Fatalf("expected subscribe channel to be closed after enqueue")
	}
}

func TestEnqueueIncrementsAge(t *testing.T) {
	q, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	e := NewDiscovered(mustSeed(t, "https://www.test1.de"))
	for round := 1; round <= 3; round++ {
		if err := q.Enqueue(e); err != nil {
			t.Fatal(err)
		}
		var ok bool
		e, ok, err = q.Dequeue()
		if err != nil || !ok {
			t.Fatalf("dequeue round %d: ok=%v err=%v", round, ok, err)
		}
		if got, want := e.Age, uint32(round); got != want {
			t.Fatalf("round %d: got age %d want %d", round, got, want)
		}
	}
}

func TestAgeByOne(t *testing.T) {
	e := NewDiscovered(mustSeed(t, "https://www.test1.de"))
	e.AgeByOne()
	e.AgeByOne()
	if e.Age != 2 {
		t.Fatalf("got age %d want 2", e.Age)
	}
}

func TestFileBackedQueuePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test0.q")

	q, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(NewSeed(mustSeed(t, "https://www.test1.de"))); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(NewSeed(mustSeed(t, "https://www.test2.de"))); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := reopened.Len(), 2; got != want {
		t.Fatalf("got len %d want %d", got, want)
	}
	e, ok, err := reopened.Dequeue()
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if got, want := e.Target.String(), "https://www.test1.de/"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
