package crawlresult

import (
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/langdetect"
	"github.com/FranksOps/atra/internal/warcstore"
)

func sampleResult() Result {
	return Result{
		CreatedAt:  time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC),
		URL:        "https://example.com/a?b=c",
		StatusCode: 200,
		FileInfo:   format.Info{MIME: "text/html", Ambiguous: []string{"application/xhtml+xml"}},
		Encoding:   "utf-8",
		Headers: []Header{
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
		FinalRedirect:  "https://example.com/a/",
		ExtractedLinks: []string{"https://example.com/b", "https://example.com/c"},
		Language:       langdetect.Result{ISO6391: "en", Confidence: 0.91},
		StoredData: Warc(warcstore.NewSingle(warcstore.SkipPointer{
			Path:             "/archive/worker_0/atra_job1_w0_1_1.warc",
			Position:         0,
			WarcHeaderOffset: 128,
			BodyOctetCount:   2048,
		}, 128, warcstore.Normal)),
	}
}

func TestResultRoundTrip(t *testing.T) {
	want := sampleResult()
	got, err := Decode(want.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt: got %v want %v", got.CreatedAt, want.CreatedAt)
	}
	if got.URL != want.URL || got.StatusCode != want.StatusCode {
		t.Errorf("URL/StatusCode mismatch: got %+v", got)
	}
	if got.FileInfo.MIME != want.FileInfo.MIME || len(got.FileInfo.Ambiguous) != 1 {
		t.Errorf("FileInfo mismatch: got %+v", got.FileInfo)
	}
	if len(got.Headers) != 3 || got.Headers[1].Value != "a=1" {
		t.Errorf("Headers mismatch: got %+v", got.Headers)
	}
	if got.FinalRedirect != want.FinalRedirect {
		t.Errorf("FinalRedirect mismatch: got %q", got.FinalRedirect)
	}
	if len(got.ExtractedLinks) != 2 {
		t.Errorf("ExtractedLinks mismatch: got %+v", got.ExtractedLinks)
	}
	if got.Language.ISO6391 != "en" || got.Language.Confidence != 0.91 {
		t.Errorf("Language mismatch: got %+v", got.Language)
	}
	if got.StoredData.Kind != HintWarc || got.StoredData.WarcSkip.Pointers[0].BodyOctetCount != 2048 {
		t.Errorf("StoredData mismatch: got %+v", got.StoredData)
	}
}

func TestStoredDataHintVariants(t *testing.T) {
	cases := []StoredDataHint{
		None(),
		External("/archive/big_files/aGVsbG8_1_1.dat"),
		InMemory([]byte("small body")),
	}
	for _, hint := range cases {
		r := sampleResult()
		r.StoredData = hint
		got, err := Decode(r.Encode())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.StoredData.Kind != hint.Kind {
			t.Errorf("kind mismatch: got %v want %v", got.StoredData.Kind, hint.Kind)
		}
		if got.StoredData.ExternalPath != hint.ExternalPath {
			t.Errorf("external path mismatch: got %q want %q", got.StoredData.ExternalPath, hint.ExternalPath)
		}
		if string(got.StoredData.InMemory) != string(hint.InMemory) {
			t.Errorf("in-memory mismatch: got %q want %q", got.StoredData.InMemory, hint.InMemory)
		}
	}
}

func TestDecodeTruncatedBufferFails(t *testing.T) {
	full := sampleResult().Encode()
	if _, err := Decode(full[:len(full)-1]); err == nil {
		t.Fatal("expected error decoding a truncated buffer")
	}
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding an empty buffer")
	}
}
