package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/stats"
)

// isolateAWS points the SDK at static test credentials and away from any
// local AWS configuration.
func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

// putRecorder is a fake S3 endpoint that records the last PUT.
type putRecorder struct {
	mu     sync.Mutex
	method string
	path   string
	header http.Header
	body   []byte
}

func (p *putRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.method, p.path, p.header, p.body = r.Method, r.URL.Path, r.Header.Clone(), b
	p.mu.Unlock()
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func TestS3Destination_Write(t *testing.T) {
	isolateAWS(t)
	rec := &putRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ctx := context.Background()
	d, err := NewS3Destination(ctx, "backups", "eventdesk/events.jsonl", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	if d.Name() != "s3://backups/eventdesk/events.jsonl" {
		t.Errorf("Name() = %q", d.Name())
	}

	snap := &Snapshot{
		Data:   []byte(`{"type":"header","version":"1"}` + "\n"),
		Taken:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Events: 4,
		Stats:  stats.Snapshot{Total: 4, Failed: 3, Success: 1},
		Digest: "feed",
	}
	if err := d.Write(ctx, snap); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", rec.method)
	}
	if rec.path != "/backups/eventdesk/events.jsonl" {
		t.Errorf("path = %q, want path-style bucket/key", rec.path)
	}
	if !bytes.Contains(rec.body, bytes.TrimSpace(snap.Data)) {
		t.Errorf("uploaded body %q does not contain the snapshot", rec.body)
	}
	for name, want := range map[string]string{
		"X-Amz-Meta-Snapshot-Time": "2026-03-01T12:30:00Z",
		"X-Amz-Meta-Event-Count":   "4",
		"X-Amz-Meta-Failed-Count":  "3",
		"X-Amz-Meta-Digest":        "feed",
	} {
		if got := rec.header.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestS3Destination_KeyTemplate(t *testing.T) {
	isolateAWS(t)
	rec := &putRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ctx := context.Background()
	d, err := NewS3Destination(ctx, "backups", "events/{date}/{time}.jsonl", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	taken := time.Date(2026, 3, 1, 23, 5, 9, 0, time.FixedZone("CET", 3600))
	if err := d.Write(ctx, &Snapshot{Data: []byte("x\n"), Taken: taken}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.path != "/backups/events/2026-03-01/20260301T220509Z.jsonl" {
		t.Errorf("path = %q", rec.path)
	}
}

func TestS3Destination_WriteError(t *testing.T) {
	isolateAWS(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	defer srv.Close()

	ctx := context.Background()
	d, err := NewS3Destination(ctx, "backups", "events.jsonl", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	if err := d.Write(ctx, &Snapshot{Data: []byte("x\n")}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
