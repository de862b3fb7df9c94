package publish

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/metorial/runhistory/internal/models"
)

type fakeKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newFakeConsul(t *testing.T) (*httptest.Server, *fakeKV) {
	t.Helper()
	kv := &fakeKV{values: make(map[string][]byte)}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/kv/") {
			t.Errorf("Unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")

		kv.mu.Lock()
		defer kv.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			kv.values[key] = body
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("true"))
		case http.MethodGet:
			value, ok := kv.values[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"Key": key, "Value": value},
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	return server, kv
}

func TestPublish(t *testing.T) {
	server, kv := newFakeConsul(t)
	defer server.Close()

	publisher, err := NewConsulPublisher(server.URL[7:], "runhistory", "build-01")
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	entry := &models.IndexEntry{
		File:        "b.py",
		Timestamp:   "2025-01-01T12:00:00.000000",
		VersionFile: "b_20250101_120000.json",
		GitCommit:   "abc1234",
	}
	result := &models.RunResult{File: "b.py", ReturnCode: -1, TimedOut: true, Error: "Timeout"}

	if err := publisher.Publish(context.Background(), result, entry); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	kv.mu.Lock()
	raw, ok := kv.values["runhistory/b.py/latest"]
	kv.mu.Unlock()
	if !ok {
		t.Fatal("Expected value stored under runhistory/b.py/latest")
	}

	var stored LatestRun
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("Failed to decode stored value: %v", err)
	}

	if stored.VersionFile != entry.VersionFile || !stored.TimedOut || stored.ReturnCode != -1 {
		t.Errorf("Unexpected stored value %+v", stored)
	}

	if stored.Hostname != "build-01" {
		t.Errorf("Expected hostname build-01, got %s", stored.Hostname)
	}
}

func TestLatestRoundTrip(t *testing.T) {
	server, _ := newFakeConsul(t)
	defer server.Close()

	publisher, err := NewConsulPublisher(server.URL[7:], "lessons", "")
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	latest, err := publisher.Latest(context.Background(), "a.py")
	if err != nil {
		t.Fatalf("Failed to read latest: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nothing published yet, got %+v", latest)
	}

	entry := &models.IndexEntry{File: "a.py", Timestamp: "t", VersionFile: "a_1.json", GitCommit: "unknown"}
	if err := publisher.Publish(context.Background(), &models.RunResult{File: "a.py"}, entry); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	latest, err = publisher.Latest(context.Background(), "a.py")
	if err != nil {
		t.Fatalf("Failed to read latest: %v", err)
	}

	if latest == nil || latest.VersionFile != "a_1.json" {
		t.Errorf("Expected published entry, got %+v", latest)
	}
}

func TestPublishServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher, err := NewConsulPublisher(server.URL[7:], "runhistory", "")
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	entry := &models.IndexEntry{File: "a.py", Timestamp: "t", VersionFile: "a_1.json"}
	if err := publisher.Publish(context.Background(), &models.RunResult{File: "a.py"}, entry); err == nil {
		t.Error("Expected error when consul rejects the write")
	}
}

func TestKey(t *testing.T) {
	publisher, err := NewConsulPublisher("127.0.0.1:8500", "runhistory", "")
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	if key := publisher.Key("leccion1.py"); key != "runhistory/leccion1.py/latest" {
		t.Errorf("Unexpected key %s", key)
	}
}
