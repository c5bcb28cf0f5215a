package promstats

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/casedock/casedock-mcp-go/sessions"
)

func oauthCreds() *sessions.Credentials {
	return &sessions.Credentials{
		BaseURL:      "https://acme.casedock.io",
		ClientID:     "client-1",
		ClientSecret: "hunter2",
	}
}

func tokenCreds() *sessions.Credentials {
	return &sessions.Credentials{
		BaseURL:     "https://acme.casedock.io",
		AccessToken: "tok-1",
	}
}

func TestSinkCountsStoreActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)
	store := sessions.New(sessions.Config{
		SweepInterval: time.Hour,
		Metrics:       sink,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = store.Close() })

	id, err := store.Create(oauthCreds())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := store.Create(tokenCreds()); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := store.Get(id); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if _, err := store.Get("sess_missing"); err == nil {
		t.Fatal("Get() of unknown id succeeded")
	}
	if err := store.Update(id, tokenCreds()); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if !store.Delete(id) {
		t.Fatal("Delete() reported no session")
	}

	assertCount := func(c prometheus.Collector, want float64, name string) {
		t.Helper()
		if got := testutil.ToFloat64(c); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	assertCount(sink.created.WithLabelValues("oauth"), 1, `created{mode="oauth"}`)
	assertCount(sink.created.WithLabelValues("token"), 1, `created{mode="token"}`)
	assertCount(sink.gets.WithLabelValues("hit"), 1, `get{result="hit"}`)
	assertCount(sink.gets.WithLabelValues("miss"), 1, `get{result="miss"}`)
	assertCount(sink.updated, 1, "updated")
	assertCount(sink.deleted, 1, "deleted")
}

func TestSinkCountsEvictions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)
	store := sessions.New(sessions.Config{
		SweepInterval: time.Hour,
		Metrics:       sink,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = store.Close() })

	// Lazy eviction: an expired entry found by Get.
	id, err := store.Create(oauthCreds(), sessions.WithTTL(time.Millisecond))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := store.Get(id); err == nil {
		t.Fatal("Get() of expired session succeeded")
	}
	if got := testutil.ToFloat64(sink.evicted.WithLabelValues("lazy")); got != 1 {
		t.Errorf(`evicted{trigger="lazy"} = %v, want 1`, got)
	}

	// Sweep eviction plus a duration sample.
	if _, err := store.Create(oauthCreds(), sessions.WithTTL(time.Millisecond)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if got := testutil.ToFloat64(sink.evicted.WithLabelValues("sweep")); got != 1 {
		t.Errorf(`evicted{trigger="sweep"} = %v, want 1`, got)
	}
	if got := testutil.CollectAndCount(sink.sweep, "casedock_sessions_sweep_duration_seconds"); got != 1 {
		t.Errorf("sweep histogram series = %d, want 1", got)
	}
}

func TestSinkIgnoresUnknownNames(t *testing.T) {
	sink := New(prometheus.NewRegistry())
	sink.IncCounter("sessions_unknown", nil)
	sink.ObserveHistogram("sessions_unknown_seconds", 1.5, nil)
}
