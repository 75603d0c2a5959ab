package journal

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cloudpico-bridge/internal/logging"
)

func openJournal(t *testing.T, retention int) *Journal {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	j, err := Open(context.Background(), db, retention, logging.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return j
}

func TestUplinks_NewestFirst(t *testing.T) {
	j := openJournal(t, 100)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := uint64(0); i < 3; i++ {
		e := UplinkEntry{Seq: i, At: at.Add(time.Duration(i) * time.Second), Payload: fmt.Sprintf(`{"n":%d}`, i), Sent: i != 1}
		if i == 1 {
			e.Error = "transport: not connected"
		}
		if err := j.RecordUplink(ctx, e); err != nil {
			t.Fatalf("RecordUplink: %v", err)
		}
	}

	got, err := j.RecentUplinks(ctx, 2)
	if err != nil {
		t.Fatalf("RecentUplinks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Seq != 2 || got[1].Seq != 1 {
		t.Errorf("order = %d,%d, want 2,1", got[0].Seq, got[1].Seq)
	}
	if got[1].Sent || got[1].Error != "transport: not connected" {
		t.Errorf("failed entry = %+v", got[1])
	}
	if !got[0].At.Equal(at.Add(2 * time.Second)) {
		t.Errorf("At = %v", got[0].At)
	}
}

func TestCommands_RoundTrip(t *testing.T) {
	j := openJournal(t, 100)
	ctx := context.Background()

	entries := []CommandEntry{
		{Topic: "d/1", Payload: []byte("RED"), Command: "set_indicator:red", Applied: true},
		{Topic: "d/1", Payload: []byte{0xff}, Command: "unknown", AckError: "broker gone"},
	}
	for _, e := range entries {
		if err := j.RecordCommand(ctx, e); err != nil {
			t.Fatalf("RecordCommand: %v", err)
		}
	}

	got, err := j.RecentCommands(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Command != "unknown" || got[0].AckError != "broker gone" || string(got[0].Payload) != "\xff" {
		t.Errorf("newest = %+v", got[0])
	}
	if !got[1].Applied || string(got[1].Payload) != "RED" || got[1].At.IsZero() {
		t.Errorf("oldest = %+v", got[1])
	}
}

func TestPrune_KeepsRetention(t *testing.T) {
	j := openJournal(t, 5)
	ctx := context.Background()

	for i := uint64(0); i < 12; i++ {
		if err := j.RecordUplink(ctx, UplinkEntry{Seq: i, Payload: "{}"}); err != nil {
			t.Fatalf("RecordUplink: %v", err)
		}
	}
	n, err := j.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 7 {
		t.Errorf("Prune removed %d rows, want 7", n)
	}
	got, err := j.RecentUplinks(ctx, 100)
	if err != nil {
		t.Fatalf("RecentUplinks: %v", err)
	}
	if len(got) != 5 || got[0].Seq != 11 || got[4].Seq != 7 {
		t.Fatalf("after prune: %d entries, newest %d", len(got), got[0].Seq)
	}
}

func TestRecord_AutoPrunes(t *testing.T) {
	j := openJournal(t, 10)
	ctx := context.Background()

	for i := 0; i < pruneEvery; i++ {
		if err := j.RecordCommand(ctx, CommandEntry{Topic: "t", Payload: []byte("green"), Command: "set_indicator:green"}); err != nil {
			t.Fatalf("RecordCommand: %v", err)
		}
	}
	got, err := j.RecentCommands(ctx, 1000)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("got %d rows after %d writes, want 10", len(got), pruneEvery)
	}
	if err := j.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
