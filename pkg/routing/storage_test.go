package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "routing.json")
	storage := NewFileStorage(path)

	data := RoutingData{
		UserParties:        []Party{userParty("telegram", "1", "alice", "c1")},
		AggregationParties: []Party{{ServiceEndpoint: "https://slack.example", ChannelID: "slack", Conversation: Conversation{ID: "agents"}}},
	}
	if err := storage.Save(data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := storage.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.UserParties) != 1 || !got.UserParties[0].SameIdentity(data.UserParties[0]) {
		t.Errorf("user parties = %v", got.UserParties)
	}
	if len(got.AggregationParties) != 1 {
		t.Errorf("aggregation parties = %v", got.AggregationParties)
	}
}

func TestFileStorageMissingFile(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "nope.json"))
	got, err := storage.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.UserParties) != 0 || len(got.Engagements) != 0 {
		t.Errorf("expected empty data, got %+v", got)
	}
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStorage(path).Load(); err == nil {
		t.Error("expected error for corrupt file")
	}
}
