package repository

import (
	"errors"
	"path/filepath"
	"testing"

	joiner "github.com/veylan/knock/internal/joiner/domain"
	shared "github.com/veylan/knock/internal/shared/domain"
)

func TestTOMLConversationStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.toml")
	store := &TOMLConversationStore{FilePath: path}

	if _, err := store.GetByTag("aB3dE7gH1k"); !errors.Is(err, shared.ErrNotExist) {
		t.Fatalf("expected ErrNotExist from empty store, got %v", err)
	}

	var creator shared.InboxID
	for i := range creator {
		creator[i] = byte(i)
	}
	conv := joiner.JoinedConversation{
		ID:      "conv-1",
		Tag:     "aB3dE7gH1k",
		Creator: creator,
		Name:    "reading club",
	}
	if err := store.Save(conv); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := store.GetByTag("aB3dE7gH1k")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != conv {
		t.Fatalf("loaded conversation differs: %+v", got)
	}

	// A fresh store over the same file sees the persisted data.
	reopened := &TOMLConversationStore{FilePath: path}
	got, err = reopened.GetByTag("aB3dE7gH1k")
	if err != nil {
		t.Fatalf("failed to get from reopened store: %v", err)
	}
	if got.Creator != creator || got.Name != "reading club" {
		t.Fatalf("reopened store returned different data: %+v", got)
	}

	list, err := reopened.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one conversation, got %d", len(list))
	}
}
