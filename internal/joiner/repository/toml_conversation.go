package repository

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	joiner "github.com/veylan/knock/internal/joiner/domain"
	shared "github.com/veylan/knock/internal/shared/domain"
)

const (
	permStore = 0644
)

// TOMLConversationStore persists joined conversations to a TOML file,
// reloading when the file changes on disk.
type TOMLConversationStore struct {
	FilePath string

	data       schema
	modifiedAt time.Time
}

func (r *TOMLConversationStore) GetByTag(tag string) (joiner.JoinedConversation, error) {
	if err := r.refresh(); err != nil {
		return joiner.JoinedConversation{}, err
	}
	for id, repr := range r.data.Conversations {
		if repr.Tag == tag {
			return repr.toDomain(id), nil
		}
	}
	return joiner.JoinedConversation{}, shared.ErrNotExist
}

func (r *TOMLConversationStore) Save(conv joiner.JoinedConversation) error {
	if err := r.refresh(); err != nil {
		return err
	}
	if r.data.Conversations == nil {
		r.data.Conversations = make(map[string]*conversation)
	}
	if _, ok := r.data.Conversations[conv.ID]; !ok {
		r.data.Conversations[conv.ID] = &conversation{}
	}
	r.data.Conversations[conv.ID].fromDomain(conv)
	if err := r.save(); err != nil {
		return err
	}
	return nil
}

func (r *TOMLConversationStore) List() ([]joiner.JoinedConversation, error) {
	if err := r.refresh(); err != nil {
		return nil, err
	}
	convs := make([]joiner.JoinedConversation, 0, len(r.data.Conversations))
	for id, repr := range r.data.Conversations {
		convs = append(convs, repr.toDomain(id))
	}
	return convs, nil
}

type conversation struct {
	Tag     string         `toml:"tag"`
	Creator shared.InboxID `toml:"creator"`
	Name    string         `toml:"name,omitempty"`
}

func (c *conversation) toDomain(id string) joiner.JoinedConversation {
	return joiner.JoinedConversation{
		ID:      id,
		Tag:     c.Tag,
		Creator: c.Creator,
		Name:    c.Name,
	}
}

func (c *conversation) fromDomain(conv joiner.JoinedConversation) {
	c.Tag = conv.Tag
	c.Creator = conv.Creator
	c.Name = conv.Name
}

type schema struct {
	Conversations map[string]*conversation `toml:"conversations"`
}

// refresh reloads the backing file when its mtime moved. A missing file is
// an empty store, not an error.
func (r *TOMLConversationStore) refresh() error {
	info, err := os.Stat(r.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file timestamp: %w", err)
	}
	modTime := info.ModTime()
	if r.modifiedAt.Equal(modTime) {
		return nil
	}
	r.modifiedAt = modTime
	if _, err := toml.DecodeFile(r.FilePath, &r.data); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	return nil
}

func (r *TOMLConversationStore) save() error {
	file, err := os.OpenFile(r.FilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, permStore)
	if err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	defer file.Close()
	enc := toml.NewEncoder(file)
	enc.Indent = ""
	return enc.Encode(r.data)
}
