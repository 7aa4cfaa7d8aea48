package agent

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	shared "github.com/veylan/knock/internal/shared/domain"
)

const permIdentity = 0600

type identityKey struct {
	value []byte
}

func (k *identityKey) UnmarshalText(text []byte) error {
	k.value = make([]byte, 32)
	n, err := hex.Decode(k.value, text)
	if err != nil {
		return err
	}
	if n != 32 {
		return fmt.Errorf("identity key must be 32 bytes, got %d", n)
	}
	return nil
}

func (k *identityKey) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(k.value)))
	hex.Encode(text, k.value)
	return text, nil
}

type identityFile struct {
	PrivateKey identityKey `toml:"privateKey"`
}

// EnsureIdentity loads the agent's secp256k1 identity from path,
// generating and persisting a fresh one when the file does not exist.
func EnsureIdentity(path string, logger *zerolog.Logger) (shared.Identity, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn().
			Str("file", path).
			Msg("identity does not exist")
		id, err := shared.NewIdentity()
		if err != nil {
			return shared.Identity{}, err
		}
		if err := saveIdentity(path, id); err != nil {
			return shared.Identity{}, err
		}
		logger.Info().
			Str("file", path).
			Str("inbox", id.InboxID().String()).
			Msg("created new identity")
		return id, nil
	} else if err != nil {
		return shared.Identity{}, fmt.Errorf("failed to retrieve identity: %w", err)
	}

	var file identityFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return shared.Identity{}, fmt.Errorf("failed to load identity: %w", err)
	}
	id, err := shared.IdentityFromKeyBytes(file.PrivateKey.value)
	if err != nil {
		return shared.Identity{}, err
	}
	logger.Info().
		Str("file", path).
		Str("inbox", id.InboxID().String()).
		Msg("parsed identity")
	return id, nil
}

func saveIdentity(path string, id shared.Identity) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, permIdentity)
	if err != nil {
		return fmt.Errorf("failed to create identity file: %w", err)
	}
	defer file.Close()
	enc := toml.NewEncoder(file)
	enc.Indent = ""
	return enc.Encode(identityFile{
		PrivateKey: identityKey{value: id.Key.Serialize()},
	})
}
