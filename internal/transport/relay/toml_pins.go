package relay

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	permPins = 0644
)

// TOMLPinStore keeps relay pins in a TOML file, reloading when the file
// changes on disk.
type TOMLPinStore struct {
	FilePath string

	data       pinSchema
	modifiedAt time.Time
}

func (r *TOMLPinStore) Get(id string) (RelayPin, error) {
	modified, err := r.fileModified()
	pin := RelayPin{}
	if err != nil {
		return pin, err
	}
	if modified {
		if err := r.load(); err != nil {
			return pin, err
		}
	}
	pinRepr, ok := r.data.Relays[id]
	if !ok {
		return pin, fmt.Errorf("pin does not exist")
	}
	pin = pinRepr.toDomain(id)
	return pin, nil
}

func (r *TOMLPinStore) Set(id string, pin RelayPin) error {
	modified, err := r.fileModified()
	if err != nil {
		return err
	}
	if modified {
		if err := r.load(); err != nil {
			return err
		}
	}
	if r.data.Relays == nil {
		r.data.Relays = make(map[string]*relayPin)
	}
	if _, ok := r.data.Relays[id]; !ok {
		r.data.Relays[id] = &relayPin{}
	}
	r.data.Relays[id].fromDomain(pin)
	if err := r.save(); err != nil {
		return err
	}
	return nil
}

func (r *TOMLPinStore) Delete(id string) error {
	_, ok := r.data.Relays[id]
	if !ok {
		return fmt.Errorf("pin does not exist")
	}
	delete(r.data.Relays, id)
	if err := r.save(); err != nil {
		return err
	}
	return nil
}

type publicKey struct {
	value ed25519.PublicKey
}

func (p *publicKey) UnmarshalText(text []byte) error {
	p.value = make([]byte, ed25519.PublicKeySize)
	_, err := hex.Decode(p.value, text)
	if err != nil {
		return err
	}
	return nil
}

func (p *publicKey) MarshalText() ([]byte, error) {
	text := make([]byte, ed25519.PublicKeySize*2)
	hex.Encode(text, p.value)
	return text, nil
}

type relayPin struct {
	Address   string    `toml:"address"`
	PublicKey publicKey `toml:"publicKey"`
}

func (p *relayPin) toDomain(id string) RelayPin {
	return RelayPin{
		ID:        id,
		Address:   p.Address,
		PublicKey: p.PublicKey.value,
	}
}

func (p *relayPin) fromDomain(pin RelayPin) {
	p.Address = pin.Address
	p.PublicKey = publicKey{value: pin.PublicKey}
}

type pinSchema struct {
	Relays map[string]*relayPin `toml:"relays"`
}

func (r *TOMLPinStore) fileModified() (bool, error) {
	info, err := os.Stat(r.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to read file timestamp: %w", err)
	}
	modTime := info.ModTime()
	mod := !r.modifiedAt.Equal(modTime)
	if mod {
		r.modifiedAt = modTime
	}
	return mod, nil
}

func (r *TOMLPinStore) load() error {
	_, err := toml.DecodeFile(r.FilePath, &r.data)
	if err != nil {
		return fmt.Errorf("failed to load pin store: %w", err)
	}
	return nil
}

func (r *TOMLPinStore) save() error {
	file, err := os.OpenFile(r.FilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, permPins)
	if err != nil {
		return fmt.Errorf("failed to save pin store: %w", err)
	}
	defer file.Close()
	enc := toml.NewEncoder(file)
	enc.Indent = ""
	return enc.Encode(r.data)
}
