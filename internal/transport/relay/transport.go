// Package relay is the networked messaging transport: a TLS client that
// speaks length-prefixed envelopes to a knock-relay daemon. Relay
// certificates are pinned by ed25519 key with a trust-on-first-use hook for
// unknown keys.
package relay

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/veylan/knock/internal/relay/wire"
	shared "github.com/veylan/knock/internal/shared/domain"
)

const channelBuffer = 16

// Transport implements shared.MessagingTransport over one relay
// connection. Dial before use; Close tears the connection and both event
// channels down.
type Transport struct {
	Identity shared.Identity
	Pins     PinStore
	Logger   *zerolog.Logger

	// UserTrustCertificate is consulted when the relay presents a
	// certificate signed by an unpinned key. Returning true pins the new
	// key; nil means never trust.
	UserTrustCertificate func(*x509.Certificate) bool

	relayID    string
	conn       net.Conn
	writeMu    sync.Mutex
	inbox      chan shared.IncomingMessage
	membership chan shared.MembershipEvent
}

// Dial connects to the pinned relay and announces this agent's inbox id.
func (t *Transport) Dial(ctx context.Context, relayID string) error {
	pin, err := t.Pins.Get(relayID)
	if err != nil {
		return fmt.Errorf("failed to get relay pin '%s': %w", relayID, err)
	}
	t.relayID = relayID

	config := &tls.Config{
		VerifyPeerCertificate: t.verifyRelayCertificate,
		InsecureSkipVerify:    true,
	}
	dialer := &tls.Dialer{Config: config}
	conn, err := dialer.DialContext(ctx, "tcp", pin.Address)
	if err != nil {
		return fmt.Errorf("failed to establish connection: %w", err)
	}
	t.Logger.Info().
		Str("address", pin.Address).
		Msg("connected to relay")

	if err := wire.WriteFrame(conn, wire.Envelope{
		Kind: wire.KindHello,
		From: t.Identity.InboxID(),
	}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to announce inbox: %w", err)
	}

	t.conn = conn
	t.inbox = make(chan shared.IncomingMessage, channelBuffer)
	t.membership = make(chan shared.MembershipEvent, channelBuffer)
	go t.readLoop()
	return nil
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *Transport) SendDirectMessage(ctx context.Context, to shared.InboxID, text string) error {
	return t.write(wire.Envelope{
		Kind: wire.KindDirectMessage,
		To:   to,
		Text: text,
	})
}

func (t *Transport) AddMember(ctx context.Context, conv shared.ConversationSummary, member shared.InboxID) error {
	return t.write(wire.Envelope{
		Kind:         wire.KindMemberAdded,
		Conversation: &conv,
		Subject:      member,
	})
}

func (t *Transport) SetConsentBlocked(ctx context.Context, sender shared.InboxID) error {
	return t.write(wire.Envelope{
		Kind:    wire.KindSetConsent,
		Subject: sender,
	})
}

func (t *Transport) Inbox() <-chan shared.IncomingMessage {
	return t.inbox
}

func (t *Transport) Membership() <-chan shared.MembershipEvent {
	return t.membership
}

func (t *Transport) write(e wire.Envelope) error {
	if t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.WriteFrame(t.conn, e)
}

func (t *Transport) readLoop() {
	defer close(t.inbox)
	defer close(t.membership)
	for {
		env, err := wire.ReadFrame(t.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.Logger.Warn().
					Err(err).
					Msg("relay connection lost")
			}
			return
		}
		switch env.Kind {
		case wire.KindDirectMessage:
			t.inbox <- shared.IncomingMessage{From: env.From, Text: env.Text}
		case wire.KindMemberAdded:
			if env.Conversation == nil {
				continue
			}
			t.membership <- shared.MembershipEvent{
				Conversation: *env.Conversation,
				Member:       env.Subject,
			}
		}
	}
}

func (t *Transport) verifyRelayCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	pin, err := t.Pins.Get(t.relayID)
	if err != nil {
		return fmt.Errorf("failed to get relay pin '%s': %w", t.relayID, err)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", pin.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve relay tcp address: %w", err)
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	key, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("incorrect certificate public key format (must be ed25519)")
	}

	if err = cert.VerifyHostname(fmt.Sprintf("[%s]", tcpAddr.IP.String())); err != nil {
		return fmt.Errorf("failed to verify certificate hostname: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf(
			"certificate not yet valid, current time %s is before %s",
			now.Format(time.RFC3339),
			cert.NotBefore.Format(time.RFC3339),
		)
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf(
			"certificate expired, current time %s is after %s",
			now.Format(time.RFC3339),
			cert.NotAfter.Format(time.RFC3339),
		)
	}

	if ok = ed25519.Verify(pin.PublicKey, cert.RawTBSCertificate, cert.Signature); !ok {
		t.Logger.Warn().
			Msg("certificate signature mismatch")
		if t.UserTrustCertificate == nil {
			return fmt.Errorf("failed to verify certificate: signature mismatch")
		}
		t.Logger.Info().
			Msg("awaiting user confirmation")

		if ok = t.UserTrustCertificate(cert); !ok {
			return fmt.Errorf("failed to verify certificate: signature denied by user")
		}

		pin.PublicKey = key
		if err = t.Pins.Set(pin.ID, pin); err != nil {
			return fmt.Errorf("failed to save relay pin: %w", err)
		}
		t.Logger.Info().
			Msg("public key updated, attempting to reverify")

		return t.verifyRelayCertificate(rawCerts, verifiedChains)
	}

	t.Logger.Info().
		Msg("certificate verified successfully")

	return nil
}
