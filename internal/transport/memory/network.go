// Package memory is a single-process messaging transport: a Network routes
// direct messages and membership events between attached nodes, honoring
// consent blocks. It backs the tests and the loopback demo; the relay
// transport is its networked counterpart.
package memory

import (
	"context"
	"fmt"
	"sync"

	shared "github.com/veylan/knock/internal/shared/domain"
)

const channelBuffer = 16

type Network struct {
	mu      sync.Mutex
	nodes   map[shared.InboxID]*Node
	members map[string]map[shared.InboxID]struct{}
}

func NewNetwork() *Network {
	return &Network{
		nodes:   make(map[shared.InboxID]*Node),
		members: make(map[string]map[shared.InboxID]struct{}),
	}
}

// Attach registers an inbox on the network and returns its node. Attaching
// the same inbox twice replaces the previous node.
func (n *Network) Attach(id shared.InboxID) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	node := &Node{
		id:         id,
		net:        n,
		inbox:      make(chan shared.IncomingMessage, channelBuffer),
		membership: make(chan shared.MembershipEvent, channelBuffer),
		blocked:    make(map[shared.InboxID]struct{}),
	}
	n.nodes[id] = node
	return node
}

// Node is one attached inbox. It implements shared.MessagingTransport.
type Node struct {
	id         shared.InboxID
	net        *Network
	inbox      chan shared.IncomingMessage
	membership chan shared.MembershipEvent

	mu      sync.Mutex
	blocked map[shared.InboxID]struct{}
	closed  bool
}

func (node *Node) SendDirectMessage(ctx context.Context, to shared.InboxID, text string) error {
	node.net.mu.Lock()
	target, ok := node.net.nodes[to]
	node.net.mu.Unlock()
	if !ok {
		return fmt.Errorf("no inbox %s on network", to)
	}
	// Blocked senders are dropped silently, matching how a real transport
	// suppresses traffic after a consent block.
	if target.isBlocked(node.id) {
		return nil
	}
	target.deliverMessage(shared.IncomingMessage{From: node.id, Text: text})
	return nil
}

// AddMember grants conv membership to member. Adding an existing member is
// a no-op; no duplicate event is emitted.
func (node *Node) AddMember(ctx context.Context, conv shared.ConversationSummary, member shared.InboxID) error {
	node.net.mu.Lock()
	set, ok := node.net.members[conv.ID]
	if !ok {
		set = make(map[shared.InboxID]struct{})
		node.net.members[conv.ID] = set
	}
	if _, exists := set[member]; exists {
		node.net.mu.Unlock()
		return nil
	}
	set[member] = struct{}{}
	target, ok := node.net.nodes[member]
	node.net.mu.Unlock()
	if !ok {
		return fmt.Errorf("no inbox %s on network", member)
	}
	target.deliverEvent(shared.MembershipEvent{Conversation: conv, Member: member})
	return nil
}

func (node *Node) SetConsentBlocked(ctx context.Context, sender shared.InboxID) error {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.blocked[sender] = struct{}{}
	return nil
}

func (node *Node) Inbox() <-chan shared.IncomingMessage {
	return node.inbox
}

func (node *Node) Membership() <-chan shared.MembershipEvent {
	return node.membership
}

// Close shuts the node's channels down. The node must be detached from
// further sends by its peers going away; Close is for test teardown.
func (node *Node) Close() {
	node.mu.Lock()
	defer node.mu.Unlock()
	if node.closed {
		return
	}
	node.closed = true
	close(node.inbox)
	close(node.membership)
}

func (node *Node) isBlocked(sender shared.InboxID) bool {
	node.mu.Lock()
	defer node.mu.Unlock()
	_, ok := node.blocked[sender]
	return ok
}

func (node *Node) deliverMessage(msg shared.IncomingMessage) {
	node.mu.Lock()
	defer node.mu.Unlock()
	if node.closed {
		return
	}
	select {
	case node.inbox <- msg:
	default:
	}
}

func (node *Node) deliverEvent(ev shared.MembershipEvent) {
	node.mu.Lock()
	defer node.mu.Unlock()
	if node.closed {
		return
	}
	select {
	case node.membership <- ev:
	default:
	}
}
