package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module"
	"github.com/tari-project/tari-core/network/codec/cbor"
)

var (
	// ErrUnknownPeer is returned for a message to a replica that is not
	// registered with the hub.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrInboxFull is returned when the receiver's inbox is at capacity.
	ErrInboxFull = errors.New("inbox full")
)

// DefaultInboxCapacity bounds the undelivered messages of a conduit.
const DefaultInboxCapacity = 4096

// Filter decides whether a message is delivered. Returning false drops it.
type Filter func(from, to hotstuff.ReplicaID, message *hotstuff.HotStuffMessage) bool

// Hub is an in-process network connecting the conduits of a committee.
// Every message is encoded and decoded with the wire codec, so replicas
// never share message values.
type Hub struct {
	log           zerolog.Logger
	codec         *cbor.Codec
	metrics       module.NetworkMetrics
	inboxCapacity int
	seen          *lru.Cache[string, struct{}]

	mu       sync.RWMutex
	conduits map[hotstuff.ReplicaID]*Conduit
	filter   Filter

	delivered *atomic.Uint64
	dropped   *atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub) error

// WithInboxCapacity sets the capacity of the conduits' inboxes.
func WithInboxCapacity(capacity int) HubOption {
	return func(h *Hub) error {
		if capacity < 1 {
			return fmt.Errorf("inbox capacity must be positive")
		}
		h.inboxCapacity = capacity
		return nil
	}
}

// WithDeduplication drops a message if the same sender already delivered
// identical bytes to the same receiver. The last size fingerprints are
// remembered.
func WithDeduplication(size int) HubOption {
	return func(h *Hub) error {
		seen, err := lru.New[string, struct{}](size)
		if err != nil {
			return fmt.Errorf("could not create deduplication cache: %w", err)
		}
		h.seen = seen
		return nil
	}
}

// NewHub creates a hub encoding messages with codec.
func NewHub(log zerolog.Logger, codec *cbor.Codec, metrics module.NetworkMetrics, opts ...HubOption) (*Hub, error) {
	h := &Hub{
		log:           log.With().Str("component", "stub_network").Logger(),
		codec:         codec,
		metrics:       metrics,
		inboxCapacity: DefaultInboxCapacity,
		conduits:      make(map[hotstuff.ReplicaID]*Conduit),
		delivered:     atomic.NewUint64(0),
		dropped:       atomic.NewUint64(0),
	}
	for _, opt := range opts {
		err := opt(h)
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Register creates the conduit of replica id.
func (h *Hub) Register(id hotstuff.ReplicaID) (*Conduit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conduits[id]; ok {
		return nil, fmt.Errorf("replica %s already registered", id)
	}
	conduit, err := newConduit(id, h)
	if err != nil {
		return nil, err
	}
	h.conduits[id] = conduit
	return conduit, nil
}

// SetFilter installs a delivery filter, replacing any previous one. A nil
// filter delivers everything.
func (h *Hub) SetFilter(filter Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = filter
}

// Delivered returns the number of delivered messages.
func (h *Hub) Delivered() uint64 {
	return h.delivered.Load()
}

// Dropped returns the number of messages dropped by the filter, the
// deduplication or full inboxes.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) deliver(ctx context.Context, from, to hotstuff.ReplicaID, message *hotstuff.HotStuffMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	conduit, ok := h.conduits[to]
	filter := h.filter
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("could not deliver %s to %s: %w", message, to, ErrUnknownPeer)
	}

	messageType := message.Type.String()
	if filter != nil && !filter(from, to, message) {
		h.drop(messageType)
		return nil
	}

	data, err := h.codec.Encode(message)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", message, err)
	}
	if h.seen != nil {
		key, err := messageKey(from, to, data)
		if err != nil {
			return fmt.Errorf("could not fingerprint %s: %w", message, err)
		}
		if ok, _ := h.seen.ContainsOrAdd(key, struct{}{}); ok {
			h.log.Debug().Str("from", string(from)).Str("to", string(to)).Stringer("message", message).Msg("dropping duplicate message")
			h.drop(messageType)
			return nil
		}
	}
	decoded, err := h.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("could not decode %s: %w", message, err)
	}

	err = conduit.enqueue(from, decoded.(*hotstuff.HotStuffMessage))
	if err != nil {
		h.drop(messageType)
		return err
	}
	h.delivered.Inc()
	h.metrics.MessageSent(messageType)
	return nil
}

func (h *Hub) drop(messageType string) {
	h.dropped.Inc()
	h.metrics.MessageDropped(messageType)
}
