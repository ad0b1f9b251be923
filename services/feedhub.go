package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Jwl06/civicledger360/natsserver"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// FeedHub fans violation events from NATS out to websocket clients
type FeedHub struct {
	natsConn *nats.Conn
	natsSub  *nats.Subscription
	log      *zap.Logger

	clients   map[*FeedClient]bool
	clientsMu sync.RWMutex

	register   chan *FeedClient
	unregister chan *FeedClient
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	delivered uint64
	dropped   uint64
	statsMu   sync.Mutex
}

// FeedMessage is a control message from a client
type FeedMessage struct {
	Type     string `json:"type"`               // subscribe, unsubscribe, ping
	Reporter string `json:"reporter,omitempty"` // subscribe: only events for this reporter
}

// NewFeedHub creates a new feed hub
func NewFeedHub(natsConn *nats.Conn, log *zap.Logger) *FeedHub {
	return &FeedHub{
		natsConn:   natsConn,
		log:        log,
		clients:    make(map[*FeedClient]bool),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start subscribes to every violation subject and runs the client loop.
func (h *FeedHub) Start() error {
	sub, err := h.natsConn.Subscribe(natsserver.SubjectAll, func(msg *nats.Msg) {
		h.broadcast(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", natsserver.SubjectAll, err)
	}
	h.natsSub = sub
	go h.run()
	h.log.Info("feed hub started", zap.String("subject", natsserver.SubjectAll))
	return nil
}

// Stop unsubscribes and disconnects every client.
func (h *FeedHub) Stop() {
	h.stopOnce.Do(func() {
		if h.natsSub != nil {
			_ = h.natsSub.Unsubscribe()
		}
		close(h.stop)
	})
	<-h.done
}

func (h *FeedHub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			h.log.Debug("feed client connected", zap.String("remote", client.remoteAddr))

		case client := <-h.unregister:
			h.remove(client)
			h.log.Debug("feed client disconnected", zap.String("remote", client.remoteAddr))

		case <-h.stop:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub
func (h *FeedHub) Register(client *FeedClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

func (h *FeedHub) leave(client *FeedClient) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

func (h *FeedHub) remove(client *FeedClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// broadcast forwards one event to every interested client. A client whose
// buffer is full is disconnected.
func (h *FeedHub) broadcast(data []byte) {
	// Only the reporter is needed for routing; the payload is forwarded as is.
	var ev struct {
		Violation struct {
			Reporter string `json:"reporter"`
		} `json:"violation"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		h.log.Warn("failed to decode violation event", zap.Error(err))
		return
	}

	var slow []*FeedClient
	sent := 0
	h.clientsMu.RLock()
	for client := range h.clients {
		if !client.wants(ev.Violation.Reporter) {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range slow {
		h.log.Warn("dropping slow feed client", zap.String("remote", client.remoteAddr))
		h.remove(client)
	}

	h.statsMu.Lock()
	h.delivered += uint64(sent)
	h.dropped += uint64(len(slow))
	h.statsMu.Unlock()
}

// HubStats holds hub statistics
type HubStats struct {
	Clients   int    `json:"clients"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

func (h *FeedHub) Stats() HubStats {
	h.clientsMu.RLock()
	clientCount := len(h.clients)
	h.clientsMu.RUnlock()

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return HubStats{
		Clients:   clientCount,
		Delivered: h.delivered,
		Dropped:   h.dropped,
	}
}

func normalizeReporter(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
