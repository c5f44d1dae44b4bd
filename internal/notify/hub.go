package notify

import (
	"log/slog"
	"sync"
)

const (
	defaultSeenLimit = 8192
	defaultBuffer    = 64
)

// Hub fans notifications out to in-process subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the notification
// rather than stalling the publisher. A notification ID is delivered at
// most once per hub.
type Hub struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	seen   map[string]struct{}
	order  []string
	limit  int
}

type Subscription struct {
	C <-chan Notification

	ch     chan Notification
	id     uint64
	userID string
	all    bool
	hub    *Hub
	once   sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:   logger,
		subs:  map[uint64]*Subscription{},
		seen:  map[string]struct{}{},
		limit: defaultSeenLimit,
	}
}

// Subscribe registers a listener for userID. Broadcasts are always
// delivered; user-scoped notifications only when they target userID, or
// to every user when all is set.
func (h *Hub) Subscribe(userID string, all bool, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Notification, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscription{C: ch, ch: ch, id: h.nextID, userID: userID, all: all, hub: h}
	h.subs[s.id] = s
	return s
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

func (s *Subscription) wants(n Notification) bool {
	return n.UserID == "" || s.all || n.UserID == s.userID
}

func (h *Hub) Publish(ns []Notification) int {
	if len(ns) == 0 {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	fresh := 0
	for _, n := range ns {
		if _, dup := h.seen[n.ID]; dup {
			continue
		}
		h.remember(n.ID)
		fresh++
		for _, s := range h.subs {
			if !s.wants(n) {
				continue
			}
			select {
			case s.ch <- n:
			default:
				h.log.Debug("notification dropped", "subscriber", s.userID, "id", n.ID)
			}
		}
	}
	return fresh
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remember(id string) {
	h.seen[id] = struct{}{}
	h.order = append(h.order, id)
	if over := len(h.order) - h.limit; over > 0 {
		for _, old := range h.order[:over] {
			delete(h.seen, old)
		}
		h.order = append([]string(nil), h.order[over:]...)
	}
}
