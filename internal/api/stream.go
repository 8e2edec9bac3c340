package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamQueueSize    = 16
)

// streamConn is the part of *websocket.Conn a subscriber writes through.
type streamConn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// subscriber owns one stream connection. Events reach the socket only through queue,
// drained by a dedicated writer goroutine.
type subscriber struct {
	conn      streamConn
	queue     chan DecisionEvent
	closeOnce sync.Once
}

func (s *subscriber) writeLoop() {
	defer s.close()
	for event := range s.queue {
		_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := s.conn.WriteJSON(event); err != nil {
			logrus.WithError(err).Debug("decision stream write failed")
			return
		}
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { _ = s.conn.Close() })
}

// DecisionNotifier fans decision events out to stream subscribers. Broadcast never
// blocks on a subscriber: one whose queue is full is dropped.
type DecisionNotifier struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	lastEvent   *DecisionEvent
}

// NewDecisionNotifier constructs a notifier instance.
func NewDecisionNotifier() *DecisionNotifier {
	return &DecisionNotifier{subscribers: make(map[*subscriber]struct{})}
}

// Register attaches conn and queues the most recent event ahead of any later broadcast.
func (n *DecisionNotifier) Register(conn streamConn) *subscriber {
	sub := &subscriber{conn: conn, queue: make(chan DecisionEvent, streamQueueSize)}

	n.mu.Lock()
	n.subscribers[sub] = struct{}{}
	if n.lastEvent != nil {
		sub.queue <- *n.lastEvent
	}
	n.mu.Unlock()

	go sub.writeLoop()
	return sub
}

// Unregister detaches sub and closes its connection.
func (n *DecisionNotifier) Unregister(sub *subscriber) {
	if sub == nil {
		return
	}
	n.detach(sub)
	sub.close()
}

// Broadcast stamps event, records it for replay and queues it for every subscriber.
func (n *DecisionNotifier) Broadcast(event DecisionEvent) {
	if n == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	var dropped []*subscriber
	n.mu.Lock()
	last := event
	n.lastEvent = &last
	for sub := range n.subscribers {
		select {
		case sub.queue <- event:
		default:
			delete(n.subscribers, sub)
			close(sub.queue)
			dropped = append(dropped, sub)
		}
	}
	n.mu.Unlock()

	for _, sub := range dropped {
		logrus.Warn("decision stream subscriber too slow, disconnecting")
		sub.close()
	}
}

// LastEvent returns a copy of the most recent event, or nil.
func (n *DecisionNotifier) LastEvent() *DecisionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastEvent == nil {
		return nil
	}
	last := *n.lastEvent
	return &last
}

// Subscribers reports the number of connected clients.
func (n *DecisionNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subscribers)
}

// detach removes sub and ends its writer. It is a no-op for a subscriber already dropped.
func (n *DecisionNotifier) detach(sub *subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subscribers[sub]; ok {
		delete(n.subscribers, sub)
		close(sub.queue)
	}
}
