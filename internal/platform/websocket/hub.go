// Package websocket delivers real-time workflow events to three independent
// subscriber partitions: per patient, per department, and a single global
// status feed. Each partition keeps its own lock so a busy department fan-out
// never stalls patient or status delivery.
package websocket

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client is one connected subscriber. Delivery is asynchronous through Send;
// a client that cannot keep up is dropped rather than blocking the publisher.
type Client struct {
	ID   string
	Send chan []byte

	closeOnce sync.Once
}

// NewClient creates a client with a buffered send queue.
func NewClient() *Client {
	return &Client{ID: uuid.New().String(), Send: make(chan []byte, 256)}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// partition is one concurrency-safe subscriber grouping keyed by string.
type partition struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func newPartition() *partition {
	return &partition{clients: make(map[string]map[*Client]struct{})}
}

func (p *partition) add(key string, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients[key] == nil {
		p.clients[key] = make(map[*Client]struct{})
	}
	p.clients[key][c] = struct{}{}
}

func (p *partition) remove(key string, c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.clients[key]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(p.clients, key)
	}
	return true
}

// broadcast queues data to every subscriber of key. Subscribers whose send
// queue is full are collected and returned so the hub can drop them; the
// remaining subscribers still receive the event.
func (p *partition) broadcast(key string, data []byte) []*Client {
	p.mu.RLock()
	var dead []*Client
	for c := range p.clients[key] {
		select {
		case c.Send <- data:
		default:
			dead = append(dead, c)
		}
	}
	p.mu.RUnlock()
	return dead
}

func (p *partition) count(key string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients[key])
}

// statusKey is the single key of the global status partition.
const statusKey = "status"

// Hub is the connection registry for all three broadcast partitions.
type Hub struct {
	patients    *partition
	departments *partition
	status      *partition
	log         zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		patients:    newPartition(),
		departments: newPartition(),
		status:      newPartition(),
		log:         log,
	}
}

func departmentKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SubscribePatient registers c for one patient's events.
func (h *Hub) SubscribePatient(patientID uuid.UUID, c *Client) {
	h.patients.add(patientID.String(), c)
}

// UnsubscribePatient removes c and closes its send queue.
func (h *Hub) UnsubscribePatient(patientID uuid.UUID, c *Client) {
	if h.patients.remove(patientID.String(), c) {
		c.close()
	}
}

// SubscribeDepartment registers c for a department's events. Department names
// are matched case-insensitively.
func (h *Hub) SubscribeDepartment(department string, c *Client) {
	h.departments.add(departmentKey(department), c)
}

// UnsubscribeDepartment removes c and closes its send queue.
func (h *Hub) UnsubscribeDepartment(department string, c *Client) {
	if h.departments.remove(departmentKey(department), c) {
		c.close()
	}
}

// SubscribeStatus registers c for the global status feed.
func (h *Hub) SubscribeStatus(c *Client) {
	h.status.add(statusKey, c)
}

// UnsubscribeStatus removes c and closes its send queue.
func (h *Hub) UnsubscribeStatus(c *Client) {
	if h.status.remove(statusKey, c) {
		c.close()
	}
}

func (h *Hub) marshal(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket: marshal event")
		return nil
	}
	return data
}

// BroadcastPatient delivers payload to the patient's subscribers.
// Best-effort: slow subscribers are dropped, the publisher never fails.
func (h *Hub) BroadcastPatient(patientID uuid.UUID, payload interface{}) {
	data := h.marshal(payload)
	if data == nil {
		return
	}
	key := patientID.String()
	for _, c := range h.patients.broadcast(key, data) {
		h.log.Debug().Str("patient_id", key).Str("client_id", c.ID).Msg("websocket: dropping slow subscriber")
		h.UnsubscribePatient(patientID, c)
	}
}

// BroadcastDepartment delivers payload to a department's subscribers.
func (h *Hub) BroadcastDepartment(department string, payload interface{}) {
	data := h.marshal(payload)
	if data == nil {
		return
	}
	key := departmentKey(department)
	for _, c := range h.departments.broadcast(key, data) {
		h.log.Debug().Str("department", key).Str("client_id", c.ID).Msg("websocket: dropping slow subscriber")
		if h.departments.remove(key, c) {
			c.close()
		}
	}
}

// BroadcastStatus delivers payload to the global status feed.
func (h *Hub) BroadcastStatus(payload interface{}) {
	data := h.marshal(payload)
	if data == nil {
		return
	}
	for _, c := range h.status.broadcast(statusKey, data) {
		h.log.Debug().Str("client_id", c.ID).Msg("websocket: dropping slow subscriber")
		h.UnsubscribeStatus(c)
	}
}

// PatientSubscriberCount reports subscribers on one patient channel.
func (h *Hub) PatientSubscriberCount(patientID uuid.UUID) int {
	return h.patients.count(patientID.String())
}

// DepartmentSubscriberCount reports subscribers on one department channel.
func (h *Hub) DepartmentSubscriberCount(department string) int {
	return h.departments.count(departmentKey(department))
}

// StatusSubscriberCount reports subscribers on the global status feed.
func (h *Hub) StatusSubscriberCount() int {
	return h.status.count(statusKey)
}
