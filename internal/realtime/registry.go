// Package realtime keeps the in-memory greenhouse rooms and fans events out
// to their live subscribers.
package realtime

import (
	"sort"
	"sync"
)

// Outbound event names.
const (
	EventSensorUpdate     = "sensorUpdate"
	EventAllSensorsUpdate = "allSensorsUpdate"
	EventNewAlert         = "newAlert"
	EventAlertResolved    = "alertResolved"
	EventDeviceUpdate     = "deviceUpdate"
	EventDeviceControlled = "deviceControlled"
	EventDeviceAdded      = "deviceAdded"
	EventDeviceRemoved    = "deviceRemoved"
	EventDeviceControl    = "deviceControl"
	EventRoomJoined       = "greenhouse-joined"
	EventRoomLeft         = "greenhouse-left"
	EventError            = "error"
)

// RoomKey is the room name for a greenhouse. Firmware and the dashboard
// join rooms by this exact string.
func RoomKey(greenhouseID string) string {
	return "greenhouse-" + greenhouseID
}

type Event struct {
	Name    string
	Payload any
}

// Subscriber is one live connection. Deliver must not block; it reports
// false when the event could not be queued.
type Subscriber interface {
	ID() string
	Deliver(ev Event) bool
}

// Observer is told about every fan-out. Optional.
type Observer interface {
	Fanout(event string, delivered, dropped int)
	Membership(rooms, subscriptions int)
}

type room struct {
	// serializes broadcasts so every member sees them in the same order
	mu      sync.Mutex
	members map[string]Subscriber
}

// Registry maps room keys to subscribers. Membership changes take the write
// lock, so a subscriber that has left never receives a later broadcast.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	obs   Observer
}

func NewRegistry(obs Observer) *Registry {
	return &Registry{rooms: make(map[string]*room), obs: obs}
}

// Join adds sub to the room, creating the room on first use. It reports
// whether sub was not already a member.
func (r *Registry) Join(key string, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[key]
	if !ok {
		rm = &room{members: make(map[string]Subscriber)}
		r.rooms[key] = rm
	}
	if _, exists := rm.members[sub.ID()]; exists {
		return false
	}
	rm.members[sub.ID()] = sub
	r.observeMembershipLocked()
	return true
}

// Leave removes sub from the room and drops the room once it is empty.
func (r *Registry) Leave(key string, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := r.leaveLocked(key, sub.ID())
	if left {
		r.observeMembershipLocked()
	}
	return left
}

// LeaveAll removes sub from every room and returns the rooms it was in.
func (r *Registry) LeaveAll(sub Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for key := range r.rooms {
		if r.leaveLocked(key, sub.ID()) {
			left = append(left, key)
		}
	}
	if len(left) > 0 {
		r.observeMembershipLocked()
	}
	sort.Strings(left)
	return left
}

func (r *Registry) leaveLocked(key, id string) bool {
	rm, ok := r.rooms[key]
	if !ok {
		return false
	}
	if _, ok := rm.members[id]; !ok {
		return false
	}
	delete(rm.members, id)
	if len(rm.members) == 0 {
		delete(r.rooms, key)
	}
	return true
}

// Broadcast delivers the event to every member of the room and returns how
// many accepted it. Slow or gone subscribers are skipped silently.
func (r *Registry) Broadcast(key, name string, payload any) int {
	return r.BroadcastExcept(key, "", name, payload)
}

// BroadcastExcept is Broadcast without the subscriber whose ID is exceptID.
func (r *Registry) BroadcastExcept(key, exceptID, name string, payload any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[key]
	if !ok {
		return 0
	}

	ev := Event{Name: name, Payload: payload}
	delivered, dropped := 0, 0

	rm.mu.Lock()
	for id, sub := range rm.members {
		if id == exceptID {
			continue
		}
		if sub.Deliver(ev) {
			delivered++
		} else {
			dropped++
		}
	}
	rm.mu.Unlock()

	if r.obs != nil {
		r.obs.Fanout(name, delivered, dropped)
	}
	return delivered
}

// Members returns the number of subscribers in the room.
func (r *Registry) Members(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[key]; ok {
		return len(rm.members)
	}
	return 0
}

// IsMember reports whether the subscriber with id is in the room.
func (r *Registry) IsMember(key, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key]
	if !ok {
		return false
	}
	_, ok = rm.members[id]
	return ok
}

// Rooms lists the non-empty rooms in sorted order.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for key := range r.rooms {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) observeMembershipLocked() {
	if r.obs == nil {
		return
	}
	subs := 0
	for _, rm := range r.rooms {
		subs += len(rm.members)
	}
	r.obs.Membership(len(r.rooms), subs)
}
