package presence

import (
	"log/slog"
	"sync"

	"typerace-realtime/internal/events"
)

// Sender pushes a frame to one connected user.
type Sender interface {
	Send(userID string, msg events.Outbound)
}

// Tracker is a thin presence cache over the gateway's connection set.
// Users who queried a friend's status (or invited them) are subscribed
// to that friend's online/offline transitions; pushes go to the
// subscriber only, never to the room.
type Tracker struct {
	logger *slog.Logger
	sender Sender

	mu       sync.RWMutex
	online   map[string]string              // userID -> display name
	watchers map[string]map[string]struct{} // watched userID -> watcher set
}

func NewTracker(sender Sender, logger *slog.Logger) *Tracker {
	return &Tracker{
		logger:   logger,
		sender:   sender,
		online:   make(map[string]string),
		watchers: make(map[string]map[string]struct{}),
	}
}

// Online registers a user and notifies their watchers.
func (t *Tracker) Online(userID, name string) {
	t.mu.Lock()
	t.online[userID] = name
	watchers := t.watcherList(userID)
	t.mu.Unlock()

	for _, w := range watchers {
		t.sender.Send(w, events.Outbound{
			Kind:    events.FriendOnline,
			Payload: map[string]string{"user_id": userID, "name": name},
		})
	}
}

// Offline removes a user and notifies their watchers. Their own watch
// subscriptions are dropped with them.
func (t *Tracker) Offline(userID string) {
	t.mu.Lock()
	delete(t.online, userID)
	watchers := t.watcherList(userID)
	for _, set := range t.watchers {
		delete(set, userID)
	}
	t.mu.Unlock()

	for _, w := range watchers {
		t.sender.Send(w, events.Outbound{
			Kind:    events.FriendOffline,
			Payload: map[string]string{"user_id": userID},
		})
	}
}

// Status answers a friend:status query and subscribes the asker to
// future transitions of the target.
func (t *Tracker) Status(askerID, targetID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watchers[targetID] == nil {
		t.watchers[targetID] = make(map[string]struct{})
	}
	t.watchers[targetID][askerID] = struct{}{}

	_, online := t.online[targetID]
	return online
}

// Invite forwards a room invite to the target if they are online.
// Returns false when the target is offline.
func (t *Tracker) Invite(fromID, fromName, targetID, roomCode string) bool {
	t.mu.Lock()
	if t.watchers[targetID] == nil {
		t.watchers[targetID] = make(map[string]struct{})
	}
	t.watchers[targetID][fromID] = struct{}{}
	_, online := t.online[targetID]
	t.mu.Unlock()

	if !online {
		return false
	}

	t.sender.Send(targetID, events.Outbound{
		Kind: events.RoomInvite,
		Payload: map[string]string{
			"from_id":   fromID,
			"from_name": fromName,
			"room_code": roomCode,
		},
	})
	return true
}

// watcherList copies the watcher set; caller holds the lock.
func (t *Tracker) watcherList(userID string) []string {
	set := t.watchers[userID]
	list := make([]string, 0, len(set))
	for w := range set {
		list = append(list, w)
	}
	return list
}
