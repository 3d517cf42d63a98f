package gateway

import (
	"typerace-realtime/internal/events"
	"typerace-realtime/internal/rooms"
)

// dispatch routes a validated frame. Every failure answers only the
// originating connection with a coded error.
func (h *Hub) dispatch(c *Conn, msg events.Inbound) {
	switch msg.Kind {
	case events.RoomCreate:
		h.handleCreate(c, msg)
	case events.RoomJoin:
		h.handleJoin(c, msg)
	case events.RoomLeave:
		h.handleLeave(c, msg)
	case events.RoomKick:
		h.handleKick(c, msg)
	case events.FriendStatus:
		h.handleFriendStatus(c, msg)
	case events.RoomInvite:
		h.handleInvite(c, msg)
	default:
		h.handleRoomOp(c, msg)
	}
}

func (h *Hub) handleCreate(c *Conn, msg events.Inbound) {
	session, err := h.registry.Create(c.id, msg.RoomName, msg.TeamMode)
	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}
	h.addToRoom(session.Code(), c)
	c.send(events.Outbound{Kind: events.RoomCreated, Payload: session.Snapshot()})
}

func (h *Hub) handleJoin(c *Conn, msg events.Inbound) {
	session, err := h.registry.Join(c.id, msg.RoomCode, msg.Spectator)
	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}
	h.addToRoom(session.Code(), c)
	// The joiner missed the snapshot broadcast by the join itself.
	c.send(events.Outbound{Kind: events.RoomState, Payload: session.Snapshot()})
}

func (h *Hub) handleLeave(c *Conn, _ events.Inbound) {
	// The registry knows which room the player is in; the code the
	// client declared is not trusted.
	code, inRoom := h.registry.RoomOf(c.id.UserID)
	if err := h.registry.Leave(c.id.UserID); err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}
	if inRoom {
		h.removeFromRoom(code, c.id.UserID)
	}
}

func (h *Hub) handleKick(c *Conn, msg events.Inbound) {
	session, err := h.registry.Get(msg.RoomCode)
	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}
	if err := session.Kick(c.id.UserID, msg.TargetID); err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}

	h.registry.Forget(msg.TargetID)
	h.Send(msg.TargetID, events.Outbound{
		Kind:    events.RoomClosed,
		Payload: map[string]string{"reason": "kicked from the room"},
	})
	h.removeFromRoom(msg.RoomCode, msg.TargetID)
}

func (h *Hub) handleFriendStatus(c *Conn, msg events.Inbound) {
	kind := events.FriendOffline
	if h.presence.Status(c.id.UserID, msg.TargetID) {
		kind = events.FriendOnline
	}
	c.send(events.Outbound{Kind: kind, Payload: map[string]string{"user_id": msg.TargetID}})
}

func (h *Hub) handleInvite(c *Conn, msg events.Inbound) {
	session, err := h.registry.Get(msg.RoomCode)
	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}
	if !session.Has(c.id.UserID) {
		c.sendError(events.CodeForbidden, "you are not in that room")
		return
	}
	if !h.presence.Invite(c.id.UserID, c.id.Name, msg.TargetID, msg.RoomCode) {
		c.send(events.Outbound{Kind: events.FriendOffline, Payload: map[string]string{"user_id": msg.TargetID}})
	}
}

// handleRoomOp covers the operations that act on an existing session
// under the sender's own identity.
func (h *Hub) handleRoomOp(c *Conn, msg events.Inbound) {
	session, err := h.registry.Get(msg.RoomCode)
	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
		return
	}

	switch msg.Kind {
	case events.RoomStart:
		err = session.Start(c.id.UserID)
	case events.RoomLock:
		err = session.Lock(c.id.UserID)
	case events.RoomPromote:
		err = session.Promote(c.id.UserID, msg.TargetID)
	case events.RoomSetTeam:
		err = session.SetTeam(c.id.UserID, msg.TargetID, msg.Team)
	case events.RoomSetModifiers:
		err = session.SetModifiers(c.id.UserID, *msg.Modifiers)
	case events.RoomSetText:
		err = session.SetText(c.id.UserID, msg.Text)
	case events.RaceProgress:
		err = session.Progress(c.id.UserID, msg.Typed, msg.Total, msg.WPM, msg.Accuracy)
	case events.ChatSend:
		err = session.Chat(c.id.UserID, msg.Message)
	case events.ChatTyping:
		err = session.Typing(c.id.UserID, false)
	case events.ChatTypingStop:
		err = session.Typing(c.id.UserID, true)
	default:
		c.sendError(events.CodeValidation, "unhandled message kind")
		return
	}

	if err != nil {
		c.sendError(rooms.ErrCodeFor(err), err.Error())
	}
}
