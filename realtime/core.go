package realtime

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"relatim-chat/event"
	"relatim-chat/metrics"
	"relatim-chat/model"
	"relatim-chat/service"

	"github.com/sirupsen/logrus"
)

var ErrSessionClosed = errors.New("session closed")

const sendFailed = "Failed to send message"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type Ledger interface {
	AppendMessage(ctx context.Context, chatID, senderID uint, content, messageType string) (*service.MessageView, error)
}

type Directory interface {
	ChatIDs(ctx context.Context, userID uint) ([]uint, error)
	ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error)
}

type StatusStore interface {
	SetOnline(ctx context.Context, userID uint) error
	SetOffline(ctx context.Context, userID uint, lastSeen time.Time) error
}

type Options struct {
	Auth      Authenticator
	Ledger    Ledger
	Directory Directory
	Status    StatusStore
	Events    event.Publisher
	Log       *logrus.Logger
}

// Core drives every realtime session through its lifecycle and fans
// events out to the rooms of the hub.
type Core struct {
	hub       *Hub
	auth      Authenticator
	ledger    Ledger
	directory Directory
	status    StatusStore
	events    event.Publisher
	log       *logrus.Logger
	now       func() time.Time
}

func New(opt Options) *Core {
	events := opt.Events
	if events == nil {
		events = event.Nop{}
	}
	return &Core{
		hub:       NewHub(),
		auth:      opt.Auth,
		ledger:    opt.Ledger,
		directory: opt.Directory,
		status:    opt.Status,
		events:    events,
		log:       opt.Log,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

func (c *Core) Hub() *Hub {
	return c.hub
}

// Authenticate resolves the handshake token of conn. A rejected connection
// never joins a room.
func (c *Core) Authenticate(ctx context.Context, conn Conn, token string) (*Session, error) {
	s := &Session{conn: conn, state: StateConnecting}

	user, err := c.auth.Authenticate(ctx, token)
	if err != nil {
		s.close()
		c.log.WithError(err).WithField("conn_id", conn.ID()).Warn("Realtime connection rejected")
		return nil, err
	}

	s.user = user
	s.transition(StateConnecting, StateAuthenticated)
	return s, nil
}

// Activate joins s to its personal room and to the room of every chat its
// user participates in, then marks the user online.
func (c *Core) Activate(ctx context.Context, s *Session) error {
	if s.State() != StateAuthenticated {
		return ErrSessionClosed
	}

	chatIDs, err := c.directory.ChatIDs(ctx, s.UserID())
	if err != nil {
		return err
	}

	c.hub.Join(UserRoom(s.UserID()), s)
	for _, id := range chatIDs {
		c.hub.Join(ChatRoom(id), s)
	}

	// A disconnect that raced the joins has already cleaned up once.
	if !s.transition(StateAuthenticated, StateJoined) {
		c.hub.Remove(s)
		return ErrSessionClosed
	}

	if err := c.status.SetOnline(ctx, s.UserID()); err != nil {
		c.log.WithError(err).WithField("user_id", s.UserID()).Warn("Failed to mark user online")
	}

	// Disconnect may have run while SetOnline was in flight and written
	// offline before our online landed.
	if !s.transition(StateJoined, StateActive) {
		if err := c.status.SetOffline(ctx, s.UserID(), c.now()); err != nil {
			c.log.WithError(err).WithField("user_id", s.UserID()).Warn("Failed to mark user offline")
		}
		return ErrSessionClosed
	}
	metrics.OnlineConnections.Set(float64(c.hub.Len()))

	c.log.WithFields(logrus.Fields{
		"conn_id": s.ID(),
		"user_id": s.UserID(),
		"chats":   len(chatIDs),
	}).Info("Realtime session active")

	c.publish(ctx, event.ActionUserStatus, StatusChanged{UserID: s.UserID(), Status: model.StatusOnline})
	return nil
}

// SendMessage stores a message and fans it out to the chat room. The sender
// additionally gets message_sent, or message_error if the store refused it.
func (c *Core) SendMessage(ctx context.Context, s *Session, req SendMessageRequest) {
	if s.State() != StateActive {
		c.messageError(s, req.ChatID, ErrSessionClosed)
		return
	}

	message, err := c.ledger.AppendMessage(ctx, req.ChatID, s.UserID(), req.Content, req.MessageType)
	if err != nil {
		c.messageError(s, req.ChatID, err)
		return
	}
	metrics.MessagesSent.Inc()

	c.fanout(ChatRoom(req.ChatID), EventNewMessage, NewMessage{ChatID: req.ChatID, Message: message}, nil)
	c.emit(s, EventMessageSent, MessageSent{MessageID: message.ID, ChatID: req.ChatID, Message: message})

	c.publish(ctx, event.ActionMessageCreated, message)
}

func (c *Core) messageError(s *Session, chatID uint, err error) {
	metrics.MessageErrors.Inc()

	payload := MessageError{ChatID: chatID, Error: sendFailed}
	if service.KindOf(err) != service.KindInternal {
		payload.Reason = service.AsError(err).Message
	}

	c.log.WithError(err).WithFields(logrus.Fields{
		"conn_id": s.ID(),
		"user_id": s.UserID(),
		"chat_id": chatID,
	}).Warn("Send message failed")

	c.emit(s, EventMessageError, payload)
}

// Typing relays a typing indicator to the other connections of the chat
// room. Sessions that are not joined to the room are ignored.
func (c *Core) Typing(s *Session, chatID uint, started bool) {
	if s.State() != StateActive {
		return
	}
	room := ChatRoom(chatID)
	if !c.hub.InRoom(room, s) {
		c.log.WithFields(logrus.Fields{
			"conn_id": s.ID(),
			"chat_id": chatID,
		}).Debug("Typing event for a chat the session has not joined")
		return
	}

	name := EventUserStoppedTyping
	if started {
		name = EventUserTyping
	}
	c.fanout(room, name, Typing{
		UserID:   s.UserID(),
		Username: s.user.Username,
		ChatID:   chatID,
	}, s)
}

// Disconnect tears s down. Every room it was joined to learns that its user
// went offline, even if other sessions of the same user remain.
func (c *Core) Disconnect(ctx context.Context, s *Session) {
	prev := s.close()
	if prev == StateDisconnected {
		return
	}

	rooms := c.hub.Remove(s)
	metrics.OnlineConnections.Set(float64(c.hub.Len()))

	if prev == StateConnecting || s.user == nil {
		return
	}

	lastSeen := c.now()
	if err := c.status.SetOffline(ctx, s.UserID(), lastSeen); err != nil {
		c.log.WithError(err).WithField("user_id", s.UserID()).Warn("Failed to mark user offline")
	}

	payload := StatusChanged{
		UserID:   s.UserID(),
		Status:   model.StatusOffline,
		LastSeen: &lastSeen,
	}
	for _, room := range rooms {
		c.fanout(room, EventUserStatusChanged, payload, nil)
	}

	c.log.WithFields(logrus.Fields{
		"conn_id": s.ID(),
		"user_id": s.UserID(),
	}).Info("Realtime session closed")

	c.publish(ctx, event.ActionUserStatus, payload)
}

// ChatCreated joins the live sessions of creatorID and contactID to the new
// chat room and notifies both personal rooms.
func (c *Core) ChatCreated(ctx context.Context, chat *service.ChatSummary, creatorID, contactID uint) {
	c.JoinChat(chat.ID, creatorID, contactID)

	c.fanout(UserRoom(creatorID), EventChatCreated, ChatCreated{ChatID: chat.ID, Chat: chat}, nil)
	c.fanout(UserRoom(contactID), EventChatCreated, ChatCreated{ChatID: chat.ID}, nil)

	c.publish(ctx, event.ActionChatCreated, chat)
}

// JoinChat joins every active session of userIDs to the chat room and
// returns how many sessions were joined.
func (c *Core) JoinChat(chatID uint, userIDs ...uint) int {
	room := ChatRoom(chatID)
	joined := 0
	for _, userID := range userIDs {
		for _, s := range c.hub.Members(UserRoom(userID)) {
			if s.State() != StateActive {
				continue
			}
			c.hub.Join(room, s)
			joined++
		}
	}
	return joined
}

// JoinChatMembers is JoinChat for every participant of chatID.
func (c *Core) JoinChatMembers(ctx context.Context, chatID uint) (int, error) {
	userIDs, err := c.directory.ParticipantIDs(ctx, chatID)
	if err != nil {
		return 0, err
	}
	return c.JoinChat(chatID, userIDs...), nil
}

// Deliver fans a stored message out to its chat room.
func (c *Core) Deliver(ctx context.Context, message *service.MessageView) {
	c.fanout(ChatRoom(message.ChatID), EventNewMessage, NewMessage{ChatID: message.ChatID, Message: message}, nil)
	c.publish(ctx, event.ActionMessageCreated, message)
}

// SendAs stores and delivers a message on behalf of senderID without a
// realtime session.
func (c *Core) SendAs(ctx context.Context, senderID, chatID uint, content, messageType string) (*service.MessageView, error) {
	message, err := c.ledger.AppendMessage(ctx, chatID, senderID, content, messageType)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	c.Deliver(ctx, message)
	return message, nil
}

func (c *Core) MessageDeleted(ctx context.Context, chatID, messageID uint) {
	payload := MessageDeleted{ChatID: chatID, MessageID: messageID}
	c.fanout(ChatRoom(chatID), EventMessageDeleted, payload, nil)
	c.publish(ctx, event.ActionMessageDeleted, payload)
}

// Presence lists the users with at least one active session on this node.
func (c *Core) Presence() PresenceSnapshot {
	seen := make(map[uint]struct{})
	connections := 0
	for _, s := range c.hub.Sessions() {
		if s.State() != StateActive {
			continue
		}
		connections++
		seen[s.UserID()] = struct{}{}
	}

	users := make([]uint, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	return PresenceSnapshot{Users: users, Connections: connections}
}

// fanout emits to every session in room except the excluded one.
func (c *Core) fanout(room, name string, payload interface{}, except *Session) int {
	n := 0
	for _, s := range c.hub.Members(room) {
		if s == except || s.State() == StateDisconnected {
			continue
		}
		if c.emit(s, name, payload) {
			n++
		}
	}
	if n > 0 && strings.HasPrefix(room, "chat_") {
		c.log.WithFields(logrus.Fields{
			"room":  room,
			"event": name,
			"conns": n,
		}).Debug("Fan-out")
	}
	return n
}

func (c *Core) emit(s *Session, name string, payload interface{}) bool {
	if err := s.conn.Emit(name, payload); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"conn_id": s.ID(),
			"event":   name,
		}).Debug("Emit failed")
		return false
	}
	metrics.FanoutEmits.WithLabelValues(name).Inc()
	return true
}

func (c *Core) publish(ctx context.Context, action string, payload interface{}) {
	if err := c.events.Publish(ctx, action, payload); err != nil {
		c.log.WithError(err).WithField("action", action).Warn("Failed to publish event")
	}
}
