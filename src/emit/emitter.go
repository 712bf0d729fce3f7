// Package emit translates typed outbound intents into wire envelopes and
// hands them to the connection manager. Sends are fire-and-forget: a command
// issued while disconnected is dropped with a warning, never queued. Stale
// location pings or chat sends are not worth replaying after a reconnect.
package emit

import (
	"github.com/rs/zerolog"

	"github.com/seryvo/realtime/src/conn"
	"github.com/seryvo/realtime/src/types"
)

// Transport is the outbound half of the connection manager.
type Transport interface {
	State() conn.State
	Send(env types.Envelope) error
}

// Emitter builds and sends outbound commands.
type Emitter struct {
	transport Transport
	logger    zerolog.Logger
}

// New creates an emitter on top of the given transport.
func New(transport Transport, logger zerolog.Logger) *Emitter {
	return &Emitter{
		transport: transport,
		logger:    logger.With().Str("component", "emit").Logger(),
	}
}

// Subscribe sends a channel subscription command, optionally room-scoped.
func (e *Emitter) Subscribe(ch types.ChannelID, room types.RoomID) {
	e.send(types.KindSubscribe, ch, types.SubscribePayload{RoomID: room})
}

// Unsubscribe sends a channel unsubscription command.
func (e *Emitter) Unsubscribe(ch types.ChannelID, room types.RoomID) {
	e.send(types.KindUnsubscribe, ch, types.SubscribePayload{RoomID: room})
}

// JoinRoom subscribes to one room, deriving the channel from its prefix.
func (e *Emitter) JoinRoom(room types.RoomID) {
	e.Subscribe(types.ChannelForRoom(room), room)
}

// LeaveRoom unsubscribes from one room.
func (e *Emitter) LeaveRoom(room types.RoomID) {
	e.Unsubscribe(types.ChannelForRoom(room), room)
}

// SendLocation sends a driver GPS fix.
func (e *Emitter) SendLocation(p types.DriverLocationPayload) {
	e.send(types.KindDriverLocationUpdate, types.ChannelDriverLocation, p)
}

// SendChat sends a chat message to a room.
func (e *Emitter) SendChat(room types.RoomID, message string) {
	e.send(types.KindChatMessage, types.ChannelChat, types.ChatMessagePayload{RoomID: room, Message: message})
}

// SendTyping sends a typing indicator for a room.
func (e *Emitter) SendTyping(room types.RoomID, typing bool) {
	e.send(types.KindChatTyping, types.ChannelChat, types.ChatTypingPayload{RoomID: room, IsTyping: typing})
}

// MarkChatRead marks a room's messages as read up to messageID.
func (e *Emitter) MarkChatRead(room types.RoomID, messageID string) {
	e.send(types.KindChatRead, types.ChannelChat, types.ChatReadPayload{RoomID: room, MessageID: messageID})
}

// Ping sends a manual liveness probe.
func (e *Emitter) Ping() {
	e.send(types.KindPing, types.ChannelNotification, struct{}{})
}

func (e *Emitter) send(kind types.MessageKind, ch types.ChannelID, payload any) {
	if e.transport.State() != conn.StateConnected {
		e.logger.Warn().Str("type", string(kind)).Msg("not connected, command dropped")
		return
	}
	env, err := types.NewEnvelope(kind, ch, payload)
	if err != nil {
		e.logger.Error().Err(err).Str("type", string(kind)).Msg("build envelope failed")
		return
	}
	if err := e.transport.Send(env); err != nil {
		e.logger.Warn().Err(err).Str("type", string(kind)).Msg("command dropped")
	}
}
