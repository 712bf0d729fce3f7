package types

import "strings"

// MessageKind is the wire-level message type discriminator.
type MessageKind string

// Connection control kinds.
const (
	KindConnect    MessageKind = "connect"
	KindDisconnect MessageKind = "disconnect"
	KindPing       MessageKind = "ping"
	KindPong       MessageKind = "pong"
	KindError      MessageKind = "error"
)

// Booking lifecycle kinds.
const (
	KindBookingCreated       MessageKind = "booking_created"
	KindBookingUpdated       MessageKind = "booking_updated"
	KindBookingStatusChanged MessageKind = "booking_status_changed"
	KindBookingCancelled     MessageKind = "booking_cancelled"
)

// Driver kinds.
const (
	KindDriverLocationUpdate MessageKind = "driver_location_update"
	KindDriverStatusChanged  MessageKind = "driver_status_changed"
	KindDriverAssigned       MessageKind = "driver_assigned"
	KindDriverArrived        MessageKind = "driver_arrived"
)

// Chat kinds.
const (
	KindChatMessage MessageKind = "chat_message"
	KindChatTyping  MessageKind = "chat_typing"
	KindChatRead    MessageKind = "chat_read"
)

// Notification and admin kinds.
const (
	KindNotificationNew  MessageKind = "notification_new"
	KindNotificationRead MessageKind = "notification_read"
	KindAdminStatsUpdate MessageKind = "admin_stats_update"
	KindNewSupportTicket MessageKind = "new_support_ticket"
)

// Outbound subscription management kinds.
const (
	KindSubscribe   MessageKind = "subscribe"
	KindUnsubscribe MessageKind = "unsubscribe"
)

var knownKinds = map[MessageKind]bool{
	KindConnect: true, KindDisconnect: true, KindPing: true, KindPong: true, KindError: true,
	KindBookingCreated: true, KindBookingUpdated: true, KindBookingStatusChanged: true, KindBookingCancelled: true,
	KindDriverLocationUpdate: true, KindDriverStatusChanged: true, KindDriverAssigned: true, KindDriverArrived: true,
	KindChatMessage: true, KindChatTyping: true, KindChatRead: true,
	KindNotificationNew: true, KindNotificationRead: true,
	KindAdminStatsUpdate: true, KindNewSupportTicket: true,
	KindSubscribe: true, KindUnsubscribe: true,
}

// Known reports whether k is part of the wire vocabulary.
func (k MessageKind) Known() bool { return knownKinds[k] }

// IsControl reports whether k is a connection control kind that must never
// reach application handlers.
func (k MessageKind) IsControl() bool {
	return k == KindPing || k == KindPong
}

// ChannelID is a coarse topic grouping for related message kinds.
type ChannelID string

const (
	ChannelBooking        ChannelID = "booking"
	ChannelDriverLocation ChannelID = "driver_location"
	ChannelChat           ChannelID = "chat"
	ChannelNotification   ChannelID = "notification"
	ChannelAdmin          ChannelID = "admin"
)

// Channels lists every valid channel.
func Channels() []ChannelID {
	return []ChannelID{ChannelBooking, ChannelDriverLocation, ChannelChat, ChannelNotification, ChannelAdmin}
}

// Valid reports whether c is a known channel.
func (c ChannelID) Valid() bool {
	switch c {
	case ChannelBooking, ChannelDriverLocation, ChannelChat, ChannelNotification, ChannelAdmin:
		return true
	}
	return false
}

// RoomID is a fine-grained scope within a channel, conventionally formatted
// as "<prefix>:<id>", e.g. "booking:42" or "chat:7".
type RoomID string

// ChannelForRoom derives the channel a room belongs to from its prefix.
// Rooms without a recognized prefix default to the booking channel.
func ChannelForRoom(room RoomID) ChannelID {
	prefix, _, _ := strings.Cut(string(room), ":")
	switch prefix {
	case "booking":
		return ChannelBooking
	case "driver":
		return ChannelDriverLocation
	case "chat":
		return ChannelChat
	case "notification":
		return ChannelNotification
	case "admin":
		return ChannelAdmin
	}
	return ChannelBooking
}

// Subscription is one entry of the application's wanted set: a channel,
// optionally narrowed to a single room.
type Subscription struct {
	Channel ChannelID
	Room    RoomID
}
