package types

import (
	"encoding/json"
	"fmt"
)

// SubscribePayload is carried by subscribe and unsubscribe commands.
type SubscribePayload struct {
	RoomID RoomID `json:"room_id,omitempty"`
}

// DriverLocationPayload carries a GPS fix, inbound or outbound.
type DriverLocationPayload struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Heading  *float64 `json:"heading,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	RoomID   RoomID   `json:"room_id,omitempty"`
	DriverID string   `json:"driver_id,omitempty"`
}

// ChatMessagePayload carries one chat message.
type ChatMessagePayload struct {
	RoomID     RoomID `json:"room_id"`
	Message    string `json:"message"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

// ChatTypingPayload carries a typing indicator.
type ChatTypingPayload struct {
	RoomID   RoomID `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
	SenderID string `json:"sender_id,omitempty"`
}

// ChatReadPayload marks messages in a room as read.
type ChatReadPayload struct {
	RoomID    RoomID `json:"room_id"`
	MessageID string `json:"message_id,omitempty"`
	ReaderID  string `json:"reader_id,omitempty"`
}

// BookingEventPayload is shared by the booking lifecycle kinds.
type BookingEventPayload struct {
	BookingID      string `json:"booking_id"`
	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// DriverAssignedPayload announces the driver matched to a booking.
type DriverAssignedPayload struct {
	BookingID  string `json:"booking_id"`
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`
}

// DriverStatusPayload carries driver availability transitions.
type DriverStatusPayload struct {
	DriverID string `json:"driver_id"`
	Status   string `json:"status"`
}

// NotificationPayload carries a user-facing notification.
type NotificationPayload struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Level string `json:"level,omitempty"`
}

// AdminStatsPayload carries the admin dashboard counters. The server decides
// the counter set, so the shape stays a flat map.
type AdminStatsPayload map[string]any

// SupportTicketPayload announces a newly opened support ticket.
type SupportTicketPayload struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// ErrorPayload is carried by server-reported error frames.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ConnectAckPayload is the server's acknowledgment of a fresh socket.
type ConnectAckPayload struct {
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
}

// DecodePayload decodes an envelope's payload into its kind-specific shape.
// Every known kind maps to exactly one payload type; control kinds without a
// body decode to nil.
func DecodePayload(env Envelope) (any, error) {
	switch env.Kind {
	case KindPing, KindPong, KindDisconnect:
		return nil, nil
	case KindConnect:
		return decodeAs[ConnectAckPayload](env)
	case KindError:
		return decodeAs[ErrorPayload](env)
	case KindBookingCreated, KindBookingUpdated, KindBookingStatusChanged, KindBookingCancelled:
		return decodeAs[BookingEventPayload](env)
	case KindDriverAssigned, KindDriverArrived:
		return decodeAs[DriverAssignedPayload](env)
	case KindDriverStatusChanged:
		return decodeAs[DriverStatusPayload](env)
	case KindDriverLocationUpdate:
		return decodeAs[DriverLocationPayload](env)
	case KindChatMessage:
		return decodeAs[ChatMessagePayload](env)
	case KindChatTyping:
		return decodeAs[ChatTypingPayload](env)
	case KindChatRead:
		return decodeAs[ChatReadPayload](env)
	case KindNotificationNew, KindNotificationRead:
		return decodeAs[NotificationPayload](env)
	case KindAdminStatsUpdate:
		return decodeAs[AdminStatsPayload](env)
	case KindNewSupportTicket:
		return decodeAs[SupportTicketPayload](env)
	case KindSubscribe, KindUnsubscribe:
		return decodeAs[SubscribePayload](env)
	}
	return nil, fmt.Errorf("no payload shape for kind %q", env.Kind)
}

func decodeAs[T any](env Envelope) (*T, error) {
	var v T
	if len(env.Payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return &v, nil
}
