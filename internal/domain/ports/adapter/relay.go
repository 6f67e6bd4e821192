// File: internal/domain/ports/adapter/relay.go
package adapter

// Realtime event names shared by the relay and its clients.
const (
	EventChatMessage      = "chat:message"
	EventChatTyping       = "chat:typing"
	EventChatAssigned     = "chat:assigned"
	EventChatEnded        = "chat:ended"
	EventUserJoined       = "user:joined"
	EventUserLeft         = "user:left"
	EventCounselorOnline  = "counselor:online"
	EventCounselorOffline = "counselor:offline"
	EventError            = "error"
)

// Relay pushes notifications to connected parties. Delivery is best effort:
// implementations never block the caller and drop events for parties that
// are not connected or cannot keep up.
type Relay interface {
	// EmitToSession sends to everyone joined to the session's channel.
	EmitToSession(sessionID, event string, payload any)
	// EmitToAccount sends to every connection of one account.
	EmitToAccount(accountID, event string, payload any)
	// Broadcast sends to every connection.
	Broadcast(event string, payload any)
}

// NoopRelay drops everything. Used where no realtime transport is wired.
type NoopRelay struct{}

func (NoopRelay) EmitToSession(string, string, any) {}
func (NoopRelay) EmitToAccount(string, string, any) {}
func (NoopRelay) Broadcast(string, any)             {}
