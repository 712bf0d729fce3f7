package types

// Conn abstracts the physical socket for testability. Implementations must
// allow ReadMessage and WriteMessage to be called from different goroutines,
// and Close to unblock a pending read.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
