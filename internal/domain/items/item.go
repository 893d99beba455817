package items

import "errors"

var ErrNotFound = errors.New("items: not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusAvailable Status = "available"
	StatusRequested Status = "requested"
	StatusDonated   Status = "donated"
)

// Snapshot is the part of a listed item the chat engine needs. Items are owned
// by the catalog service; the chat engine never mutates them.
type Snapshot struct {
	ID       string
	Title    string
	DonorID  string
	Status   Status
	Approved bool
	// ReceiverID is set once the donor approved a request; the item is then
	// marked donated to that receiver.
	ReceiverID string
}

// EligibleForChat reports whether a pickup chat between the donor and
// receiverID may be opened for the item. The item must have passed admin
// approval. A donated item only admits the receiver it was donated to.
func (s Snapshot) EligibleForChat(receiverID string) bool {
	if !s.Approved || s.Status == StatusPending {
		return false
	}
	if s.Status == StatusDonated {
		return s.ReceiverID != "" && s.ReceiverID == receiverID
	}
	return true
}
