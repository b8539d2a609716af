package market

import "fmt"

// Side is which way a listing or request faces.
type Side string

const (
	SideSell Side = "sell"
	SideBuy  Side = "buy"
)

func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideSell, SideBuy:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Role is a party's position in a trade.
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSeller, RoleBuyer:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// EventStatus is the lifecycle of a scheduled trade event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventStarted   EventStatus = "started"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

var eventNext = map[EventStatus]map[EventStatus]bool{
	EventPending:   {EventStarted: true, EventCancelled: true},
	EventStarted:   {EventCompleted: true, EventCancelled: true},
	EventCompleted: {},
	EventCancelled: {},
}

func CanTransitionEvent(from, to EventStatus) bool {
	return eventNext[from][to]
}

// TxStatus is the recorded outcome of a trade.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxCompleted TxStatus = "completed"
	TxCancelled TxStatus = "cancelled"
)

// RatingStatus is the moderation state of a persisted rating.
type RatingStatus string

const (
	RatingPending  RatingStatus = "pending"
	RatingApproved RatingStatus = "approved"
	RatingRejected RatingStatus = "rejected"
)
