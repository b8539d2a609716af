package market

import "errors"

var (
	ErrUnknownOrder     = errors.New("unknown order")
	ErrUnknownTicket    = errors.New("unknown review ticket")
	ErrNotAParty        = errors.New("user is not a party to this order")
	ErrNotOwner         = errors.New("user does not own this listing")
	ErrInvalidScore     = errors.New("score must be between 1 and 5")
	ErrDuplicateRating  = errors.New("rating already submitted")
	ErrNoRatingWindow   = errors.New("no open rating window")
	ErrStoreUnavailable = errors.New("store unavailable")
)
