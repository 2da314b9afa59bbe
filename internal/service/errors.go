package service

import "errors"

var (
	ErrPartyNotFound    = errors.New("party not found")
	ErrPartyExists      = errors.New("party name already exists")
	ErrBatchNotFound    = errors.New("stock batch not found")
	ErrTransferNotFound = errors.New("transfer not found")
	ErrPoolEntryMissing = errors.New("pool entry not found")

	ErrNoParty          = errors.New("user is not attached to a party")
	ErrForbiddenLedger  = errors.New("ledger belongs to another party")
	ErrNotOwner         = errors.New("batch belongs to another party")
	ErrNotDestination   = errors.New("only the receiving party can accept this transfer")
	ErrNotOfferingParty = errors.New("only the offering party can withdraw this entry")

	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInsufficientQuantity = errors.New("insufficient quantity remaining in batch")
	ErrInvalidDiscount      = errors.New("discount percent must be between 0 and 100")
	ErrInvalidPrice         = errors.New("unit price cannot be negative")
	ErrBatchNotAccepted     = errors.New("batch is not in accepted state")
	ErrTierOrder            = errors.New("stock can only be transferred to a downstream tier")
	ErrSameParty            = errors.New("source and destination party are the same")
	ErrBatchInPool          = errors.New("batch has an open pool entry")
	ErrPoolEntryNotOpen     = errors.New("pool entry is no longer open")
	ErrOwnPoolEntry         = errors.New("a party cannot claim its own pool entry")
	ErrHorizonRequired      = errors.New("horizon days must be zero or greater")
	ErrInvalidView          = errors.New("unknown ledger view")
)
