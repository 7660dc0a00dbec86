package model

import "time"

// TicketState enumerates the ticket lifecycle.  Transitions only ever move
// forward: ON_SALE -> WAITING_FOR_PAYMENT -> BOOKED -> CANCELLED.
type TicketState string

const (
	TicketOnSale            TicketState = "ON_SALE"
	TicketWaitingForPayment TicketState = "WAITING_FOR_PAYMENT"
	TicketBooked            TicketState = "BOOKED"
	TicketCancelled         TicketState = "CANCELLED"

	// TicketCancelling is an in-memory claim held while a cancellation's
	// refund is in flight.  It is never persisted or rendered: the slot
	// either completes to CANCELLED or is restored to BOOKED.
	TicketCancelling TicketState = "CANCELLING"
)

// TicketClass enumerates the fare classes sold per train.
type TicketClass string

const (
	ClassEconomy  TicketClass = "ECONOMY"
	ClassStandard TicketClass = "STANDARD"
	ClassBusiness TicketClass = "BUSINESS"
)

// Bill records a monetary outcome: the charge raised by a booking, or the
// refund raised by a cancellation.
type Bill struct {
	ID         uint64    // bills.id
	Sum        Money     // bills.sum_cents
	Date       time.Time // bills.issued_at (UTC)
	PayerEmail string    // bills.payer_email
}

// Ticket is the unit the marketplace sells.  Price is a snapshot of the
// fare's unit price taken at reservation time and never re-read afterwards,
// including on cancellation.  Passenger, Bill, CancellationBill and
// CancellationDate are nil until the lifecycle reaches the state that
// produces them.
type Ticket struct {
	ID                    uint64      // tickets.id
	TrainID               uint64      // tickets.train_id
	Class                 TicketClass // tickets.class
	Price                 Money       // tickets.price_cents (snapshot)
	LuggageIncluded       bool        // tickets.luggage_included
	FreeCancellationUntil time.Time   // tickets.free_cancellation_until (UTC)
	State                 TicketState // tickets.state

	TicketNo string // assigned when booked
	Seat     string // assigned when booked

	Passenger        *User      // set on booking
	Bill             *Bill      // set on booking
	CancellationBill *Bill      // set on cancellation when a refund is due
	CancellationDate *time.Time // set on cancellation
}
