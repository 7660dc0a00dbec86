// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// BookedTicketRef identifies one ticket inside a booking event.
type BookedTicketRef struct {
	TicketID uint64 `json:"ticket_id"`
	TicketNo string `json:"ticket_no"`
	TrainID  uint64 `json:"train_id"`
	Class    string `json:"class"`
	Seat     string `json:"seat"`
}

// TicketsBookedEvent is published after a booking batch commits.  It
// carries enough for downstream consumers to log, notify or feed analytics
// without querying the primary store.
type TicketsBookedEvent struct {
	Tickets    []BookedTicketRef `json:"tickets"`
	PayerEmail string            `json:"payer_email"`
	TotalCents int64             `json:"total_cents"`
	BookedAt   string            `json:"booked_at"`
}

// TicketsCancelledEvent is published after tickets are cancelled.  One
// event covers the whole batch; failed tickets of the batch are absent.
type TicketsCancelledEvent struct {
	TicketIDs   []uint64 `json:"ticket_ids"`
	RefundCents int64    `json:"refund_cents"`
	CancelledAt string   `json:"cancelled_at"`
}
