package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-ticket-market/internal/engine"
	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/model"
	"github.com/iliyamo/train-ticket-market/internal/queue"
	queuepublisher "github.com/iliyamo/train-ticket-market/internal/service"
)

// passportPayload and passengerPayload mirror the contract's booking input.
type passportPayload struct {
	Series     string `json:"series"`
	IssueDate  string `json:"issueDate"`
	IssuePlace string `json:"issuePlace"`
}

type passengerPayload struct {
	Passport    passportPayload `json:"passport"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Sex         string          `json:"sex"`
	DateOfBirth string          `json:"dateOfBirth"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
}

type bookingPayload struct {
	TicketID  uint64           `json:"ticketId"`
	Passenger passengerPayload `json:"passenger"`
}

type cancelPayload struct {
	TicketID []uint64 `json:"ticketId"`
}

func (p passengerPayload) toUser() (model.User, error) {
	issue, err := time.Parse("2006-01-02", p.Passport.IssueDate)
	if err != nil {
		return model.User{}, err
	}
	birth, err := time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		Passport: model.Passport{
			Series:     p.Passport.Series,
			IssueDate:  issue.UTC(),
			IssuePlace: p.Passport.IssuePlace,
		},
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Sex:         model.Sex(p.Sex),
		DateOfBirth: birth.UTC(),
		Email:       p.Email,
		Phone:       p.Phone,
	}, nil
}

// BookTickets handles POST /v1/tickets/book.  The whole batch is booked or
// nothing is; on success the booking is persisted and an event published,
// neither of which can fail the already-committed booking.
func (a *API) BookTickets(c echo.Context) error {
	var payload []bookingPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusOK, errEnvelope([]echo.Map{}, errorView{Code: codeUnknown, Message: "malformed booking payload"}))
	}
	requests := make([]engine.BookingRequest, 0, len(payload))
	for _, p := range payload {
		passenger, err := p.Passenger.toUser()
		if err != nil {
			return c.JSON(http.StatusOK, errEnvelope([]echo.Map{}, errorView{Code: codeUnknown, Message: "invalid passenger: " + err.Error()}))
		}
		requests = append(requests, engine.BookingRequest{TicketID: p.TicketID, Passenger: passenger})
	}

	booked, err := a.Booker.Book(c.Request().Context(), requests)
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope([]echo.Map{}, bookingErrorView(err)))
	}

	a.persistBooking(c, booked)
	a.publishBooked(c, booked)

	views := make([]echo.Map, 0, len(booked))
	for _, t := range booked {
		views = append(views, a.bookedTicketJSON(t))
	}
	return c.JSON(http.StatusOK, okEnvelope(views))
}

// CancelTickets handles POST /v1/tickets/cancel.  Cancellation is per
// ticket: successes stand even when a later ticket of the batch fails, and
// the envelope then carries both the cancelled tickets and the first error.
func (a *API) CancelTickets(c echo.Context) error {
	var payload cancelPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusOK, errEnvelope([]echo.Map{}, errorView{Code: codeUnknown, Message: "malformed cancellation payload"}))
	}

	cancelled, err := a.Canceler.Cancel(c.Request().Context(), payload.TicketID)

	for _, cn := range cancelled {
		a.persistCancellation(c, cn)
	}
	a.publishCancelled(c, cancelled)

	views := make([]echo.Map, 0, len(cancelled))
	for _, cn := range cancelled {
		views = append(views, a.cancelledTicketJSON(cn.Ticket))
	}
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope(views, cancelErrorView(err)))
	}
	return c.JSON(http.StatusOK, okEnvelope(views))
}

// persistBooking writes the booked tickets through to the store.  The
// in-memory state is authoritative; persistence failures are logged and do
// not affect the response.
func (a *API) persistBooking(c echo.Context, booked []model.Ticket) {
	if a.Store == nil {
		return
	}
	ctx := c.Request().Context()
	if err := a.Store.SaveBooking(ctx, booked); err != nil {
		log.Printf("persist booking: %v", err)
	}
	a.syncFares(c, booked)
}

func (a *API) persistCancellation(c echo.Context, cn engine.Cancellation) {
	if a.Store == nil {
		return
	}
	if err := a.Store.SaveCancellation(c.Request().Context(), cn.Ticket, cn.Relisted); err != nil {
		log.Printf("persist cancellation of ticket %d: %v", cn.Ticket.ID, err)
	}
	a.syncFares(c, []model.Ticket{cn.Ticket})
}

// syncFares writes the current available amount of every fare the tickets
// touched back to the store.
func (a *API) syncFares(c echo.Context, tickets []model.Ticket) {
	seen := make(map[inventory.Key]struct{}, len(tickets))
	for _, t := range tickets {
		key := inventory.Key{TrainID: t.TrainID, Class: t.Class}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		avail, ok := a.Inv.Available(key)
		if !ok {
			continue
		}
		if err := a.Store.SetFareAmount(c.Request().Context(), key.TrainID, key.Class, avail); err != nil {
			log.Printf("persist fare %v: %v", key, err)
		}
	}
}

func (a *API) publishBooked(c echo.Context, booked []model.Ticket) {
	if len(booked) == 0 {
		return
	}
	event := queue.TicketsBookedEvent{
		Tickets:  make([]queue.BookedTicketRef, 0, len(booked)),
		BookedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, t := range booked {
		event.Tickets = append(event.Tickets, queue.BookedTicketRef{
			TicketID: t.ID,
			TicketNo: t.TicketNo,
			TrainID:  t.TrainID,
			Class:    string(t.Class),
			Seat:     t.Seat,
		})
		event.TotalCents += int64(t.Price)
		if t.Passenger != nil {
			event.PayerEmail = t.Passenger.Email
		}
	}
	if err := queuepublisher.PublishTicketsBooked(c.Request().Context(), event); err != nil {
		log.Printf("publish booked event: %v", err)
	}
}

func (a *API) publishCancelled(c echo.Context, cancelled []engine.Cancellation) {
	if len(cancelled) == 0 {
		return
	}
	event := queue.TicketsCancelledEvent{
		CancelledAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, cn := range cancelled {
		event.TicketIDs = append(event.TicketIDs, cn.Ticket.ID)
		if cn.Ticket.CancellationBill != nil {
			event.RefundCents += int64(cn.Ticket.CancellationBill.Sum)
		}
	}
	if err := queuepublisher.PublishTicketsCancelled(c.Request().Context(), event); err != nil {
		log.Printf("publish cancelled event: %v", err)
	}
}
