package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-ticket-market/internal/catalog"
	"github.com/iliyamo/train-ticket-market/internal/model"
)

// View rendering for the wire types.  Trains and tickets are closed variant
// sets: the shared fields always appear and each status contributes only
// its own extras, so exhaustive switches below are the whole story.

func iso(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func stationJSON(s model.Station) echo.Map {
	return echo.Map{
		"id":   s.ID,
		"name": s.Name,
		"locality": echo.Map{
			"id":       s.Locality.ID,
			"name":     s.Locality.Name,
			"timezone": s.Locality.Timezone,
			"country": echo.Map{
				"id":   s.Locality.Country.ID,
				"name": s.Locality.Country.Name,
			},
		},
	}
}

func companyJSON(c model.Company) echo.Map {
	return echo.Map{
		"id":      c.ID,
		"name":    c.Name,
		"phone":   c.Phone,
		"email":   c.Email,
		"address": c.Address,
	}
}

func stopsJSON(stops []model.TrainStop) []echo.Map {
	out := make([]echo.Map, 0, len(stops))
	for _, s := range stops {
		out = append(out, echo.Map{
			"id":       s.ID,
			"place":    stationJSON(s.Place),
			"fromTime": iso(s.FromTime),
			"toTime":   iso(s.ToTime),
		})
	}
	return out
}

func trainJSON(l catalog.TrainListing) echo.Map {
	m := echo.Map{
		"id":            l.ID,
		"trainNo":       l.TrainNo,
		"departureDate": iso(l.DepartureDate),
		"arrivalDate":   iso(l.ArrivalDate),
		"from":          stationJSON(l.From),
		"to":            stationJSON(l.To),
		"travelTime":    l.TravelTimeString(),
		"status":        string(l.Status.Kind),
		"company":       companyJSON(l.Company),
		"platform":      l.Platform,
		"stops":         stopsJSON(l.Stops),
	}
	switch l.Status.Kind {
	case model.TrainScheduled:
		m["ticketPriceFrom"] = int64(l.TicketPriceFrom)
		m["ticketsOnSale"] = l.TicketsOnSale
	case model.TrainDelayed:
		m["newDepartureTime"] = iso(l.Status.NewDepartureTime)
	case model.TrainCancelled:
		m["cancellationReason"] = l.Status.CancellationReason
	case model.TrainOnTheWay:
		m["actualDepartureTime"] = iso(l.Status.ActualDepartureTime)
	case model.TrainArrived:
		m["actualDepartureTime"] = iso(l.Status.ActualDepartureTime)
		m["actualArrivalTime"] = iso(l.Status.ActualArrivalTime)
	}
	return m
}

func billJSON(b *model.Bill) echo.Map {
	if b == nil {
		return nil
	}
	return echo.Map{
		"id":         b.ID,
		"sum":        int64(b.Sum),
		"date":       iso(b.Date),
		"payerEmail": b.PayerEmail,
	}
}

func passengerJSON(u *model.User) echo.Map {
	if u == nil {
		return nil
	}
	return echo.Map{
		"id":          u.ID,
		"firstName":   u.FirstName,
		"lastName":    u.LastName,
		"sex":         string(u.Sex),
		"dateOfBirth": u.DateOfBirth.UTC().Format("2006-01-02"),
		"email":       u.Email,
		"phone":       u.Phone,
		"passport": echo.Map{
			"id":         u.Passport.ID,
			"series":     u.Passport.Series,
			"issueDate":  u.Passport.IssueDate.UTC().Format("2006-01-02"),
			"issuePlace": u.Passport.IssuePlace,
		},
	}
}

// ticketBaseJSON renders the fields every ticket variant shares.  train is
// resolved through the catalog so each ticket carries its full train view.
func (a *API) ticketBaseJSON(t model.Ticket) echo.Map {
	m := echo.Map{
		"id":                    t.ID,
		"status":                string(t.State),
		"class":                 string(t.Class),
		"price":                 int64(t.Price),
		"luggageIncluded":       t.LuggageIncluded,
		"freeCancellationUntil": iso(t.FreeCancellationUntil),
	}
	if l, err := a.Catalog.TrainInfo(t.TrainID); err == nil {
		m["train"] = trainJSON(l)
	}
	return m
}

func (a *API) onSaleTicketJSON(l catalog.TicketListing) echo.Map {
	m := a.ticketBaseJSON(l.Ticket)
	m["availableAmount"] = l.AvailableAmount
	return m
}

func (a *API) bookedTicketJSON(t model.Ticket) echo.Map {
	m := a.ticketBaseJSON(t)
	m["ticketNo"] = t.TicketNo
	m["seat"] = t.Seat
	m["passenger"] = passengerJSON(t.Passenger)
	m["bill"] = billJSON(t.Bill)
	return m
}

func (a *API) cancelledTicketJSON(t model.Ticket) echo.Map {
	m := a.bookedTicketJSON(t)
	m["cancellationBill"] = billJSON(t.CancellationBill)
	if t.CancellationDate != nil {
		m["cancellationDate"] = iso(*t.CancellationDate)
	}
	return m
}

// userTicketJSON renders the booked/cancelled union used by `me`.
func (a *API) userTicketJSON(t model.Ticket) echo.Map {
	if t.State == model.TicketCancelled {
		return a.cancelledTicketJSON(t)
	}
	return a.bookedTicketJSON(t)
}

func pageInfoJSON(info catalog.PageInfo) echo.Map {
	return echo.Map{
		"totalPages":      info.TotalPages,
		"totalItems":      info.TotalItems,
		"page":            info.Page,
		"perPage":         info.PerPage,
		"hasNextPage":     info.HasNextPage,
		"hasPreviousPage": info.HasPreviousPage,
	}
}
