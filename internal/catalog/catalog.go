// Package catalog is the read side of the marketplace: filtering, sorting
// and paginating trains and on-sale tickets.  It never mutates the ledger
// or the inventory; it only reads snapshots of both.
package catalog

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/ledger"
	"github.com/iliyamo/train-ticket-market/internal/model"
)

// ErrTrainNotFound is returned for an unknown train id.
var ErrTrainNotFound = errors.New("train not found")

// TrainSort enumerates the supported train orderings.
type TrainSort string

const (
	SortDateAsc        TrainSort = "DATE_ASC"
	SortDateDesc       TrainSort = "DATE_DESC"
	SortPriceAsc       TrainSort = "PRICE_ASC"
	SortPriceDesc      TrainSort = "PRICE_DESC"
	SortTravelTimeAsc  TrainSort = "TRAVEL_TIME_ASC"
	SortTravelTimeDesc TrainSort = "TRAVEL_TIME_DESC"
)

// TicketSort enumerates the supported ticket orderings.
type TicketSort string

const (
	TicketSortPriceAsc  TicketSort = "PRICE_ASC"
	TicketSortPriceDesc TicketSort = "PRICE_DESC"
)

// TrainFilter is conjunctive: every non-nil / non-empty predicate must
// hold.  Name predicates match case-insensitive substrings, the way the
// search endpoints of this service have always behaved.
type TrainFilter struct {
	FromDate *time.Time
	ToDate   *time.Time

	FromCountry  string
	ToCountry    string
	FromLocality string
	ToLocality   string
	FromStation  string
	ToStation    string

	PriceMin *model.Money
	PriceMax *model.Money

	TravelTimeMinMinutes *int
	TravelTimeMaxMinutes *int

	Company string
}

// TicketFilter is conjunctive over on-sale tickets of one train.
type TicketFilter struct {
	Class                 *model.TicketClass
	LuggageIncluded       *bool
	FreeCancellationAfter *time.Time
	PriceMin              *model.Money
	PriceMax              *model.Money
}

// TrainListing is a train plus the two figures computed from live
// inventory: the cheapest unit price across its fares with stock, and the
// total seats still on sale.
type TrainListing struct {
	model.Train
	TicketPriceFrom model.Money
	TicketsOnSale   int
}

// TicketListing is an on-sale ticket plus the live available amount of its
// fare key.
type TicketListing struct {
	model.Ticket
	AvailableAmount int
}

// TrainPage and TicketPage are one page of results with pagination info.
type TrainPage struct {
	Items    []TrainListing
	PageInfo PageInfo
}

type TicketPage struct {
	Items    []TicketListing
	PageInfo PageInfo
}

// Catalog serves read-only queries over the reference trains, the ticket
// ledger and the fare inventory.
type Catalog struct {
	trains  []model.Train
	trainID map[uint64]int
	ledger  *ledger.Ledger
	inv     *inventory.Inventory
}

// New builds a catalog over the given reference data.  Trains are kept in
// ascending id order.
func New(trains []model.Train, led *ledger.Ledger, inv *inventory.Inventory) *Catalog {
	sorted := make([]model.Train, len(trains))
	copy(sorted, trains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	idx := make(map[uint64]int, len(sorted))
	for i, t := range sorted {
		idx[t.ID] = i
	}
	return &Catalog{trains: sorted, trainID: idx, ledger: led, inv: inv}
}

func (c *Catalog) listing(t model.Train) TrainListing {
	l := TrainListing{Train: t}
	for _, e := range c.inv.ForTrain(t.ID) {
		if e.Available <= 0 {
			continue
		}
		l.TicketsOnSale += e.Available
		if l.TicketPriceFrom == 0 || e.UnitPrice < l.TicketPriceFrom {
			l.TicketPriceFrom = e.UnitPrice
		}
	}
	return l
}

// TrainInfo returns a single train listing by id.
func (c *Catalog) TrainInfo(trainID uint64) (TrainListing, error) {
	i, ok := c.trainID[trainID]
	if !ok {
		return TrainListing{}, ErrTrainNotFound
	}
	return c.listing(c.trains[i]), nil
}

// Trains filters, sorts and paginates the train list.  Sorting is stable
// with id-ascending tiebreak, so repeated calls over the same data paginate
// identically.
func (c *Catalog) Trains(filter TrainFilter, sorts []TrainSort, page, perPage int) TrainPage {
	matched := make([]TrainListing, 0, len(c.trains))
	for _, t := range c.trains {
		l := c.listing(t)
		if matchTrain(l, filter) {
			matched = append(matched, l)
		}
	}
	sortTrains(matched, sorts)
	items, info := paginate(matched, page, perPage)
	return TrainPage{Items: items, PageInfo: info}
}

// Tickets filters, sorts and paginates the on-sale tickets of one train.
func (c *Catalog) Tickets(trainID uint64, filter TicketFilter, sorts []TicketSort, page, perPage int) (TicketPage, error) {
	if _, ok := c.trainID[trainID]; !ok {
		return TicketPage{}, ErrTrainNotFound
	}
	matched := make([]TicketListing, 0, 16)
	for _, t := range c.ledger.ForTrain(trainID) {
		if t.State != model.TicketOnSale {
			continue
		}
		if !matchTicket(t, filter) {
			continue
		}
		avail, _ := c.inv.Available(inventory.Key{TrainID: t.TrainID, Class: t.Class})
		matched = append(matched, TicketListing{Ticket: t, AvailableAmount: avail})
	}
	sortTickets(matched, sorts)
	items, info := paginate(matched, page, perPage)
	return TicketPage{Items: items, PageInfo: info}, nil
}

// Train resolves a train by id for view rendering.
func (c *Catalog) Train(trainID uint64) (model.Train, bool) {
	i, ok := c.trainID[trainID]
	if !ok {
		return model.Train{}, false
	}
	return c.trains[i], true
}

// UserTickets returns the booked and cancelled tickets whose passenger has
// the given email, for the `me` query.
func (c *Catalog) UserTickets(email string) []model.Ticket {
	out := make([]model.Ticket, 0, 8)
	for _, t := range c.ledger.ByPassengerEmail(email) {
		if t.State == model.TicketBooked || t.State == model.TicketCancelled {
			out = append(out, t)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchTrain(l TrainListing, f TrainFilter) bool {
	if f.FromDate != nil && l.DepartureDate.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && l.DepartureDate.After(*f.ToDate) {
		return false
	}
	if f.FromCountry != "" && !containsFold(l.From.Locality.Country.Name, f.FromCountry) {
		return false
	}
	if f.ToCountry != "" && !containsFold(l.To.Locality.Country.Name, f.ToCountry) {
		return false
	}
	if f.FromLocality != "" && !containsFold(l.From.Locality.Name, f.FromLocality) {
		return false
	}
	if f.ToLocality != "" && !containsFold(l.To.Locality.Name, f.ToLocality) {
		return false
	}
	if f.FromStation != "" && !containsFold(l.From.Name, f.FromStation) {
		return false
	}
	if f.ToStation != "" && !containsFold(l.To.Name, f.ToStation) {
		return false
	}
	if f.PriceMin != nil && l.TicketPriceFrom < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && l.TicketPriceFrom > *f.PriceMax {
		return false
	}
	if f.TravelTimeMinMinutes != nil || f.TravelTimeMaxMinutes != nil {
		minutes := int(l.TravelTime().Minutes())
		if f.TravelTimeMinMinutes != nil && minutes < *f.TravelTimeMinMinutes {
			return false
		}
		if f.TravelTimeMaxMinutes != nil && minutes > *f.TravelTimeMaxMinutes {
			return false
		}
	}
	if f.Company != "" && !containsFold(l.Company.Name, f.Company) {
		return false
	}
	return true
}

func matchTicket(t model.Ticket, f TicketFilter) bool {
	if f.Class != nil && t.Class != *f.Class {
		return false
	}
	if f.LuggageIncluded != nil && t.LuggageIncluded != *f.LuggageIncluded {
		return false
	}
	if f.FreeCancellationAfter != nil && t.FreeCancellationUntil.Before(*f.FreeCancellationAfter) {
		return false
	}
	if f.PriceMin != nil && t.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && t.Price > *f.PriceMax {
		return false
	}
	return true
}

// sortTrains applies the requested keys in order, tiebreaking on id
// ascending so pagination is deterministic on an unchanged dataset.
func sortTrains(items []TrainListing, sorts []TrainSort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		for _, s := range sorts {
			switch s {
			case SortDateAsc:
				if !a.DepartureDate.Equal(b.DepartureDate) {
					return a.DepartureDate.Before(b.DepartureDate)
				}
			case SortDateDesc:
				if !a.DepartureDate.Equal(b.DepartureDate) {
					return a.DepartureDate.After(b.DepartureDate)
				}
			case SortPriceAsc:
				if a.TicketPriceFrom != b.TicketPriceFrom {
					return a.TicketPriceFrom < b.TicketPriceFrom
				}
			case SortPriceDesc:
				if a.TicketPriceFrom != b.TicketPriceFrom {
					return a.TicketPriceFrom > b.TicketPriceFrom
				}
			case SortTravelTimeAsc:
				if a.TravelTime() != b.TravelTime() {
					return a.TravelTime() < b.TravelTime()
				}
			case SortTravelTimeDesc:
				if a.TravelTime() != b.TravelTime() {
					return a.TravelTime() > b.TravelTime()
				}
			}
		}
		return a.ID < b.ID
	})
}

func sortTickets(items []TicketListing, sorts []TicketSort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		for _, s := range sorts {
			switch s {
			case TicketSortPriceAsc:
				if a.Price != b.Price {
					return a.Price < b.Price
				}
			case TicketSortPriceDesc:
				if a.Price != b.Price {
					return a.Price > b.Price
				}
			}
		}
		return a.ID < b.ID
	})
}
