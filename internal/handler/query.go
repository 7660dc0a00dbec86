package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-ticket-market/internal/catalog"
	"github.com/iliyamo/train-ticket-market/internal/engine"
	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/middleware"
	"github.com/iliyamo/train-ticket-market/internal/model"
	"github.com/iliyamo/train-ticket-market/internal/repository"
)

// API groups the engines and collaborators the handlers dispatch into.
// Store may be nil (no durable store configured); everything else is
// required.
type API struct {
	Catalog  *catalog.Catalog
	Booker   *engine.Booker
	Canceler *engine.Canceler
	Inv      *inventory.Inventory
	Users    map[uint64]model.User
	Store    *repository.TicketRepo
}

// NewAPI wires the handler set.
func NewAPI(cat *catalog.Catalog, booker *engine.Booker, canceler *engine.Canceler, inv *inventory.Inventory, users map[uint64]model.User, store *repository.TicketRepo) *API {
	if cat == nil || booker == nil || canceler == nil || inv == nil {
		panic("nil dependency passed to NewAPI")
	}
	if users == nil {
		users = map[uint64]model.User{}
	}
	return &API{Catalog: cat, Booker: booker, Canceler: canceler, Inv: inv, Users: users, Store: store}
}

// Me handles GET /v1/me.  The identity middleware has already verified the
// bearer token; here the user id resolves against the account directory
// and the ledger supplies the user's booked and cancelled tickets.
func (a *API) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	user, ok := a.Users[uid]
	if !ok {
		return c.JSON(http.StatusOK, errEnvelope(nil, errorView{Code: codeUnknown, Message: "unknown account"}))
	}
	tickets := a.Catalog.UserTickets(user.Email)
	ticketViews := make([]echo.Map, 0, len(tickets))
	for _, t := range tickets {
		ticketViews = append(ticketViews, a.userTicketJSON(t))
	}
	u := user
	result := passengerJSON(&u)
	result["tickets"] = ticketViews
	return c.JSON(http.StatusOK, okEnvelope(result))
}

// Trains handles GET /v1/trains: filter, sort and paginate the train list.
func (a *API) Trains(c echo.Context) error {
	filter, err := trainFilterFrom(c)
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope(nil, errorView{Code: codeUnknown, Message: err.Error()}))
	}
	page, perPage := pageParams(c)
	result := a.Catalog.Trains(filter, trainSortsFrom(c), page, perPage)

	items := make([]echo.Map, 0, len(result.Items))
	for _, l := range result.Items {
		items = append(items, trainJSON(l))
	}
	return c.JSON(http.StatusOK, okEnvelope(echo.Map{
		"items":    items,
		"pageInfo": pageInfoJSON(result.PageInfo),
	}))
}

// TrainInfo handles GET /v1/trains/:id.
func (a *API) TrainInfo(c echo.Context) error {
	trainID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || trainID == 0 {
		return c.JSON(http.StatusOK, errEnvelope(nil, readErrorView(engine.E(engine.KindNotFound, "invalid train id %q", c.Param("id")))))
	}
	l, err := a.Catalog.TrainInfo(trainID)
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope(nil, readErrorView(engine.E(engine.KindNotFound, "train %d not found", trainID))))
	}
	return c.JSON(http.StatusOK, okEnvelope(trainJSON(l)))
}

// Tickets handles GET /v1/trains/:id/tickets: on-sale tickets of one train.
func (a *API) Tickets(c echo.Context) error {
	trainID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || trainID == 0 {
		return c.JSON(http.StatusOK, errEnvelope(nil, readErrorView(engine.E(engine.KindNotFound, "invalid train id %q", c.Param("id")))))
	}
	filter, err := ticketFilterFrom(c)
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope(nil, errorView{Code: codeUnknown, Message: err.Error()}))
	}
	page, perPage := pageParams(c)
	result, err := a.Catalog.Tickets(trainID, filter, ticketSortsFrom(c), page, perPage)
	if err != nil {
		return c.JSON(http.StatusOK, errEnvelope(nil, readErrorView(engine.E(engine.KindNotFound, "train %d not found", trainID))))
	}
	items := make([]echo.Map, 0, len(result.Items))
	for _, l := range result.Items {
		items = append(items, a.onSaleTicketJSON(l))
	}
	return c.JSON(http.StatusOK, okEnvelope(echo.Map{
		"items":    items,
		"pageInfo": pageInfoJSON(result.PageInfo),
	}))
}

// pageParams reads page/perPage with the contract defaults 1 and 30.
func pageParams(c echo.Context) (int, int) {
	page, perPage := 1, 30
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			page = n
		}
	}
	if v := c.QueryParam("perPage"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			perPage = n
		}
	}
	return page, perPage
}

// parseInstant accepts RFC3339 or a bare date.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t.UTC(), err
}

func trainFilterFrom(c echo.Context) (catalog.TrainFilter, error) {
	var f catalog.TrainFilter
	if v := c.QueryParam("fromDate"); v != "" {
		t, err := parseInstant(v)
		if err != nil {
			return f, err
		}
		f.FromDate = &t
	}
	if v := c.QueryParam("toDate"); v != "" {
		t, err := parseInstant(v)
		if err != nil {
			return f, err
		}
		f.ToDate = &t
	}
	f.FromCountry = c.QueryParam("fromCountry")
	f.ToCountry = c.QueryParam("toCountry")
	f.FromLocality = c.QueryParam("fromLocality")
	f.ToLocality = c.QueryParam("toLocality")
	f.FromStation = c.QueryParam("fromStation")
	f.ToStation = c.QueryParam("toStation")
	f.Company = c.QueryParam("company")
	if v := c.QueryParam("priceMin"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		m := model.Money(n)
		f.PriceMin = &m
	}
	if v := c.QueryParam("priceMax"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		m := model.Money(n)
		f.PriceMax = &m
	}
	if v := c.QueryParam("travelTimeMin"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.TravelTimeMinMinutes = &n
	}
	if v := c.QueryParam("travelTimeMax"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.TravelTimeMaxMinutes = &n
	}
	return f, nil
}

func ticketFilterFrom(c echo.Context) (catalog.TicketFilter, error) {
	var f catalog.TicketFilter
	if v := c.QueryParam("class"); v != "" {
		cl := model.TicketClass(v)
		f.Class = &cl
	}
	if v := c.QueryParam("luggageIncluded"); v != "" {
		b := v == "true" || v == "1"
		f.LuggageIncluded = &b
	}
	if v := c.QueryParam("freeCancellationUntil"); v != "" {
		t, err := parseInstant(v)
		if err != nil {
			return f, err
		}
		f.FreeCancellationAfter = &t
	}
	if v := c.QueryParam("priceMin"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		m := model.Money(n)
		f.PriceMin = &m
	}
	if v := c.QueryParam("priceMax"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		m := model.Money(n)
		f.PriceMax = &m
	}
	return f, nil
}

func trainSortsFrom(c echo.Context) []catalog.TrainSort {
	values := c.QueryParams()["sort"]
	out := make([]catalog.TrainSort, 0, len(values))
	for _, v := range values {
		out = append(out, catalog.TrainSort(v))
	}
	return out
}

func ticketSortsFrom(c echo.Context) []catalog.TicketSort {
	values := c.QueryParams()["sort"]
	out := make([]catalog.TicketSort, 0, len(values))
	for _, v := range values {
		out = append(out, catalog.TicketSort(v))
	}
	return out
}
