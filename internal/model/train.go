package model

import (
	"fmt"
	"time"
)

// TrainStatusKind enumerates the closed set of train status variants.
type TrainStatusKind string

const (
	TrainScheduled TrainStatusKind = "Scheduled"
	TrainDelayed   TrainStatusKind = "Delayed"
	TrainCancelled TrainStatusKind = "Cancelled"
	TrainOnTheWay  TrainStatusKind = "OnTheWay"
	TrainArrived   TrainStatusKind = "Arrived"
)

// TrainStatus is a tagged variant: Kind selects which of the extra fields
// are meaningful.  Constructors below are the only intended way to build
// one, so a switch on Kind can rely on the matching fields being set.
type TrainStatus struct {
	Kind TrainStatusKind

	NewDepartureTime    time.Time // Delayed
	CancellationReason  string    // Cancelled
	ActualDepartureTime time.Time // OnTheWay, Arrived
	ActualArrivalTime   time.Time // Arrived
}

// Scheduled returns the status of a train that has not yet departed.
func Scheduled() TrainStatus { return TrainStatus{Kind: TrainScheduled} }

// Delayed returns the status of a train with a pushed-back departure.
func Delayed(newDeparture time.Time) TrainStatus {
	return TrainStatus{Kind: TrainDelayed, NewDepartureTime: newDeparture}
}

// CancelledTrainStatus returns the status of a cancelled run.
func CancelledTrainStatus(reason string) TrainStatus {
	return TrainStatus{Kind: TrainCancelled, CancellationReason: reason}
}

// OnTheWay returns the status of a train that has departed.
func OnTheWay(actualDeparture time.Time) TrainStatus {
	return TrainStatus{Kind: TrainOnTheWay, ActualDepartureTime: actualDeparture}
}

// Arrived returns the status of a completed run.
func Arrived(actualDeparture, actualArrival time.Time) TrainStatus {
	return TrainStatus{Kind: TrainArrived, ActualDepartureTime: actualDeparture, ActualArrivalTime: actualArrival}
}

// TrainStop is one entry of a train's ordered route.  FromTime/ToTime are
// the scheduled window during which the train is at the stop.
type TrainStop struct {
	ID       uint64    // train_stops.id
	Place    Station   // joined from stations
	FromTime time.Time // train_stops.from_time
	ToTime   time.Time // train_stops.to_time
}

// Train is a single scheduled run between two stations.  Everything except
// Status is immutable once loaded; status transitions come from an external
// schedule feed.
type Train struct {
	ID            uint64      // trains.id
	TrainNo       string      // trains.train_no
	DepartureDate time.Time   // trains.departure_date (UTC)
	ArrivalDate   time.Time   // trains.arrival_date (UTC)
	From          Station     // origin station
	To            Station     // destination station
	Platform      string      // trains.platform
	Company       Company     // operator
	Stops         []TrainStop // ordered route, origin first
	Status        TrainStatus // current status variant
}

// TravelTime is the scheduled duration of the run.
func (t Train) TravelTime() time.Duration {
	return t.ArrivalDate.Sub(t.DepartureDate)
}

// TravelTimeString renders the scheduled duration as "5h30m" style text.
func (t Train) TravelTimeString() string {
	d := t.TravelTime()
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", h, m)
}
