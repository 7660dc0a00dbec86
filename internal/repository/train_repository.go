package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// TrainRepo loads the train reference data: trains joined with their
// origin/destination stations (each with locality and country), the
// operating company, the ordered stops, and the status variant columns.
// Trains are read-only to the booking core, so there are no writers here.
type TrainRepo struct {
	db *sql.DB
}

// NewTrainRepo returns a TrainRepo bound to the given database.
func NewTrainRepo(db *sql.DB) *TrainRepo { return &TrainRepo{db: db} }

// LoadAll returns every train with its joined reference data.  Stops are
// fetched in a second query and stitched in memory, ordered by from_time.
func (r *TrainRepo) LoadAll(ctx context.Context) ([]model.Train, error) {
	const q = `SELECT t.id, t.train_no, t.departure_date, t.arrival_date, t.platform,
	                  t.status, t.new_departure_time, t.cancellation_reason,
	                  t.actual_departure_time, t.actual_arrival_time,
	                  c.id, c.name, c.phone, c.email, c.address,
	                  sf.id, sf.name, lf.id, lf.name, lf.timezone, cof.id, cof.name,
	                  st.id, st.name, lt.id, lt.name, lt.timezone, cot.id, cot.name
	           FROM trains t
	           JOIN companies c ON c.id = t.company_id
	           JOIN stations sf ON sf.id = t.from_station_id
	           JOIN localities lf ON lf.id = sf.locality_id
	           JOIN countries cof ON cof.id = lf.country_id
	           JOIN stations st ON st.id = t.to_station_id
	           JOIN localities lt ON lt.id = st.locality_id
	           JOIN countries cot ON cot.id = lt.country_id
	           ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trains := make([]model.Train, 0, 64)
	index := make(map[uint64]int)
	for rows.Next() {
		var t model.Train
		var status string
		var newDep, actDep, actArr sql.NullTime
		var reason sql.NullString
		if err := rows.Scan(
			&t.ID, &t.TrainNo, &t.DepartureDate, &t.ArrivalDate, &t.Platform,
			&status, &newDep, &reason, &actDep, &actArr,
			&t.Company.ID, &t.Company.Name, &t.Company.Phone, &t.Company.Email, &t.Company.Address,
			&t.From.ID, &t.From.Name, &t.From.Locality.ID, &t.From.Locality.Name, &t.From.Locality.Timezone,
			&t.From.Locality.Country.ID, &t.From.Locality.Country.Name,
			&t.To.ID, &t.To.Name, &t.To.Locality.ID, &t.To.Locality.Name, &t.To.Locality.Timezone,
			&t.To.Locality.Country.ID, &t.To.Locality.Country.Name,
		); err != nil {
			return nil, err
		}
		t.Status = trainStatus(status, newDep, reason, actDep, actArr)
		index[t.ID] = len(trains)
		trains = append(trains, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const stopQ = `SELECT ts.train_id, ts.id, ts.from_time, ts.to_time,
	                      s.id, s.name, l.id, l.name, l.timezone, co.id, co.name
	               FROM train_stops ts
	               JOIN stations s ON s.id = ts.station_id
	               JOIN localities l ON l.id = s.locality_id
	               JOIN countries co ON co.id = l.country_id
	               ORDER BY ts.train_id, ts.from_time`
	srows, err := r.db.QueryContext(ctx, stopQ)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var trainID uint64
		var stop model.TrainStop
		if err := srows.Scan(
			&trainID, &stop.ID, &stop.FromTime, &stop.ToTime,
			&stop.Place.ID, &stop.Place.Name,
			&stop.Place.Locality.ID, &stop.Place.Locality.Name, &stop.Place.Locality.Timezone,
			&stop.Place.Locality.Country.ID, &stop.Place.Locality.Country.Name,
		); err != nil {
			return nil, err
		}
		if i, ok := index[trainID]; ok {
			trains[i].Stops = append(trains[i].Stops, stop)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return trains, nil
}

// trainStatus folds the nullable variant columns into the tagged status.
// Unknown status strings degrade to Scheduled rather than failing the load.
func trainStatus(status string, newDep sql.NullTime, reason sql.NullString, actDep, actArr sql.NullTime) model.TrainStatus {
	switch model.TrainStatusKind(status) {
	case model.TrainDelayed:
		return model.Delayed(nullTime(newDep))
	case model.TrainCancelled:
		return model.CancelledTrainStatus(reason.String)
	case model.TrainOnTheWay:
		return model.OnTheWay(nullTime(actDep))
	case model.TrainArrived:
		return model.Arrived(nullTime(actDep), nullTime(actArr))
	default:
		return model.Scheduled()
	}
}

func nullTime(v sql.NullTime) time.Time {
	if v.Valid {
		return v.Time.UTC()
	}
	return time.Time{}
}
