package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// TicketRepo loads fares and on-sale tickets at startup and records
// bookings and cancellations durably once the in-memory engines commit
// them.  The engines are the authority on contention; rows here are the
// record of what they decided.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// FareRecord mirrors one fares row: the sellable seat pool for a
// (train, class) pair.
type FareRecord struct {
	TrainID         uint64
	Class           model.TicketClass
	AvailableAmount int
	UnitPriceCents  int64
}

// LoadFares returns every fare row.
func (r *TicketRepo) LoadFares(ctx context.Context) ([]FareRecord, error) {
	const q = `SELECT train_id, class, available_amount, unit_price_cents FROM fares`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]FareRecord, 0, 64)
	for rows.Next() {
		var f FareRecord
		if err := rows.Scan(&f.TrainID, &f.Class, &f.AvailableAmount, &f.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadTickets returns every ticket row together with its bills and
// passenger where present.  Bills and passengers are joined in; tickets in
// ON_SALE state have neither.
func (r *TicketRepo) LoadTickets(ctx context.Context) ([]model.Ticket, error) {
	const q = `SELECT t.id, t.train_id, t.class, t.price_cents, t.luggage_included,
	                  t.free_cancellation_until, t.state, t.ticket_no, t.seat,
	                  t.cancellation_date,
	                  b.id, b.sum_cents, b.issued_at, b.payer_email,
	                  cb.id, cb.sum_cents, cb.issued_at, cb.payer_email,
	                  p.id, p.first_name, p.last_name, p.sex, p.date_of_birth, p.email, p.phone,
	                  pp.id, pp.series, pp.issue_date, pp.issue_place
	           FROM tickets t
	           LEFT JOIN bills b ON b.id = t.bill_id
	           LEFT JOIN bills cb ON cb.id = t.cancellation_bill_id
	           LEFT JOIN passengers p ON p.id = t.passenger_id
	           LEFT JOIN passports pp ON pp.id = p.passport_id
	           ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Ticket, 0, 256)
	for rows.Next() {
		var t model.Ticket
		var ticketNo, seat sql.NullString
		var cancelDate sql.NullTime
		var billID, cbID, pID, ppID sql.NullInt64
		var billSum, cbSum sql.NullInt64
		var billAt, cbAt sql.NullTime
		var billPayer, cbPayer sql.NullString
		var pFirst, pLast, pSex, pEmail, pPhone sql.NullString
		var pDOB sql.NullTime
		var ppSeries, ppPlace sql.NullString
		var ppIssued sql.NullTime
		if err := rows.Scan(
			&t.ID, &t.TrainID, &t.Class, &t.Price, &t.LuggageIncluded,
			&t.FreeCancellationUntil, &t.State, &ticketNo, &seat,
			&cancelDate,
			&billID, &billSum, &billAt, &billPayer,
			&cbID, &cbSum, &cbAt, &cbPayer,
			&pID, &pFirst, &pLast, &pSex, &pDOB, &pEmail, &pPhone,
			&ppID, &ppSeries, &ppIssued, &ppPlace,
		); err != nil {
			return nil, err
		}
		t.TicketNo = ticketNo.String
		t.Seat = seat.String
		if cancelDate.Valid {
			d := cancelDate.Time.UTC()
			t.CancellationDate = &d
		}
		if billID.Valid {
			t.Bill = &model.Bill{
				ID:         uint64(billID.Int64),
				Sum:        model.Money(billSum.Int64),
				Date:       billAt.Time.UTC(),
				PayerEmail: billPayer.String,
			}
		}
		if cbID.Valid {
			t.CancellationBill = &model.Bill{
				ID:         uint64(cbID.Int64),
				Sum:        model.Money(cbSum.Int64),
				Date:       cbAt.Time.UTC(),
				PayerEmail: cbPayer.String,
			}
		}
		if pID.Valid {
			t.Passenger = &model.User{
				ID:          uint64(pID.Int64),
				FirstName:   pFirst.String,
				LastName:    pLast.String,
				Sex:         model.Sex(pSex.String),
				DateOfBirth: nullTime(pDOB),
				Email:       pEmail.String,
				Phone:       pPhone.String,
				Passport: model.Passport{
					ID:         uint64(ppID.Int64),
					Series:     ppSeries.String,
					IssueDate:  nullTime(ppIssued),
					IssuePlace: ppPlace.String,
				},
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveBooking records a batch of freshly booked tickets: the passengers,
// their bills, and the ticket row updates, all inside one transaction.
func (r *TicketRepo) SaveBooking(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, t := range tickets {
		passengerID, err := insertPassengerTx(ctx, tx, t.Passenger)
		if err != nil {
			return err
		}
		if err := insertBillTx(ctx, tx, t.Bill); err != nil {
			return err
		}
		const upd = `UPDATE tickets
		             SET state = ?, ticket_no = ?, seat = ?, passenger_id = ?, bill_id = ?
		             WHERE id = ?`
		if _, err := tx.ExecContext(ctx, upd, t.State, t.TicketNo, t.Seat, passengerID, t.Bill.ID, t.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SaveCancellation records one cancelled ticket, its refund bill when one
// was issued, and the relisted replacement ticket, in one transaction.
func (r *TicketRepo) SaveCancellation(ctx context.Context, cancelled model.Ticket, relisted *model.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var refundBillID any
	if cancelled.CancellationBill != nil {
		if err := insertBillTx(ctx, tx, cancelled.CancellationBill); err != nil {
			return err
		}
		refundBillID = cancelled.CancellationBill.ID
	}
	const upd = `UPDATE tickets
	             SET state = ?, cancellation_bill_id = ?, cancellation_date = ?
	             WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, cancelled.State, refundBillID, cancelled.CancellationDate, cancelled.ID); err != nil {
		return err
	}
	if relisted != nil {
		const ins = `INSERT INTO tickets (id, train_id, class, price_cents, luggage_included, free_cancellation_until, state)
		             VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, ins,
			relisted.ID, relisted.TrainID, relisted.Class, relisted.Price,
			relisted.LuggageIncluded, relisted.FreeCancellationUntil, relisted.State,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetFareAmount overwrites a fare's available amount with what the
// in-memory inventory currently holds.
func (r *TicketRepo) SetFareAmount(ctx context.Context, trainID uint64, class model.TicketClass, available int) error {
	const q = `UPDATE fares SET available_amount = ? WHERE train_id = ? AND class = ?`
	_, err := r.db.ExecContext(ctx, q, available, trainID, class)
	return err
}

func insertPassengerTx(ctx context.Context, tx *sql.Tx, p *model.User) (uint64, error) {
	const passportIns = `INSERT INTO passports (series, issue_date, issue_place) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, passportIns, p.Passport.Series, p.Passport.IssueDate, p.Passport.IssuePlace)
	if err != nil {
		return 0, err
	}
	passportID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	const ins = `INSERT INTO passengers (passport_id, first_name, last_name, sex, date_of_birth, email, phone)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err = tx.ExecContext(ctx, ins, passportID, p.FirstName, p.LastName, p.Sex, p.DateOfBirth, p.Email, p.Phone)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func insertBillTx(ctx context.Context, tx *sql.Tx, b *model.Bill) error {
	const ins = `INSERT INTO bills (id, sum_cents, issued_at, payer_email) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, ins, b.ID, int64(b.Sum), b.Date, b.PayerEmail)
	return err
}

// MaxBillID returns the largest bill id already persisted, for seeding the
// ledger's bill sequence.
func (r *TicketRepo) MaxBillID(ctx context.Context) (uint64, error) {
	var id sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(id) FROM bills`).Scan(&id); err != nil {
		return 0, err
	}
	return uint64(id.Int64), nil
}
