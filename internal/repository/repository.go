// Package repository implements all database queries for the session booking
// system. It uses pgx directly (no ORM) so that locking and constraint names
// stay visible.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const bookingColumns = `id, booking_type, school_name, COALESCE(title_used, ''), COALESCE(grade, ''),
	COALESCE(curriculum, ''), subject, to_char(date, 'YYYY-MM-DD'), slot, COALESCE(topic, ''),
	salesperson_name, salesperson_number, salesperson_email, teacher, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.BookingType, &b.SchoolName, &b.TitleUsed, &b.Grade,
		&b.Curriculum, &b.Subject, &b.Date, &b.Slot, &b.Topic,
		&b.SalespersonName, &b.SalespersonNumber, &b.SalespersonEmail, &b.Teacher, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ─── Slot reads ───────────────────────────────────────────────────────────────

// slotReader runs the ledger's existence checks against either the pool or
// an open transaction.
type slotReader struct {
	q querier
}

func (s slotReader) FindBlock(ctx context.Context, teacher, date, slot string) (*model.Unavailability, error) {
	d, err := pgDate(date)
	if err != nil {
		return nil, err
	}

	// Full-day rows sort first.
	var u model.Unavailability
	err = s.q.QueryRow(ctx,
		`SELECT id, teacher, to_char(date, 'YYYY-MM-DD'), slot
		 FROM teacher_unavailability
		 WHERE teacher = $1 AND date = $2 AND (slot IS NULL OR slot = NULLIF($3, ''))
		 ORDER BY slot NULLS FIRST, id
		 LIMIT 1`,
		teacher, d, slot,
	).Scan(&u.ID, &u.Teacher, &u.Date, &u.Slot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find unavailability: %w", err)
	}
	return &u, nil
}

func (s slotReader) SchoolSlotTaken(ctx context.Context, k model.SchoolSlotKey) (bool, error) {
	d, err := pgDate(k.Date)
	if err != nil {
		return false, err
	}
	var taken bool
	err = s.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM bookings
		   WHERE school_name = $1 AND subject = $2 AND date = $3 AND slot = $4)`,
		k.SchoolName, k.Subject, d, k.Slot,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check school slot: %w", err)
	}
	return taken, nil
}

func (s slotReader) TeacherSlotTaken(ctx context.Context, k model.TeacherSlotKey) (bool, error) {
	d, err := pgDate(k.Date)
	if err != nil {
		return false, err
	}
	var taken bool
	err = s.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM bookings
		   WHERE teacher = $1 AND date = $2 AND slot = $3)`,
		k.Teacher, d, k.Slot,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check teacher slot: %w", err)
	}
	return taken, nil
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// BookingRepository persists bookings and teacher unavailability. It
// satisfies service.LedgerStore.
type BookingRepository struct {
	slotReader
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{slotReader: slotReader{q: db}, db: db}
}

type bookingTx struct {
	slotReader
	tx pgx.Tx
}

// WithinBookingTx runs fn inside one transaction.
//
// Before fn runs, transaction-scoped advisory locks are taken on the school
// slot and on the teacher's day, always in that order. Any other
// CreateBooking or RecordUnavailability touching the same keys waits until
// this transaction ends, so the pre-checks in fn see every committed row.
// The unique constraints remain as the last line of defence and
// InsertBooking maps their violations to the ledger's conflict errors.
func (r *BookingRepository) WithinBookingTx(ctx context.Context, school model.SchoolSlotKey, teacher model.TeacherSlotKey, fn func(service.BookingTx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = advisoryLock(ctx, tx, schoolLockKey(school)); err != nil {
		return err
	}
	if err = advisoryLock(ctx, tx, teacherLockKey(teacher.Teacher, teacher.Date)); err != nil {
		return err
	}

	if err = fn(&bookingTx{slotReader: slotReader{q: tx}, tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return mapWriteError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	d, err := pgDate(b.Date)
	if err != nil {
		return err
	}
	err = t.tx.QueryRow(ctx,
		`INSERT INTO bookings (
		   booking_type, school_name, title_used, grade, curriculum, subject, date, slot, topic,
		   salesperson_name, salesperson_number, salesperson_email, teacher, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		b.BookingType, b.SchoolName, nullable(b.TitleUsed), nullable(b.Grade), nullable(b.Curriculum),
		b.Subject, d, b.Slot, nullable(b.Topic),
		b.SalespersonName, b.SalespersonNumber, b.SalespersonEmail, b.Teacher, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return mapWriteError(fmt.Errorf("insert booking: %w", err))
	}
	return nil
}

// GetBooking returns a single booking or model.ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings matching f, latest date first and, within a
// date, most recently created first.
func (r *BookingRepository) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SalespersonEmail != "" {
		add("salesperson_email = $%d", f.SalespersonEmail)
	}
	if f.SchoolName != "" {
		add("school_name = $%d", f.SchoolName)
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Teacher != "" {
		add("teacher = $%d", f.Teacher)
	}
	if f.Date != "" {
		d, err := pgDate(f.Date)
		if err != nil {
			return nil, err
		}
		add("date = $%d", d)
	}

	sql := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date DESC, created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// DeleteBooking removes a booking and returns the deleted row.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`DELETE FROM bookings WHERE id = $1 RETURNING `+bookingColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("delete booking: %w", err)
	}
	return b, nil
}

// ─── Unavailability ───────────────────────────────────────────────────────────

// InsertUnavailability stores u and sets u.ID. It shares the teacher-day
// lock with WithinBookingTx so a blackout and a booking for the same
// teacher and date never interleave.
func (r *BookingRepository) InsertUnavailability(ctx context.Context, u *model.Unavailability) (err error) {
	d, err := pgDate(u.Date)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = advisoryLock(ctx, tx, teacherLockKey(u.Teacher, u.Date)); err != nil {
		return err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO teacher_unavailability (teacher, date, slot)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		u.Teacher, d, u.Slot,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert unavailability: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListUnavailability returns every blackout, latest date first.
func (r *BookingRepository) ListUnavailability(ctx context.Context) ([]model.Unavailability, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, teacher, to_char(date, 'YYYY-MM-DD'), slot
		 FROM teacher_unavailability
		 ORDER BY date DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unavailability: %w", err)
	}
	defer rows.Close()

	var out []model.Unavailability
	for rows.Next() {
		var u model.Unavailability
		if err := rows.Scan(&u.ID, &u.Teacher, &u.Date, &u.Slot); err != nil {
			return nil, fmt.Errorf("scan unavailability: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUnavailability removes one blackout record.
func (r *BookingRepository) DeleteUnavailability(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teacher_unavailability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete unavailability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ─── Email events ─────────────────────────────────────────────────────────────

// EmailEventRepository persists the email audit log.
type EmailEventRepository struct {
	db *pgxpool.Pool
}

// NewEmailEventRepository constructs an EmailEventRepository.
func NewEmailEventRepository(db *pgxpool.Pool) *EmailEventRepository {
	return &EmailEventRepository{db: db}
}

// InsertEmailEvent appends e and sets e.ID.
func (r *EmailEventRepository) InsertEmailEvent(ctx context.Context, e *model.EmailEvent) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO email_events (ts, to_addr, subject, status, error, body)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.TS, e.ToAddr, e.Subject, e.Status, nullable(e.Error), nullable(e.Body),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}
	return nil
}

const emailEventColumns = `id, ts, to_addr, subject, status, COALESCE(error, ''), COALESCE(body, '')`

// ListEmailEvents returns up to limit events, newest first.
func (r *EmailEventRepository) ListEmailEvents(ctx context.Context, limit int) ([]model.EmailEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+emailEventColumns+`
		 FROM email_events
		 ORDER BY ts DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	defer rows.Close()

	var out []model.EmailEvent
	for rows.Next() {
		var e model.EmailEvent
		if err := rows.Scan(&e.ID, &e.TS, &e.ToAddr, &e.Subject, &e.Status, &e.Error, &e.Body); err != nil {
			return nil, fmt.Errorf("scan email event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEmailEvent returns one event or model.ErrNotFound.
func (r *EmailEventRepository) GetEmailEvent(ctx context.Context, id int64) (*model.EmailEvent, error) {
	var e model.EmailEvent
	err := r.db.QueryRow(ctx,
		`SELECT `+emailEventColumns+` FROM email_events WHERE id = $1`, id,
	).Scan(&e.ID, &e.TS, &e.ToAddr, &e.Subject, &e.Status, &e.Error, &e.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get email event: %w", err)
	}
	return &e, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func advisoryLock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}

func schoolLockKey(k model.SchoolSlotKey) string {
	return "school:" + k.SchoolName + "|" + k.Subject + "|" + k.Date + "|" + k.Slot
}

func teacherLockKey(teacher, date string) string {
	return "teacher:" + teacher + "|" + date
}

func pgDate(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, model.Invalid("date", "must be YYYY-MM-DD")
	}
	return d, nil
}

// nullable stores empty optional text as NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
