package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

// MySQL server error numbers mapped to sentinels.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrCheckViolated   = 3819
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// ErrTxAborted is returned when MySQL aborted the transaction because of
// a lock wait timeout or a deadlock.
var ErrTxAborted = errors.New("transaction aborted by the database")

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlErrDupEntry:
		return fmt.Errorf("%w: %s", ErrDuplicateReservation, me.Message)
	case mysqlErrCheckViolated:
		return fmt.Errorf("%w: %s", ErrCapacityViolation, me.Message)
	case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
		return fmt.Errorf("%w: %s", ErrTxAborted, me.Message)
	}
	return err
}

// MySQLStore implements Store on top of the three table repositories.
// Transactions run at READ COMMITTED; rows that decide an outcome are
// read with FOR UPDATE.
type MySQLStore struct {
	db           *sql.DB
	movies       *MovieRepo
	shows        *ShowRepo
	reservations *ReservationRepo
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:           db,
		movies:       NewMovieRepo(db),
		shows:        NewShowRepo(db),
		reservations: NewReservationRepo(db),
	}
}

func (s *MySQLStore) Atomic(ctx context.Context, fn func(tx Tx) error) (err error) {
	const op = "repository.MySQLStore.Atomic"
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&mysqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, mapMySQLError(err))
	}
	committed = true
	return nil
}

func (s *MySQLStore) Reservation(ctx context.Context, id uint64) (model.Reservation, error) {
	rec, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	return toReservation(rec), nil
}

func (s *MySQLStore) ReservationsByUser(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error] {
	return mapSeq(s.reservations.IterByUser(ctx, userID))
}

func (s *MySQLStore) AllReservations(ctx context.Context) iter.Seq2[model.Reservation, error] {
	return mapSeq(s.reservations.IterAll(ctx))
}

func mapSeq(seq iter.Seq2[ReservationRecord, error]) iter.Seq2[model.Reservation, error] {
	return func(yield func(model.Reservation, error) bool) {
		for rec, err := range seq {
			if !yield(toReservation(rec), err) {
				return
			}
		}
	}
}

func (s *MySQLStore) CreateMovie(ctx context.Context, m *model.Movie) error {
	rec := fromMovie(*m)
	if err := s.movies.Create(ctx, &rec); err != nil {
		return err
	}
	*m = toMovie(rec)
	return nil
}

func (s *MySQLStore) Movie(ctx context.Context, id uint64) (model.Movie, error) {
	rec, err := s.movies.GetByID(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	return toMovie(rec), nil
}

func (s *MySQLStore) Movies(ctx context.Context) ([]model.Movie, error) {
	recs, err := s.movies.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Movie, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toMovie(rec))
	}
	return out, nil
}

func (s *MySQLStore) Show(ctx context.Context, id uint64) (model.Show, error) {
	rec, err := s.shows.GetByID(ctx, id)
	if err != nil {
		return model.Show{}, err
	}
	return toShow(rec), nil
}

func (s *MySQLStore) ShowIDsByMovie(ctx context.Context, movieID uint64) ([]uint64, error) {
	return s.shows.IDsByMovie(ctx, movieID)
}

func (s *MySQLStore) UpcomingShows(ctx context.Context, movieID uint64, after time.Time) ([]model.Show, error) {
	recs, err := s.shows.ListUpcomingByMovie(ctx, movieID, after)
	if err != nil {
		return nil, err
	}
	out := make([]model.Show, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toShow(rec))
	}
	return out, nil
}

func (s *MySQLStore) SearchShows(ctx context.Context, q ShowSearchQuery) ([]ShowListing, int64, error) {
	return s.shows.SearchUpcoming(ctx, q)
}

type mysqlTx struct {
	store *MySQLStore
	tx    *sql.Tx
}

func (t *mysqlTx) ShowForUpdate(ctx context.Context, id uint64) (model.Show, error) {
	rec, err := t.store.shows.ForUpdateTx(ctx, t.tx, id)
	if err != nil {
		return model.Show{}, mapMySQLError(err)
	}
	return toShow(rec), nil
}

func (t *mysqlTx) MovieForUpdate(ctx context.Context, id uint64) (model.Movie, error) {
	rec, err := t.store.movies.ForUpdateTx(ctx, t.tx, id)
	if err != nil {
		return model.Movie{}, mapMySQLError(err)
	}
	return toMovie(rec), nil
}

func (t *mysqlTx) ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	rec, err := t.store.reservations.ForUpdateTx(ctx, t.tx, id)
	if err != nil {
		return model.Reservation{}, mapMySQLError(err)
	}
	return toReservation(rec), nil
}

func (t *mysqlTx) ActiveReservation(ctx context.Context, userID, showID uint64) (model.Reservation, error) {
	rec, err := t.store.reservations.ActiveByUserAndShowTx(ctx, t.tx, userID, showID)
	if err != nil {
		return model.Reservation{}, err
	}
	return toReservation(rec), nil
}

func (t *mysqlTx) ActiveReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	recs, err := t.store.reservations.ActiveByShowTx(ctx, t.tx, showID)
	if err != nil {
		return nil, mapMySQLError(err)
	}
	out := make([]model.Reservation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReservation(rec))
	}
	return out, nil
}

func (t *mysqlTx) CreateShow(ctx context.Context, s *model.Show) error {
	rec := fromShow(*s)
	if err := t.store.shows.CreateTx(ctx, t.tx, &rec); err != nil {
		return err
	}
	*s = toShow(rec)
	return nil
}

func (t *mysqlTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	rec := fromReservation(*r)
	if err := t.store.reservations.CreateTx(ctx, t.tx, &rec); err != nil {
		return err
	}
	*r = toReservation(rec)
	return nil
}

func (t *mysqlTx) CancelReservation(ctx context.Context, id uint64, at time.Time) error {
	return t.store.reservations.CancelTx(ctx, t.tx, id, at)
}

func (t *mysqlTx) AddAvailableSeats(ctx context.Context, showID uint64, delta int) error {
	return t.store.shows.AddAvailableTx(ctx, t.tx, showID, delta)
}

func (t *mysqlTx) DeleteShow(ctx context.Context, showID uint64) error {
	if err := t.store.reservations.DeleteByShowTx(ctx, t.tx, showID); err != nil {
		return err
	}
	return t.store.shows.DeleteTx(ctx, t.tx, showID)
}

func (t *mysqlTx) DeleteMovie(ctx context.Context, movieID uint64) error {
	return t.store.movies.DeleteTx(ctx, t.tx, movieID)
}

func (t *mysqlTx) UpdateMovie(ctx context.Context, m *model.Movie) error {
	rec := fromMovie(*m)
	rec.ID = m.ID
	if err := t.store.movies.UpdateTx(ctx, t.tx, &rec); err != nil {
		return mapMySQLError(err)
	}
	*m = toMovie(rec)
	return nil
}

func toShow(r ShowRecord) model.Show {
	return model.Show{
		ID:             r.ID,
		MovieID:        r.MovieID,
		Screen:         r.Screen,
		StartsAt:       r.StartsAt.UTC(),
		PriceCents:     r.PriceCents,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromShow(s model.Show) ShowRecord {
	return ShowRecord{
		ID:             s.ID,
		MovieID:        s.MovieID,
		Screen:         s.Screen,
		StartsAt:       s.StartsAt,
		PriceCents:     s.PriceCents,
		TotalSeats:     s.TotalSeats,
		AvailableSeats: s.AvailableSeats,
	}
}

func toReservation(r ReservationRecord) model.Reservation {
	return model.Reservation{
		ID:               r.ID,
		UserID:           r.UserID,
		ShowID:           r.ShowID,
		Seats:            r.Seats,
		Status:           r.Status,
		TotalAmountCents: r.TotalAmountCents,
		CreatedAt:        r.CreatedAt,
		CancelledAt:      r.CancelledAt,
	}
}

func fromReservation(r model.Reservation) ReservationRecord {
	return ReservationRecord{
		UserID:           r.UserID,
		ShowID:           r.ShowID,
		Seats:            r.Seats,
		Status:           r.Status,
		TotalAmountCents: r.TotalAmountCents,
		CreatedAt:        r.CreatedAt,
	}
}

func toMovie(r MovieRecord) model.Movie {
	return model.Movie{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Genre:           r.Genre,
		Director:        r.Director,
		DurationMinutes: r.DurationMinutes,
		ReleaseDate:     r.ReleaseDate,
		PosterURL:       r.PosterURL,
		CreatedAt:       r.CreatedAt,
	}
}

func fromMovie(m model.Movie) MovieRecord {
	return MovieRecord{
		Title:           m.Title,
		Description:     m.Description,
		Genre:           m.Genre,
		Director:        m.Director,
		DurationMinutes: m.DurationMinutes,
		ReleaseDate:     m.ReleaseDate,
		PosterURL:       m.PosterURL,
	}
}
