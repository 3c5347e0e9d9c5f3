package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

func TestMapMySQLError(t *testing.T) {
	tests := []struct {
		number uint16
		want   error
	}{
		{mysqlErrDupEntry, ErrDuplicateReservation},
		{mysqlErrCheckViolated, ErrCapacityViolation},
		{mysqlErrLockWaitTimeout, ErrTxAborted},
		{mysqlErrDeadlock, ErrTxAborted},
	}
	for _, tt := range tests {
		err := mapMySQLError(&mysql.MySQLError{Number: tt.number, Message: "x"})
		assert.ErrorIs(t, err, tt.want, "error %d", tt.number)
	}

	other := &mysql.MySQLError{Number: 1146, Message: "table missing"}
	assert.Same(t, other, mapMySQLError(other))

	plain := errors.New("driver: bad connection")
	assert.Equal(t, plain, mapMySQLError(plain))
}

var (
	sqlShowForUpdate = regexp.QuoteMeta(`SELECT ` + showColumns + ` FROM shows WHERE id = ? FOR UPDATE`)
	sqlShowGet       = regexp.QuoteMeta(`SELECT `+showColumns+` FROM shows WHERE id = ?`) + `$`
	sqlAddAvailable  = regexp.QuoteMeta(`UPDATE shows SET available_seats = available_seats + ?`) +
		`\s+` + regexp.QuoteMeta(`WHERE id = ? AND available_seats + ? BETWEEN 0 AND total_seats`)
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewMySQLStore(db), mock
}

func showRow(id uint64, total, available int) *sqlmock.Rows {
	at := time.Date(2031, 3, 14, 20, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "movie_id", "screen", "starts_at", "price_cents",
		"total_seats", "available_seats", "created_at", "updated_at"}).
		AddRow(id, 1, 3, at, 1250, total, available, at, at)
}

func TestMySQLStore_ReserveSeats(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlShowForUpdate).WithArgs(7).WillReturnRows(showRow(7, 10, 10))
	mock.ExpectExec(sqlAddAvailable).WithArgs(-3, 7, -3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomic(ctx, func(tx Tx) error {
		s, err := tx.ShowForUpdate(ctx, 7)
		if err != nil {
			return err
		}
		assert.Equal(t, 10, s.AvailableSeats)
		return tx.AddAvailableSeats(ctx, 7, -3)
	})
	require.NoError(t, err)
}

func TestMySQLStore_CapacityGuard(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(sqlAddAvailable).WithArgs(-4, 7, -4).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlShowGet).WithArgs(7).WillReturnRows(showRow(7, 10, 2))
	mock.ExpectRollback()

	err := store.Atomic(ctx, func(tx Tx) error { return tx.AddAvailableSeats(ctx, 7, -4) })
	assert.ErrorIs(t, err, ErrCapacityViolation)
}

func TestMySQLStore_GuardOnMissingShow(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(sqlAddAvailable).WithArgs(2, 9, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlShowGet).WithArgs(9).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.Atomic(ctx, func(tx Tx) error { return tx.AddAvailableSeats(ctx, 9, 2) })
	assert.ErrorIs(t, err, ErrShowNotFound)
}

func TestMySQLStore_DuplicateActiveReservation(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reservations`)).
		WithArgs(5, 7, 2, model.ReservationActive, 2500, sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: mysqlErrDupEntry, Message: "Duplicate entry '5-7' for key 'uq_active'"})
	mock.ExpectRollback()

	err := store.Atomic(ctx, func(tx Tx) error {
		return tx.CreateReservation(ctx, &model.Reservation{
			UserID:           5,
			ShowID:           7,
			Seats:            2,
			Status:           model.ReservationActive,
			TotalAmountCents: 2500,
			CreatedAt:        time.Now(),
		})
	})
	assert.ErrorIs(t, err, ErrDuplicateReservation)
}

func TestMySQLStore_DeleteShowCascade(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reservations WHERE show_id = ?`)).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM shows WHERE id = ?`)).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Atomic(ctx, func(tx Tx) error { return tx.DeleteShow(ctx, 7) }))
}

func TestMySQLStore_UpdateMissingMovie(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE movies`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM movies WHERE id = ?`)).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.Atomic(ctx, func(tx Tx) error {
		return tx.UpdateMovie(ctx, &model.Movie{ID: 42, Title: "Heat"})
	})
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestMySQLStore_CommitDeadlock(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(sqlAddAvailable).WithArgs(1, 7, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: mysqlErrDeadlock, Message: "Deadlock found"})

	err := store.Atomic(ctx, func(tx Tx) error { return tx.AddAvailableSeats(ctx, 7, 1) })
	assert.ErrorIs(t, err, ErrTxAborted)
}
