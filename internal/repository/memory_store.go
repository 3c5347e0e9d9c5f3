package repository

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/showtime-reservation/internal/model"
)

// MemoryStore is an in-process Store. Writes made inside Atomic are
// staged on the transaction and applied together on commit, after the
// same capacity and uniqueness guards the MySQL schema enforces.
// ForUpdate reads take no row locks: callers serialize per show with a
// lock.Locker, as the engine does.
type MemoryStore struct {
	mu           sync.RWMutex
	movies       map[uint64]model.Movie
	shows        map[uint64]model.Show
	reservations map[uint64]model.Reservation
	lastID       uint64
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		movies:       make(map[uint64]model.Movie),
		shows:        make(map[uint64]model.Show),
		reservations: make(map[uint64]model.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) nextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:             s,
		deltas:        make(map[uint64]int),
		newShows:      make(map[uint64]model.Show),
		res:           make(map[uint64]model.Reservation),
		movies:        make(map[uint64]model.Movie),
		deletedShows:  make(map[uint64]bool),
		deletedMovies: make(map[uint64]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemoryStore) Reservation(ctx context.Context, id uint64) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (s *MemoryStore) ReservationsByUser(ctx context.Context, userID uint64) iter.Seq2[model.Reservation, error] {
	return s.stream(ctx, func(r model.Reservation) bool { return r.UserID == userID })
}

func (s *MemoryStore) AllReservations(ctx context.Context) iter.Seq2[model.Reservation, error] {
	return s.stream(ctx, func(model.Reservation) bool { return true })
}

// stream snapshots matching reservations on every range, newest first.
func (s *MemoryStore) stream(ctx context.Context, keep func(model.Reservation) bool) iter.Seq2[model.Reservation, error] {
	return func(yield func(model.Reservation, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(model.Reservation{}, err)
			return
		}
		s.mu.RLock()
		snap := make([]model.Reservation, 0, len(s.reservations))
		for _, r := range s.reservations {
			if keep(r) {
				snap = append(snap, r)
			}
		}
		s.mu.RUnlock()

		slices.SortFunc(snap, func(a, b model.Reservation) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
		for _, r := range snap {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) CreateMovie(ctx context.Context, m *model.Movie) error {
	m.ID = s.nextID()
	m.CreatedAt = s.now()
	s.mu.Lock()
	s.movies[m.ID] = *m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Movie(ctx context.Context, id uint64) (model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, nil
}

func (s *MemoryStore) Movies(ctx context.Context) ([]model.Movie, error) {
	s.mu.RLock()
	out := make([]model.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.Movie) int {
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) Show(ctx context.Context, id uint64) (model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shows[id]
	if !ok {
		return model.Show{}, ErrShowNotFound
	}
	return sh, nil
}

func (s *MemoryStore) ShowIDsByMovie(ctx context.Context, movieID uint64) ([]uint64, error) {
	s.mu.RLock()
	var ids []uint64
	for id, sh := range s.shows {
		if sh.MovieID == movieID {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) UpcomingShows(ctx context.Context, movieID uint64, after time.Time) ([]model.Show, error) {
	s.mu.RLock()
	var out []model.Show
	for _, sh := range s.shows {
		if sh.MovieID == movieID && sh.StartsAt.After(after) {
			out = append(out, sh)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.Show) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) SearchShows(ctx context.Context, q ShowSearchQuery) ([]ShowListing, int64, error) {
	q = q.Normalize()
	title := strings.ToLower(q.Title)

	s.mu.RLock()
	var all []ShowListing
	for _, sh := range s.shows {
		m := s.movies[sh.MovieID]
		switch {
		case !sh.StartsAt.After(q.From):
		case !q.To.IsZero() && sh.StartsAt.After(q.To):
		case title != "" && !strings.Contains(strings.ToLower(m.Title), title):
		case q.Genre != "" && !strings.EqualFold(m.Genre, q.Genre):
		case q.OnlyBookable && sh.AvailableSeats == 0:
		default:
			all = append(all, ShowListing{
				ShowID:         sh.ID,
				MovieID:        m.ID,
				Title:          m.Title,
				Genre:          m.Genre,
				Screen:         sh.Screen,
				StartsAt:       sh.StartsAt,
				PriceCents:     sh.PriceCents,
				AvailableSeats: sh.AvailableSeats,
				TotalSeats:     sh.TotalSeats,
			})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b ShowListing) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ShowID, b.ShowID)
	})
	total := int64(len(all))
	start := min((q.Page-1)*q.PageSize, len(all))
	end := min(start+q.PageSize, len(all))
	return slices.Clone(all[start:end]), total, nil
}

// memTx stages writes until commit.
type memTx struct {
	s             *MemoryStore
	deltas        map[uint64]int
	newShows      map[uint64]model.Show
	res           map[uint64]model.Reservation
	movies        map[uint64]model.Movie
	deletedShows  map[uint64]bool
	deletedMovies map[uint64]bool
}

func (t *memTx) show(id uint64) (model.Show, error) {
	if t.deletedShows[id] {
		return model.Show{}, ErrShowNotFound
	}
	sh, ok := t.newShows[id]
	if !ok {
		t.s.mu.RLock()
		sh, ok = t.s.shows[id]
		t.s.mu.RUnlock()
	}
	if !ok {
		return model.Show{}, ErrShowNotFound
	}
	sh.AvailableSeats += t.deltas[id]
	return sh, nil
}

func (t *memTx) movie(id uint64) (model.Movie, error) {
	if t.deletedMovies[id] {
		return model.Movie{}, ErrMovieNotFound
	}
	m, ok := t.movies[id]
	if !ok {
		t.s.mu.RLock()
		m, ok = t.s.movies[id]
		t.s.mu.RUnlock()
	}
	if !ok {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, nil
}

// merged returns committed reservations overlaid with staged ones,
// leaving out those of deleted shows.
func (t *memTx) merged() []model.Reservation {
	t.s.mu.RLock()
	out := make([]model.Reservation, 0, len(t.s.reservations)+len(t.res))
	for id, r := range t.s.reservations {
		if _, staged := t.res[id]; staged {
			continue
		}
		if !t.deletedShows[r.ShowID] {
			out = append(out, r)
		}
	}
	t.s.mu.RUnlock()
	for _, r := range t.res {
		if !t.deletedShows[r.ShowID] {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Reservation) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (t *memTx) reservation(id uint64) (model.Reservation, error) {
	r, ok := t.res[id]
	if !ok {
		t.s.mu.RLock()
		r, ok = t.s.reservations[id]
		t.s.mu.RUnlock()
	}
	if !ok || t.deletedShows[r.ShowID] {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (t *memTx) ShowForUpdate(ctx context.Context, id uint64) (model.Show, error) {
	return t.show(id)
}

func (t *memTx) MovieForUpdate(ctx context.Context, id uint64) (model.Movie, error) {
	return t.movie(id)
}

func (t *memTx) ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.reservation(id)
}

func (t *memTx) ActiveReservation(ctx context.Context, userID, showID uint64) (model.Reservation, error) {
	for _, r := range t.merged() {
		if r.UserID == userID && r.ShowID == showID && r.Active() {
			return r, nil
		}
	}
	return model.Reservation{}, ErrReservationNotFound
}

func (t *memTx) ActiveReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.merged() {
		if r.ShowID == showID && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) CreateShow(ctx context.Context, sh *model.Show) error {
	if _, err := t.movie(sh.MovieID); err != nil {
		return err
	}
	now := t.s.now()
	sh.ID = t.s.nextID()
	sh.AvailableSeats = sh.TotalSeats
	sh.CreatedAt, sh.UpdatedAt = now, now
	t.newShows[sh.ID] = *sh
	return nil
}

func (t *memTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if _, err := t.show(r.ShowID); err != nil {
		return err
	}
	if r.Status == model.ReservationActive {
		if _, err := t.ActiveReservation(ctx, r.UserID, r.ShowID); err == nil {
			return ErrDuplicateReservation
		}
	}
	r.ID = t.s.nextID()
	t.res[r.ID] = *r
	return nil
}

func (t *memTx) CancelReservation(ctx context.Context, id uint64, at time.Time) error {
	r, err := t.reservation(id)
	if err != nil {
		return err
	}
	if !r.Active() {
		return ErrReservationNotFound
	}
	at = at.UTC()
	r.Status = model.ReservationCancelled
	r.CancelledAt = &at
	t.res[id] = r
	return nil
}

func (t *memTx) AddAvailableSeats(ctx context.Context, showID uint64, delta int) error {
	sh, err := t.show(showID)
	if err != nil {
		return err
	}
	if v := sh.AvailableSeats + delta; v < 0 || v > sh.TotalSeats {
		return ErrCapacityViolation
	}
	t.deltas[showID] += delta
	return nil
}

func (t *memTx) DeleteShow(ctx context.Context, showID uint64) error {
	if _, err := t.show(showID); err != nil {
		return err
	}
	t.deletedShows[showID] = true
	return nil
}

func (t *memTx) UpdateMovie(ctx context.Context, m *model.Movie) error {
	cur, err := t.movie(m.ID)
	if err != nil {
		return err
	}
	m.CreatedAt = cur.CreatedAt
	t.movies[m.ID] = *m
	return nil
}

func (t *memTx) DeleteMovie(ctx context.Context, movieID uint64) error {
	if _, err := t.movie(movieID); err != nil {
		return err
	}
	for _, sh := range t.newShows {
		if sh.MovieID == movieID && !t.deletedShows[sh.ID] {
			return fmt.Errorf("repository: movie %d still has show %d", movieID, sh.ID)
		}
	}
	t.s.mu.RLock()
	for id, sh := range t.s.shows {
		if sh.MovieID == movieID && !t.deletedShows[id] {
			t.s.mu.RUnlock()
			return fmt.Errorf("repository: movie %d still has show %d", movieID, id)
		}
	}
	t.s.mu.RUnlock()
	t.deletedMovies[movieID] = true
	return nil
}

func (t *memTx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate against the committed state first; nothing is applied
	// unless every guard passes.
	for id, d := range t.deltas {
		if t.deletedShows[id] {
			continue
		}
		sh, ok := t.newShows[id]
		if !ok {
			sh, ok = s.shows[id]
		}
		if !ok {
			return ErrShowNotFound
		}
		if v := sh.AvailableSeats + d; v < 0 || v > sh.TotalSeats {
			return ErrCapacityViolation
		}
	}
	for id, r := range t.res {
		if t.deletedShows[r.ShowID] {
			continue
		}
		if _, isNew := t.newShows[r.ShowID]; !isNew {
			if _, ok := s.shows[r.ShowID]; !ok {
				return ErrShowNotFound
			}
		}
		if !r.Active() {
			continue
		}
		for cid, c := range s.reservations {
			if cid == id || !c.Active() || c.UserID != r.UserID || c.ShowID != r.ShowID {
				continue
			}
			if staged, ok := t.res[cid]; ok && !staged.Active() {
				continue
			}
			return ErrDuplicateReservation
		}
	}

	for id := range t.movies {
		if _, ok := s.movies[id]; !ok {
			return ErrMovieNotFound
		}
	}

	now := s.now()
	for id, m := range t.movies {
		s.movies[id] = m
	}
	for id, sh := range t.newShows {
		s.shows[id] = sh
	}
	for id, d := range t.deltas {
		if sh, ok := s.shows[id]; ok && d != 0 {
			sh.AvailableSeats += d
			sh.UpdatedAt = now
			s.shows[id] = sh
		}
	}
	for id, r := range t.res {
		s.reservations[id] = r
	}
	for showID := range t.deletedShows {
		for id, r := range s.reservations {
			if r.ShowID == showID {
				delete(s.reservations, id)
			}
		}
		delete(s.shows, showID)
	}
	for movieID := range t.deletedMovies {
		delete(s.movies, movieID)
	}
	return nil
}
