package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"communitylibrary/internal/models"
	"communitylibrary/internal/services"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message raised by a mutation.
type Notice struct {
	ID      uuid.UUID
	Level   NoticeLevel
	Message string
	At      time.Time
}

type Session struct {
	User        *models.User
	Permissions []services.Permission
	ExpiresAt   time.Time
}

// Can reports whether the session grants perm. Server-side checks still apply.
func (s *Session) Can(perm services.Permission) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == services.PermissionAll || p == perm {
			return true
		}
	}
	return false
}

// State is the client's view of the server. Reduce never mutates a State in
// place, so values handed to subscribers stay valid.
type State struct {
	Session       *Session
	Books         []models.Book
	Persons       []models.Person
	Borrowings    []models.Borrowing
	Reservations  []models.Reservation
	Attendance    []models.Attendance
	Settings      *models.Settings
	Stats         *services.DashboardStats
	Notifications []Notice
}

// ─── Actions ──────────────────────────────────────────────────────────────────

type Action interface {
	isAction()
}

type (
	SessionStarted      struct{ Session Session }
	SessionEnded        struct{}
	BooksLoaded         struct{ Books []models.Book }
	BookUpserted        struct{ Book models.Book }
	BookRemoved         struct{ ID uuid.UUID }
	PersonsLoaded       struct{ Persons []models.Person }
	PersonUpserted      struct{ Person models.Person }
	PersonRemoved       struct{ ID uuid.UUID }
	BorrowingsLoaded    struct{ Borrowings []models.Borrowing }
	BorrowingUpserted   struct{ Borrowing models.Borrowing }
	ReservationsLoaded  struct{ Reservations []models.Reservation }
	ReservationUpserted struct{ Reservation models.Reservation }
	ReservationRemoved  struct{ ID uuid.UUID }
	AttendanceLoaded    struct{ Records []models.Attendance }
	AttendanceUpserted  struct{ Record models.Attendance }
	SettingsLoaded      struct{ Settings models.Settings }
	StatsLoaded         struct{ Stats services.DashboardStats }
	NotificationPushed  struct{ Notice Notice }
	NotificationCleared struct{ ID uuid.UUID }
)

func (SessionStarted) isAction()      {}
func (SessionEnded) isAction()        {}
func (BooksLoaded) isAction()         {}
func (BookUpserted) isAction()        {}
func (BookRemoved) isAction()         {}
func (PersonsLoaded) isAction()       {}
func (PersonUpserted) isAction()      {}
func (PersonRemoved) isAction()       {}
func (BorrowingsLoaded) isAction()    {}
func (BorrowingUpserted) isAction()   {}
func (ReservationsLoaded) isAction()  {}
func (ReservationUpserted) isAction() {}
func (ReservationRemoved) isAction()  {}
func (AttendanceLoaded) isAction()    {}
func (AttendanceUpserted) isAction()  {}
func (SettingsLoaded) isAction()      {}
func (StatsLoaded) isAction()         {}
func (NotificationPushed) isAction()  {}
func (NotificationCleared) isAction() {}

// maxNotices bounds the notification list; the oldest are dropped first.
const maxNotices = 20

// Reduce returns the state that results from applying a to s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SessionStarted:
		session := a.Session
		s.Session = &session
	case SessionEnded:
		return State{}
	case BooksLoaded:
		s.Books = clone(a.Books)
	case BookUpserted:
		s.Books = upsert(s.Books, a.Book, func(b models.Book) uuid.UUID { return b.ID })
	case BookRemoved:
		s.Books = remove(s.Books, a.ID, func(b models.Book) uuid.UUID { return b.ID })
	case PersonsLoaded:
		s.Persons = clone(a.Persons)
	case PersonUpserted:
		s.Persons = upsert(s.Persons, a.Person, func(p models.Person) uuid.UUID { return p.ID })
	case PersonRemoved:
		s.Persons = remove(s.Persons, a.ID, func(p models.Person) uuid.UUID { return p.ID })
	case BorrowingsLoaded:
		s.Borrowings = clone(a.Borrowings)
	case BorrowingUpserted:
		s.Borrowings = upsert(s.Borrowings, a.Borrowing, func(b models.Borrowing) uuid.UUID { return b.ID })
	case ReservationsLoaded:
		s.Reservations = clone(a.Reservations)
	case ReservationUpserted:
		s.Reservations = upsert(s.Reservations, a.Reservation, func(r models.Reservation) uuid.UUID { return r.ID })
	case ReservationRemoved:
		s.Reservations = remove(s.Reservations, a.ID, func(r models.Reservation) uuid.UUID { return r.ID })
	case AttendanceLoaded:
		s.Attendance = clone(a.Records)
	case AttendanceUpserted:
		s.Attendance = upsert(s.Attendance, a.Record, func(r models.Attendance) uuid.UUID { return r.ID })
	case SettingsLoaded:
		settings := a.Settings
		s.Settings = &settings
	case StatsLoaded:
		stats := a.Stats
		s.Stats = &stats
	case NotificationPushed:
		notices := make([]Notice, 0, len(s.Notifications)+1)
		notices = append(notices, s.Notifications...)
		notices = append(notices, a.Notice)
		if len(notices) > maxNotices {
			notices = notices[len(notices)-maxNotices:]
		}
		s.Notifications = notices
	case NotificationCleared:
		s.Notifications = remove(s.Notifications, a.ID, func(n Notice) uuid.UUID { return n.ID })
	}
	return s
}

func clone[T any](items []T) []T {
	return append([]T(nil), items...)
}

// upsert replaces the item with the same id, or prepends it when new.
func upsert[T any](items []T, item T, id func(T) uuid.UUID) []T {
	key := id(item)
	out := make([]T, 0, len(items)+1)
	found := false
	for _, it := range items {
		if id(it) == key {
			out = append(out, item)
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		out = append([]T{item}, out...)
	}
	return out
}

func remove[T any](items []T, key uuid.UUID, id func(T) uuid.UUID) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if id(it) != key {
			out = append(out, it)
		}
	}
	return out
}

// ─── Store ────────────────────────────────────────────────────────────────────

// Store holds a State and notifies subscribers after every Dispatch.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and then calls every subscriber with the new state.
// Subscribers run outside the lock and may dispatch themselves.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	state := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
