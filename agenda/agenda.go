// Package agenda holds the clinic's appointment book and the WhatsApp
// handoff that confirms a pending visit.
package agenda

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"medisocial/generator"
	"medisocial/publisher"
)

// Filter selects which appointments List returns.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterToday   Filter = "today"
	FilterPending Filter = "pending"
)

var (
	ErrNotFound      = errors.New("appointment not found")
	ErrUnknownFilter = errors.New("unknown agenda filter")
)

// Book is an in-memory agenda. It is safe for concurrent use.
type Book struct {
	mu    sync.Mutex
	items []generator.Appointment
	today func() string
}

type Option func(*Book)

// WithToday pins the date used by FilterToday (YYYY-MM-DD).
func WithToday(date string) Option {
	return func(b *Book) {
		if date != "" {
			b.today = func() string { return date }
		}
	}
}

// WithAppointments replaces the seeded agenda.
func WithAppointments(items []generator.Appointment) Option {
	return func(b *Book) { b.items = append([]generator.Appointment(nil), items...) }
}

func NewBook(opts ...Option) *Book {
	b := &Book{
		items: Seed(),
		today: func() string { return time.Now().Format(time.DateOnly) },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Seed is the demo agenda the studio starts with.
func Seed() []generator.Appointment {
	return []generator.Appointment{
		{ID: "1", PatientName: "Ana Clara Souza", Date: "2024-10-25", Time: "09:00", Type: generator.AppointmentFirstVisit, Status: generator.StatusConfirmed, Phone: "5511999999999"},
		{ID: "2", PatientName: "Roberto Mendes", Date: "2024-10-25", Time: "10:30", Type: generator.AppointmentPostOp, Status: generator.StatusPending, Phone: "5511988888888"},
		{ID: "3", PatientName: "Fernanda Oliveira", Date: "2024-10-25", Time: "14:00", Type: generator.AppointmentReturn, Status: generator.StatusConfirmed, Phone: "5511977777777"},
		{ID: "4", PatientName: "Carlos Lima", Date: "2024-10-26", Time: "08:00", Type: generator.AppointmentInfiltration, Status: generator.StatusPending, Phone: "5511966666666"},
		{ID: "5", PatientName: "Mariana Costa", Date: "2024-10-26", Time: "11:00", Type: generator.AppointmentFirstVisit, Status: generator.StatusConfirmed, Phone: "5511955555555"},
	}
}

// List returns the appointments matching f, ordered by date and time.
func (b *Book) List(f Filter) ([]generator.Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keep func(a generator.Appointment) bool
	switch f {
	case FilterAll, "":
		keep = func(generator.Appointment) bool { return true }
	case FilterToday:
		today := b.today()
		keep = func(a generator.Appointment) bool { return a.Date == today }
	case FilterPending:
		keep = func(a generator.Appointment) bool { return a.Status == generator.StatusPending }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f)
	}

	out := make([]generator.Appointment, 0, len(b.items))
	for _, a := range b.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (b *Book) Get(id string) (generator.Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return generator.Appointment{}, ErrNotFound
	}
	return b.items[i], nil
}

// Handoff is what the studio needs to open WhatsApp for a patient.
type Handoff struct {
	Appointment generator.Appointment `json:"appointment"`
	Message     string                `json:"message"`
	Link        string                `json:"link"`
}

// HandOff formats text for WhatsApp, builds the wa.me link and marks a
// pending appointment as confirmed.
func (b *Book) HandOff(id, text string) (Handoff, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return Handoff{}, ErrNotFound
	}
	msg := publisher.FormatForWhatsApp(text)
	link, err := publisher.WhatsAppLink(b.items[i].Phone, msg)
	if err != nil {
		return Handoff{}, fmt.Errorf("appointment %s: %w", id, err)
	}
	if b.items[i].Status == generator.StatusPending {
		b.items[i].Status = generator.StatusConfirmed
	}
	return Handoff{Appointment: b.items[i], Message: msg, Link: link}, nil
}

func (b *Book) indexLocked(id string) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}
