package meetings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/httpx"
	"v1tr0-backend/internal/lock"
	"v1tr0-backend/internal/schedule"
	"v1tr0-backend/internal/validation"
)

const (
	lockWait     = 5 * time.Second
	notifyBudget = 10 * time.Second
)

// ClientStore is the part of the clients service bookings depend on.
type ClientStore interface {
	Save(ctx context.Context, req clients.SaveRequest) (clients.Client, bool, error)
	GetByID(ctx context.Context, id string) (clients.Client, error)
}

type Notifier interface {
	SendMeetingConfirmation(ctx context.Context, b Booking) (string, error)
}

// Service writes bookings. Every write that can claim a slot holds the
// date lock from the availability check until the record is stored.
type Service struct {
	repo         Repository
	availability *Availability
	clients      ClientStore
	locker       lock.Locker
	val          *validation.Validator
	notifier     Notifier
	now          func() time.Time
	log          *slog.Logger
}

func NewService(repo Repository, availability *Availability, cl ClientStore, locker lock.Locker, val *validation.Validator, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		availability: availability,
		clients:      cl,
		locker:       locker,
		val:          val,
		now:          time.Now,
		log:          log,
	}
}

// SetNotifier enables confirmation mail. A nil notifier disables it.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// List returns one page of bookings and the total matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Booking, int64, error) {
	if filter.Date != "" {
		if _, err := schedule.ParseDate(filter.Date, s.availability.Location()); err != nil {
			return nil, 0, invalid("date", "date")
		}
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (Booking, error) {
	return s.repo.Get(ctx, strings.TrimSpace(id))
}

// Create books a slot for either request variant. A refused slot comes
// back as *ConflictError carrying the reason.
func (s *Service) Create(ctx context.Context, req BookingRequest) (Booking, error) {
	req = normalizeRequest(req)
	if err := s.validate(req); err != nil {
		return Booking{}, err
	}
	slot := req.slot()
	if slot.Duration == 0 {
		slot.Duration = schedule.SlotMinutes
	}

	release, err := s.lockDate(ctx, slot.Date)
	if err != nil {
		return Booking{}, err
	}
	defer release()

	decision, err := s.availability.CanScheduleFor(ctx, slot)
	if err != nil {
		return Booking{}, err
	}
	if !decision.CanSchedule {
		return Booking{}, &ConflictError{Reason: decision.Reason}
	}

	// The contact variant upserts its client here. A store-level
	// ErrSlotTaken below leaves that client saved without the booking,
	// which a retry reuses through the same email.
	b, err := s.newBooking(ctx, req, slot)
	if err != nil {
		return Booking{}, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return Booking{}, &ConflictError{Reason: ReasonOccupied}
		}
		return Booking{}, fmt.Errorf("store booking: %w", err)
	}

	s.notify(b)
	return b, nil
}

func (s *Service) newBooking(ctx context.Context, req BookingRequest, slot SlotRequest) (Booking, error) {
	now := s.now().In(s.availability.Location())
	b := Booking{
		ID:        uuid.NewString(),
		Date:      slot.Date,
		Time:      slot.Time,
		Duration:  slot.Duration,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch r := req.(type) {
	case ContactBookingRequest:
		c, _, err := s.clients.Save(ctx, clients.SaveRequest{
			Name:    r.ClientName,
			Email:   r.ClientEmail,
			Phone:   r.ClientPhone,
			Company: r.ClientCompany,
		})
		if err != nil {
			return Booking{}, fmt.Errorf("save client: %w", err)
		}
		b.ClientID = c.ID
		b.ClientName = c.Name
		b.ClientEmail = c.Email
		b.ClientPhone = c.Phone
		b.ClientCompany = c.Company
		b.MeetingType = r.MeetingType
		b.Notes = strings.TrimSpace(r.Notes)
	case ProjectBookingRequest:
		c, err := s.clients.GetByID(ctx, r.ClientID)
		if err != nil {
			return Booking{}, err
		}
		b.ClientID = c.ID
		b.ClientName = c.Name
		b.ClientEmail = c.Email
		b.ClientPhone = c.Phone
		b.ClientCompany = c.Company
		b.ProjectID = r.ProjectID
		b.Title = strings.TrimSpace(r.Title)
		b.MeetingType = r.MeetingType
		b.Notes = strings.TrimSpace(r.Notes)
	default:
		return Booking{}, &ValidationError{Message: "unrecognized booking request"}
	}
	if b.MeetingType == "" {
		b.MeetingType = DefaultMeetingType
	}
	return b, nil
}

// Update applies a partial change. Moving a booking or reactivating it
// re-checks the target slot with the booking itself excluded.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (Booking, error) {
	if err := s.validate(req); err != nil {
		return Booking{}, err
	}
	current, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return Booking{}, err
	}

	next := current
	if req.Date != nil {
		next.Date = *req.Date
	}
	if req.Time != nil {
		next.Time = *req.Time
	}
	if req.Duration != nil {
		next.Duration = *req.Duration
	}
	if req.Status != nil {
		next.Status = *req.Status
	}
	if req.MeetingType != nil {
		next.MeetingType = strings.TrimSpace(*req.MeetingType)
	}
	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
	}
	if req.Notes != nil {
		next.Notes = strings.TrimSpace(*req.Notes)
	}

	slotChanged := next.Date != current.Date || next.Time != current.Time || next.Duration != current.Duration
	reactivated := next.Active() && !current.Active()

	if next.Active() && (slotChanged || reactivated) {
		release, err := s.lockDate(ctx, next.Date)
		if err != nil {
			return Booking{}, err
		}
		defer release()

		decision, err := s.availability.CanScheduleFor(ctx, SlotRequest{
			Date:      next.Date,
			Time:      next.Time,
			Duration:  next.Duration,
			ExcludeID: next.ID,
		})
		if err != nil {
			return Booking{}, err
		}
		if !decision.CanSchedule {
			return Booking{}, &ConflictError{Reason: decision.Reason}
		}
	}

	next.UpdatedAt = s.now().In(s.availability.Location())
	if err := s.repo.Replace(ctx, next); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return Booking{}, &ConflictError{Reason: ReasonOccupied}
		}
		return Booking{}, err
	}
	return next, nil
}

// Cancel marks the booking cancelled. changed is false when it already was.
func (s *Service) Cancel(ctx context.Context, id string) (Booking, bool, error) {
	current, err := s.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Booking{}, false, err
	}
	if current.Status == StatusCancelled {
		return current, false, nil
	}
	current.Status = StatusCancelled
	current.UpdatedAt = s.now().In(s.availability.Location())
	if err := s.repo.Replace(ctx, current); err != nil {
		return Booking{}, false, err
	}
	return current, true, nil
}

func (s *Service) validate(req interface{}) error {
	if err := s.val.Struct(req); err != nil {
		details := httpx.ValidationDetails(s.val.ValidationErrors(err))
		return &ValidationError{Message: "validation error", Details: details}
	}
	return nil
}

func (s *Service) lockDate(ctx context.Context, date string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	release, err := s.locker.Lock(ctx, "meetings:"+date)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", date, err)
	}
	return release, nil
}

func (s *Service) notify(b Booking) {
	if s.notifier == nil || b.ClientEmail == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyBudget)
		defer cancel()
		id, err := s.notifier.SendMeetingConfirmation(ctx, b)
		if err != nil {
			s.log.Error("meetings notify: send failed", slog.String("booking_id", b.ID), slog.String("error", err.Error()))
			return
		}
		s.log.Info("meetings notify: sent", slog.String("booking_id", b.ID), slog.String("message_id", id))
	}()
}
