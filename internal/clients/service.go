package clients

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("client not found")
	ErrHasScheduledMeetings = errors.New("client has scheduled meetings")
)

// MeetingGuard tells whether a client still owns scheduled meetings.
type MeetingGuard interface {
	HasScheduledForClient(ctx context.Context, clientID string) (bool, error)
}

type Service struct {
	repo     Repository
	guard    MeetingGuard
	location *time.Location
	now      func() time.Time
}

func NewService(repo Repository, guard MeetingGuard, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		location: location,
		now:      time.Now,
	}
}

// Save creates the client or refreshes the one with the same email.
func (s *Service) Save(ctx context.Context, req SaveRequest) (Client, bool, error) {
	now := s.now().In(s.location)
	c := Client{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     NormalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Upsert(ctx, c)
}

func (s *Service) Get(ctx context.Context, email string) (Client, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) GetByID(ctx context.Context, id string) (Client, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) List(ctx context.Context, limit, offset int64) ([]Client, int64, error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (Client, error) {
	patch := Patch{Name: trimmed(req.Name), Phone: trimmed(req.Phone), Company: trimmed(req.Company)}
	return s.repo.Update(ctx, NormalizeEmail(req.Email), patch, s.now().In(s.location))
}

// Delete refuses while the client still has scheduled meetings.
func (s *Service) Delete(ctx context.Context, email string) error {
	c, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if s.guard != nil {
		busy, err := s.guard.HasScheduledForClient(ctx, c.ID)
		if err != nil {
			return err
		}
		if busy {
			return ErrHasScheduledMeetings
		}
	}
	return s.repo.Delete(ctx, c.Email)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
