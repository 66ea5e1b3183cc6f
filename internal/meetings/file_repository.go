package meetings

import (
	"context"
	"sort"

	"v1tr0-backend/internal/filestore"
	"v1tr0-backend/internal/schedule"
)

// FileRepository keeps bookings in a JSON document. Writes re-check
// overlap while the document is held, which covers what the Mongo
// unique index covers and also catches longer bookings.
type FileRepository struct {
	doc *filestore.Document[Booking]
}

func NewFileRepository(doc *filestore.Document[Booking]) *FileRepository {
	return &FileRepository{doc: doc}
}

func (r *FileRepository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	out, err := r.matching(filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	if filter.Offset > 0 {
		if filter.Offset >= int64(len(out)) {
			return []Booking{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *FileRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	out, err := r.matching(filter)
	return int64(len(out)), err
}

func (r *FileRepository) matching(filter ListFilter) ([]Booking, error) {
	out := make([]Booking, 0)
	err := r.doc.View(func(items []Booking) error {
		for _, b := range items {
			if filter.Date != "" && b.Date != filter.Date {
				continue
			}
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
			if filter.ClientID != "" && b.ClientID != filter.ClientID {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *FileRepository) Get(ctx context.Context, id string) (Booking, error) {
	var found *Booking
	err := r.doc.View(func(items []Booking) error {
		for i := range items {
			if items[i].ID == id {
				b := items[i]
				found = &b
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	if found == nil {
		return Booking{}, ErrNotFound
	}
	return *found, nil
}

func (r *FileRepository) Create(ctx context.Context, b Booking) error {
	return r.doc.Update(func(items []Booking) ([]Booking, error) {
		if err := checkFree(items, b); err != nil {
			return nil, err
		}
		return append(items, b), nil
	})
}

func (r *FileRepository) Replace(ctx context.Context, b Booking) error {
	return r.doc.Update(func(items []Booking) ([]Booking, error) {
		for i := range items {
			if items[i].ID != b.ID {
				continue
			}
			if err := checkFree(items, b); err != nil {
				return nil, err
			}
			items[i] = b
			return items, nil
		}
		return nil, ErrNotFound
	})
}

func (r *FileRepository) HasScheduledForClient(ctx context.Context, clientID string) (bool, error) {
	var busy bool
	err := r.doc.View(func(items []Booking) error {
		for _, b := range items {
			if b.ClientID == clientID && b.Active() {
				busy = true
				return nil
			}
		}
		return nil
	})
	return busy, err
}

func checkFree(items []Booking, b Booking) error {
	if !b.Active() {
		return nil
	}
	want, err := b.Interval()
	if err != nil {
		return err
	}
	for _, other := range items {
		if other.ID == b.ID || other.Date != b.Date || !other.Active() {
			continue
		}
		iv, err := other.Interval()
		if err != nil {
			continue
		}
		if schedule.Overlaps(want, iv) {
			return ErrSlotTaken
		}
	}
	return nil
}
