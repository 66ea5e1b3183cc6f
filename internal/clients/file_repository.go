package clients

import (
	"context"
	"sort"
	"time"

	"v1tr0-backend/internal/filestore"
)

// FileRepository keeps clients in a JSON document.
type FileRepository struct {
	doc *filestore.Document[Client]
}

func NewFileRepository(doc *filestore.Document[Client]) *FileRepository {
	return &FileRepository{doc: doc}
}

func (r *FileRepository) Upsert(ctx context.Context, c Client) (Client, bool, error) {
	var (
		saved   Client
		created bool
	)
	err := r.doc.Update(func(items []Client) ([]Client, error) {
		for i := range items {
			if items[i].Email != c.Email {
				continue
			}
			items[i].Name = c.Name
			if c.Phone != "" {
				items[i].Phone = c.Phone
			}
			if c.Company != "" {
				items[i].Company = c.Company
			}
			items[i].UpdatedAt = c.UpdatedAt
			saved = items[i]
			return items, nil
		}
		saved = c
		created = true
		return append(items, c), nil
	})
	if err != nil {
		return Client{}, false, err
	}
	return saved, created, nil
}

func (r *FileRepository) GetByEmail(ctx context.Context, email string) (Client, error) {
	return r.find(func(c Client) bool { return c.Email == email })
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (Client, error) {
	return r.find(func(c Client) bool { return c.ID == id })
}

func (r *FileRepository) find(match func(Client) bool) (Client, error) {
	var found *Client
	err := r.doc.View(func(items []Client) error {
		for i := range items {
			if match(items[i]) {
				c := items[i]
				found = &c
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return Client{}, err
	}
	if found == nil {
		return Client{}, ErrNotFound
	}
	return *found, nil
}

func (r *FileRepository) List(ctx context.Context, limit, offset int64) ([]Client, error) {
	out := make([]Client, 0)
	err := r.doc.View(func(items []Client) error {
		sorted := append([]Client(nil), items...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		for i := offset; i < int64(len(sorted)) && int64(len(out)) < limit; i++ {
			out = append(out, sorted[i])
		}
		return nil
	})
	return out, err
}

func (r *FileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.doc.View(func(items []Client) error {
		n = int64(len(items))
		return nil
	})
	return n, err
}

func (r *FileRepository) Update(ctx context.Context, email string, patch Patch, now time.Time) (Client, error) {
	var updated Client
	err := r.doc.Update(func(items []Client) ([]Client, error) {
		for i := range items {
			if items[i].Email != email {
				continue
			}
			if patch.Name != nil {
				items[i].Name = *patch.Name
			}
			if patch.Phone != nil {
				items[i].Phone = *patch.Phone
			}
			if patch.Company != nil {
				items[i].Company = *patch.Company
			}
			items[i].UpdatedAt = now
			updated = items[i]
			return items, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Client{}, err
	}
	return updated, nil
}

func (r *FileRepository) Delete(ctx context.Context, email string) error {
	return r.doc.Update(func(items []Client) ([]Client, error) {
		for i := range items {
			if items[i].Email == email {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}
