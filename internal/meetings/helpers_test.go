package meetings

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"v1tr0-backend/internal/calendar"
	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/filestore"
	"v1tr0-backend/internal/lock"
	"v1tr0-backend/internal/validation"
)

type fakeSource struct {
	busy  []calendar.BusyInterval
	err   error
	calls int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) BusyIntervals(ctx context.Context, from, to time.Time) ([]calendar.BusyInterval, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.busy, nil
}

type testEnv struct {
	loc          *time.Location
	repo         *FileRepository
	clients      *clients.Service
	availability *Availability
	service      *Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bogota(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// newTestEnv wires the file-backed stores with a frozen clock. source
// may be nil.
func newTestEnv(t *testing.T, now time.Time, source calendar.Source) *testEnv {
	t.Helper()
	loc := bogota(t)
	dir := t.TempDir()

	meetingsDoc, err := filestore.Open[Booking](filepath.Join(dir, "meetings.json"))
	if err != nil {
		t.Fatalf("open meetings: %v", err)
	}
	clientsDoc, err := filestore.Open[clients.Client](filepath.Join(dir, "clients.json"))
	if err != nil {
		t.Fatalf("open clients: %v", err)
	}

	repo := NewFileRepository(meetingsDoc)
	clientService := clients.NewService(clients.NewFileRepository(clientsDoc), repo, loc)
	log := discardLogger()

	availability := NewAvailability(repo, source, loc, Buffers{Booking: 30 * time.Minute, Display: 5 * time.Minute}, time.Second, log)
	availability.now = func() time.Time { return now }

	service := NewService(repo, availability, clientService, lock.NewLocal(), validation.New(), log)
	service.now = func() time.Time { return now }

	return &testEnv{
		loc:          loc,
		repo:         repo,
		clients:      clientService,
		availability: availability,
		service:      service,
	}
}

func at(t *testing.T, loc *time.Location, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func contactRequest(date, clock string) ContactBookingRequest {
	return ContactBookingRequest{
		Date:        date,
		Time:        clock,
		ClientName:  "Ana Perez",
		ClientEmail: "ana@example.com",
		MeetingType: "discovery",
	}
}
