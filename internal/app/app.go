// Package app assembles stores and services from configuration for the
// server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"v1tr0-backend/internal/calendar"
	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/config"
	"v1tr0-backend/internal/db"
	"v1tr0-backend/internal/filestore"
	"v1tr0-backend/internal/lock"
	"v1tr0-backend/internal/meetings"
	"v1tr0-backend/internal/redisx"
	"v1tr0-backend/internal/validation"
)

const (
	MeetingsFile = "meetings.json"
	ClientsFile  = "clients.json"
)

type Stores struct {
	Meetings meetings.Repository
	Clients  clients.Repository
	Backend  string

	mongo *mongo.Client
}

// OpenStores connects the configured backend. The mongo backend also
// ensures its indexes, which carry the double-booking guard.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := db.EnsureIndexes(ctx, cols); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info("store mongo: connected", slog.String("db", cfg.MongoDB))
		return &Stores{
			Meetings: meetings.NewRepository(cols.Meetings),
			Clients:  clients.NewRepository(cols.Clients),
			Backend:  config.BackendMongo,
			mongo:    client,
		}, nil
	default:
		return OpenFileStores(cfg.DataDir, log)
	}
}

func OpenFileStores(dir string, log *slog.Logger) (*Stores, error) {
	meetingsDoc, err := filestore.Open[meetings.Booking](filepath.Join(dir, MeetingsFile))
	if err != nil {
		return nil, fmt.Errorf("open meetings store: %w", err)
	}
	clientsDoc, err := filestore.Open[clients.Client](filepath.Join(dir, ClientsFile))
	if err != nil {
		return nil, fmt.Errorf("open clients store: %w", err)
	}
	log.Info("store file: opened", slog.String("dir", dir))
	return &Stores{
		Meetings: meetings.NewFileRepository(meetingsDoc),
		Clients:  clients.NewFileRepository(clientsDoc),
		Backend:  config.BackendFile,
	}, nil
}

func (s *Stores) Ping(ctx context.Context) error {
	if s.mongo == nil {
		return nil
	}
	return s.mongo.Ping(ctx, nil)
}

func (s *Stores) Close(ctx context.Context) error {
	if s.mongo == nil {
		return nil
	}
	return s.mongo.Disconnect(ctx)
}

// OpenRedis returns nil when Redis is not configured.
func OpenRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	rdb, err := redisx.NewClient(cfg.RedisURL, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if rdb == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisx.Ping(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis: connected")
	return rdb, nil
}

// NewLocker shares date locks across processes when Redis is available.
func NewLocker(rdb *redis.Client) lock.Locker {
	if rdb == nil {
		return lock.NewLocal()
	}
	return lock.NewRedis(rdb, "v1tr0:lock", 15*time.Second)
}

// NewCalendarSource returns nil for the "none" provider.
func NewCalendarSource(ctx context.Context, cfg *config.Config, log *slog.Logger) (calendar.Source, error) {
	switch cfg.CalendarProvider {
	case config.CalendarGoogle:
		return calendar.NewGoogleSource(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.GoogleCalendarID,
			CredentialsFile: cfg.GoogleCredentialsFile,
			ClientID:        cfg.GoogleClientID,
			ClientSecret:    cfg.GoogleClientSecret,
			TokenFile:       cfg.GoogleTokenFile,
		}, log)
	case config.CalendarCalDAV:
		return calendar.NewCalDAVSource(calendar.CalDAVConfig{
			Endpoint:     cfg.CalDAVURL,
			Username:     cfg.CalDAVUsername,
			Password:     cfg.CalDAVPassword,
			CalendarPath: cfg.CalDAVCalendarPath,
		}, log)
	case config.CalendarNone:
		return nil, nil
	default:
		return nil, errors.New("unknown calendar provider " + cfg.CalendarProvider)
	}
}

type Services struct {
	Clients      *clients.Service
	Availability *meetings.Availability
	Meetings     *meetings.Service
}

func NewServices(cfg *config.Config, stores *Stores, source calendar.Source, locker lock.Locker, val *validation.Validator, log *slog.Logger) *Services {
	clientService := clients.NewService(stores.Clients, stores.Meetings, cfg.Timezone)
	availability := meetings.NewAvailability(
		stores.Meetings,
		source,
		cfg.Timezone,
		meetings.Buffers{Booking: cfg.BookingBuffer, Display: cfg.DisplayBuffer},
		cfg.CalendarTimeout,
		log,
	)
	return &Services{
		Clients:      clientService,
		Availability: availability,
		Meetings:     meetings.NewService(stores.Meetings, availability, clientService, locker, val, log),
	}
}
