package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"v1tr0-backend/internal/app"
	"v1tr0-backend/internal/auth"
	"v1tr0-backend/internal/config"
	"v1tr0-backend/internal/lock"
	"v1tr0-backend/internal/meetings"
	"v1tr0-backend/internal/schedule"
	"v1tr0-backend/internal/validation"
)

func main() {
	cliApp := &cli.App{
		Name:  "v1tr0ctl",
		Usage: "Operate the v1tr0 meetings backend.",
		Commands: []*cli.Command{
			hashPasswordCommand(),
			seedCommand(),
			importCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print a bcrypt hash for ADMIN_PASSWORD_HASH.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "password", Usage: "Password to hash; read from stdin when omitted."},
		},
		Action: func(c *cli.Context) error {
			password := c.String("password")
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create demo clients and meetings through the booking path.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 5, Usage: "Number of business days to fill, starting tomorrow."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()

			stores, err := app.OpenStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close(context.Background())

			services := app.NewServices(cfg, stores, nil, lock.NewLocal(), validation.New(), logger)

			demo := []struct {
				name, email, company, clock string
			}{
				{"Ana Perez", "ana.perez@example.com", "Andes Labs", "14:00"},
				{"Luis Gomez", "luis.gomez@example.com", "", "15:30"},
				{"Marta Diaz", "marta.diaz@example.com", "Caribe Digital", "17:00"},
			}

			tomorrow := time.Now().In(cfg.Timezone).AddDate(0, 0, 1)
			created, skipped := 0, 0
			for _, date := range schedule.BusinessDays(tomorrow, c.Int("days")) {
				for _, d := range demo {
					_, err := services.Meetings.Create(ctx, meetings.ContactBookingRequest{
						Date:          date,
						Time:          d.clock,
						ClientName:    d.name,
						ClientEmail:   d.email,
						ClientCompany: d.company,
						MeetingType:   "discovery",
					})
					var conflict *meetings.ConflictError
					switch {
					case err == nil:
						created++
					case errors.As(err, &conflict):
						skipped++
						logger.Info("seed meeting: skipped", slog.String("date", date), slog.String("time", d.clock), slog.String("reason", conflict.Reason))
					default:
						return fmt.Errorf("seed %s %s: %w", date, d.clock, err)
					}
				}
			}
			logger.Info("seed: done", slog.Int("created", created), slog.Int("skipped", skipped))
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy the JSON file store into MongoDB.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Directory holding meetings.json and clients.json; defaults to DATA_DIR."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			dir := c.String("from")
			if dir == "" {
				dir = cfg.DataDir
			}

			ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
			defer cancel()

			source, err := app.OpenFileStores(dir, logger)
			if err != nil {
				return err
			}
			mongoCfg := *cfg
			mongoCfg.StoreBackend = config.BackendMongo
			target, err := app.OpenStores(ctx, &mongoCfg, logger)
			if err != nil {
				return err
			}
			defer target.Close(context.Background())

			clientCount, err := source.Clients.Count(ctx)
			if err != nil {
				return err
			}
			items, err := source.Clients.List(ctx, clientCount+1, 0)
			if err != nil {
				return err
			}
			for _, cl := range items {
				if _, _, err := target.Clients.Upsert(ctx, cl); err != nil {
					return fmt.Errorf("import client %s: %w", cl.Email, err)
				}
			}

			total, err := source.Meetings.Count(ctx, meetings.ListFilter{})
			if err != nil {
				return err
			}
			imported, skipped := 0, 0
			for offset := int64(0); offset < total; offset += meetings.MaxListLimit {
				page, err := source.Meetings.List(ctx, meetings.ListFilter{Limit: meetings.MaxListLimit, Offset: offset})
				if err != nil {
					return err
				}
				for _, b := range page {
					err := target.Meetings.Create(ctx, b)
					switch {
					case err == nil:
						imported++
					case errors.Is(err, meetings.ErrSlotTaken):
						skipped++
						logger.Warn("import meeting: skipped", slog.String("booking_id", b.ID), slog.String("date", b.Date), slog.String("time", b.Time))
					default:
						return fmt.Errorf("import meeting %s: %w", b.ID, err)
					}
				}
			}
			if int64(imported+skipped) != total {
				return fmt.Errorf("import meetings: read %d of %d", imported+skipped, total)
			}
			logger.Info("import: done", slog.Int("clients", len(items)), slog.Int("meetings", imported), slog.Int("skipped", skipped))
			return nil
		},
	}
}

func load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return cfg, logger, nil
}
