package main

import (
	"database/sql"
	"flag"
	"fmt"
	"time"

	_ "github.com/lib/pq" // database/sql driver for the journal sender

	"github.com/Hburdack/happy-button-sub001/journal/postgresengine"
	"github.com/Hburdack/happy-button-sub001/simulation"
)

// Config holds command-line configuration for the simulator demo.
type Config struct {
	SpeedLevel      int
	Seed            int64
	PerMinute       int
	PerHour         int
	StatusInterval  time.Duration
	InterCyclePause time.Duration
	PostgresDSN     string
	Verbose         bool
}

func parseFlags() Config {
	var (
		speedLevel      = flag.Int("speed-level", 2, "Initial speed level (1..5)")
		seed            = flag.Int64("seed", 0, "Scenario seed, 0 picks a random one")
		perMinute       = flag.Int("per-minute", 5, "Dispatch ceiling per sliding minute")
		perHour         = flag.Int("per-hour", 30, "Dispatch ceiling per sliding hour")
		statusInterval  = flag.Duration("status-interval", 5*time.Second, "Interval between status log lines")
		interCyclePause = flag.Duration("inter-cycle-pause", 5*time.Second, "Pause between two cycles")
		postgresDSN     = flag.String("postgres-dsn", "", "Postgres DSN for the delivery journal, empty logs to console")
		verbose         = flag.Bool("verbose", false, "Log each delivered event")
	)

	flag.Parse()

	return Config{
		SpeedLevel:      *speedLevel,
		Seed:            *seed,
		PerMinute:       *perMinute,
		PerHour:         *perHour,
		StatusInterval:  *statusInterval,
		InterCyclePause: *interCyclePause,
		PostgresDSN:     *postgresDSN,
		Verbose:         *verbose,
	}
}

// newSender picks the delivery collaborator: the Postgres journal when a DSN
// is configured, the console sender otherwise.
func (c Config) newSender(logger simulation.Logger) (simulation.Sender, func(), error) {
	if c.PostgresDSN == "" {
		return NewConsoleSender(logger, c.Verbose), func() {}, nil
	}

	db, openErr := sql.Open("postgres", c.PostgresDSN)
	if openErr != nil {
		return nil, nil, fmt.Errorf("failed to open postgres connection: %w", openErr)
	}

	if pingErr := db.Ping(); pingErr != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", pingErr)
	}

	journal, journalErr := postgresengine.NewJournalFromSQLDB(db, postgresengine.WithLogger(logger))
	if journalErr != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create delivery journal: %w", journalErr)
	}

	return journal, func() { _ = db.Close() }, nil
}
