package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gradarchive.org/internal/migrate"
	"gradarchive.org/internal/obs"
	"gradarchive.org/migrations"
)

func main() {
	var (
		dsn     = flag.String("dsn", os.Getenv("DATABASE_DSN"), "postgres connection string")
		timeout = flag.Duration("timeout", 30*time.Second, "overall command timeout")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] up|down|seed|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := obs.With("migrate")

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *dsn == "" {
		log.Fatal().Msg("database dsn is required (-dsn or DATABASE_DSN)")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mgr := migrate.NewManager(db, migrations.SQL(), migrations.Seeds())

	switch cmd {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate down")
		}
		log.Info().Msg("last migration rolled back")
	case "seed":
		if err := mgr.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed")
		}
		log.Info().Msg("seeds applied")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("status")
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
