// The migrate binary applies the compliance schema to PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/db"
)

func main() {
	command := flag.String("command", "migrate", "Command to run: migrate or status")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("AUTOFINANCE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrator := db.NewMigrator(pool)

	switch *command {
	case "migrate":
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		version, _ := migrator.CurrentVersion(ctx)
		fmt.Printf("applied %d migration(s), schema version %d\n", applied, version)
	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status check failed: %v\n", err)
			os.Exit(1)
		}
		for _, row := range status {
			fmt.Printf("%3d  %-8s %s\n", row["version"], row["status"], row["description"])
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want migrate or status)\n", *command)
		os.Exit(1)
	}
}
