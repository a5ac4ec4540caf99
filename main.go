package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"apocaliptyx/cmd"
	"apocaliptyx/database"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: apocaliptyx [command]

commands:
  (none)                      run the HTTP server
  migrate up|down [n]|status  manage the database schema
  recalc-pools [scenario-id]  rebuild pool snapshots from predictions
  reconcile <user-id>         check a balance against the ledger`

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	var err error
	switch {
	case len(os.Args) < 2:
		err = cmd.Run(ctx)
	case os.Args[1] == "recalc-pools":
		scenarioID := ""
		if len(os.Args) > 2 {
			scenarioID = os.Args[2]
		}
		err = cmd.RecalculatePools(ctx, scenarioID)
	case os.Args[1] == "reconcile":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: apocaliptyx reconcile <user-id>")
			break
		}
		err = cmd.Reconcile(ctx, os.Args[2])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: apocaliptyx migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
