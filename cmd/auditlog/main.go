// Command auditlog prints the newest entries of the audit trail.
//
//	auditlog [-subject <user id>] [-limit 50]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/wuwenbin0122/useradmin/internal/audit"
	"github.com/wuwenbin0122/useradmin/internal/db"
	"github.com/wuwenbin0122/useradmin/internal/utils"
)

func main() {
	subject := flag.String("subject", "", "only show events about this user id")
	limit := flag.Int("limit", 50, "maximum number of events")
	flag.Parse()

	if err := utils.LoadEnvFile(".env"); err != nil {
		log.Fatalf("config: %v", err)
	}

	pgCfg, err := utils.LoadPostgresConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	postgres, err := db.NewPostgres(ctx, pgCfg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer postgres.Close()

	events, err := audit.NewPostgresRecorder(postgres.Pool).Recent(ctx, *subject, *limit)
	if err != nil {
		log.Fatalf("read audit events: %v", err)
	}

	if err := printEvents(os.Stdout, events); err != nil {
		log.Fatalf("print audit events: %v", err)
	}
}

func printEvents(w io.Writer, events []audit.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "no audit events")
		return err
	}

	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s  %-16s actor=%s subject=%s %s\n",
			e.OccurredAt.UTC().Format(time.RFC3339), e.Action, e.ActorID, e.SubjectID, metadata); err != nil {
			return err
		}
	}
	return nil
}
