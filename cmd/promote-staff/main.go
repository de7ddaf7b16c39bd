// Command promote-staff grants the admin role, which makes a user staff in every conference.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"cmt/config"
	"cmt/internal/domain"
	"cmt/internal/repository/postgres"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		databaseURL string
		email       string
	)
	flagSet := pflag.NewFlagSet("promote-staff", pflag.ContinueOnError)
	flagSet.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL from the environment)")
	flagSet.StringVar(&email, "email", "", "email of the user to promote")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if strings.TrimSpace(email) == "" {
		return errors.New("--email is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if databaseURL != "" {
		cfg.DBUrl = databaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	user, err := postgres.NewUserRepository(db).GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	if err := postgres.NewRoleRepository(db).Grant(ctx, user.ID, domain.RoleCodeAdmin); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	fmt.Printf("%s is now staff\n", user.Email)
	return nil
}
