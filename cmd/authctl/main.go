// Command authctl maintains the mock identity store: seeding, listing and clearing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/admin"
	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/identity"
	"github.com/easybody/auth-gateway/internal/observability"
	"github.com/easybody/auth-gateway/internal/persistence"
	"github.com/easybody/auth-gateway/internal/repository"
	"github.com/easybody/auth-gateway/internal/storage"
)

const usage = `usage: authctl <command> [flags]

commands:
  seed [-password p] [-from-postgres]   add the example users (or the backend users)
  list                                  print the mock identities
  clear                                 remove every mock identity
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	redis := persistence.RedisForStorage(*cfg, logger)
	defer redis.Close()

	store, closeStore, err := storage.Open(ctx, cfg.Storage, storage.Backends{Postgres: pg, Redis: redis}, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck
	creds := identity.NewCredentialStore(store, cfg.Auth.BcryptCost)

	switch args[0] {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ContinueOnError)
		password := fs.String("password", cfg.Mock.DefaultPassword, "password for every seeded user")
		fromPostgres := fs.Bool("from-postgres", false, "mirror the backend users table instead of the default users")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		var added int
		if *fromPostgres {
			if !pg.Configured() {
				return errors.New("-from-postgres needs POSTGRES_DSN")
			}
			added, err = admin.SeedFrom(ctx, creds, repository.NewUserRepository(pg.PoolHandle()), *password)
		} else {
			added, err = creds.Seed(ctx, identity.DefaultSeedUsers(*password))
		}
		if err != nil {
			return err
		}
		logger.Info("seed finished", zap.Int("added", added))
		fmt.Fprintf(stdout, "added %d identities\n", added)
		return nil
	case "list":
		return admin.List(ctx, creds, stdout)
	case "clear":
		if err := creds.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "mock identities removed")
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
