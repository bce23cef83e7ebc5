// Package admin holds the maintenance operations behind authctl.
package admin

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/identity"
	"github.com/easybody/auth-gateway/internal/repository"
)

// RowSource yields backend users to mirror into the mock provider.
// repository.UserRepository satisfies it.
type RowSource interface {
	List(ctx context.Context) ([]repository.BackendUser, error)
}

// SeedsFromRows maps backend users to mock identities named mock-user-<id>.
// Rows without an email are skipped; unknown roles become CLIENT_USER.
func SeedsFromRows(rows []repository.BackendUser, password string) []identity.SeedUser {
	seeds := make([]identity.SeedUser, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Email) == "" {
			continue
		}
		role, ok := domain.ParseRole(r.Role)
		if !ok {
			role = domain.RoleClient
		}
		seeds = append(seeds, identity.SeedUser{
			ID:       "mock-user-" + strconv.FormatInt(r.ID, 10),
			Email:    r.Email,
			Password: password,
			Profile: domain.Profile{
				FirstName:   r.FirstName,
				LastName:    r.LastName,
				PhoneNumber: r.PhoneNumber,
				Role:        role,
			},
		})
	}
	return seeds
}

// SeedFrom mirrors every backend user and reports how many were added.
func SeedFrom(ctx context.Context, creds *identity.CredentialStore, src RowSource, password string) (int, error) {
	rows, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	return creds.Seed(ctx, SeedsFromRows(rows, password))
}

// List prints the mock identities as a table.
func List(ctx context.Context, creds *identity.CredentialStore, w io.Writer) error {
	users, err := creds.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tROLE\tCONFIRMED\tID")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Email, u.Role, u.Confirmed, u.ID)
	}
	return tw.Flush()
}
