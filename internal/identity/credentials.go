package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/storage"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// Keys inside the shared identity namespace.
const (
	KeyUsers      = "mock_users"
	KeyResetCodes = "mock_reset_codes"
)

// CredentialStore is the mock identity map plus the reset challenge list.
// Every read-modify-write holds mu, so concurrent flows in one process cannot
// lose each other's updates. Separate processes sharing a backend still can.
type CredentialStore struct {
	mu         sync.Mutex
	store      storage.Storage
	bcryptCost int
	now        func() time.Time
}

// NewCredentialStore binds the store to the shared namespace of s.
func NewCredentialStore(s storage.Storage, bcryptCost int) *CredentialStore {
	return &CredentialStore{store: storage.Shared(s), bcryptCost: bcryptCost, now: time.Now}
}

// WithClock overrides time.Now for record timestamps.
func (c *CredentialStore) WithClock(now func() time.Time) *CredentialStore {
	c.now = now
	return c
}

// BcryptCost is the cost used for new hashes.
func (c *CredentialStore) BcryptCost() int {
	return c.bcryptCost
}

func (c *CredentialStore) loadUsers(ctx context.Context) ([]domain.IdentityRecord, error) {
	var users []domain.IdentityRecord
	if _, err := storage.GetJSON(ctx, c.store, KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	return users, nil
}

func (c *CredentialStore) saveUsers(ctx context.Context, users []domain.IdentityRecord) error {
	if err := storage.SetJSON(ctx, c.store, KeyUsers, users); err != nil {
		return fmt.Errorf("save identities: %w", err)
	}
	return nil
}

func (c *CredentialStore) loadChallenges(ctx context.Context) ([]domain.ResetChallenge, error) {
	var challenges []domain.ResetChallenge
	if _, err := storage.GetJSON(ctx, c.store, KeyResetCodes, &challenges); err != nil {
		return nil, fmt.Errorf("load reset codes: %w", err)
	}
	return challenges, nil
}

func (c *CredentialStore) saveChallenges(ctx context.Context, challenges []domain.ResetChallenge) error {
	if err := storage.SetJSON(ctx, c.store, KeyResetCodes, challenges); err != nil {
		return fmt.Errorf("save reset codes: %w", err)
	}
	return nil
}

// live drops challenges that can no longer be redeemed.
func live(challenges []domain.ResetChallenge, now time.Time) []domain.ResetChallenge {
	out := make([]domain.ResetChallenge, 0, len(challenges))
	for _, ch := range challenges {
		if !ch.Expired(now) {
			out = append(out, ch)
		}
	}
	return out
}

func indexOf(users []domain.IdentityRecord, email string) int {
	for i := range users {
		if users[i].Email == email {
			return i
		}
	}
	return -1
}

// Find returns the record for a normalized email, or nil.
func (c *CredentialStore) Find(ctx context.Context, email string) (*domain.IdentityRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(users, email); i >= 0 {
		rec := users[i]
		return &rec, nil
	}
	return nil, nil
}

// List returns every record.
func (c *CredentialStore) List(ctx context.Context) ([]domain.IdentityRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadUsers(ctx)
}

// Create hashes password and stores a new record. The email must be normalized.
func (c *CredentialStore) Create(ctx context.Context, email, password string, profile domain.Profile, confirmed bool) (*domain.IdentityRecord, error) {
	hash, err := auth.HashPassword(password, c.bcryptCost)
	if err != nil {
		return nil, apperrors.WithCause(apperrors.WeakCredential(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	if indexOf(users, email) >= 0 {
		return nil, apperrors.DuplicateIdentity(email)
	}

	now := c.now().UTC()
	rec := domain.IdentityRecord{
		ID:           "mock-user-" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		PhoneNumber:  profile.PhoneNumber,
		Role:         profile.Role,
		Confirmed:    confirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.saveUsers(ctx, append(users, rec)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update applies fn to the record for email and stores the result.
// A nil record from the lookup yields notFound.
func (c *CredentialStore) Update(ctx context.Context, email string, notFound error, fn func(*domain.IdentityRecord) error) (*domain.IdentityRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(users, email)
	if i < 0 {
		return nil, notFound
	}
	if err := fn(&users[i]); err != nil {
		return nil, err
	}
	users[i].UpdatedAt = c.now().UTC()
	if err := c.saveUsers(ctx, users); err != nil {
		return nil, err
	}
	rec := users[i]
	return &rec, nil
}

// AddChallenge appends a reset challenge and drops expired ones.
func (c *CredentialStore) AddChallenge(ctx context.Context, ch domain.ResetChallenge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	challenges, err := c.loadChallenges(ctx)
	if err != nil {
		return err
	}
	return c.saveChallenges(ctx, append(live(challenges, c.now()), ch))
}

// RedeemChallenge consumes the challenge matching (email, code) and stores the
// new hash. A missing match yields a NotFound challenge error; an expired match
// is removed and yields an Expired challenge error. Nothing is consumed when
// the identity itself is gone.
func (c *CredentialStore) RedeemChallenge(ctx context.Context, email, code, newHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	challenges, err := c.loadChallenges(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, ch := range challenges {
		if ch.Email == email && ch.Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.ChallengeInvalid()
	}
	now := c.now()
	remaining := live(append(append([]domain.ResetChallenge{}, challenges[:idx]...), challenges[idx+1:]...), now)

	if challenges[idx].Expired(now) {
		if err := c.saveChallenges(ctx, remaining); err != nil {
			return err
		}
		return apperrors.ChallengeExpired()
	}

	users, err := c.loadUsers(ctx)
	if err != nil {
		return err
	}
	u := indexOf(users, email)
	if u < 0 {
		return apperrors.IdentityNotFound()
	}
	users[u].PasswordHash = newHash
	users[u].UpdatedAt = now.UTC()
	if err := c.saveUsers(ctx, users); err != nil {
		return err
	}
	return c.saveChallenges(ctx, remaining)
}

// SeedUser is an identity to insert when absent.
type SeedUser struct {
	ID       string
	Email    string
	Password string
	Profile  domain.Profile
}

// DefaultSeedUsers are the development identities, one per role.
func DefaultSeedUsers(password string) []SeedUser {
	return []SeedUser{
		{ID: "mock-user-1", Email: "client@test.com", Password: password, Profile: domain.Profile{FirstName: "Test", LastName: "Client", PhoneNumber: "+1234567890", Role: domain.RoleClient}},
		{ID: "mock-user-2", Email: "gym@test.com", Password: password, Profile: domain.Profile{FirstName: "Gym", LastName: "Staff", PhoneNumber: "+1234567891", Role: domain.RoleGymStaff}},
		{ID: "mock-user-3", Email: "trainer@test.com", Password: password, Profile: domain.Profile{FirstName: "Personal", LastName: "Trainer", PhoneNumber: "+1234567892", Role: domain.RoleTrainer}},
		{ID: "mock-user-4", Email: "admin@test.com", Password: password, Profile: domain.Profile{FirstName: "Admin", LastName: "User", PhoneNumber: "+1234567893", Role: domain.RoleAdmin}},
	}
}

// Seed inserts confirmed identities whose email is not yet taken and reports how many were added.
func (c *CredentialStore) Seed(ctx context.Context, seeds []SeedUser) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.loadUsers(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	now := c.now().UTC()
	for _, s := range seeds {
		email := NormalizeEmail(s.Email)
		if indexOf(users, email) >= 0 {
			continue
		}
		hash, err := auth.HashPassword(s.Password, c.bcryptCost)
		if err != nil {
			return added, fmt.Errorf("hash seed %s: %w", email, err)
		}
		id := s.ID
		if id == "" {
			id = "mock-user-" + uuid.NewString()
		}
		users = append(users, domain.IdentityRecord{
			ID:           id,
			Email:        email,
			PasswordHash: hash,
			FirstName:    s.Profile.FirstName,
			LastName:     s.Profile.LastName,
			PhoneNumber:  s.Profile.PhoneNumber,
			Role:         s.Profile.Role,
			Confirmed:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, c.saveUsers(ctx, users)
}

// Clear removes every identity and challenge.
func (c *CredentialStore) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, KeyUsers); err != nil {
		return err
	}
	return c.store.Delete(ctx, KeyResetCodes)
}
