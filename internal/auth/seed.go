package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
)

// seedPasswordSuffix guarantees every character class the strict policy
// asks for; the entropy comes from rand.Text.
const seedPasswordSuffix = "!Aa1"

// SeedSuperAdmin creates the initial superadmin on first boot if no
// accounts exist. The generated password is logged once and must be
// changed immediately. Returns the generated password (empty string if
// seeding was skipped).
func SeedSuperAdmin(ctx context.Context, store CredentialStore, email string, logger *slog.Logger) (string, error) {
	if email == "" {
		return "", nil
	}

	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}

	if count > 0 {
		logger.Info("accounts exist, skipping superadmin seed")
		return "", nil
	}

	password := rand.Text() + seedPasswordSuffix

	acc, err := CreateSuperAdmin(ctx, store, email, password)
	if err != nil {
		return "", fmt.Errorf("creating seed superadmin: %w", err)
	}

	logger.Warn("seed superadmin account created",
		"account_id", acc.ID,
		"email", acc.Email,
		"generated_password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}

// CreateSuperAdmin creates a platform operator account with no church.
func CreateSuperAdmin(ctx context.Context, store CredentialStore, email, password string) (*Account, error) {
	return store.Create(ctx, NewAccount{
		Email:    email,
		Password: password,
		Name:     "Platform Administrator",
		Role:     RoleSuperAdmin,
	})
}
