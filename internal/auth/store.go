package auth

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"novelhub/internal/settings"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
)

// Settings keys holding the credential state.
const (
	passwordHashKey = "auth.password_bcrypt"
	tokenVersionKey = "auth.token_version"
)

// Store keeps the single owner credential in the settings table.
type Store struct {
	Settings *settings.Repo
}

func NewStore(db *database.DB) *Store {
	return &Store{Settings: settings.NewRepo(db)}
}

// HasPassword reports whether a passphrase has been set yet. An unset
// passphrase means the API runs open, which is the default for a local app.
func (s *Store) HasPassword(ctx context.Context) (bool, error) {
	h, err := s.Settings.GetDefault(ctx, passwordHashKey, "")
	if err != nil {
		return false, err
	}
	return h != "", nil
}

// SetPassword hashes and stores a new passphrase and bumps the token
// version, invalidating tokens issued against the old one.
func (s *Store) SetPassword(ctx context.Context, password string) error {
	if len(password) < 4 {
		return fmt.Errorf("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Settings.Set(ctx, passwordHashKey, string(hash)); err != nil {
		return err
	}
	return s.BumpTokenVersion(ctx)
}

// CheckPassword verifies the passphrase against the stored hash.
func (s *Store) CheckPassword(ctx context.Context, password string) error {
	hash, err := s.Settings.Get(ctx, passwordHashKey)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			return fmt.Errorf("no password set")
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("wrong password")
	}
	return nil
}

func (s *Store) TokenVersion(ctx context.Context) (int, error) {
	raw, err := s.Settings.GetDefault(ctx, tokenVersionKey, "0")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

func (s *Store) BumpTokenVersion(ctx context.Context) error {
	v, err := s.TokenVersion(ctx)
	if err != nil {
		return err
	}
	return s.Settings.Set(ctx, tokenVersionKey, strconv.Itoa(v+1))
}
