package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Role mirrors spec.md §3's User.role enum.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

// Preferences is the user's stored generation preference (spec.md §4.4
// priority 2, resolved by internal/router.PreferenceResolver).
type Preferences struct {
	PreferredModel  *string
	Temperature     *float64
	ThinkingEnabled *bool
	BasePrompt      *string
}

// User is spec.md §3's User entity.
type User struct {
	UserID          string
	DisplayName     string
	Role            Role
	Tier            string
	Preferences     Preferences
	WeeklyBudget    int
	BonusTokens     int
	TokensUsedWeek  int
	WeekResetAt     time.Time
	Banned          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TokensRemaining enforces spec.md §3's invariant:
// tokens_remaining = weekly_budget + bonus − tokens_used_this_week ≥ 0.
func (u User) TokensRemaining() int {
	remaining := u.WeeklyBudget + u.BonusTokens - u.TokensUsedWeek
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ErrUserNotFound is returned when a lookup finds no matching row.
var ErrUserNotFound = errors.New("user not found")

// UserRepository persists and queries User/AuthMethod rows.
type UserRepository struct {
	store *Store
}

// NewUserRepository builds a repository bound to store.
func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{store: s}
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, userID string) (User, error) {
	row := r.store.pool.QueryRow(ctx, `
		SELECT user_id, display_name, role, tier, preferred_model, temperature,
		       thinking_enabled, base_prompt, weekly_budget, bonus_tokens,
		       tokens_used_week, week_reset_at, banned, created_at, updated_at
		FROM users WHERE user_id = $1`, userID)

	var u User
	err := row.Scan(&u.UserID, &u.DisplayName, &u.Role, &u.Tier,
		&u.Preferences.PreferredModel, &u.Preferences.Temperature,
		&u.Preferences.ThinkingEnabled, &u.Preferences.BasePrompt,
		&u.WeeklyBudget, &u.BonusTokens, &u.TokensUsedWeek, &u.WeekResetAt,
		&u.Banned, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// GetByAuthMethod resolves a user via (provider, provider_user_id), the
// secondary lookup spec.md §6 names for AuthMethod.
func (r *UserRepository) GetByAuthMethod(ctx context.Context, provider, providerUserID string) (User, error) {
	var userID string
	err := r.store.pool.QueryRow(ctx,
		`SELECT user_id FROM auth_methods WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return r.Get(ctx, userID)
}

// Upsert inserts or updates a user row.
func (r *UserRepository) Upsert(ctx context.Context, u User) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO users (user_id, display_name, role, tier, preferred_model,
			temperature, thinking_enabled, base_prompt, weekly_budget,
			bonus_tokens, tokens_used_week, week_reset_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			tier = EXCLUDED.tier,
			preferred_model = EXCLUDED.preferred_model,
			temperature = EXCLUDED.temperature,
			thinking_enabled = EXCLUDED.thinking_enabled,
			base_prompt = EXCLUDED.base_prompt,
			weekly_budget = EXCLUDED.weekly_budget,
			bonus_tokens = EXCLUDED.bonus_tokens,
			tokens_used_week = EXCLUDED.tokens_used_week,
			week_reset_at = EXCLUDED.week_reset_at,
			updated_at = now()`,
		u.UserID, u.DisplayName, u.Role, u.Tier, u.Preferences.PreferredModel,
		u.Preferences.Temperature, u.Preferences.ThinkingEnabled, u.Preferences.BasePrompt,
		u.WeeklyBudget, u.BonusTokens, u.TokensUsedWeek, u.WeekResetAt)
	return err
}

// SetBanned flips a user's banned flag (admin ban/unban command, spec.md
// §6). A banned user's requests are rejected before enqueue.
func (r *UserRepository) SetBanned(ctx context.Context, userID string, banned bool) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE users SET banned = $2, updated_at = now() WHERE user_id = $1`,
		userID, banned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GrantBonusTokens adds amount to a user's bonus token allotment (admin
// token-grant command, spec.md §6).
func (r *UserRepository) GrantBonusTokens(ctx context.Context, userID string, amount int) error {
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE users SET bonus_tokens = bonus_tokens + $2, updated_at = now() WHERE user_id = $1`,
		userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChargeTokens deducts estimatedTokens from the weekly counter, resetting
// the week first if the stored week_reset_at has passed (spec.md §3:
// "Reset weekly on first request after Monday UTC rollover").
func (r *UserRepository) ChargeTokens(ctx context.Context, userID string, estimatedTokens int, nextMondayUTC time.Time) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE users SET
			tokens_used_week = CASE WHEN week_reset_at <= now() THEN $2 ELSE tokens_used_week + $2 END,
			week_reset_at = CASE WHEN week_reset_at <= now() THEN $3 ELSE week_reset_at END,
			updated_at = now()
		WHERE user_id = $1`,
		userID, estimatedTokens, nextMondayUTC)
	return err
}
