package onboarding

import (
	"context"
	"fmt"

	"rosterd/internal/metric"
	"rosterd/internal/ports"
)

const defaultGroup = "default"

// Defaults are the roster attributes written to a new account.
type Defaults struct {
	Group  string
	Prefix string
	Suffix string
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	defaults Defaults
}

// NewService constructs an onboarding service. An empty Group falls back to "default".
func NewService(accounts ports.AccountPort, defaults Defaults) *Service {
	if defaults.Group == "" {
		defaults.Group = defaultGroup
	}
	return &Service{
		accounts: accounts,
		defaults: defaults,
	}
}

// OnboardNewUser writes the group, prefix and suffix metadata that ranking and
// decoration read for userID, so a fresh account never resolves as unmatched.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) error {
	if s.accounts == nil {
		return fmt.Errorf("onboarding service not configured")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	fields := map[string]interface{}{
		metric.KeyGroup:  s.defaults.Group,
		metric.KeyPrefix: s.defaults.Prefix,
		metric.KeySuffix: s.defaults.Suffix,
	}
	if err := s.accounts.UpdateMetadata(ctx, userID, fields); err != nil {
		return fmt.Errorf("failed to write roster defaults: %w", err)
	}
	return nil
}
