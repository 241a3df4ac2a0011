package license

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
)

// DefaultHostTier is reported until a license has been loaded
const DefaultHostTier = "community"

// Fetcher reads the host license from nfcd
type Fetcher interface {
	GetAccess(ctx context.Context) (*nfc.License, error)
}

// Store holds the most recently fetched host license and the access policy derived from it
type Store struct {
	fetcher Fetcher
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu        sync.RWMutex
	license   *nfc.License
	policy    *AccessPolicy
	fetchedAt time.Time
	lastErr   string
}

// NewStore creates an empty license store
func NewStore(fetcher Fetcher, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Logger
	}
	return &Store{
		fetcher: fetcher,
		logger:  log.Named("license"),
		now:     time.Now,
	}
}

// Refresh fetches the license. On failure the previous license and policy are dropped
// and the error text is kept for display.
func (s *Store) Refresh(ctx context.Context) error {
	lic, err := s.fetcher.GetAccess(ctx)
	if err == nil {
		var policy *AccessPolicy
		policy, err = FromNFCDPolicy(lic.Policies[nfc.PolicyNFCD])
		if err == nil {
			s.mu.Lock()
			s.license = lic
			s.policy = policy
			s.fetchedAt = s.now()
			s.lastErr = ""
			s.mu.Unlock()
			s.logger.Debugw("Host license loaded", "host_tier", lic.HostTier, logger.FieldCount, len(policy.AllowedScopes))
			return nil
		}
	}

	s.mu.Lock()
	s.license = nil
	s.policy = nil
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.logger.Warnw("Failed to load host license", logger.FieldError, err)
	return errors.Wrap(err, "failed to refresh host license")
}

// Policy returns the derived access policy, or nil when no license is loaded
func (s *Store) Policy() *AccessPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Scopes returns the granted scopes of the loaded license
func (s *Store) Scopes() []string {
	return s.Policy().Scopes()
}

// HostTier returns the license tier, "community" when unknown
func (s *Store) HostTier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.license == nil || s.license.HostTier == "" {
		return DefaultHostTier
	}
	return s.license.HostTier
}

// FetchedAt returns when the license was last loaded successfully
func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Err returns the last refresh error text, empty after a successful refresh
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
