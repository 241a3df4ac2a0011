// Package about caches nfcd application info
package about

import (
	"context"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
)

// Getter reads application info from nfcd
type Getter interface {
	Get(ctx context.Context) (*nfc.AppInfo, error)
}

// Store holds the most recent nfcd application info
type Store struct {
	getter Getter
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	info    *nfc.AppInfo
	lastErr string
}

// NewStore creates an empty store
func NewStore(getter Getter, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Logger
	}
	return &Store{getter: getter, logger: log.Named("about")}
}

// Refresh reloads application info; on failure the info is dropped and the error kept
func (s *Store) Refresh(ctx context.Context) error {
	info, err := s.getter.Get(ctx)

	s.mu.Lock()
	if err != nil {
		s.info = nil
		s.lastErr = err.Error()
	} else {
		s.info = info
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warnw("Failed to load nfcd info", logger.FieldError, err)
		return errors.Wrap(err, "failed to refresh nfcd info")
	}
	s.logger.Debugw("nfcd info loaded", "version", info.Version)
	return nil
}

// Info returns the cached info, nil when not loaded
func (s *Store) Info() *nfc.AppInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Err returns the last refresh error text
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Compatible checks the nfcd version against a semver constraint such as ">= 1.2, < 2".
// An empty constraint is always satisfied.
func (s *Store) Compatible(constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}

	info := s.Info()
	if info == nil {
		return errors.New("nfcd version is unknown")
	}

	ver, err := semver.NewVersion(info.Version)
	if err != nil {
		return errors.Wrapf(err, "invalid nfcd version %s", info.Version)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %s", constraint)
	}
	if !c.Check(ver) {
		return errors.WithHint(
			errors.Newf("console requires nfcd %s, but the service runs %s", constraint, info.Version),
			"upgrade nfcd or use a matching console release")
	}
	return nil
}
