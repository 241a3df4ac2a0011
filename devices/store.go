// Package devices holds the list of NFC adapters reported by nfcd and the
// adapter the user selected for job submission.
package devices

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
	"github.com/taglme/console/nfc"
)

// Lister reads the adapter list from nfcd
type Lister interface {
	GetAll(ctx context.Context) ([]nfc.Adapter, error)
}

// PersistFunc saves the selected adapter id. An empty id clears the selection.
type PersistFunc func(adapterID string) error

// Store caches the adapter list
type Store struct {
	lister  Lister
	persist PersistFunc
	logger  *zap.SugaredLogger

	mu       sync.RWMutex
	list     []nfc.Adapter
	lastErr  string
	selected string
}

// NewStore creates a store with an initial selection (typically from config).
// persist may be nil.
func NewStore(lister Lister, selected string, persist PersistFunc, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Logger
	}
	return &Store{
		lister:   lister,
		persist:  persist,
		logger:   log.Named("devices"),
		selected: selected,
	}
}

// Refresh reloads the adapter list. A selection that is no longer listed is cleared.
// On failure the list is emptied and the error text kept.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.lister.GetAll(ctx)
	if err != nil {
		s.mu.Lock()
		s.list = nil
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logger.Warnw("Failed to load adapters", logger.FieldError, err)
		return errors.Wrap(err, "failed to refresh adapters")
	}

	s.mu.Lock()
	s.list = list
	s.lastErr = ""
	dropped := ""
	if s.selected != "" && !contains(list, s.selected) {
		dropped = s.selected
		s.selected = ""
	}
	s.mu.Unlock()

	s.logger.Debugw("Adapters loaded", logger.FieldCount, len(list))
	if dropped != "" {
		s.logger.Infow("Selected adapter is gone", logger.FieldAdapterID, dropped)
		s.save("")
	}
	return nil
}

// List returns a copy of the adapter list
func (s *Store) List() []nfc.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]nfc.Adapter, len(s.list))
	copy(out, s.list)
	return out
}

// Clear empties the list; used when the event stream drops
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
}

// Err returns the last refresh error text
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Select sets the adapter used for submissions and persists it
func (s *Store) Select(adapterID string) {
	s.mu.Lock()
	s.selected = adapterID
	s.mu.Unlock()
	s.save(adapterID)
}

// Selected returns the selected adapter id
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectedAdapter returns the selected adapter if it is in the current list
func (s *Store) SelectedAdapter() (nfc.Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.list {
		if a.AdapterID == s.selected {
			return a, true
		}
	}
	return nfc.Adapter{}, false
}

// Label formats an adapter for display, e.g. "ACR122 (usb)"
func Label(a nfc.Adapter) string {
	return fmt.Sprintf("%s (%s)", a.Name, a.Kind)
}

func (s *Store) save(adapterID string) {
	if s.persist == nil {
		return
	}
	if err := s.persist(adapterID); err != nil {
		s.logger.Warnw("Failed to persist adapter selection", logger.FieldAdapterID, adapterID, logger.FieldError, err)
	}
}

func contains(list []nfc.Adapter, id string) bool {
	for _, a := range list {
		if a.AdapterID == id {
			return true
		}
	}
	return false
}
