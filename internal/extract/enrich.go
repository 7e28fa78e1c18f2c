package extract

import (
	"errors"
	"fmt"

	"github.com/spigell/resume-butler/internal/profile"
)

// Store is what Enrich needs from the profile store.
type Store interface {
	Setter
	LastQuestion() string
}

// Enrich applies everything that can be learned from message to store:
// extracted contact values first, then the answer to the last question.
// Each field is attempted independently; the returned error joins any
// failures and the returned slice lists the fields that were written.
func Enrich(store Store, message string) ([]profile.Field, error) {
	fields := Extract(message)

	var (
		changed []profile.Field
		errs    []error
	)
	for _, f := range fields.Sorted() {
		if err := store.Apply(f, fields[f]); err != nil {
			errs = append(errs, fmt.Errorf("apply extracted %s: %w", f, err))
			continue
		}
		changed = append(changed, f)
	}

	assigned, err := ApplyContext(store, message, store.LastQuestion(), fields)
	if err != nil {
		errs = append(errs, err)
	}
	changed = append(changed, assigned...)

	return changed, errors.Join(errs...)
}
