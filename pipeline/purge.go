package pipeline

import (
	"context"
	"errors"
)

// Purger deletes previously published objects under a key prefix. *store.Store implements it.
type Purger interface {
	Purge(ctx context.Context, prefix string) (int, error)
}

// PurgeClasses removes what an earlier run of kind published for the
// configured classes, leaving other kinds, classes and prefixes alone.
func PurgeClasses(ctx context.Context, cfg *Config, kind string, p Purger) (int, error) {
	var total int
	var errs []error
	for _, class := range cfg.Classes {
		n, err := p.Purge(ctx, cfg.PublishPrefix(kind, class))
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}
