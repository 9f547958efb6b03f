// Package faults defines the error taxonomy used to categorize failures
// in logs and alerts, and helpers to classify arbitrary errors into it.
package faults

import (
	"context"
	"errors"
	"net"
)

// Category labels a failure class for structured logging.
type Category string

const (
	CategoryTransient   Category = "transient"
	CategoryClientError Category = "client_error"
	CategorySchemaDrift Category = "schema_drift"
	CategoryConfig      Category = "configuration"
	CategoryDBConn      Category = "database_connectivity"
	CategoryIntegrity   Category = "data_integrity"
	CategoryDatabase    Category = "database_error"
	CategoryUnknown     Category = "unknown"
)

// Categorized is implemented by errors that know their own category.
type Categorized interface {
	Category() Category
}

// categorized wraps an error with an explicit category.
type categorized struct {
	err error
	cat Category
}

func (c *categorized) Error() string      { return c.err.Error() }
func (c *categorized) Unwrap() error      { return c.err }
func (c *categorized) Category() Category { return c.cat }

// Wrap attaches a category to err. Returns nil if err is nil.
func Wrap(err error, cat Category) error {
	if err == nil {
		return nil
	}
	return &categorized{err: err, cat: cat}
}

// Categorize maps err to a taxonomy category. Errors carrying their own
// category win; timeouts and network failures classify as transient;
// anything unrecognized is unknown.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var c Categorized
	if errors.As(err, &c) {
		return c.Category()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient
	}
	return CategoryUnknown
}
