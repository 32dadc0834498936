// Package notify delivers a title and message to the user.
package notify

import (
	"context"
	"errors"
)

// Notifier shows a notification.
type Notifier interface {
	// Init prepares the notifier. A failure means the notifier cannot be
	// used at all and is fatal at startup.
	Init(ctx context.Context) error

	// Notify shows one notification.
	Notify(ctx context.Context, title, message string) error

	// Close releases any connection held by the notifier.
	Close() error
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Init initializes every notifier, stopping at the first failure.
func (m Multi) Init(ctx context.Context) error {
	for _, n := range m {
		if err := n.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Notify sends to every notifier, even when one of them fails.
func (m Multi) Notify(ctx context.Context, title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Init(context.Context) error { return nil }

func (Nop) Notify(context.Context, string, string) error { return nil }

func (Nop) Close() error { return nil }
