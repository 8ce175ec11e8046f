// Package store persists registrants. Every write goes through Update or
// Mutate, which apply a mutation function atomically per record.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/oss377/maneBot/internal/registrant"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("store: registrant not found")

// MutateFunc changes records in place. Returning an error aborts the write.
type MutateFunc func(recs []*registrant.Registrant) error

// Store is the record store consumed by the registration service.
type Store interface {
	Find(ctx context.Context, id int64) (*registrant.Registrant, error)
	FindMany(ctx context.Context, q Query) ([]*registrant.Registrant, error)
	// FindByClaimToken returns the owner of the unclaimed sub-registration
	// holding token and that entry's index.
	FindByClaimToken(ctx context.Context, token string) (*registrant.Registrant, int, error)
	// FindByPhone returns the registrant whose own phone is phone.
	FindByPhone(ctx context.Context, phone string) (*registrant.Registrant, error)
	Save(ctx context.Context, r *registrant.Registrant) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context, q Query) (int, error)
	// Update loads id (creating it when upsert is set), applies fn to a copy
	// and persists the result. The committed record is returned.
	Update(ctx context.Context, id int64, upsert bool, fn func(*registrant.Registrant) error) (*registrant.Registrant, error)
	// Mutate is Update over several records committed together. Records are
	// passed to fn in the order of ids.
	Mutate(ctx context.Context, ids []int64, upsert bool, fn MutateFunc) ([]*registrant.Registrant, error)
}

// Query selects registrants. Set fields are ANDed; the zero Query matches all.
type Query struct {
	// Named selects records whose own name is (true) or is not (false) set.
	Named *bool
	// InStep selects records with a non-null step.
	InStep   bool
	Approved *bool
	// PendingBefore selects records where the registrant or any
	// sub-registration awaits proof with pending-since older than the value.
	PendingBefore *time.Time
	// RemindedSince selects records reminded (self or sub) at or after the value.
	RemindedSince *time.Time
	// AwaitingApproval selects records with proof uploaded but not yet approved,
	// for the registrant or any sub-registration.
	AwaitingApproval bool
	// MissingFeeling selects records lacking either feeling.
	MissingFeeling bool
	// HasFeeling selects records with at least one feeling.
	HasFeeling bool
}

// Bool is a helper for optional Query flags.
func Bool(v bool) *bool { return &v }

// Match reports whether r satisfies q.
func (q Query) Match(r *registrant.Registrant) bool {
	if q.Named != nil && (r.Profile.Name != "") != *q.Named {
		return false
	}
	if q.InStep && r.Step == registrant.StepNone {
		return false
	}
	if q.Approved != nil && r.Approved != *q.Approved {
		return false
	}
	if q.PendingBefore != nil && !pendingBefore(r, *q.PendingBefore) {
		return false
	}
	if q.RemindedSince != nil && !remindedSince(r, *q.RemindedSince) {
		return false
	}
	if q.AwaitingApproval && !awaitingApproval(r) {
		return false
	}
	if q.MissingFeeling && r.FeelingBefore != "" && r.FeelingAfter != "" {
		return false
	}
	if q.HasFeeling && r.FeelingBefore == "" && r.FeelingAfter == "" {
		return false
	}
	return true
}

// StaleSelf reports whether the registrant's own payment reminder is due.
func StaleSelf(r *registrant.Registrant, cutoff time.Time) bool {
	return r.Payment == "" && !r.Approved && r.PendingSince != nil && r.PendingSince.Before(cutoff)
}

// StaleOther reports whether a sub-registration's payment reminder is due.
func StaleOther(s registrant.SubRegistration, cutoff time.Time) bool {
	return s.Payment == "" && !s.Approved && s.PendingSince != nil && s.PendingSince.Before(cutoff)
}

func pendingBefore(r *registrant.Registrant, cutoff time.Time) bool {
	if StaleSelf(r, cutoff) {
		return true
	}
	for _, o := range r.Others {
		if StaleOther(o, cutoff) {
			return true
		}
	}
	return false
}

func remindedSince(r *registrant.Registrant, since time.Time) bool {
	if r.LastReminderAt != nil && !r.LastReminderAt.Before(since) {
		return true
	}
	for _, o := range r.Others {
		if o.LastReminderAt != nil && !o.LastReminderAt.Before(since) {
			return true
		}
	}
	return false
}

func awaitingApproval(r *registrant.Registrant) bool {
	if r.Payment != "" && !r.Approved {
		return true
	}
	for _, o := range r.Others {
		if o.Payment != "" && !o.Approved {
			return true
		}
	}
	return false
}
