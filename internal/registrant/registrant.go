// Package registrant holds the registration record, its sub-registrations and
// the rules that keep them consistent.
package registrant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	nameRe  = regexp.MustCompile(`^\p{L}+(\s+\p{L}+)+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^09\d{8}$`)
)

// ValidName accepts at least two whitespace-separated words of letters.
func ValidName(s string) bool { return nameRe.MatchString(strings.TrimSpace(s)) }

// ValidEmail performs a syntactic address check.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// ValidPhone accepts the 10-digit national mobile format 09XXXXXXXX.
func ValidPhone(s string) bool { return phoneRe.MatchString(s) }

// Status values shared by registrants and sub-registrations.
const (
	StatusApproved        = "approved"
	StatusPendingApproval = "pending_approval"
	StatusPendingPayment  = "pending_payment"
	StatusIncomplete      = "incomplete"
)

// Profile holds the attendee details collected by the conversation.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// SubRegistration is an attendee registered and paid for by a Registrant.
type SubRegistration struct {
	Profile
	Payment        string     `json:"payment,omitempty"`
	Approved       bool       `json:"approved"`
	PendingSince   *time.Time `json:"payment_pending_since,omitempty"`
	LastReminderAt *time.Time `json:"last_reminder_sent_at,omitempty"`
	ClaimToken     string     `json:"claim_token,omitempty"`
}

// Status derives the registration status from the stored flags.
func (s SubRegistration) Status() string {
	return status(s.Approved, s.Payment, s.Phone)
}

// AwaitingProof reports whether the entry is complete up to payment but has no proof yet.
func (s SubRegistration) AwaitingProof() bool {
	return s.Phone != "" && s.Payment == "" && !s.Approved
}

// Registrant is the per-identity record.
type Registrant struct {
	ID             int64
	Lang           Lang
	Step           Step
	Profile        Profile
	Payment        string
	Approved       bool
	PendingSince   *time.Time
	LastReminderAt *time.Time
	FeelingBefore  string
	FeelingAfter   string
	InvitedBy      int64
	Others         []SubRegistration
	PartialEmail   string
	ActiveOther    *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New returns an empty record for id.
func New(id int64, now time.Time) *Registrant {
	return &Registrant{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Registered reports whether the registrant has started their own registration.
func (r *Registrant) Registered() bool { return r.Profile.Name != "" }

// Status derives the registrant's own registration status.
func (r *Registrant) Status() string {
	return status(r.Approved, r.Payment, r.Profile.Phone)
}

func status(approved bool, payment, phone string) string {
	switch {
	case approved:
		return StatusApproved
	case payment != "":
		return StatusPendingApproval
	case phone != "":
		return StatusPendingPayment
	}
	return StatusIncomplete
}

// ActiveOtherIndex returns the sub-registration addressed by the other-flow:
// the stored pointer when it is in range, else the tail. It returns -1 when
// the list is empty.
func (r *Registrant) ActiveOtherIndex() int {
	if r.ActiveOther != nil && *r.ActiveOther >= 0 && *r.ActiveOther < len(r.Others) {
		return *r.ActiveOther
	}
	return len(r.Others) - 1
}

// ActiveOtherEntry returns the sub-registration addressed by the other-flow.
func (r *Registrant) ActiveOtherEntry() (*SubRegistration, int, bool) {
	idx := r.ActiveOtherIndex()
	if idx < 0 {
		return nil, -1, false
	}
	return &r.Others[idx], idx, true
}

// TokenIndex returns the index of the sub-registration holding token, or -1.
func (r *Registrant) TokenIndex(token string) int {
	if token == "" {
		return -1
	}
	for i := range r.Others {
		if r.Others[i].ClaimToken == token {
			return i
		}
	}
	return -1
}

// FirstAwaitingProof returns the first sub-registration missing its proof.
func (r *Registrant) FirstAwaitingProof() int {
	for i := range r.Others {
		if r.Others[i].AwaitingProof() {
			return i
		}
	}
	return -1
}

// LeaveStep moves the record to next. Leaving the other-flow for a step
// outside it drops an unfinished tail entry and the pointer.
func (r *Registrant) LeaveStep(next Step) {
	if r.Step.IsOther() && !next.IsOther() {
		r.DropIncompleteTail()
		r.ActiveOther = nil
	}
	if r.Step == StepEmail && next != StepEmail {
		r.PartialEmail = ""
	}
	r.Step = next
}

// DropIncompleteTail removes the last sub-registration when it has no phone yet.
func (r *Registrant) DropIncompleteTail() bool {
	n := len(r.Others)
	if n == 0 || r.Others[n-1].Phone != "" {
		return false
	}
	r.Others = r.Others[:n-1]
	if r.ActiveOther != nil && *r.ActiveOther >= len(r.Others) {
		r.ActiveOther = nil
	}
	return true
}

// RemoveOther deletes the sub-registration at idx and keeps the pointer
// addressing the same entry.
func (r *Registrant) RemoveOther(idx int) {
	if idx < 0 || idx >= len(r.Others) {
		return
	}
	r.Others = append(r.Others[:idx], r.Others[idx+1:]...)
	if r.ActiveOther == nil {
		return
	}
	switch p := *r.ActiveOther; {
	case p == idx:
		r.ActiveOther = nil
	case p > idx:
		np := p - 1
		r.ActiveOther = &np
	}
}

// Clone returns a deep copy.
func (r *Registrant) Clone() *Registrant {
	if r == nil {
		return nil
	}
	c := *r
	c.PendingSince = cloneTime(r.PendingSince)
	c.LastReminderAt = cloneTime(r.LastReminderAt)
	if r.ActiveOther != nil {
		v := *r.ActiveOther
		c.ActiveOther = &v
	}
	if r.Others != nil {
		c.Others = make([]SubRegistration, len(r.Others))
		for i, o := range r.Others {
			o.PendingSince = cloneTime(o.PendingSince)
			o.LastReminderAt = cloneTime(o.LastReminderAt)
			c.Others[i] = o
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Invariant violations reported by Validate.
var (
	ErrApprovedWithoutProof = errors.New("registrant: approved without payment proof")
	ErrOtherStepWithoutSub  = errors.New("registrant: other-flow step without a sub-registration")
	ErrStalePending         = errors.New("registrant: pending-since set while proof is recorded")
)

// Validate checks the record invariants.
func (r *Registrant) Validate() error {
	if _, err := ParseStep(string(r.Step)); err != nil {
		return err
	}
	if r.Approved && r.Payment == "" {
		return ErrApprovedWithoutProof
	}
	if r.PendingSince != nil && (r.Payment != "" || r.Approved) {
		return ErrStalePending
	}
	if r.Step.IsOther() {
		if len(r.Others) == 0 {
			return ErrOtherStepWithoutSub
		}
		if r.ActiveOther != nil && (*r.ActiveOther < 0 || *r.ActiveOther >= len(r.Others)) {
			return fmt.Errorf("%w: index %d of %d", ErrOtherStepWithoutSub, *r.ActiveOther, len(r.Others))
		}
	}
	for i, o := range r.Others {
		if o.Approved && o.Payment == "" {
			return fmt.Errorf("%w: sub-registration %d", ErrApprovedWithoutProof, i)
		}
		if o.PendingSince != nil && (o.Payment != "" || o.Approved) {
			return fmt.Errorf("%w: sub-registration %d", ErrStalePending, i)
		}
	}
	return nil
}
