package registration

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// Stats aggregates registrations. Named sub-registrations count as
// registrations of their own.
type Stats struct {
	Total           int
	Approved        int
	PendingApproval int
	PendingPayment  int
	Incomplete      int
	RemindedToday   int
	Languages       map[registrant.Lang]int
}

func (st *Stats) add(status string) {
	st.Total++
	switch status {
	case registrant.StatusApproved:
		st.Approved++
	case registrant.StatusPendingApproval:
		st.PendingApproval++
	case registrant.StatusPendingPayment:
		st.PendingPayment++
	default:
		st.Incomplete++
	}
}

// Stats computes the registration totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Languages: make(map[registrant.Lang]int)}
	recs, err := s.store.FindMany(ctx, store.Query{})
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	for _, r := range recs {
		if r.Lang.Valid() {
			st.Languages[r.Lang]++
		}
		if r.Registered() {
			st.add(r.Status())
		}
		for _, o := range r.Others {
			if o.Name != "" {
				st.add(o.Status())
			}
		}
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	st.RemindedToday, err = s.store.Count(ctx, store.Query{RemindedSince: &midnight})
	if err != nil {
		return st, fmt.Errorf("stats reminders: %w", err)
	}
	return st, nil
}

func (st Stats) render() string {
	return fmt.Sprintf("*📊 Registration Statistics*\n\n"+
		"Total Registrations: %d\nApproved Users: %d\nPending Approval: %d\n"+
		"Pending Payment: %d\nIncomplete: %d\nReminders Sent Today: %d\n\n"+
		"*Languages*\nEnglish: %d\nአማርኛ: %d\nAfaan Oromoo: %d",
		st.Total, st.Approved, st.PendingApproval,
		st.PendingPayment, st.Incomplete, st.RemindedToday,
		st.Languages[registrant.LangEnglish], st.Languages[registrant.LangAmharic], st.Languages[registrant.LangOromo],
	)
}

var exportHeader = []string{
	"UserID", "Name", "Email", "Phone", "Location", "Status",
	"RegisteredBy_ID", "RegisteredBy_Name", "FeelingBefore", "FeelingAfter",
}

func statusLabel(status string) string {
	switch status {
	case registrant.StatusApproved:
		return "Approved"
	case registrant.StatusPendingApproval:
		return "Pending Approval"
	case registrant.StatusPendingPayment:
		return "Pending Payment"
	}
	return "Incomplete"
}

// ExportCSV renders one row per named registrant and one per named
// sub-registration. It returns the number of data rows.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, int, error) {
	recs, err := s.store.FindMany(ctx, store.Query{Named: store.Bool(true)})
	if err != nil {
		return nil, 0, fmt.Errorf("export: %w", err)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, 0, err
	}
	rows := 0
	for _, r := range recs {
		id := strconv.FormatInt(r.ID, 10)
		if err := w.Write([]string{
			id, r.Profile.Name, r.Profile.Email, r.Profile.Phone, r.Profile.Location,
			statusLabel(r.Status()), "self", "self", r.FeelingBefore, r.FeelingAfter,
		}); err != nil {
			return nil, 0, err
		}
		rows++
		for _, o := range r.Others {
			if o.Name == "" {
				continue
			}
			subID := o.Phone
			if subID == "" {
				subID = "N/A"
			}
			if err := w.Write([]string{
				subID, o.Name, o.Email, o.Phone, o.Location,
				statusLabel(o.Status()), id, r.Profile.Name, "", "",
			}); err != nil {
				return nil, 0, err
			}
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), rows, nil
}

// PendingPayments lists every uploaded proof awaiting a decision.
func (s *Service) PendingPayments(ctx context.Context) ([]string, error) {
	recs, err := s.store.FindMany(ctx, store.Query{AwaitingApproval: true})
	if err != nil {
		return nil, fmt.Errorf("pending payments: %w", err)
	}
	var entries []string
	for _, r := range recs {
		if r.Payment != "" && !r.Approved {
			entries = append(entries, fmt.Sprintf("*User:* %s (ID: `%d`)\n  - To approve, send: `/approve %d`",
				format.MD(displayName(r)), r.ID, r.ID))
		}
		for i, o := range r.Others {
			if o.Payment != "" && !o.Approved {
				entries = append(entries, fmt.Sprintf("*For:* %s (Registered by %s)\n  - To approve, send: `/approve_other %d %d`",
					format.MD(o.Name), format.MD(displayName(r)), r.ID, i))
			}
		}
	}
	return entries, nil
}

// stepLabel renders a step for admins.
func stepLabel(step registrant.Step) string {
	s := string(step)
	if step.IsOther() {
		s = strings.TrimSuffix(s, "_other") + " (for other)"
	}
	return s
}

// Incomplete lists registrants stuck in a step without having uploaded
// their own proof.
func (s *Service) Incomplete(ctx context.Context) ([]*registrant.Registrant, error) {
	recs, err := s.store.FindMany(ctx, store.Query{InStep: true})
	if err != nil {
		return nil, fmt.Errorf("incomplete: %w", err)
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Payment == "" && r.Step != registrant.StepBroadcast {
			out = append(out, r)
		}
	}
	return out, nil
}

// Feelings renders the collected feelings.
func (s *Service) Feelings(ctx context.Context) ([]string, error) {
	recs, err := s.store.FindMany(ctx, store.Query{HasFeeling: true})
	if err != nil {
		return nil, fmt.Errorf("feelings: %w", err)
	}
	entries := make([]string, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, fmt.Sprintf("*User:* %s (`%d`)\n*Before:* %s\n*After:* %s\n--------------------\n\n",
			format.MD(displayName(r)), r.ID, format.MD(orDash(r.FeelingBefore)), format.MD(orDash(r.FeelingAfter))))
	}
	return entries, nil
}

// MissingFeelings returns approved registrants who still owe a feeling.
func (s *Service) MissingFeelings(ctx context.Context) ([]*registrant.Registrant, error) {
	recs, err := s.store.FindMany(ctx, store.Query{Approved: store.Bool(true), MissingFeeling: true})
	if err != nil {
		return nil, fmt.Errorf("missing feelings: %w", err)
	}
	return recs, nil
}

// chunk joins entries under header into messages of at most limit runes.
// An entry that cannot fit a message on its own is cut.
func chunk(header string, entries []string, limit int) []string {
	room := limit - utf8.RuneCountInString(header)
	var (
		msgs []string
		cur  []string
		used int
	)
	for _, e := range entries {
		n := utf8.RuneCountInString(e)
		if n > room {
			e = string([]rune(e)[:room])
			n = room
		}
		if used+n > room {
			msgs = append(msgs, header+strings.Join(cur, ""))
			cur, used = nil, 0
		}
		cur = append(cur, e)
		used += n
	}
	if len(cur) > 0 {
		msgs = append(msgs, header+strings.Join(cur, ""))
	}
	return msgs
}

// BroadcastResult counts the deliveries of a broadcast.
type BroadcastResult struct {
	Recipients int
	Sent       int
	Failed     int
}

// Broadcast sends text to every named registrant. Delivery failures are
// counted, never returned.
func (s *Service) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	var res BroadcastResult
	recs, err := s.store.FindMany(ctx, store.Query{Named: store.Bool(true)})
	if err != nil {
		return res, fmt.Errorf("broadcast recipients: %w", err)
	}
	res.Recipients = len(recs)
	for _, r := range recs {
		if err := s.send(ctx, r.ID, text, SendOptions{}); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	logger.Info(ctx, logger.CompReports, "broadcast.done",
		slog.Int("count", res.Recipients),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// DeleteUser erases the record of id after a best-effort notice to them.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	_ = s.send(ctx, id, t(rec, mDataDeleted), SendOptions{RemoveKeyboard: true})
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.timers.Cancel(id)
	logger.Info(ctx, logger.CompReports, "delete", slog.Int64("target_id", id))
	return nil
}
