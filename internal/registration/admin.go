package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// AdminCommand describes a command reserved to the admin identity.
type AdminCommand struct {
	Name        string
	Usage       string
	Description string
}

var adminCommandList = []AdminCommand{
	{Name: "approve", Usage: "/approve <user_id>", Description: "Approve a payment"},
	{Name: "decline", Usage: "/decline <user_id>", Description: "Decline a payment"},
	{Name: "approve_other", Usage: "/approve_other <user_id> <index>", Description: "Approve a payment made for someone else"},
	{Name: "decline_other", Usage: "/decline_other <user_id> <index>", Description: "Decline a payment made for someone else"},
	{Name: "deleteuser", Usage: "/deleteuser <user_id>", Description: "Delete all data of a user"},
	{Name: "broadcast", Usage: "/broadcast", Description: "Send a message to every registered user"},
	{Name: "exportusers", Usage: "/exportusers", Description: "Export registrations as CSV"},
	{Name: "pendingpayments", Usage: "/pendingpayments", Description: "List payments awaiting approval"},
	{Name: "stats", Usage: "/stats", Description: "Registration statistics"},
	{Name: "incomplete", Usage: "/incomplete", Description: "List registrations stuck in a step"},
	{Name: "feelings", Usage: "/feelings", Description: "Show the collected feelings"},
	{Name: "remindfeelings", Usage: "/remindfeelings", Description: "Remind approved users to share feelings"},
}

// AdminCommands lists the admin commands in display order.
func AdminCommands() []AdminCommand {
	return append([]AdminCommand(nil), adminCommandList...)
}

func adminHelp() string {
	var b strings.Builder
	b.WriteString("*Admin commands*")
	for _, c := range adminCommandList {
		fmt.Fprintf(&b, "\n%s - %s", format.MD(c.Usage), c.Description)
	}
	return b.String()
}

// decision is one of the approval commands.
type decision struct {
	approve bool
	other   bool
	// invalid is the notice sent when the preconditions do not hold.
	invalid string
}

var decisions = map[string]decision{
	"approve":       {approve: true, invalid: "Invalid user or payment already approved."},
	"decline":       {invalid: "Invalid user or no pending payment to decline."},
	"approve_other": {approve: true, other: true, invalid: "Invalid registration or payment already approved."},
	"decline_other": {other: true, invalid: "Invalid registration or no pending payment to decline."},
}

const broadcastPrompt = "Please send the message you want to broadcast to all users. Send /cancel to abort."

// parseCommand splits "/name@bot arg..." into the bare name and arguments.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:], true
}

func isAdminCommand(name string) bool {
	for _, c := range adminCommandList {
		if c.Name == name {
			return true
		}
	}
	return false
}

// runAdminCommand executes text when it is an admin command. It reports
// whether text was one.
func (s *Service) runAdminCommand(ctx context.Context, admin int64, text string) (bool, error) {
	name, args, ok := parseCommand(text)
	if !ok || !isAdminCommand(name) {
		return false, nil
	}
	logger.Info(ctx, logger.CompRegistration, "admin.command",
		slog.String("action", name),
		slog.Int("count", len(args)),
	)
	if d, ok := decisions[name]; ok {
		_, err := s.runDecision(ctx, admin, name, d, args)
		return true, err
	}
	var err error
	switch name {
	case "deleteuser":
		err = s.cmdDeleteUser(ctx, admin, args)
	case "broadcast":
		err = s.cmdBroadcast(ctx, admin)
	case "exportusers":
		err = s.cmdExport(ctx, admin)
	case "pendingpayments":
		err = s.cmdPendingPayments(ctx, admin)
	case "stats":
		err = s.cmdStats(ctx, admin)
	case "incomplete":
		err = s.cmdIncomplete(ctx, admin)
	case "feelings":
		err = s.cmdFeelings(ctx, admin)
	case "remindfeelings":
		err = s.cmdRemindFeelings(ctx, admin)
	}
	return true, err
}

func usage(name string) string {
	for _, c := range adminCommandList {
		if c.Name == name {
			return "Usage: " + c.Usage
		}
	}
	return "Unknown command."
}

// isPrecondition reports errors that mean the target is not in a state the
// decision applies to.
func isPrecondition(err error) bool {
	return errors.Is(err, ErrNoPendingPayment) ||
		errors.Is(err, ErrStaleSubRegistration) ||
		errors.Is(err, store.ErrNotFound)
}

// runDecision applies an approval command. Failed preconditions are reported
// to the admin and yield done == false with a nil error.
func (s *Service) runDecision(ctx context.Context, admin int64, name string, d decision, args []string) (bool, error) {
	want := 1
	if d.other {
		want = 2
	}
	if len(args) != want {
		_ = s.send(ctx, admin, usage(name), SendOptions{})
		return false, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		_ = s.send(ctx, admin, usage(name), SendOptions{})
		return false, nil
	}
	idx := -1
	if d.other {
		if idx, err = strconv.Atoi(args[1]); err != nil {
			_ = s.send(ctx, admin, usage(name), SendOptions{})
			return false, nil
		}
	}

	switch {
	case d.approve && d.other:
		err = s.ApproveOther(ctx, id, idx)
	case d.other:
		err = s.DeclineOther(ctx, id, idx)
	case d.approve:
		err = s.Approve(ctx, id)
	default:
		err = s.Decline(ctx, id)
	}
	if isPrecondition(err) {
		_ = s.send(ctx, admin, d.invalid, SendOptions{})
		return false, nil
	}
	return err == nil, err
}

func (s *Service) cmdDeleteUser(ctx context.Context, admin int64, args []string) error {
	if len(args) != 1 {
		return s.send(ctx, admin, usage("deleteuser"), SendOptions{})
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return s.send(ctx, admin, usage("deleteuser"), SendOptions{})
	}
	err = s.DeleteUser(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = s.send(ctx, admin, fmt.Sprintf("❌ User with ID `%d` not found.", id), SendOptions{Markdown: true})
		return nil
	case err != nil:
		return err
	}
	_ = s.send(ctx, admin, fmt.Sprintf("✅ Successfully deleted all data for user `%d`.", id), SendOptions{Markdown: true})
	return nil
}

// cmdBroadcast waits for the admin's next message as broadcast payload.
func (s *Service) cmdBroadcast(ctx context.Context, admin int64) error {
	_, err := s.mutate(ctx, admin, true, func(r *registrant.Registrant, out *outbox) error {
		r.LeaveStep(registrant.StepBroadcast)
		out.text(admin, broadcastPrompt, SendOptions{RemoveKeyboard: true})
		return nil
	})
	return err
}

func (s *Service) broadcastInput(ctx context.Context, admin int64, text string) error {
	_, err := s.mutate(ctx, admin, false, func(r *registrant.Registrant, out *outbox) error {
		r.LeaveStep(registrant.StepNone)
		return nil
	})
	if err != nil {
		return err
	}
	if text == "/cancel" || text == BtnCancel {
		_ = s.send(ctx, admin, "Broadcast cancelled.", mainMenu(nil))
		return nil
	}
	n, err := s.store.Count(ctx, store.Query{Named: store.Bool(true)})
	if err != nil {
		return err
	}
	if n == 0 {
		_ = s.send(ctx, admin, "No registered users found to broadcast to.", mainMenu(nil))
		return nil
	}
	_ = s.send(ctx, admin, fmt.Sprintf("🚀 Starting broadcast to %d users...", n), SendOptions{})
	res, err := s.Broadcast(ctx, text)
	if err != nil {
		return err
	}
	_ = s.send(ctx, admin, fmt.Sprintf("Broadcast finished.\n\n✅ Successfully sent to: %d users.\n❌ Failed to send to: %d users.", res.Sent, res.Failed), mainMenu(nil))
	return nil
}

func (s *Service) cmdExport(ctx context.Context, admin int64) error {
	_ = s.send(ctx, admin, "🔄 Generating user export... Please wait.", SendOptions{})
	data, rows, err := s.ExportCSV(ctx)
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.send(ctx, admin, "No registered users found to export.", SendOptions{})
	}
	return s.deliver(ctx, outMsg{kind: outDocument, to: admin, doc: Document{
		Name:    "user_export_" + s.now().Format("2006-01-02") + ".csv",
		MIME:    "text/csv",
		Data:    data,
		Caption: fmt.Sprintf("%d registrations", rows),
	}})
}

func (s *Service) cmdPendingPayments(ctx context.Context, admin int64) error {
	_ = s.send(ctx, admin, "🔍 Searching for pending payments...", SendOptions{})
	entries, err := s.PendingPayments(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.send(ctx, admin, "✅ No pending payments found.", SendOptions{})
	}
	for i := range entries {
		entries[i] += "\n\n"
	}
	for _, msg := range chunk("*⏳ Pending Payment Approvals*\n\n", entries, telegramTextLimit) {
		_ = s.send(ctx, admin, msg, SendOptions{Markdown: true})
	}
	return nil
}

func (s *Service) cmdStats(ctx context.Context, admin int64) error {
	_ = s.send(ctx, admin, "📊 Calculating statistics... Please wait.", SendOptions{})
	st, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	return s.send(ctx, admin, st.render(), SendOptions{Markdown: true})
}

// incompletePage bounds the buttons attached to one message.
const incompletePage = 50

func (s *Service) cmdIncomplete(ctx context.Context, admin int64) error {
	_ = s.send(ctx, admin, "🔍 Searching for incomplete registrations (payment not uploaded)...", SendOptions{})
	recs, err := s.Incomplete(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return s.send(ctx, admin, "✅ No incomplete registrations found.", SendOptions{})
	}
	for start := 0; start < len(recs); start += incompletePage {
		end := min(start+incompletePage, len(recs))
		rows := make([][]Button, 0, end-start)
		for _, r := range recs[start:end] {
			rows = append(rows, []Button{{
				Text: fmt.Sprintf("👤 %s | Stuck on: %s", displayName(r), stepLabel(r.Step)),
				Data: fmt.Sprintf("%s:%d:-1", ActRemindUser, r.ID),
			}})
		}
		_ = s.send(ctx, admin, "*📝 Incomplete Registrations*\n\nClick a user to send them a reminder for their current step.",
			SendOptions{Markdown: true, Inline: rows})
	}
	return nil
}

func (s *Service) cmdFeelings(ctx context.Context, admin int64) error {
	entries, err := s.Feelings(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.send(ctx, admin, "No user feelings have been submitted yet.", SendOptions{})
	}
	for _, msg := range chunk("*📝 Summary of User Feelings*\n\n", entries, telegramTextLimit) {
		_ = s.send(ctx, admin, msg, SendOptions{Markdown: true})
	}
	return nil
}

func (s *Service) cmdRemindFeelings(ctx context.Context, admin int64) error {
	recs, err := s.MissingFeelings(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return s.send(ctx, admin, "✅ All approved users have submitted their feelings.", SendOptions{})
	}
	for _, r := range recs {
		_ = s.send(ctx, admin, fmt.Sprintf("*User:* %s (`%d`)", format.MD(displayName(r)), r.ID), remindFeelingButtons(r.ID))
	}
	return nil
}
