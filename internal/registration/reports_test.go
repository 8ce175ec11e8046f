package registration

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// seed registers an approved registrant 1 with a pending sub-registration,
// a registrant 2 waiting for approval and a registrant 3 stuck at email.
func seed(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.image(1, "photo-1")
	h.text(adminID, "/approve 1")
	h.toPaymentOther(1, "Jane Doe", "0922334455")
	h.image(1, "photo-2")

	h.toPayment(2, "Abebe Kebede", "0933445566")
	h.image(2, "photo-3")

	h.start(3, "")
	h.text(3, "English")
	h.text(3, BtnRegister)
	h.text(3, "Sara Tesfaye")
	h.sch.runDelays()
	h.tr.reset()
	return h
}

func TestExportCSV(t *testing.T) {
	h := seed(t)

	data, rows, err := h.svc.ExportCSV(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rows)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, exportHeader, records[0])

	byName := make(map[string][]string)
	for _, rec := range records[1:] {
		byName[rec[1]] = rec
	}
	assert.Equal(t, []string{"1", "John Smith", "john.smith@example.com", "0911223344", "Addis Ababa", "Approved", "self", "self", "", ""}, byName["John Smith"])
	assert.Equal(t, []string{"0922334455", "Jane Doe", "friend@example.com", "0922334455", "Adama", "Pending Approval", "1", "John Smith", "", ""}, byName["Jane Doe"])
	assert.Equal(t, "Pending Approval", byName["Abebe Kebede"][5])
	assert.Equal(t, "Incomplete", byName["Sara Tesfaye"][5])
}

func TestExportCommandSendsDocument(t *testing.T) {
	h := seed(t)
	h.text(adminID, "/exportusers")

	doc := h.tr.last(t, adminID)
	require.Equal(t, "document", doc.kind)
	assert.Equal(t, "user_export_2026-03-01.csv", doc.doc.Name)
	assert.Equal(t, "text/csv", doc.doc.MIME)
	assert.True(t, bytes.HasPrefix(doc.doc.Data, []byte("UserID,Name")))
}

func TestStats(t *testing.T) {
	h := seed(t)

	st, err := h.svc.Stats(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Approved)
	assert.Equal(t, 2, st.PendingApproval)
	assert.Equal(t, 0, st.PendingPayment)
	assert.Equal(t, 1, st.Incomplete)
	assert.Equal(t, 3, st.Languages[registrant.LangEnglish])

	h.text(adminID, "/stats")
	assert.Contains(t, h.tr.last(t, adminID).text, "Total Registrations: 4")
}

func TestPendingPaymentsCommand(t *testing.T) {
	h := seed(t)

	entries, err := h.svc.PendingPayments(h.ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	h.text(adminID, "/pendingpayments")
	listing := h.tr.last(t, adminID).text
	assert.Contains(t, listing, "/approve 2")
	assert.Contains(t, listing, "/approve_other 1 0")
}

func TestIncompleteCommandOffersReminders(t *testing.T) {
	h := seed(t)

	h.text(adminID, "/incomplete")
	msg := h.tr.last(t, adminID)
	require.Len(t, msg.opts.Inline, 1)
	button := msg.opts.Inline[0][0]
	assert.Contains(t, button.Text, "Sara Tesfaye")
	assert.Contains(t, button.Text, "email")
	assert.Equal(t, "remind_user:3:-1", button.Data)

	h.action(adminID, button.Data)
	assert.Equal(t, "✅ Smart reminder sent!", h.tr.answers[len(h.tr.answers)-1])
	assert.True(t, strings.HasPrefix(h.tr.last(t, 3).text, reminderHeader))
}

func TestRemindUserOutsideStep(t *testing.T) {
	h := seed(t)
	h.action(adminID, "remind_user:2:-1")
	assert.Equal(t, "⚠️ User is not in an active step.", h.tr.answers[len(h.tr.answers)-1])

	h.action(adminID, "remind_user:404:-1")
	assert.Equal(t, "User not found!", h.tr.answers[len(h.tr.answers)-1])

	// Not available to registrants.
	h.tr.reset()
	h.action(2, "remind_user:3:-1")
	assert.Empty(t, h.tr.to(3))
}

func TestFeelingReports(t *testing.T) {
	h := seed(t)
	h.text(adminID, "/feelings")
	assert.Equal(t, "No user feelings have been submitted yet.", h.tr.last(t, adminID).text)

	h.text(adminID, "/remindfeelings")
	prompt := h.tr.last(t, adminID)
	assert.Contains(t, prompt.text, "John Smith")
	assert.Equal(t, "remind_feeling:after:1", prompt.opts.Inline[0][1].Data)

	h.action(adminID, "remind_feeling:after:1")
	assert.Equal(t, registrant.StepFeelingAfter, h.rec(1).Step)
	assert.Equal(t, catalog(registrant.LangEnglish, mRemindFeelingAfter), h.tr.last(t, 1).text)

	h.text(1, "Renewed")
	assert.Equal(t, "Renewed", h.rec(1).FeelingAfter)

	h.text(adminID, "/feelings")
	report := h.tr.last(t, adminID).text
	assert.Contains(t, report, "John Smith")
	assert.Contains(t, report, "Renewed")
}

func TestChunkRespectsLimit(t *testing.T) {
	entries := []string{strings.Repeat("a", 40), strings.Repeat("ü", 40), strings.Repeat("b", 40), strings.Repeat("c", 500)}

	msgs := chunk("H:", entries, 100)

	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, strings.HasPrefix(m, "H:"))
		assert.LessOrEqual(t, utf8.RuneCountInString(m), 100)
	}
	assert.Equal(t, "H:"+entries[0]+entries[1], msgs[0])
	assert.Empty(t, chunk("H:", nil, 100))
}

func TestBroadcastFlow(t *testing.T) {
	h := seed(t)
	h.tr.fail[2] = ErrUnreachable

	h.text(adminID, "/broadcast")
	admin := h.rec(adminID)
	assert.Equal(t, registrant.StepBroadcast, admin.Step)
	assert.False(t, h.sch.isArmed(adminID))

	h.text(adminID, "Retreat starts at 9")

	assert.Equal(t, registrant.StepNone, h.rec(adminID).Step)
	assert.Equal(t, "Retreat starts at 9", h.tr.last(t, 1).text)
	assert.Equal(t, "Retreat starts at 9", h.tr.last(t, 3).text)
	summary := h.tr.last(t, adminID).text
	assert.Contains(t, summary, "Successfully sent to: 2 users")
	assert.Contains(t, summary, "Failed to send to: 1 users")
}

func TestBroadcastCancel(t *testing.T) {
	h := seed(t)
	h.text(adminID, "/broadcast")
	h.text(adminID, "/cancel")

	assert.Equal(t, registrant.StepNone, h.rec(adminID).Step)
	assert.Equal(t, "Broadcast cancelled.", h.tr.last(t, adminID).text)
	assert.Empty(t, h.tr.to(1))
}

func TestDeleteUser(t *testing.T) {
	h := seed(t)

	h.text(adminID, "/deleteuser 3")

	_, err := h.store.Find(h.ctx, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, catalog(registrant.LangEnglish, mDataDeleted), h.tr.last(t, 3).text)
	assert.Contains(t, h.tr.last(t, adminID).text, "Successfully deleted")

	h.text(adminID, "/deleteuser 3")
	assert.Contains(t, h.tr.last(t, adminID).text, "not found")
}

func TestAdminCommandsIgnoredForRegistrants(t *testing.T) {
	h := seed(t)
	h.text(2, "/stats")
	assert.Empty(t, h.tr.to(adminID))
	assert.Equal(t, catalog(registrant.LangEnglish, mWelcome), h.tr.last(t, 2).text)
}

func TestParseCommand(t *testing.T) {
	name, args, ok := parseCommand("/Approve@mane_bot 12")
	require.True(t, ok)
	assert.Equal(t, "approve", name)
	assert.Equal(t, []string{"12"}, args)

	_, _, ok = parseCommand("approve 12")
	assert.False(t, ok)
}
