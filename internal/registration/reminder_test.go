package registration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss377/maneBot/internal/registrant"
)

func TestSweepRemindsStaleProof(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.now = h.now.Add(25 * time.Hour)
	h.tr.reset()

	rep, err := h.svc.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Reminded: 1, Sent: 1}, rep)

	r := h.rec(1)
	require.NotNil(t, r.PendingSince)
	assert.True(t, r.PendingSince.Equal(h.now))
	require.NotNil(t, r.LastReminderAt)
	assert.True(t, r.LastReminderAt.Equal(h.now))
	assert.Equal(t, reminderHeader+catalog(registrant.LangEnglish, mFinishPaymentPrompt), h.tr.last(t, 1).text)

	h.tr.reset()
	rep, err = h.svc.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Reminded)
	assert.Empty(t, h.tr.to(1))
}

func TestSweepIgnoresFreshAndUploaded(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.toPayment(2, "Jane Doe", "0922334455")
	h.image(2, "photo")
	h.now = h.now.Add(23 * time.Hour)

	rep, err := h.svc.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)
	assert.Nil(t, h.rec(1).LastReminderAt)
}

func TestSweepRemindsSubRegistrationsIndependently(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.image(1, "photo-1")
	h.toPaymentOther(1, "Jane Doe", "0922334455")
	h.text(1, BtnCancel)
	h.now = h.now.Add(48 * time.Hour)
	h.tr.reset()

	rep, err := h.svc.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)

	r := h.rec(1)
	assert.Nil(t, r.LastReminderAt)
	require.NotNil(t, r.Others[0].LastReminderAt)
	assert.True(t, r.Others[0].PendingSince.Equal(h.now))
	assert.Contains(t, h.tr.last(t, 1).text, "Jane Doe")
}

func TestSweepCountsFailedDeliveries(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.toPayment(2, "Jane Doe", "0922334455")
	h.tr.fail[1] = ErrUnreachable
	h.now = h.now.Add(25 * time.Hour)

	rep, err := h.svc.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 2, Reminded: 2, Sent: 1, Failed: 1}, rep)
	assert.True(t, h.rec(1).PendingSince.Equal(h.now))
}

func TestRunRemindersStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan struct{})
	go func() {
		h.svc.RunReminders(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reminder loop did not stop")
	}
}
