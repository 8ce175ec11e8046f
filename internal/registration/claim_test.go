package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

func TestClaimMovesSubRegistration(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.image(1, "photo-1")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")
	h.image(1, "photo-2")
	h.tr.reset()

	h.start(2, token)

	c := h.rec(2)
	assert.Equal(t, registrant.Profile{
		Name:     "Jane Doe",
		Email:    "friend@example.com",
		Phone:    "0922334455",
		Location: "Adama",
	}, c.Profile)
	assert.Equal(t, "photo-2", c.Payment)
	assert.False(t, c.Approved)
	assert.Nil(t, c.PendingSince)
	assert.Equal(t, int64(1), c.InvitedBy)
	assert.Equal(t, registrant.LangEnglish, c.Lang)
	assert.Equal(t, registrant.StepNone, c.Step)

	o := h.rec(1)
	assert.Empty(t, o.Others)
	assert.Nil(t, o.ActiveOther)

	welcome := h.tr.to(2)
	require.Len(t, welcome, 2)
	assert.Equal(t, catalog(registrant.LangEnglish, mClaimWelcome, "Jane Doe", "John Smith"), welcome[0].text)
	assert.Contains(t, h.tr.last(t, 1).text, "Jane Doe")

	_, _, err := h.store.FindByClaimToken(h.ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimWhileOwnerUploads(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")
	require.Equal(t, registrant.StepPaymentOther, h.rec(1).Step)

	h.start(2, token)

	o := h.rec(1)
	assert.Equal(t, registrant.StepNone, o.Step)
	assert.Nil(t, o.ActiveOther)
	assert.Empty(t, o.Others)
	require.NoError(t, o.Validate())
}

func TestClaimKeepsOtherEntriesAddressed(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	h.image(1, "photo-1")
	first := h.toPaymentOther(1, "Jane Doe", "0922334455")
	h.image(1, "photo-2")
	h.toPaymentOther(1, "Abebe Kebede", "0944556677")

	h.start(2, first)

	o := h.rec(1)
	require.Len(t, o.Others, 1)
	assert.Equal(t, "Abebe Kebede", o.Others[0].Name)
	assert.Equal(t, registrant.StepPaymentOther, o.Step)
	require.NotNil(t, o.ActiveOther)
	assert.Equal(t, 0, *o.ActiveOther)

	h.image(1, "photo-3")
	assert.Equal(t, "photo-3", h.rec(1).Others[0].Payment)
}

func TestClaimRejections(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")

	h.start(1, token)
	assert.Equal(t, catalog(registrant.LangEnglish, mClaimSelf), h.tr.last(t, 1).text)
	assert.Len(t, h.rec(1).Others, 1)

	h.start(2, "bogus")
	assert.Equal(t, catalog(registrant.LangEnglish, mClaimInvalid), h.tr.last(t, 2).text)

	h.start(2, token)
	h.start(3, token)
	assert.Equal(t, catalog(registrant.LangEnglish, mClaimInvalid), h.tr.last(t, 3).text)
	_, err := h.store.Find(h.ctx, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimPhoneHeldElsewhere(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")
	h.toPayment(5, "Jane Doe", "0922334455")

	h.start(2, token)

	assert.Equal(t, catalog(registrant.LangEnglish, mClaimConflict), h.tr.last(t, 2).text)
	assert.Len(t, h.rec(1).Others, 1)
	_, err := h.store.Find(h.ctx, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimTakesInviterLanguage(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")
	_, err := h.store.Update(h.ctx, 1, false, func(r *registrant.Registrant) error {
		r.Lang = registrant.LangOromo
		return nil
	})
	require.NoError(t, err)

	h.start(2, "")
	h.text(2, "English")
	require.Equal(t, registrant.LangEnglish, h.rec(2).Lang)

	h.start(2, token)

	c := h.rec(2)
	assert.Equal(t, registrant.LangOromo, c.Lang)
	assert.Equal(t, registrant.StepNone, c.Step)
	assert.Equal(t, "Jane Doe", c.Profile.Name)
}

func TestClaimInheritsMissingLanguage(t *testing.T) {
	h := newHarness(t)
	h.toPayment(1, "John Smith", "0911223344")
	token := h.toPaymentOther(1, "Jane Doe", "0922334455")
	_, err := h.store.Update(h.ctx, 1, false, func(r *registrant.Registrant) error {
		r.Lang = ""
		return nil
	})
	require.NoError(t, err)

	h.start(2, token)

	c := h.rec(2)
	assert.Equal(t, registrant.StepSelectLang, c.Step)
	assert.Equal(t, "Jane Doe", c.Profile.Name)
	assert.Equal(t, langPrompt, h.tr.last(t, 2).text)
}
