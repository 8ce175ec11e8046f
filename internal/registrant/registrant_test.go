package registrant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidators(t *testing.T) {
	assert.True(t, ValidName("Abebe Kebede"))
	assert.True(t, ValidName("  Chaltu  Tolosa Gemechu "))
	assert.True(t, ValidName("አበበ ከበደ"))
	assert.False(t, ValidName("John"))
	assert.False(t, ValidName("John 3"))
	assert.False(t, ValidName(""))

	assert.True(t, ValidEmail("bob@gmail.com"))
	assert.False(t, ValidEmail("bob"))
	assert.False(t, ValidEmail("bob@gmail"))
	assert.False(t, ValidEmail("b ob@gmail.com"))

	assert.True(t, ValidPhone("0911223344"))
	assert.False(t, ValidPhone("911223344"))
	assert.False(t, ValidPhone("09112233445"))
	assert.False(t, ValidPhone("0811223344"))
}

func TestParseStep(t *testing.T) {
	for _, s := range Steps() {
		got, err := ParseStep(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStep("dance")
	assert.Error(t, err)
}

func TestStepPredicates(t *testing.T) {
	assert.True(t, StepPaymentOther.IsOther())
	assert.False(t, StepPayment.IsOther())
	assert.True(t, StepPayment.IsRegistration())
	assert.False(t, StepEditName.IsRegistration())
	assert.True(t, StepFeelingAfter.Nudges())
	assert.False(t, StepBroadcast.Nudges())
	assert.False(t, StepNone.Nudges())
}

func TestParseLangToken(t *testing.T) {
	l, ok := ParseLangToken("አማርኛ")
	require.True(t, ok)
	assert.Equal(t, LangAmharic, l)
	_, ok = ParseLangToken("Deutsch")
	assert.False(t, ok)
	assert.Equal(t, LangEnglish, Lang("").OrDefault())
}

func TestStatus(t *testing.T) {
	r := &Registrant{}
	assert.Equal(t, StatusIncomplete, r.Status())
	r.Profile.Phone = "0911223344"
	assert.Equal(t, StatusPendingPayment, r.Status())
	r.Payment = "file"
	assert.Equal(t, StatusPendingApproval, r.Status())
	r.Approved = true
	assert.Equal(t, StatusApproved, r.Status())
}

func TestActiveOtherIndex(t *testing.T) {
	r := &Registrant{}
	assert.Equal(t, -1, r.ActiveOtherIndex())

	r.Others = make([]SubRegistration, 3)
	assert.Equal(t, 2, r.ActiveOtherIndex())

	r.ActiveOther = intPtr(1)
	assert.Equal(t, 1, r.ActiveOtherIndex())

	r.ActiveOther = intPtr(7)
	assert.Equal(t, 2, r.ActiveOtherIndex(), "out of range pointer falls back to tail")
}

func TestLeaveStepDropsIncompleteTail(t *testing.T) {
	r := &Registrant{
		Step:   StepEmailOther,
		Others: []SubRegistration{{Profile: Profile{Name: "A B", Phone: "0911111111"}}, {Profile: Profile{Name: "C D"}}},
	}
	r.LeaveStep(StepNone)
	assert.Equal(t, StepNone, r.Step)
	require.Len(t, r.Others, 1)
	assert.Equal(t, "A B", r.Others[0].Name)

	r.Step = StepPaymentOther
	r.ActiveOther = intPtr(0)
	r.LeaveStep(StepNone)
	assert.Len(t, r.Others, 1, "complete entries survive")
	assert.Nil(t, r.ActiveOther)
}

func TestRemoveOtherShiftsPointer(t *testing.T) {
	r := &Registrant{Others: make([]SubRegistration, 3), ActiveOther: intPtr(2)}
	r.RemoveOther(0)
	require.NotNil(t, r.ActiveOther)
	assert.Equal(t, 1, *r.ActiveOther)

	r.RemoveOther(1)
	assert.Nil(t, r.ActiveOther)
	assert.Len(t, r.Others, 1)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	r := &Registrant{
		PendingSince: &now,
		ActiveOther:  intPtr(0),
		Others:       []SubRegistration{{PendingSince: &now, ClaimToken: "t"}},
	}
	c := r.Clone()
	c.Others[0].ClaimToken = "x"
	*c.ActiveOther = 5
	*c.PendingSince = now.Add(time.Hour)

	assert.Equal(t, "t", r.Others[0].ClaimToken)
	assert.Equal(t, 0, *r.ActiveOther)
	assert.True(t, r.PendingSince.Equal(now))
	assert.Equal(t, 0, r.TokenIndex("t"))
	assert.Equal(t, -1, r.TokenIndex(""))
}

func TestValidate(t *testing.T) {
	now := time.Now()
	assert.NoError(t, (&Registrant{}).Validate())
	assert.ErrorIs(t, (&Registrant{Approved: true}).Validate(), ErrApprovedWithoutProof)
	assert.ErrorIs(t, (&Registrant{Step: StepNameOther}).Validate(), ErrOtherStepWithoutSub)
	assert.ErrorIs(t, (&Registrant{Payment: "p", PendingSince: &now}).Validate(), ErrStalePending)
	assert.ErrorIs(t, (&Registrant{Others: []SubRegistration{{Approved: true}}}).Validate(), ErrApprovedWithoutProof)
	assert.ErrorIs(t, (&Registrant{
		Step: StepPaymentOther, Others: make([]SubRegistration, 1), ActiveOther: intPtr(3),
	}).Validate(), ErrOtherStepWithoutSub)
}
