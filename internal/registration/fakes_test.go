package registration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oss377/maneBot/internal/config"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

const adminID int64 = 999

type sentMsg struct {
	kind  string
	to    int64
	text  string
	image string
	doc   Document
	opts  SendOptions
}

type fakeTransport struct {
	mu      sync.Mutex
	msgs    []sentMsg
	answers []string
	edits   []string
	fail    map[int64]error
}

func (f *fakeTransport) record(m sentMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return f.fail[m.to]
}

func (f *fakeTransport) SendText(_ context.Context, to int64, text string, opts SendOptions) error {
	return f.record(sentMsg{kind: "text", to: to, text: text, opts: opts})
}

func (f *fakeTransport) SendImage(_ context.Context, to int64, ref, caption string, opts SendOptions) error {
	return f.record(sentMsg{kind: "image", to: to, image: ref, text: caption, opts: opts})
}

func (f *fakeTransport) SendDocument(_ context.Context, to int64, doc Document, opts SendOptions) error {
	return f.record(sentMsg{kind: "document", to: to, doc: doc, opts: opts})
}

func (f *fakeTransport) AnswerInteraction(_ context.Context, _ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) EditCaption(_ context.Context, _ MessageRef, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, caption)
	return nil
}

func (f *fakeTransport) to(id int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.msgs {
		if m.to == id {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) last(t *testing.T, id int64) sentMsg {
	t.Helper()
	msgs := f.to(id)
	require.NotEmpty(t, msgs, "no message sent to %d", id)
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs, f.answers, f.edits = nil, nil, nil
}

type delayedCall struct {
	d  time.Duration
	fn func()
}

type fakeScheduler struct {
	mu     sync.Mutex
	armed  map[int64]func()
	delay  map[int64]time.Duration
	delays []delayedCall
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[int64]func()), delay: make(map[int64]time.Duration)}
}

func (f *fakeScheduler) Arm(id int64, d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[id] = fn
	f.delay[id] = d
}

func (f *fakeScheduler) Cancel(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[id]
	delete(f.armed, id)
	delete(f.delay, id)
	return ok
}

func (f *fakeScheduler) After(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, delayedCall{d: d, fn: fn})
}

// fire runs the idle timer of id as if it expired.
func (f *fakeScheduler) fire(id int64) bool {
	f.mu.Lock()
	fn, ok := f.armed[id]
	delete(f.armed, id)
	f.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

// runDelays runs and clears every pending one-shot delay.
func (f *fakeScheduler) runDelays() []time.Duration {
	f.mu.Lock()
	calls := f.delays
	f.delays = nil
	f.mu.Unlock()
	var ds []time.Duration
	for _, c := range calls {
		ds = append(ds, c.d)
		c.fn()
	}
	return ds
}

func (f *fakeScheduler) isArmed(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[id]
	return ok
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	svc   *Service
	store *store.Memory
	tr    *fakeTransport
	sch   *fakeScheduler
	now   time.Time
	seq   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemory(),
		tr:    &fakeTransport{fail: make(map[int64]error)},
		sch:   newFakeScheduler(),
		now:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc, err := New(Options{
		Store:     h.store,
		Transport: h.tr,
		Timers:    h.sch,
		AdminID:   adminID,
		Retreat: config.RetreatConfig{
			GroupLink:           "https://t.me/+retreat",
			PaymentInstructions: "Bank 1000123",
		},
		InviteBase: "https://t.me/manebot",
		Now:        func() time.Time { return h.now },
		NewToken: func() string {
			h.seq++
			return fmt.Sprintf("tok%d", h.seq)
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) handle(ev Event) {
	h.t.Helper()
	require.NoError(h.t, h.svc.Handle(h.ctx, ev))
}

func (h *harness) start(id int64, payload string) {
	h.t.Helper()
	h.handle(Event{Kind: EventStart, From: id, Text: payload})
}

func (h *harness) text(id int64, text string) {
	h.t.Helper()
	h.handle(Event{Kind: EventText, From: id, Text: text})
}

func (h *harness) image(id int64, ref string) {
	h.t.Helper()
	h.handle(Event{Kind: EventImage, From: id, ImageRef: ref})
}

func (h *harness) action(id int64, data string) {
	h.t.Helper()
	h.handle(Event{Kind: EventAction, From: id, Text: data, InteractionID: "cb"})
}

func (h *harness) rec(id int64) *registrant.Registrant {
	h.t.Helper()
	r, err := h.store.Find(h.ctx, id)
	require.NoError(h.t, err)
	return r
}

// toPayment drives id from the first contact up to the payment step.
func (h *harness) toPayment(id int64, name, phone string) {
	h.t.Helper()
	h.start(id, "")
	h.text(id, "English")
	h.text(id, BtnRegister)
	h.text(id, name)
	h.text(id, strings.ToLower(strings.ReplaceAll(name, " ", "."))+"@example.com")
	h.text(id, "Addis Ababa")
	h.text(id, phone)
	require.Equal(h.t, registrant.StepPayment, h.rec(id).Step)
}

// toPaymentOther drives a registered id through a full sub-registration up
// to its payment step and returns the minted claim token.
func (h *harness) toPaymentOther(id int64, name, phone string) string {
	h.t.Helper()
	h.text(id, BtnRegisterAnother)
	h.text(id, name)
	h.text(id, "friend@example.com")
	h.text(id, "Adama")
	h.text(id, phone)
	r := h.rec(id)
	require.Equal(h.t, registrant.StepPaymentOther, r.Step)
	sub, _, ok := r.ActiveOtherEntry()
	require.True(h.t, ok)
	return sub.ClaimToken
}
