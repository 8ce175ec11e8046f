package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oss377/maneBot/core/logger"
)

type outKind int

const (
	outText outKind = iota
	outImage
	outDocument
)

type outMsg struct {
	kind  outKind
	to    int64
	text  string
	image string
	doc   Document
	opts  SendOptions
}

type delayed struct {
	after time.Duration
	run   func(ctx context.Context)
}

// outbox collects the side effects of a record mutation. Nothing in it runs
// unless the mutation commits.
type outbox struct {
	msgs  []outMsg
	later []delayed
	after []func(ctx context.Context)
}

func (o *outbox) text(to int64, text string, opts SendOptions) {
	o.msgs = append(o.msgs, outMsg{kind: outText, to: to, text: text, opts: opts})
}

func (o *outbox) image(to int64, ref, caption string, opts SendOptions) {
	o.msgs = append(o.msgs, outMsg{kind: outImage, to: to, image: ref, text: caption, opts: opts})
}

func (o *outbox) document(to int64, doc Document) {
	o.msgs = append(o.msgs, outMsg{kind: outDocument, to: to, doc: doc})
}

// delay schedules run on the timer registry once the outbox is flushed.
func (o *outbox) delay(d time.Duration, run func(ctx context.Context)) {
	o.later = append(o.later, delayed{after: d, run: run})
}

// then runs fn right after the messages are flushed.
func (o *outbox) then(fn func(ctx context.Context)) {
	o.after = append(o.after, fn)
}

// flush delivers queued messages in order. Failures are logged and counted;
// they never abort the remaining deliveries.
func (s *Service) flush(ctx context.Context, o *outbox) (sent, failed int) {
	if o == nil {
		return 0, 0
	}
	for _, m := range o.msgs {
		if err := s.deliver(ctx, m); err != nil {
			failed++
			continue
		}
		sent++
	}
	for _, fn := range o.after {
		fn(ctx)
	}
	for _, d := range o.later {
		run := d.run
		s.timers.After(d.after, func() {
			run(logger.Background())
		})
	}
	return sent, failed
}

func (s *Service) deliver(ctx context.Context, m outMsg) error {
	var err error
	switch m.kind {
	case outText:
		err = s.transport.SendText(ctx, m.to, m.text, m.opts)
	case outImage:
		err = s.transport.SendImage(ctx, m.to, m.image, m.text, m.opts)
	case outDocument:
		err = s.transport.SendDocument(ctx, m.to, m.doc, m.opts)
	}
	if err != nil {
		logger.Warn(ctx, logger.CompRegistration, "deliver",
			slog.Int64("target_id", m.to),
			slog.String("error_kind", errorKind(err)),
			logger.Err(err),
		)
	}
	return err
}

// send delivers a single text immediately.
func (s *Service) send(ctx context.Context, to int64, text string, opts SendOptions) error {
	return s.deliver(ctx, outMsg{kind: outText, to: to, text: text, opts: opts})
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreachable):
		return "blocked"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	return "transport"
}
