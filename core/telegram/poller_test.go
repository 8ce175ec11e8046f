package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerWebhook(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8000, URL: "https://mane.example/hook", SecretToken: "s3cret"},
	})
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("expected *tele.Webhook, got %T", p)
	}
	if wh.Listen != "0.0.0.0:8000" {
		t.Fatalf("listen = %s", wh.Listen)
	}
	if wh.SecretToken != "s3cret" || wh.Endpoint.PublicURL != "https://mane.example/hook" {
		t.Fatalf("unexpected webhook %+v", wh)
	}
}

func TestBuildPollerLongpollDefaultTimeout(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll"})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("expected *tele.LongPoller, got %T", p)
	}
	if lp.Timeout != 10*time.Second {
		t.Fatalf("timeout = %s", lp.Timeout)
	}
}
