package telegram

import (
	"testing"

	"github.com/oss377/maneBot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "Help", Aliases: []string{"h"}})
	reg.RegisterCommand("broken", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "dup"})

	if got := len(reg.Commands()); got != 3 {
		t.Fatalf("commands = %d, want 3", got)
	}

	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "help" || visible[1].Text != "start" {
		t.Fatalf("unexpected visible commands: %+v", visible)
	}
	if reg.Commands()["/start"].Description != "Start" {
		t.Fatal("duplicate registration must not overwrite")
	}

	key, _, ok := reg.LookupCommand("h")
	if !ok || key != "/help" {
		t.Fatalf("alias lookup = %q %v", key, ok)
	}
	if _, _, ok := reg.LookupCommand("/missing"); ok {
		t.Fatal("unexpected lookup hit")
	}
}
