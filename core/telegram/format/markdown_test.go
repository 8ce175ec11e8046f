package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	got, err := EscapeMarkdown("a_b*c`d[e]", MarkdownV1)
	if err != nil {
		t.Fatalf("v1: %v", err)
	}
	if got != `a\_b\*c\`+"`"+`d\[e]` {
		t.Fatalf("v1 = %q", got)
	}

	got, err = EscapeMarkdown("1.5 (x)!", MarkdownV2)
	if err != nil {
		t.Fatalf("v2: %v", err)
	}
	if got != `1\.5 \(x\)\!` {
		t.Fatalf("v2 = %q", got)
	}

	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestMD(t *testing.T) {
	if got := MD("Abebe_Kebede"); got != `Abebe\_Kebede` {
		t.Fatalf("MD = %q", got)
	}
}
