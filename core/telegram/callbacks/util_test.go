package callbacks

import "testing"

func TestSplit(t *testing.T) {
	cases := []struct {
		in, verb, args string
	}{
		{"approve:123", "approve", "123"},
		{"approve_other:123:1", "approve_other", "123:1"},
		{"\fremind|55", "remind", "55"},
		{"noop", "noop", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		verb, args := Split(tc.in)
		if verb != tc.verb || args != tc.args {
			t.Fatalf("Split(%q) = %q,%q; want %q,%q", tc.in, verb, args, tc.verb, tc.args)
		}
	}
}
