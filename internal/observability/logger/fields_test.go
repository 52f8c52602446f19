package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "***"},
		{"ab", "***"},
		{"alice@example.com", "al***@example.com"},
		{"a@x.io", "a@***"},
		{"noatsign", "no***"},
	}
	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
