package envutil

import (
	"testing"
	"time"
)

func TestBool(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"on", false, true},
		{"0", true, false},
		{"false", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_TEST_BOOL", tc.val)
		if got := Bool("ENVUTIL_TEST_BOOL", tc.def); got != tc.want {
			t.Fatalf("Bool(%q, %v) = %v, want %v", tc.val, tc.def, got, tc.want)
		}
	}
}

func TestDurReadsSeconds(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DUR", "90")
	if got := Dur("ENVUTIL_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("Dur = %v, want 90s", got)
	}
	t.Setenv("ENVUTIL_TEST_DUR", "not-a-number")
	if got := Dur("ENVUTIL_TEST_DUR", 5*time.Second); got != 5*time.Second {
		t.Fatalf("Dur fallback = %v, want 5s", got)
	}
}

func TestStrTrims(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_STR", "  value  ")
	if got := Str("ENVUTIL_TEST_STR", "def"); got != "value" {
		t.Fatalf("Str = %q, want %q", got, "value")
	}
	t.Setenv("ENVUTIL_TEST_STR", "   ")
	if got := Str("ENVUTIL_TEST_STR", "def"); got != "def" {
		t.Fatalf("Str fallback = %q, want %q", got, "def")
	}
}
