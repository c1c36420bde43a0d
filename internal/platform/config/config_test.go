package config

import (
	"testing"
	"time"

	kit "ejournal/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	gs := New().Prefix("GRADESYNC_")
	if got := gs.key("RPS"); got != "GRADESYNC_RPS" {
		t.Fatalf("key() = %q, want %q", got, "GRADESYNC_RPS")
	}
	if got := gs.Prefix("LTI_").key("KEY"); got != "GRADESYNC_LTI_KEY" {
		t.Fatalf("nested key() = %q", got)
	}
}

func TestMustString(t *testing.T) {
	c := New().Prefix("APP_")
	t.Setenv("APP_NAME", "  ejournal ")
	if got := c.MustString("NAME"); got != "ejournal" {
		t.Fatalf("MustString = %q, want %q", got, "ejournal")
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
}

func TestMustInt(t *testing.T) {
	c := New().Prefix("SVC_")
	t.Setenv("SVC_WORKERS", "  8 ")
	if got := c.MustInt("WORKERS"); got != 8 {
		t.Fatalf("MustInt = %d, want %d", got, 8)
	}
	kit.MustPanic(t, func() { _ = c.MustInt("MISSING") })
	t.Setenv("SVC_BAD", "x")
	kit.MustPanic(t, func() { _ = c.MustInt("BAD") })
}

func TestMustDuration(t *testing.T) {
	c := New().Prefix("D_")
	t.Setenv("D_TIMEOUT", " 250ms ")
	if got := c.MustDuration("TIMEOUT"); got != 250*time.Millisecond {
		t.Fatalf("MustDuration = %v", got)
	}
	t.Setenv("D_BAD", "nope")
	kit.MustPanic(t, func() { _ = c.MustDuration("BAD") })
}

func TestMustURL(t *testing.T) {
	c := New().Prefix("U_")
	t.Setenv("U_BASE", "https://ejournal.app")
	if u := c.MustURL("BASE"); u.Host != "ejournal.app" {
		t.Fatalf("MustURL host = %q", u.Host)
	}
	t.Setenv("U_BAD", "/relative")
	kit.MustPanic(t, func() { _ = c.MustURL("BAD") })
}

func TestRequire(t *testing.T) {
	c := New().Prefix("REQ_")
	t.Setenv("REQ_A", "x")
	t.Setenv("REQ_B", "y")
	c.Require("A", "B")
	kit.MustPanic(t, func() { c.Require("A", "C") })

	t.Setenv("REQ_WS", "   ")
	kit.MustPanic(t, func() { c.Require("WS") })
}

func TestMayFallbacks(t *testing.T) {
	c := New().Prefix("M_")
	if got := c.MayString("MISSING", "def"); got != "def" {
		t.Fatalf("MayString default = %q", got)
	}
	if got := c.MayInt("MISSING", 9); got != 9 {
		t.Fatalf("MayInt default = %d", got)
	}
	t.Setenv("M_INT", "x")
	if got := c.MayInt("INT", 3); got != 3 {
		t.Fatalf("MayInt bad -> default = %d", got)
	}
	t.Setenv("M_RPS", "2.5")
	if got := c.MayFloat64("RPS", 1); got != 2.5 {
		t.Fatalf("MayFloat64 = %v", got)
	}
	t.Setenv("M_BOOL", "nope")
	if c.MayBool("BOOL", false) {
		t.Fatalf("MayBool bad -> default false expected")
	}
	t.Setenv("M_DUR", "150ms")
	if got := c.MayDuration("DUR", time.Second); got != 150*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
}

func TestMayURL(t *testing.T) {
	c := New().Prefix("URL_")
	if got := c.MayURL("MISSING", "https://d"); got != "https://d" {
		t.Fatalf("MayURL default = %q", got)
	}
	t.Setenv("URL_BASE", "https://ejournal.app/")
	if got := c.MayURL("BASE", ""); got != "https://ejournal.app" {
		t.Fatalf("MayURL trims trailing slash, got %q", got)
	}
	t.Setenv("URL_BAD", "not a url")
	if got := c.MayURL("BAD", "https://d"); got != "https://d" {
		t.Fatalf("MayURL bad -> default = %q", got)
	}
}

func TestMayPort(t *testing.T) {
	c := New().Prefix("P_")
	if got := c.MayPort("MISSING", 4100); got != ":4100" {
		t.Fatalf("MayPort default = %q", got)
	}
	t.Setenv("P_OOB", "70000")
	if got := c.MayPort("OOB", 4100); got != ":4100" {
		t.Fatalf("MayPort out of range = %q", got)
	}
	t.Setenv("P_OK", "8080")
	if got := c.MayPort("OK", 4100); got != ":8080" {
		t.Fatalf("MayPort = %q", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("E_")
	if got := c.MayEnum("MISS", "json", "json", "console"); got != "json" {
		t.Fatalf("MayEnum default = %q", got)
	}
	t.Setenv("E_FMT", "Console")
	if got := c.MayEnum("FMT", "json", "json", "console"); got != "console" {
		t.Fatalf("MayEnum allowed value = %q", got)
	}
	t.Setenv("E_BAD", "xml")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "json", "json", "console") })
}
