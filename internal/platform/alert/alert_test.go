package alert

import (
	"context"
	"errors"
	"testing"

	perr "ejournal/internal/platform/errors"

	"github.com/rollbar/rollbar-go"
)

func TestNew_NoTokenIsNop(t *testing.T) {
	t.Parallel()

	r := New(Options{Env: "test"})
	if _, ok := r.(Nop); !ok {
		t.Fatalf("expected Nop reporter, got %T", r)
	}
	r.Report(context.Background(), errors.New("ignored"), nil)
	if err := r.Close(); err != nil {
		t.Fatalf("Nop.Close: %v", err)
	}
}

func TestLevelFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{perr.PanicErrf("boom"), rollbar.CRIT},
		{perr.Configf("no registration for iss"), rollbar.ERR},
		{perr.New(perr.ErrorCodeUnauthorized, "token rejected"), rollbar.ERR},
		{perr.Upstreamf("502"), rollbar.WARN},
		{errors.New("plain"), rollbar.WARN},
	}
	for _, c := range cases {
		if got := levelFor(c.err); got != c.want {
			t.Fatalf("levelFor(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestWithCode_CopiesExtras(t *testing.T) {
	t.Parallel()

	in := map[string]any{"job_id": "j1"}
	out := withCode(perr.Configf("x"), in)
	if out["job_id"] != "j1" || out["error_kind"] != "config" {
		t.Fatalf("unexpected extras %v", out)
	}
	if _, leaked := in["error_kind"]; leaked {
		t.Fatalf("input map mutated")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ROLLBAR_TOKEN", "tok")
	t.Setenv("ROLLBAR_ENV", "staging")

	o := FromEnv("v1.2.3")
	if o.Token != "tok" || o.Env != "staging" || o.CodeVersion != "v1.2.3" {
		t.Fatalf("unexpected options %+v", o)
	}
}
