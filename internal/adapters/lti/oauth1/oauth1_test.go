package oauth1

import (
	"net/http"
	"strings"
	"testing"
	"time"

	perr "ejournal/internal/platform/errors"
)

func fixedSigner() *Signer {
	s := New("ejournal-key", "s3cr3t")
	s.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	s.Nonce = func() string { return "abc123" }
	return s
}

func TestSign_KnownVector(t *testing.T) {
	body := []byte(`<imsx_POXEnvelopeRequest/>`)
	req, _ := http.NewRequest(http.MethodPost, "https://LMS.example.com:443/api/lti/outcomes?course=4%207", nil)

	if err := fixedSigner().Sign(req, body); err != nil {
		t.Fatalf("sign: %v", err)
	}

	h := req.Header.Get("Authorization")
	if !strings.HasPrefix(h, `OAuth realm=""`) {
		t.Fatalf("header prefix: %q", h)
	}
	for _, want := range []string{
		`oauth_body_hash="wW9RDC4U%2F1dypfAGGeTv8%2B5s0es%3D"`,
		`oauth_consumer_key="ejournal-key"`,
		`oauth_nonce="abc123"`,
		`oauth_signature_method="HMAC-SHA1"`,
		`oauth_timestamp="1709294400"`,
		`oauth_version="1.0"`,
		`oauth_signature="5kwvsVeAhC8E5o0Gwje%2Brb2nc4s%3D"`,
	} {
		if !strings.Contains(h, want) {
			t.Fatalf("header missing %s\n%s", want, h)
		}
	}
}

func TestBaseString(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://lms.example.com/api/lti/outcomes?course=4%207", nil)
	got := BaseString("post", req.URL, map[string]string{
		"oauth_body_hash":        "wW9RDC4U/1dypfAGGeTv8+5s0es=",
		"oauth_consumer_key":     "ejournal-key",
		"oauth_nonce":            "abc123",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1709294400",
		"oauth_version":          "1.0",
		"oauth_signature":        "ignored",
	})
	want := "POST&https%3A%2F%2Flms.example.com%2Fapi%2Flti%2Foutcomes&course%3D4%25207%26oauth_body_hash%3DwW9RDC4U%252F1dypfAGGeTv8%252B5s0es%253D%26oauth_consumer_key%3Dejournal-key%26oauth_nonce%3Dabc123%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1709294400%26oauth_version%3D1.0"
	if got != want {
		t.Fatalf("base string\n got %s\nwant %s", got, want)
	}
}

func TestBaseURL_Ports(t *testing.T) {
	cases := map[string]string{
		"http://h.example:80/a":    "http://h.example/a",
		"https://h.example:8443/a": "https://h.example:8443/a",
		"HTTPS://H.example":        "https://h.example/",
	}
	for in, want := range cases {
		req, _ := http.NewRequest(http.MethodGet, in, nil)
		if got := baseURL(req.URL); got != want {
			t.Fatalf("%s: got %s want %s", in, got, want)
		}
	}
}

func TestEncode(t *testing.T) {
	if got := Encode("a b+c/~é"); got != "a%20b%2Bc%2F~%C3%A9" {
		t.Fatalf("encode: %s", got)
	}
}

func TestSign_MissingCredentials(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://lms.example.com/x", nil)
	err := New("", "").Sign(req, nil)
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestSign_DefaultNonceVaries(t *testing.T) {
	s := New("k", "s")
	r1, _ := http.NewRequest(http.MethodPost, "https://lms.example.com/x", nil)
	r2, _ := http.NewRequest(http.MethodPost, "https://lms.example.com/x", nil)
	_ = s.Sign(r1, nil)
	_ = s.Sign(r2, nil)
	if r1.Header.Get("Authorization") == r2.Header.Get("Authorization") {
		t.Fatal("expected distinct nonces")
	}
}
