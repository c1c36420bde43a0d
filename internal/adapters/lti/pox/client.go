package pox

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"ejournal/internal/adapters/lti/ltihttp"
	"ejournal/internal/adapters/lti/oauth1"
	"ejournal/internal/core/grading"
	perr "ejournal/internal/platform/errors"
)

// ContentType of POX requests
const ContentType = "application/xml"

// MessageIDs hands out correlation identifiers, unique across every sender
type MessageIDs interface {
	NextMessageID(ctx context.Context) (int64, error)
}

// MessageIDFunc adapts a function to MessageIDs
type MessageIDFunc func(ctx context.Context) (int64, error)

// NextMessageID implements MessageIDs
func (f MessageIDFunc) NextMessageID(ctx context.Context) (int64, error) { return f(ctx) }

// Outcome is what one replaceResult exchange produced
type Outcome struct {
	// MessageID is empty when nothing was sent
	MessageID string
	Status    Status
	Sent      bool
}

// Client posts signed replaceResult envelopes
type Client struct {
	ids    MessageIDs
	signer *oauth1.Signer
	http   *ltihttp.Client
}

// NewClient wires a Client from its collaborators
func NewClient(ids MessageIDs, signer *oauth1.Signer, hc *ltihttp.Client) *Client {
	return &Client{ids: ids, signer: signer, http: hc}
}

// Send delivers s to its outcome service.
// Protocol level rejections come back in Outcome.Status with a nil error;
// errors are reserved for transport, signing, counter and parse failures
func (c *Client) Send(ctx context.Context, s grading.Snapshot) (Outcome, error) {
	if s.Address.OutcomeURL == "" || s.Address.SourcedID == "" {
		return Outcome{Status: NoAddress}, nil
	}

	n, err := c.ids.NextMessageID(ctx)
	if err != nil {
		return Outcome{}, perr.WithOp(err, "pox.message_id")
	}
	out := Outcome{MessageID: strconv.FormatInt(n, 10)}

	body, err := Build(s, out.MessageID)
	if err != nil {
		return out, err
	}

	resp, err := c.http.Do(ctx, "pox.replace_result", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Address.OutcomeURL, bytes.NewReader(body))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfig, "pox: bad outcome url")
		}
		req.Header.Set("Content-Type", ContentType)
		if err := c.signer.Sign(req, body); err != nil {
			return nil, err
		}
		return req, nil
	})
	if resp != nil {
		out.Sent = true
	}
	if err != nil {
		// some LMSes pair a 4xx with a POX failure body; prefer the status they sent
		if resp != nil && len(resp.Body) > 0 {
			if st, parseErr := Parse(resp.Body); parseErr == nil && st.CodeMajor != "" {
				out.Status = st
				return out, nil
			}
		}
		return out, err
	}

	st, err := Parse(resp.Body)
	if err != nil {
		return out, err
	}
	out.Status = st
	return out, nil
}
