// Package pox speaks the LTI 1.1 Basic Outcomes (POX) replaceResult protocol
package pox

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"ejournal/internal/core/grading"
	perr "ejournal/internal/platform/errors"
)

// Namespace of every POX envelope element
const Namespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"

const (
	version         = "V1.0"
	scoreLanguage   = "en"
	descriptionNone = "not found"
)

type envelopeRequest struct {
	XMLName xml.Name      `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_POXEnvelopeRequest"`
	Header  requestHeader `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo"`
	Body    replaceResult `xml:"imsx_POXBody>replaceResultRequest"`
}

type requestHeader struct {
	Version   string `xml:"imsx_version"`
	MessageID string `xml:"imsx_messageIdentifier"`
}

type replaceResult struct {
	Submission *submissionDetails `xml:"submissionDetails"`
	Record     resultRecord       `xml:"resultRecord"`
}

type submissionDetails struct {
	SubmittedAt string `xml:"submittedAt"`
}

type resultRecord struct {
	SourcedID string  `xml:"sourcedGUID>sourcedId"`
	Result    *result `xml:"result"`
}

type result struct {
	Score *resultScore `xml:"resultScore"`
	Data  *resultData  `xml:"resultData"`
}

type resultScore struct {
	Language   string `xml:"language"`
	TextString string `xml:"textString"`
}

type resultData struct {
	URL       string `xml:"url,omitempty"`
	Text      string `xml:"text,omitempty"`
	LaunchURL string `xml:"ltiLaunchUrl,omitempty"`
}

// Build serializes s into a replaceResultRequest envelope carrying messageID
func Build(s grading.Snapshot, messageID string) ([]byte, error) {
	env := envelopeRequest{
		Header: requestHeader{Version: version, MessageID: messageID},
		Body: replaceResult{
			Record: resultRecord{SourcedID: s.Address.SourcedID},
		},
	}
	if !s.Timestamp.IsZero() {
		env.Body.Submission = &submissionDetails{SubmittedAt: s.Timestamp.UTC().Format(time.RFC3339)}
	}
	if s.SendScore || !s.ResultData.Empty() {
		r := &result{}
		if s.SendScore {
			r.Score = &resultScore{Language: scoreLanguage, TextString: s.ScoreText()}
		}
		if !s.ResultData.Empty() {
			r.Data = &resultData{URL: s.ResultData.URL, Text: s.ResultData.Text, LaunchURL: s.ResultData.LaunchURL}
		}
		env.Body.Record.Result = r
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "pox: encode envelope")
	}
	return buf.Bytes(), nil
}

// Status is the imsx_statusInfo block of a POX response
type Status struct {
	CodeMajor   string `json:"code_major"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Success reports whether the LMS accepted the request
func (s Status) Success() bool { return strings.EqualFold(s.CodeMajor, "success") }

// NoAddress is returned without any HTTP call when a recipient has no outcome url or sourced id
var NoAddress = Status{
	CodeMajor:   "No grade passback url set",
	Severity:    "status",
	Description: descriptionNone,
}

type envelopeResponse struct {
	Header struct {
		Info struct {
			Status struct {
				CodeMajor   string `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_codeMajor"`
				Severity    string `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_severity"`
				Description string `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_description"`
			} `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_statusInfo"`
		} `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_POXResponseHeaderInfo"`
	} `xml:"http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0 imsx_POXHeader"`
}

// Parse extracts the status block from a POX response.
// Missing fields default independently; description defaults to "not found".
// A body that is not well-formed XML is an ErrorCodeMalformedResponse
func Parse(body []byte) (Status, error) {
	var env envelopeResponse
	if err := xml.Unmarshal(body, &env); err != nil {
		return Status{}, perr.Wrap(err, perr.ErrorCodeMalformedResponse, "pox: response is not well-formed xml")
	}
	st := env.Header.Info.Status
	out := Status{
		CodeMajor:   strings.TrimSpace(st.CodeMajor),
		Severity:    strings.TrimSpace(st.Severity),
		Description: strings.TrimSpace(st.Description),
	}
	if out.Description == "" {
		out.Description = descriptionNone
	}
	return out, nil
}
