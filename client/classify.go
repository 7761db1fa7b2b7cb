package client

import "net/http"

// Outcome is how a completed call is handled.
type Outcome int

const (
	// OutcomeOK is a 2xx response without an in-band auth failure.
	OutcomeOK Outcome = iota
	// OutcomeAuthFailure is a transport 401 or an in-band code 401.
	OutcomeAuthFailure
	// OutcomeOtherFailure is everything else; it goes back to the caller
	// untouched.
	OutcomeOtherFailure
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeOtherFailure:
		return "other_failure"
	default:
		return "unknown"
	}
}

// Classify decides the outcome of a call. err is the transport error, if
// any; a 2xx body of the form {"code":401,...} counts as an auth failure.
func Classify(resp *Response, err error) Outcome {
	return classify(resp, err, true)
}

func classify(resp *Response, err error, inBand bool) Outcome {
	if err != nil || resp == nil {
		return OutcomeOtherFailure
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return OutcomeAuthFailure
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OutcomeOtherFailure
	}
	if inBand {
		if env, ok := resp.Envelope(); ok && env.Code == http.StatusUnauthorized {
			return OutcomeAuthFailure
		}
	}
	return OutcomeOK
}

// newAuthError describes an auth failure seen on resp.
func newAuthError(resp *Response, retried bool) *AuthError {
	e := &AuthError{Retried: retried, StatusCode: resp.StatusCode}
	env, ok := resp.Envelope()
	if ok {
		e.Msg = env.Msg
	}
	if resp.StatusCode != http.StatusUnauthorized {
		e.InBand = true
	}
	return e
}

// newStatusError describes a non-2xx response.
func newStatusError(resp *Response) *StatusError {
	e := &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	if env, ok := resp.Envelope(); ok {
		e.Code = env.Code
		e.Msg = env.Msg
	}
	return e
}
