package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonwraymond/authclient/auth"
	"github.com/jonwraymond/authclient/credential"
)

// Header names set on outgoing requests.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
)

const contentTypeJSON = "application/json"

// augmenter prepares an outgoing request: default headers, the caller's
// headers, then the stored credential. It reads the store and never
// writes it.
type augmenter struct {
	store   credential.Store
	headers map[string]string
}

func (a *augmenter) apply(ctx context.Context, out *http.Request, req *Request) error {
	for k, v := range a.headers {
		out.Header.Set(k, v)
	}
	for k, vs := range req.Header {
		out.Header.Del(k)
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}

	pair, ok, err := a.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("client: read credential: %w", err)
	}
	if ok && pair.AccessToken != "" {
		out.Header.Set(HeaderAuthorization, auth.FormatBearer(pair.AccessToken))
	}

	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if len(req.Body) > 0 && out.Header.Get(HeaderContentType) == "" {
		out.Header.Set(HeaderContentType, contentTypeJSON)
	}
	if out.Header.Get(HeaderAccept) == "" {
		out.Header.Set(HeaderAccept, contentTypeJSON)
	}
	return nil
}
