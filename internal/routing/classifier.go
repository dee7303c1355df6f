package routing

import (
	"context"
	"net/http"
	"net/url"

	id "idstatus/pkg/domain"
	"idstatus/pkg/platform/upstream"
)

// Classifier reports the owner of an application reference.
type Classifier interface {
	Classify(ctx context.Context, ref id.ApplicationReference) (Owner, error)
}

type ownerResponse struct {
	Owner string `json:"owner"`
}

// HTTPClassifier calls the routing service.
type HTTPClassifier struct {
	http *upstream.Client
}

// NewHTTPClassifier wraps an upstream client.
func NewHTTPClassifier(http *upstream.Client) *HTTPClassifier {
	return &HTTPClassifier{http: http}
}

// Classify treats 404 as Unrouted: a new application may not be routed yet.
// Any other non-2xx is a *upstream.TransportError.
func (c *HTTPClassifier) Classify(ctx context.Context, ref id.ApplicationReference) (Owner, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, "/applications/"+url.PathEscape(ref.String())+"/owner", nil)
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Unrouted, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", c.http.StatusError(resp)
	}

	var body ownerResponse
	if err := c.http.Decode(resp, &body); err != nil {
		return "", err
	}
	owner, err := ParseOwner(body.Owner)
	if err != nil {
		return "", &upstream.MalformedResponseError{Service: c.http.Name(), Err: err}
	}
	return owner, nil
}
