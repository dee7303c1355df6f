// Package resolver looks up the application reference belonging to a nino.
package resolver

import (
	"context"
	"net/http"
	"strings"

	id "idstatus/pkg/domain"
	"idstatus/pkg/platform/upstream"
)

// Outcome is the business result of a lookup.
type Outcome int

const (
	Found Outcome = iota + 1
	NotFound
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Resolution carries the reference when Outcome is Found.
type Resolution struct {
	Outcome              Outcome
	ApplicationReference id.ApplicationReference
}

const matchPath = "/v1/applications/match"

type matchRequest struct {
	Nino string `json:"nino"`
}

type matchResponse struct {
	ApplicationID string `json:"applicationId"`
}

// Client calls the application-matching service.
type Client struct {
	http *upstream.Client
}

// New wraps an upstream client.
func New(http *upstream.Client) *Client {
	return &Client{http: http}
}

// Resolve maps the service's responses onto outcomes:
//   - 2xx with an id: Found
//   - 404, or 2xx with an empty id: NotFound
//   - 409: Conflict
//   - any other status: *upstream.TransportError
//   - an undecodable 2xx body: *upstream.MalformedResponseError
func (c *Client) Resolve(ctx context.Context, nino id.Nino) (Resolution, error) {
	resp, err := c.http.Do(ctx, http.MethodPost, matchPath, matchRequest{Nino: nino.String()})
	if err != nil {
		return Resolution{}, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Resolution{Outcome: NotFound}, nil
	case resp.StatusCode == http.StatusConflict:
		return Resolution{Outcome: Conflict}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Resolution{}, c.http.StatusError(resp)
	}

	var body matchResponse
	if err := c.http.Decode(resp, &body); err != nil {
		return Resolution{}, err
	}
	ref := id.ApplicationReference(strings.TrimSpace(body.ApplicationID))
	if ref.IsEmpty() {
		return Resolution{Outcome: NotFound}, nil
	}
	return Resolution{Outcome: Found, ApplicationReference: ref}, nil
}
