package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dewanshDT/startup-scraper/pkg/client"
	"github.com/rs/zerolog"
)

// Endpoint names used for metrics and logs.
const (
	EndpointListing      = "listing"
	EndpointProfile      = "profile"
	EndpointRegistration = "registration"
)

// Endpoints holds the registry API URLs.
type Endpoints struct {
	// ListingURL receives the POSTed SearchFilter.
	ListingURL string
	// ProfileURL is the detail base URL; the startup id is appended.
	ProfileURL string
	// RegistrationURL is queried with ?cin=<registration id>.
	RegistrationURL string
}

// Doer is the subset of *client.Client the API needs.
type Doer interface {
	DoJSON(ctx context.Context, r client.Request, out any) error
}

// API issues typed calls against the registry endpoints.
type API struct {
	client    Doer
	endpoints Endpoints
	logger    zerolog.Logger
}

// NewAPI creates an API backed by c.
func NewAPI(c Doer, endpoints Endpoints, logger zerolog.Logger) *API {
	return &API{
		client:    c,
		endpoints: endpoints,
		logger:    logger.With().Str("component", "registry-api").Logger(),
	}
}

// SearchPage fetches one listing page for filter.
func (a *API) SearchPage(ctx context.Context, filter SearchFilter, page int) (*ListingPage, error) {
	filter.Page = page

	var out ListingPage
	err := a.client.DoJSON(ctx, client.Request{
		Endpoint: EndpointListing,
		Method:   http.MethodPost,
		URL:      a.endpoints.ListingURL,
		Body:     filter,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}

	return &out, nil
}

// Profile fetches the detail record for a startup id. A response without a
// user object (null, {}) is reported as a decode error.
func (a *API) Profile(ctx context.Context, id string) (*Profile, error) {
	base := a.endpoints.ProfileURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var out Profile
	err := a.client.DoJSON(ctx, client.Request{
		Endpoint: EndpointProfile,
		Method:   http.MethodGet,
		URL:      base + url.PathEscape(id),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", id, err)
	}
	if !out.User.Valid() {
		return nil, fmt.Errorf("fetch profile %s: %w: response has no user", id, client.ErrDecode)
	}

	return &out, nil
}

// Registration looks up registration data by registration id. It returns
// nil without error when the registry reports no data for the id, including
// a data object with no fields set.
func (a *API) Registration(ctx context.Context, registrationID string) (*RegistrationData, error) {
	var out RegistrationResponse
	err := a.client.DoJSON(ctx, client.Request{
		Endpoint: EndpointRegistration,
		Method:   http.MethodGet,
		URL:      a.endpoints.RegistrationURL,
		Query:    url.Values{"cin": {registrationID}},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch registration %s: %w", registrationID, err)
	}

	if !out.Status.Bool || !out.Data.Valid() || out.Data.Value().Empty() {
		a.logger.Debug().
			Str("registration_id", registrationID).
			Msg("Registration lookup returned no data")
		return nil, nil
	}

	data := out.Data.Value()
	return &data, nil
}
