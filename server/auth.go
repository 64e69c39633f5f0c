package server

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blturner/micropub-go/server/micropub"
	"github.com/blturner/micropub-go/server/telemetry"
)

// Authorization is the outcome of verifying a bearer token: the
// identity it represents and the set of actions it is allowed to
// perform. It lives for a single request; nothing is cached across
// requests, every request re-verifies.
type Authorization struct {
	Me    string
	Scope []string
}

// HasScope reports whether the token grants the named action.
func (a Authorization) HasScope(action string) bool {
	for _, s := range a.Scope {
		if s == action {
			return true
		}
	}
	return false
}

// TokenVerifier exchanges a bearer credential for its granted scope.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Authorization, error)
}

// tokenEndpoint verifies tokens against an IndieAuth token
// introspection endpoint, e.g. https://tokens.indieauth.com/token.
type tokenEndpoint struct {
	url    string
	client http.Client
}

func NewTokenVerifier(endpoint string) TokenVerifier {
	return &tokenEndpoint{
		url:    endpoint,
		client: http.Client{Timeout: 10 * time.Second},
	}
}

// Verify sends the token to the introspection endpoint and parses the
// form-encoded response. A transport failure or timeout reads as an
// unverifiable credential, not a server fault.
func (t *tokenEndpoint) Verify(ctx context.Context, token string) (Authorization, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return Authorization{}, micropub.Unauthorized("could not verify the access token")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		telemetry.Error(err, "verifying token against [%s]", t.url)
		return Authorization{}, micropub.Unauthorized("could not verify the access token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4000))
	if err != nil {
		telemetry.Error(err, "reading token response")
		return Authorization{}, micropub.Unauthorized("could not verify the access token")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		telemetry.Error(err, "parsing token response [%s]", string(body))
		return Authorization{}, micropub.Unauthorized("could not parse the token response")
	}

	if e := values.Get("error"); e != "" {
		description := values.Get("error_description")
		if description == "" {
			description = e
		}
		telemetry.Increment("token_rejections", 1)
		return Authorization{}, micropub.Forbidden(description)
	}

	return Authorization{
		Me:    values.Get("me"),
		Scope: strings.Fields(values.Get("scope")),
	}, nil
}

// authorize applies the exactly-one-credential rule and resolves the
// winning credential to its granted scope. header is the raw
// Authorization header value, bodyToken an access_token field from the
// request body or query.
func authorize(ctx context.Context, verifier TokenVerifier, header, bodyToken string) (Authorization, error) {
	var headerToken string
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Authorization{}, micropub.Unauthorized("the authorization header must carry a bearer token")
		}
		headerToken = parts[1]
	}

	switch {
	case headerToken != "" && bodyToken != "":
		return Authorization{}, micropub.InvalidRequest("the access token may be supplied in the header or the body, not both")
	case headerToken == "" && bodyToken == "":
		return Authorization{}, micropub.Unauthorized("no access token was supplied")
	}

	token := headerToken
	if token == "" {
		token = bodyToken
	}
	return verifier.Verify(ctx, token)
}
