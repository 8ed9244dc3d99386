package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// validationResponse mirrors the body returned on failed form validation.
type validationResponse struct {
	Errors  map[string][]string `json:"errors"`
	Notices []string            `json:"notices"`
}

type authResponse struct {
	Token      string `json:"token"`
	RedirectTo string `json:"redirectTo"`
}

// postForm sends a form-encoded request, optionally authenticated.
func (s *IntegrationTestSuite) postForm(
	ctx context.Context,
	t *testing.T,
	path, token string,
	form url.Values,
) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(
		ctx, "POST",
		serverEndpoint+path,
		strings.NewReader(form.Encode()),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("X-FITLOG-TOKEN", token)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) get(
	ctx context.Context,
	t *testing.T,
	path, token string,
) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if token != "" {
		req.Header.Set("X-FITLOG-TOKEN", token)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) delete(
	ctx context.Context,
	t *testing.T,
	path, token string,
) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, "DELETE", serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if token != "" {
		req.Header.Set("X-FITLOG-TOKEN", token)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

// doSignup registers a fresh account and returns the session token.
func (s *IntegrationTestSuite) doSignup(ctx context.Context, t *testing.T, email, password string) string {
	t.Helper()

	resp := s.postForm(ctx, t, "/a/signup", "", url.Values{
		"email":           {email},
		"password":        {password},
		"confirmPassword": {password},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var signupResp authResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&signupResp))
	require.NotEmpty(t, signupResp.Token)
	require.Equal(t, "/onboarding", signupResp.RedirectTo)

	return signupResp.Token
}

// doOnboarding completes the profile of a freshly signed up account.
func (s *IntegrationTestSuite) doOnboarding(ctx context.Context, t *testing.T, token, fullName, username string) {
	t.Helper()

	resp := s.postForm(ctx, t, "/user/onboarding", token, url.Values{
		"fullName": {fullName},
		"userName": {username},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(respBytes))
}

func decodeValidationResponse(t *testing.T, resp *http.Response) validationResponse {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var vr validationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vr))
	return vr
}
