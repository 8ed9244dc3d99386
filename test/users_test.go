package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestSignup() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	email := gofakeit.Email()

	t.Run("invalid email and short password", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/a/signup", "", url.Values{
			"email":           {"not-an-email"},
			"password":        {"short"},
			"confirmPassword": {"short"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["email"], "Invalid email")
		assert.Contains(t, vr.Errors["password"], "Password must be at least 8 characters long")
	})

	t.Run("password longer than bcrypt can digest", func(t *testing.T) {
		longPass := strings.Repeat("x", 100)
		resp := s.postForm(ctx, t, "/a/signup", "", url.Values{
			"email":           {email},
			"password":        {longPass},
			"confirmPassword": {longPass},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["password"], "Password must be at most 72 characters long")
	})

	t.Run("password mismatch", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/a/signup", "", url.Values{
			"email":           {email},
			"password":        {"password-one"},
			"confirmPassword": {"password-two"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["confirmPassword"], "Passwords do not match")
	})

	t.Run("signup then duplicate email rejected", func(t *testing.T) {
		token := s.doSignup(ctx, t, email, "super-secret-pass")
		require.NotEmpty(t, token)

		resp := s.postForm(ctx, t, "/a/signup", "", url.Values{
			"email":           {email},
			"password":        {"super-secret-pass"},
			"confirmPassword": {"super-secret-pass"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["email"], "Account with this Email already exists")
	})
}

func (s *IntegrationTestSuite) TestLoginLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	email := gofakeit.Email()
	password := "super-secret-pass"
	s.doSignup(ctx, t, email, password)

	t.Run("unknown email", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/a/login", "", url.Values{
			"email":    {gofakeit.Email()},
			"password": {password},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["email"], "No user exists with this Email")
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/a/login", "", url.Values{
			"email":    {email},
			"password": {"wrong-password"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["password"], "Incorrect Password")
	})

	t.Run("good creds, then logout", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/a/login", "", url.Values{
			"email":    {email},
			"password": {password},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var loginResp authResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
		require.NotEmpty(t, loginResp.Token)
		assert.Equal(t, "/dashboard", loginResp.RedirectTo)

		logoutResp := s.get(ctx, t, "/a/logout", loginResp.Token)
		defer logoutResp.Body.Close()
		require.Equal(t, http.StatusOK, logoutResp.StatusCode)
		assert.Equal(t, "logged-out", readBody(t, logoutResp))

		// the session is gone now
		meResp := s.get(ctx, t, "/user/me", loginResp.Token)
		defer meResp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
	})
}

func (s *IntegrationTestSuite) TestOnboardingAndSettings() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")
	username := gofakeit.Username()
	fullName := gofakeit.Name()

	t.Run("invalid username charset", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/user/onboarding", token, url.Values{
			"fullName": {fullName},
			"userName": {"no spaces allowed"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["userName"], "Username can only contain letters, numbers and -")
	})

	t.Run("onboarding ok", func(t *testing.T) {
		s.doOnboarding(ctx, t, token, fullName, username)

		meResp := s.get(ctx, t, "/user/me", token)
		defer meResp.Body.Close()
		require.Equal(t, http.StatusOK, meResp.StatusCode)

		var me struct {
			Username string `json:"username"`
			FullName string `json:"fullName"`
		}
		require.NoError(t, json.NewDecoder(meResp.Body).Decode(&me))
		assert.Equal(t, username, me.Username)
		assert.Equal(t, fullName, me.FullName)
	})

	t.Run("username taken", func(t *testing.T) {
		otherToken := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")
		resp := s.postForm(ctx, t, "/user/onboarding", otherToken, url.Values{
			"fullName": {gofakeit.Name()},
			"userName": {username},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["userName"], "Username already taken")
	})

	t.Run("settings update", func(t *testing.T) {
		newName := gofakeit.Name()
		resp := s.postForm(ctx, t, "/user/settings", token, url.Values{
			"fullname":     {newName},
			"profileImage": {"https://img.test/profile.png"},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "/dashboard/settings")

		// assert directly against the db as well
		var storedName string
		err := s.DB.QueryRow(
			`SELECT full_name FROM fituser WHERE username = $1`, username,
		).Scan(&storedName)
		require.NoError(t, err)
		assert.Equal(t, newName, storedName)
	})
}
