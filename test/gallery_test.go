package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestGallery() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")

	t.Run("unauthorized without token", func(t *testing.T) {
		resp := s.get(ctx, t, "/gallery", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing image url", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/gallery", token, url.Values{})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["gallaryImage"], "Image is required")
	})

	var imageID int

	t.Run("upload and list", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/gallery", token, url.Values{
			"gallaryImage": {"https://img.test/progress-1.png"},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"success": true}`, readBody(t, resp))

		listResp := s.get(ctx, t, "/gallery", token)
		defer listResp.Body.Close()
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		var images []struct {
			ID  int    `json:"id"`
			URL string `json:"imageUrl"`
		}
		require.NoError(t, json.NewDecoder(listResp.Body).Decode(&images))
		require.Len(t, images, 1)
		assert.Equal(t, "https://img.test/progress-1.png", images[0].URL)
		imageID = images[0].ID
	})

	t.Run("other users see nothing", func(t *testing.T) {
		otherToken := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")
		listResp := s.get(ctx, t, "/gallery", otherToken)
		defer listResp.Body.Close()
		require.Equal(t, http.StatusOK, listResp.StatusCode)
		assert.JSONEq(t, `[]`, readBody(t, listResp))
	})

	t.Run("delete", func(t *testing.T) {
		resp := s.delete(ctx, t, fmt.Sprintf("/gallery/%d", imageID), token)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Image deleted successfully")

		listResp := s.get(ctx, t, "/gallery", token)
		defer listResp.Body.Close()
		require.Equal(t, http.StatusOK, listResp.StatusCode)
		assert.JSONEq(t, `[]`, readBody(t, listResp))
	})
}
