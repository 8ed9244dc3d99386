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

type workoutExercise struct {
	ID          int    `json:"id"`
	Name        string `json:"exerciseName"`
	MuscleGroup string `json:"muscleGroup"`
	Sets        []struct {
		ID     int     `json:"id"`
		Weight float64 `json:"weight"`
		Reps   int     `json:"reps"`
	} `json:"sets"`
}

func (s *IntegrationTestSuite) createWorkout(ctx context.Context, t *testing.T, token, title, date string) int {
	t.Helper()

	resp := s.postForm(ctx, t, "/workouts/step1", token, url.Values{
		"title": {title},
		"date":  {date},
		"notes": {"felt strong"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var step1Resp struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&step1Resp))
	require.NotZero(t, step1Resp.ID)
	return step1Resp.ID
}

func (s *IntegrationTestSuite) TestWorkoutLoggerFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")

	var workoutID int

	t.Run("step1 validation", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/workouts/step1", token, url.Values{
			"title": {""},
			"date":  {"not-a-date"},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["title"], "Title is required")
		assert.Contains(t, vr.Errors["date"], "Invalid date and time")
	})

	t.Run("step1 creates the workout", func(t *testing.T) {
		workoutID = s.createWorkout(ctx, t, token, "Push Day", "2025-03-14T18:30")
	})

	t.Run("step2 validation", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/workouts/step2", token, url.Values{
			"workoutId": {fmt.Sprintf("%d", workoutID)},
		})
		defer resp.Body.Close()

		vr := decodeValidationResponse(t, resp)
		assert.Contains(t, vr.Errors["exercises"], "At least one exercise is required")
	})

	t.Run("step2 saves exercises and sets", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/workouts/step2", token, url.Values{
			"workoutId":                        {fmt.Sprintf("%d", workoutID)},
			"exercises[0].exercisename":        {"Bench Press"},
			"exercises[0].muscleGroup":         {"Chest"},
			"exercises[0].sets[0].weight":      {"80"},
			"exercises[0].sets[0].reps":        {"8"},
			"exercises[0].sets[1].weight":      {"82.5"},
			"exercises[0].sets[1].reps":        {"6"},
			"exercises[1].exercisename":        {"Overhead Press"},
			"exercises[1].muscleGroup":         {"Shoulders"},
			"exercises[1].sets[0].weight":      {"40"},
			"exercises[1].sets[0].reps":        {"10"},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "/dashboard/addWorkout")
	})

	t.Run("get workout and exercises", func(t *testing.T) {
		resp := s.get(ctx, t, fmt.Sprintf("/workouts/workout?id=%d", workoutID), token)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var workout struct {
			Title string `json:"title"`
			Notes string `json:"notes"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&workout))
		assert.Equal(t, "Push Day", workout.Title)
		assert.Equal(t, "felt strong", workout.Notes)

		exResp := s.get(ctx, t, fmt.Sprintf("/workouts/exercises?workoutId=%d", workoutID), token)
		defer exResp.Body.Close()
		require.Equal(t, http.StatusOK, exResp.StatusCode)

		var exercises []workoutExercise
		require.NoError(t, json.NewDecoder(exResp.Body).Decode(&exercises))
		require.Len(t, exercises, 2)
		assert.Equal(t, "Bench Press", exercises[0].Name)
		require.Len(t, exercises[0].Sets, 2)
		assert.Equal(t, 82.5, exercises[0].Sets[1].Weight)
		assert.Equal(t, "Overhead Press", exercises[1].Name)
	})

	t.Run("edit step1 and step2", func(t *testing.T) {
		resp := s.postForm(ctx, t, "/workouts/edit/step1", token, url.Values{
			"workoutId": {fmt.Sprintf("%d", workoutID)},
			"title":     {"Push Day (heavy)"},
			"date":      {"2025-03-15T18:30"},
			"notes":     {"new PR"},
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		editResp := s.postForm(ctx, t, "/workouts/edit/step2", token, url.Values{
			"workoutId":                   {fmt.Sprintf("%d", workoutID)},
			"exercises[0].exercisename":   {"Incline Bench Press"},
			"exercises[0].muscleGroup":    {"Chest"},
			"exercises[0].sets[0].weight": {"60"},
			"exercises[0].sets[0].reps":   {"10"},
		})
		defer editResp.Body.Close()
		require.Equal(t, http.StatusOK, editResp.StatusCode)
		assert.Contains(t, readBody(t, editResp), "/dashboard/calendar")

		// the previous exercises were replaced
		exResp := s.get(ctx, t, fmt.Sprintf("/workouts/exercises?workoutId=%d", workoutID), token)
		defer exResp.Body.Close()
		require.Equal(t, http.StatusOK, exResp.StatusCode)

		var exercises []workoutExercise
		require.NoError(t, json.NewDecoder(exResp.Body).Decode(&exercises))
		require.Len(t, exercises, 1)
		assert.Equal(t, "Incline Bench Press", exercises[0].Name)
	})

	t.Run("edit of another user's workout rejected", func(t *testing.T) {
		otherToken := s.doSignup(ctx, t, gofakeit.Email(), "super-secret-pass")
		resp := s.postForm(ctx, t, "/workouts/edit/step1", otherToken, url.Values{
			"workoutId": {fmt.Sprintf("%d", workoutID)},
			"title":     {"Hijacked"},
			"date":      {"2025-03-15T18:30"},
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list and delete", func(t *testing.T) {
		listResp := s.get(ctx, t, "/workouts", token)
		defer listResp.Body.Close()
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		var workouts []struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		}
		require.NoError(t, json.NewDecoder(listResp.Body).Decode(&workouts))
		require.Len(t, workouts, 1)
		assert.Equal(t, "Push Day (heavy)", workouts[0].Title)

		delResp := s.delete(ctx, t, fmt.Sprintf("/workouts?workoutId=%d", workoutID), token)
		defer delResp.Body.Close()
		require.Equal(t, http.StatusOK, delResp.StatusCode)
		assert.Contains(t, readBody(t, delResp), "Workout deleted successfully")

		// sets and exercises are gone too
		var count int
		require.NoError(t, s.DB.QueryRow(
			`SELECT COUNT(*) FROM exercise WHERE workout_id = $1`, workoutID,
		).Scan(&count))
		assert.Zero(t, count)
	})
}
