package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitlog/internal/auth"
	"github.com/2beens/fitlog/internal/forms"
	"github.com/2beens/fitlog/internal/telemetry/metrics"
	"github.com/2beens/fitlog/internal/telemetry/tracing"
	"github.com/2beens/fitlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=workouts_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Create(ctx context.Context, workout Workout) (*Workout, error)
	Update(ctx context.Context, workout Workout) error
	Get(ctx context.Context, id int) (*Workout, error)
	GetOwned(ctx context.Context, id, userID int) (*Workout, error)
	List(ctx context.Context, userID int) ([]Workout, error)
	ExercisesForWorkout(ctx context.Context, workoutID int) ([]Exercise, error)
	AddExercises(ctx context.Context, workoutID int, exercises []ExerciseInput) error
	ReplaceExercises(ctx context.Context, workoutID int, exercises []ExerciseInput) error
	Delete(ctx context.Context, workoutID int) error
}

// StepDoneResponse is returned by the logger step endpoints that move the
// client to the next screen.
type StepDoneResponse struct {
	RedirectTo string   `json:"redirectTo"`
	Notices    []string `json:"notices"`
}

type Handler struct {
	repo    workoutsRepo
	metrics *metrics.Manager
}

func NewHandler(repo workoutsRepo, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	workoutsRouter := mainRouter.PathPrefix("/workouts").Subrouter()
	workoutsRouter.HandleFunc("", handler.HandleList).Methods("GET").Name("workouts-list")
	workoutsRouter.HandleFunc("", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("workouts-delete")
	workoutsRouter.HandleFunc("/workout", handler.HandleGet).Methods("GET").Name("workouts-get")
	workoutsRouter.HandleFunc("/muscle-groups", handler.HandleMuscleGroups).Methods("GET").Name("workouts-muscle-groups")
	workoutsRouter.HandleFunc("/exercises", handler.HandleExercises).Methods("GET").Name("workouts-exercises")
	workoutsRouter.HandleFunc("/step1", handler.HandleAddStep1).Methods("POST", "OPTIONS").Name("workouts-step1")
	workoutsRouter.HandleFunc("/step2", handler.HandleAddStep2).Methods("POST", "OPTIONS").Name("workouts-step2")
	workoutsRouter.HandleFunc("/edit/step1", handler.HandleEditStep1).Methods("POST", "OPTIONS").Name("workouts-edit-step1")
	workoutsRouter.HandleFunc("/edit/step2", handler.HandleEditStep2).Methods("POST", "OPTIONS").Name("workouts-edit-step2")
}

func (handler *Handler) HandleAddStep1(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.addStep1")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Errorf("add workout step1, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}

	input, errs := ValidateStep1(r.Form.Get("title"), r.Form.Get("date"), r.Form.Get("notes"))
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	workout, err := handler.repo.Create(ctx, Workout{
		Title:  input.Title,
		Date:   input.Date,
		Notes:  input.Notes,
		UserID: userID,
	})
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("create workout: %s", err))
		log.Errorf("failed to create workout for user %d: %s", userID, err)
		http.Error(w, "error, failed to create workout", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkoutsCreated.Inc()

	log.Tracef("new workout created: %d", workout.ID)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"id": %d}`, workout.ID))
}

func (handler *Handler) HandleAddStep2(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.addStep2")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, ok := auth.UserIDFromContext(ctx); !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, exercises, notices, errs, err := handler.decodeStep2(r, ValidateExercisesAdd)
	if err != nil {
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, notices)
		return
	}

	if err := handler.repo.AddExercises(ctx, workoutID, exercises); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("add exercises: %s", err))
		log.Errorf("failed to add exercises to workout %d: %s", workoutID, err)
		http.Error(w, "error, failed to save exercises", http.StatusInternalServerError)
		return
	}

	writeStepDone(w, "/dashboard/addWorkout", notices)
}

func (handler *Handler) HandleEditStep1(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.editStep1")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Errorf("edit workout step1, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}

	workoutID, err := strconv.Atoi(r.Form.Get("workoutId"))
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	input, errs := ValidateStep1(r.Form.Get("title"), r.Form.Get("date"), r.Form.Get("notes"))
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	err = handler.repo.Update(ctx, Workout{
		ID:     workoutID,
		Title:  input.Title,
		Date:   input.Date,
		Notes:  input.Notes,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found or unauthorized", http.StatusNotFound)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("update workout: %s", err))
		log.Errorf("failed to update workout %d: %s", workoutID, err)
		http.Error(w, "error, failed to update workout", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"id": %d}`, workoutID))
}

func (handler *Handler) HandleEditStep2(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.editStep2")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, exercises, notices, errs, err := handler.decodeStep2(r, ValidateExercisesEdit)
	if err != nil {
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, notices)
		return
	}

	// the workout must belong to the caller before anything is replaced
	if _, err := handler.repo.GetOwned(ctx, workoutID, userID); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found or unauthorized", http.StatusNotFound)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("get workout: %s", err))
		log.Errorf("edit workout %d, ownership check: %s", workoutID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.ReplaceExercises(ctx, workoutID, exercises); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("replace exercises: %s", err))
		log.Errorf("failed to replace exercises of workout %d: %s", workoutID, err)
		http.Error(w, "error, failed to save exercises", http.StatusInternalServerError)
		return
	}

	writeStepDone(w, "/dashboard/calendar", notices)
}

// decodeStep2 parses and validates a second-step submission. The returned
// error covers only form parsing; validation problems come back in errs.
func (handler *Handler) decodeStep2(
	r *http.Request,
	validate func([]ExerciseInput) forms.Errors,
) (workoutID int, exercises []ExerciseInput, notices []string, errs forms.Errors, err error) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("workout step2, parse form error: %s", err)
		return 0, nil, nil, nil, err
	}

	exercises, notices = DecodeExercises(r.Form)
	errs = validate(exercises)

	workoutID, idErr := strconv.Atoi(r.Form.Get("workoutId"))
	if idErr != nil {
		errs.Add("workoutId", "Workout ID is required")
	}

	return workoutID, exercises, notices, errs, nil
}

func writeStepDone(w http.ResponseWriter, redirectTo string, notices []string) {
	if notices == nil {
		notices = []string{}
	}
	respBytes, err := json.Marshal(StepDoneResponse{
		RedirectTo: redirectTo,
		Notices:    notices,
	})
	if err != nil {
		log.Errorf("marshal step response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.delete")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, ok := auth.UserIDFromContext(ctx); !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := strconv.Atoi(r.URL.Query().Get("workoutId"))
	if err != nil {
		http.Error(w, "error, missing workoutId", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, workoutID); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("delete workout: %s", err))
		log.Errorf("failed to delete workout %d: %s", workoutID, err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkoutsDeleted.Inc()

	log.Tracef("workout %d deleted", workoutID)
	pkg.WriteJSONResponseOK(w, `{"message": "Workout deleted successfully"}`)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.get")
	defer span.End()

	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "error, invalid workout id", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("get workout: %s", err))
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "failed to fetch workout data", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(struct {
		Title string    `json:"title"`
		Date  time.Time `json:"date"`
		Notes string    `json:"notes"`
	}{
		Title: workout.Title,
		Date:  workout.Date,
		Notes: workout.Notes,
	})
	if err != nil {
		log.Errorf("marshal workout error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutJson)
}

func (handler *Handler) HandleExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.exercises")
	defer span.End()

	workoutID, err := strconv.Atoi(r.URL.Query().Get("workoutId"))
	if err != nil {
		http.Error(w, "error, missing workoutId in the request", http.StatusBadRequest)
		return
	}

	exercises, err := handler.repo.ExercisesForWorkout(ctx, workoutID)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get exercises: %s", err))
		log.Errorf("failed to get exercises of workout %d: %s", workoutID, err)
		http.Error(w, "unable to fetch exercises", http.StatusInternalServerError)
		return
	}

	if exercises == nil {
		exercises = []Exercise{}
	}

	exercisesJson, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("marshal exercises error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, exercisesJson)
}

// HandleMuscleGroups returns the muscle groups the logger form offers.
func (handler *Handler) HandleMuscleGroups(w http.ResponseWriter, _ *http.Request) {
	groupsJson, err := json.Marshal(MuscleGroups)
	if err != nil {
		log.Errorf("marshal muscle groups error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, groupsJson)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workouts, err := handler.repo.List(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("list workouts: %s", err))
		log.Errorf("failed to list workouts for user %d: %s", userID, err)
		http.Error(w, "unable to fetch workouts", http.StatusInternalServerError)
		return
	}

	if workouts == nil {
		workouts = []Workout{}
	}

	workoutsJson, err := json.Marshal(workouts)
	if err != nil {
		log.Errorf("marshal workouts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutsJson)
}
