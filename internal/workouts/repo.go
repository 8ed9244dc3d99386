package workouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/fitlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Create(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO workout
				(title, date, notes, user_id)
				VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING id;`,
		workout.Title, workout.Date, workout.Notes, workout.UserID,
	).Scan(&workout.ID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workout.id", workout.ID))
	return &workout, nil
}

// Update changes title/date/notes of a workout, scoped to its owner.
func (r *Repo) Update(ctx context.Context, workout Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workout.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout SET title = $1, date = $2, notes = NULLIF($3, '')
			WHERE id = $4 AND user_id = $5;`,
		workout.Title, workout.Date, workout.Notes, workout.ID, workout.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	return r.getWorkout(
		ctx,
		`SELECT id, title, date, COALESCE(notes, ''), user_id FROM workout WHERE id = $1;`,
		id,
	)
}

// GetOwned returns the workout only when it belongs to the given user.
func (r *Repo) GetOwned(ctx context.Context, id, userID int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.getOwned")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))
	span.SetAttributes(attribute.Int("user.id", userID))

	return r.getWorkout(
		ctx,
		`SELECT id, title, date, COALESCE(notes, ''), user_id FROM workout WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
}

func (r *Repo) getWorkout(ctx context.Context, query string, args ...any) (*Workout, error) {
	var workout Workout
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&workout.ID, &workout.Title, &workout.Date, &workout.Notes, &workout.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &workout, nil
}

// List returns the user's workouts with their exercises and sets nested,
// exercises and sets in creation order.
func (r *Repo) List(ctx context.Context, userID int) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, title, date, COALESCE(notes, ''), user_id
			FROM workout WHERE user_id = $1 ORDER BY date DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	workouts := make([]Workout, 0)
	for rows.Next() {
		var workout Workout
		if err := rows.Scan(
			&workout.ID, &workout.Title, &workout.Date, &workout.Notes, &workout.UserID,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, workout)
	}

	for i := range workouts {
		exercises, err := r.ExercisesForWorkout(ctx, workouts[i].ID)
		if err != nil {
			return nil, fmt.Errorf("exercises for workout %d: %w", workouts[i].ID, err)
		}
		workouts[i].Exercises = exercises
	}

	return workouts, nil
}

// ExercisesForWorkout returns the workout's exercises in creation order,
// sets nested.
func (r *Repo) ExercisesForWorkout(ctx context.Context, workoutID int) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.exercisesForWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, workout_id, name, muscle_group FROM exercise
			WHERE workout_id = $1 ORDER BY id ASC;`,
		workoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	exercises := make([]Exercise, 0)
	exerciseIndex := map[int]int{}
	for rows.Next() {
		var exercise Exercise
		if err := rows.Scan(
			&exercise.ID, &exercise.WorkoutID, &exercise.Name, &exercise.MuscleGroup,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		exercise.Sets = make([]Set, 0)
		exerciseIndex[exercise.ID] = len(exercises)
		exercises = append(exercises, exercise)
	}

	if len(exercises) == 0 {
		return exercises, nil
	}

	setRows, err := r.db.Query(
		ctx,
		`SELECT s.id, s.exercise_id, s.weight, s.reps FROM exercise_set s
			JOIN exercise e ON s.exercise_id = e.id
			WHERE e.workout_id = $1 ORDER BY s.id ASC;`,
		workoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	defer setRows.Close()

	if err := setRows.Err(); err != nil {
		return nil, err
	}

	for setRows.Next() {
		var set Set
		if err := setRows.Scan(&set.ID, &set.ExerciseID, &set.Weight, &set.Reps); err != nil {
			return nil, fmt.Errorf("set rows scan: %w", err)
		}
		if idx, ok := exerciseIndex[set.ExerciseID]; ok {
			exercises[idx].Sets = append(exercises[idx].Sets, set)
		}
	}

	return exercises, nil
}

// AddExercises stores the decoded second-step exercises under the workout.
// Everything happens in one transaction, so a failed set insert never
// leaves half of a submission behind.
func (r *Repo) AddExercises(ctx context.Context, workoutID int, exercises []ExerciseInput) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.addExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))
	span.SetAttributes(attribute.Int("exercises.count", len(exercises)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return r.insertExercises(ctx, tx, workoutID, exercises)
}

// ReplaceExercises swaps the workout's exercises and sets for the submitted
// ones, in one transaction: delete sets, delete exercises, recreate.
func (r *Repo) ReplaceExercises(ctx context.Context, workoutID int, exercises []ExerciseInput) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.replaceExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))
	span.SetAttributes(attribute.Int("exercises.count", len(exercises)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM exercise_set WHERE exercise_id IN
			(SELECT id FROM exercise WHERE workout_id = $1);`,
		workoutID,
	); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM exercise WHERE workout_id = $1;`,
		workoutID,
	); err != nil {
		return fmt.Errorf("delete exercises: %w", err)
	}

	return r.insertExercises(ctx, tx, workoutID, exercises)
}

// insertExercises creates the exercises in submitted order, then bulk-loads
// all their sets in one COPY.
func (r *Repo) insertExercises(ctx context.Context, tx pgx.Tx, workoutID int, exercises []ExerciseInput) error {
	var setRows [][]any
	for _, exercise := range exercises {
		var exerciseID int
		if err := tx.QueryRow(
			ctx,
			`INSERT INTO exercise (workout_id, name, muscle_group)
				VALUES ($1, $2, $3) RETURNING id;`,
			workoutID, exercise.Name, exercise.MuscleGroup,
		).Scan(&exerciseID); err != nil {
			return fmt.Errorf("insert exercise: %w", err)
		}

		for _, set := range exercise.Sets {
			setRows = append(setRows, []any{exerciseID, set.Weight, set.Reps})
		}
	}

	if len(setRows) == 0 {
		return nil
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"exercise_set"},
		[]string{"exercise_id", "weight", "reps"},
		pgx.CopyFromRows(setRows),
	); err != nil {
		return fmt.Errorf("copy sets: %w", err)
	}

	return nil
}

// Delete removes the workout together with its exercises and sets, in one
// transaction, children first.
func (r *Repo) Delete(ctx context.Context, workoutID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM exercise_set WHERE exercise_id IN
			(SELECT id FROM exercise WHERE workout_id = $1);`,
		workoutID,
	); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM exercise WHERE workout_id = $1;`,
		workoutID,
	); err != nil {
		return fmt.Errorf("delete exercises: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM workout WHERE id = $1;`, workoutID)
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}
