package workouts

import "time"

// MuscleGroups are the muscle groups a logged exercise can target.
var MuscleGroups = []string{
	"Chest",
	"Shoulders",
	"Triceps",
	"Back",
	"Biceps",
	"Legs",
}

type Workout struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Date      time.Time  `json:"date"`
	Notes     string     `json:"notes,omitempty"`
	UserID    int        `json:"userId"`
	Exercises []Exercise `json:"exercises,omitempty"`
}

type Exercise struct {
	ID          int    `json:"id"`
	WorkoutID   int    `json:"workoutId"`
	Name        string `json:"exerciseName"`
	MuscleGroup string `json:"muscleGroup"`
	Sets        []Set  `json:"sets"`
}

type Set struct {
	ID         int     `json:"id"`
	ExerciseID int     `json:"exerciseId"`
	Weight     float64 `json:"weight"`
	Reps       int     `json:"reps"`
}

// ExerciseInput is a decoded, not yet persisted exercise from the
// multi-step workout logger form.
type ExerciseInput struct {
	Name        string
	MuscleGroup string
	Sets        []SetInput
}

type SetInput struct {
	Weight float64
	Reps   int
}
