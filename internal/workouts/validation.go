package workouts

import (
	"fmt"
	"time"

	"github.com/2beens/fitlog/internal/forms"
)

// layouts accepted for the workout date field; browsers submit the
// datetime-local format, API clients tend to send RFC 3339
var acceptedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type Step1Input struct {
	Title string
	Date  time.Time
	Notes string
}

// ValidateStep1 checks the first workout logger step (title / date / notes)
// and returns the parsed input when valid.
func ValidateStep1(title, date, notes string) (*Step1Input, forms.Errors) {
	errs := forms.Errors{}

	if title == "" {
		errs.Add("title", "Title is required")
	}

	var parsedDate time.Time
	if date == "" {
		errs.Add("date", "Date and time are required")
	} else {
		parsed := false
		for _, layout := range acceptedDateLayouts {
			if d, err := time.Parse(layout, date); err == nil {
				parsedDate = d
				parsed = true
				break
			}
		}
		if !parsed {
			errs.Add("date", "Invalid date and time")
		}
	}

	if !errs.IsEmpty() {
		return nil, errs
	}

	return &Step1Input{
		Title: title,
		Date:  parsedDate,
		Notes: notes,
	}, errs
}

// ValidateExercisesAdd checks the decoded second step of the add-workout
// flow. Exercises without sets are accepted here.
func ValidateExercisesAdd(exercises []ExerciseInput) forms.Errors {
	return validateExercises(exercises, exercisesRules{
		setsRequired:  false,
		weightMessage: "Weight must be greater than 0",
	})
}

// ValidateExercisesEdit checks the decoded second step of the edit-workout
// flow. Unlike the add flow, every exercise must keep at least one set.
func ValidateExercisesEdit(exercises []ExerciseInput) forms.Errors {
	return validateExercises(exercises, exercisesRules{
		setsRequired:  true,
		weightMessage: "Weight must be greater than or equal to 0",
	})
}

// the two flows reject the same inputs; only the wording of the weight
// message differs, matching what the client renders on each screen
type exercisesRules struct {
	setsRequired  bool
	weightMessage string
}

func validateExercises(exercises []ExerciseInput, rules exercisesRules) forms.Errors {
	errs := forms.Errors{}

	if len(exercises) == 0 {
		errs.Add("exercises", "At least one exercise is required")
		return errs
	}

	for i, exercise := range exercises {
		if exercise.Name == "" {
			errs.Add(fmt.Sprintf("exercises[%d].exercisename", i), "Exercise Name is required")
		}
		if exercise.MuscleGroup == "" {
			errs.Add(fmt.Sprintf("exercises[%d].muscleGroup", i), "Muscle Group is required")
		}

		if rules.setsRequired && len(exercise.Sets) == 0 {
			errs.Add(fmt.Sprintf("exercises[%d].sets", i), "At least one set is required")
		}

		for j, set := range exercise.Sets {
			if set.Weight < 0 {
				errs.Add(fmt.Sprintf("exercises[%d].sets[%d].weight", i, j), rules.weightMessage)
			}
			if set.Reps <= 0 {
				errs.Add(fmt.Sprintf("exercises[%d].sets[%d].reps", i, j), "Reps must be greater than 0")
			}
		}
	}

	return errs
}
