package workouts

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

var exerciseNameKeyRegex = regexp.MustCompile(`^exercises\[\d+\]\.exercisename$`)

// DecodeExercises turns the bracket-indexed workout logger form
// (exercises[i].exercisename, exercises[i].sets[j].weight, ...) into typed
// exercise inputs. It never fails: malformed entries are dropped and
// reported through the returned notices, which callers surface to the
// client alongside the regular response.
//
// The exercise count is the number of exercisename keys present; indices
// are probed as submitted, so a gap in the numbering drops the entries
// above it. Set probing for an exercise stops at the first missing weight
// key, while an unparseable weight or reps value drops just that one set.
func DecodeExercises(form url.Values) ([]ExerciseInput, []string) {
	exercisesCount := 0
	for key := range form {
		if exerciseNameKeyRegex.MatchString(key) {
			exercisesCount++
		}
	}

	var notices []string
	exercises := make([]ExerciseInput, 0, exercisesCount)
	for i := 0; i < exercisesCount; i++ {
		name := form.Get(fmt.Sprintf("exercises[%d].exercisename", i))
		muscleGroup := form.Get(fmt.Sprintf("exercises[%d].muscleGroup", i))

		if name == "" || muscleGroup == "" {
			notices = append(notices, fmt.Sprintf("skipping exercise %d: missing data", i))
			continue
		}

		var sets []SetInput
		for j := 0; ; j++ {
			weightKey := fmt.Sprintf("exercises[%d].sets[%d].weight", i, j)
			if !form.Has(weightKey) {
				break
			}

			weight, weightErr := strconv.ParseFloat(form.Get(weightKey), 64)
			reps, repsErr := strconv.Atoi(form.Get(fmt.Sprintf("exercises[%d].sets[%d].reps", i, j)))
			if weightErr != nil || repsErr != nil {
				notices = append(notices, fmt.Sprintf("skipping set %d for exercise %d: invalid data", j, i))
				continue
			}

			sets = append(sets, SetInput{Weight: weight, Reps: reps})
		}

		exercises = append(exercises, ExerciseInput{
			Name:        name,
			MuscleGroup: muscleGroup,
			Sets:        sets,
		})
	}

	return exercises, notices
}
