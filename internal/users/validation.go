package users

import (
	"context"
	"unicode/utf8"

	"github.com/2beens/fitlog/internal/forms"
)

// ExistsChecker answers whether a value (email, username) is already
// present in the user store.
type ExistsChecker func(ctx context.Context, value string) (bool, error)

// CredentialsChecker answers whether the email/password pair matches a
// stored credential.
type CredentialsChecker func(ctx context.Context, email, password string) (bool, error)

const (
	fullNameMinLen = 3
	fullNameMaxLen = 150
	usernameMinLen = 3
	usernameMaxLen = 150
	passwordMinLen = 8
	// bcrypt digests at most 72 bytes of input and errors above that,
	// so longer passwords must be rejected here, not at hash time
	passwordMaxBytes = 72
)

// passwordLengthProblem returns the message for a password outside the
// accepted length range, or "" when the length is fine. The lower bound
// counts characters, the upper one bytes.
func passwordLengthProblem(password string) string {
	if utf8.RuneCountInString(password) < passwordMinLen {
		return "Password must be at least 8 characters long"
	}
	if len(password) > passwordMaxBytes {
		return "Password must be at most 72 characters long"
	}
	return ""
}

// ValidateSignUp collects all field errors for a sign-up submission.
// The uniqueness check runs only for a syntactically valid email, and a
// checker transport failure is returned as an error, not a field error.
func ValidateSignUp(
	ctx context.Context,
	email, password, confirmPassword string,
	emailTaken ExistsChecker,
) (forms.Errors, error) {
	errs := forms.Errors{}

	switch {
	case email == "":
		errs.Add("email", "Email is required")
	case !forms.ValidEmail(email):
		errs.Add("email", "Invalid email")
	default:
		if emailTaken == nil {
			return nil, forms.ErrCheckerMissing
		}
		taken, err := emailTaken(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("email", "Account with this Email already exists")
		}
	}

	if msg := passwordLengthProblem(password); msg != "" {
		errs.Add("password", msg)
	}
	if msg := passwordLengthProblem(confirmPassword); msg != "" {
		errs.Add("confirmPassword", "Confirm "+msg)
	}

	if !errs.Has("password") && !errs.Has("confirmPassword") && password != confirmPassword {
		errs.Add("confirmPassword", "Passwords do not match")
	}

	return errs, nil
}

// ValidateSignIn collects all field errors for a sign-in submission.
// The credentials check runs only when every other rule passed, so a
// wrong password is never reported alongside an unknown email.
func ValidateSignIn(
	ctx context.Context,
	email, password string,
	emailExists ExistsChecker,
	passwordMatches CredentialsChecker,
) (forms.Errors, error) {
	errs := forms.Errors{}

	switch {
	case email == "":
		errs.Add("email", "Email is required")
	case !forms.ValidEmail(email):
		errs.Add("email", "Invalid email")
	default:
		if emailExists == nil {
			return nil, forms.ErrCheckerMissing
		}
		exists, err := emailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		if !exists {
			errs.Add("email", "No user exists with this Email")
		}
	}

	if msg := passwordLengthProblem(password); msg != "" {
		errs.Add("password", msg)
	}

	if errs.IsEmpty() {
		if passwordMatches == nil {
			return nil, forms.ErrCheckerMissing
		}
		matches, err := passwordMatches(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if !matches {
			errs.Add("password", "Incorrect Password")
		}
	}

	return errs, nil
}

// ValidateOnboarding checks the post-signup profile submission.
func ValidateOnboarding(
	ctx context.Context,
	fullName, username string,
	usernameTaken ExistsChecker,
) (forms.Errors, error) {
	errs := forms.Errors{}

	if !forms.LengthBetween(fullName, fullNameMinLen, fullNameMaxLen) {
		errs.Addf("fullName", "Full name must be between %d and %d characters long", fullNameMinLen, fullNameMaxLen)
	}

	switch {
	case !forms.LengthBetween(username, usernameMinLen, usernameMaxLen):
		errs.Addf("userName", "Username must be between %d and %d characters long", usernameMinLen, usernameMaxLen)
	case !forms.ValidUsername(username):
		errs.Add("userName", "Username can only contain letters, numbers and -")
	default:
		if usernameTaken == nil {
			return nil, forms.ErrCheckerMissing
		}
		taken, err := usernameTaken(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("userName", "Username already taken")
		}
	}

	return errs, nil
}

// ValidateSettings checks the profile settings submission. The profile
// image is an optional URL reference and is accepted as-is.
func ValidateSettings(fullName string) forms.Errors {
	errs := forms.Errors{}
	if !forms.LengthBetween(fullName, fullNameMinLen, fullNameMaxLen) {
		errs.Addf("fullname", "Full name must be between %d and %d characters long", fullNameMinLen, fullNameMaxLen)
	}
	return errs
}
