package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/fitlog/internal/auth"
	"github.com/2beens/fitlog/internal/forms"
	"github.com/2beens/fitlog/internal/middleware"
	"github.com/2beens/fitlog/internal/telemetry/metrics"
	"github.com/2beens/fitlog/internal/telemetry/tracing"
	"github.com/2beens/fitlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type usersRepo interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateOnboarding(ctx context.Context, id int, username, fullName string) error
	UpdateSettings(ctx context.Context, id int, fullName, image string) error
}

type Handler struct {
	repo         usersRepo
	authService  *auth.Service
	loginChecker *auth.LoginChecker
	notifier     *WelcomeNotifier
	metrics      *metrics.Manager
}

func NewHandler(
	repo usersRepo,
	authService *auth.Service,
	loginChecker *auth.LoginChecker,
	notifier *WelcomeNotifier,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:         repo,
		authService:  authService,
		loginChecker: loginChecker,
		notifier:     notifier,
		metrics:      metrics,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginRateLimitAllowedPerMin int,
	metricsManager *metrics.Manager,
) {
	authRouter := mainRouter.PathPrefix("/a").Subrouter()
	authRouter.
		HandleFunc("/signup", handler.handleSignup).
		Methods("POST", "OPTIONS").Name("signup")
	authRouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	authRouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the auth endpoints to prevent abuse
	authRouter.Use(middleware.RateLimit(rateLimiter, "login", loginRateLimitAllowedPerMin, metricsManager))
	authRouter.Use(middleware.Cors())

	userRouter := mainRouter.PathPrefix("/user").Subrouter()
	userRouter.
		HandleFunc("/onboarding", handler.handleOnboarding).
		Methods("POST", "OPTIONS").Name("onboarding")
	userRouter.
		HandleFunc("/settings", handler.handleSettings).
		Methods("POST", "OPTIONS").Name("settings")
	userRouter.
		HandleFunc("/me", handler.handleMe).
		Methods("GET").Name("me")
}

type credentialsRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func credentialsFromRequest(r *http.Request) (*credentialsRequest, error) {
	var creds credentialsRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return nil, fmt.Errorf("unmarshal json params: %w", err)
		}
		return &creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	return &credentialsRequest{
		Email:           r.Form.Get("email"),
		Password:        r.Form.Get("password"),
		ConfirmPassword: r.Form.Get("confirmPassword"),
	}, nil
}

func (handler *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.signup")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, err := credentialsFromRequest(r)
	if err != nil {
		log.Errorf("signup failed: %s", err)
		http.Error(w, "signup failed", http.StatusBadRequest)
		return
	}

	errs, err := ValidateSignUp(
		ctx,
		creds.Email, creds.Password, creds.ConfirmPassword,
		handler.repo.EmailTaken,
	)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("signup validation: %s", err))
		log.Errorf("signup validation: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	passwordHash, err := pkg.HashPassword(creds.Password)
	if err != nil {
		log.Errorf("signup failed, hash password: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	user, err := handler.repo.Create(ctx, User{
		Email:        creds.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		// lost the race against a concurrent signup for the same email
		if pkg.IsUniqueViolationError(err) {
			errs = forms.Errors{}
			errs.Add("email", "Account with this Email already exists")
			forms.WriteFailedValidation(w, errs, nil)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("create user: %s", err))
		log.Errorf("signup failed, create user: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.authService.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("signup failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSignups.Inc()

	log.Tracef("new user signed up: %d", user.ID)
	pkg.WriteResponseBytes(
		w, pkg.ContentType.JSON,
		[]byte(fmt.Sprintf(`{"token": "%s", "redirectTo": "/onboarding"}`, token)),
		http.StatusCreated,
	)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, err := credentialsFromRequest(r)
	if err != nil {
		log.Errorf("login failed: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	// the credentials matcher remembers the fetched user so that a
	// successful login does not hit the user store twice
	var loggedUser *User
	passwordMatches := func(ctx context.Context, email, password string) (bool, error) {
		user, err := handler.repo.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return false, nil
			}
			return false, err
		}
		if !pkg.CheckPasswordHash(password, user.PasswordHash) {
			return false, nil
		}
		loggedUser = user
		return true, nil
	}

	errs, err := ValidateSignIn(ctx, creds.Email, creds.Password, handler.repo.EmailTaken, passwordMatches)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("login validation: %s", err))
		log.Errorf("login validation: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	if !errs.IsEmpty() {
		log.Tracef("failed login attempt for: %s", creds.Email)
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	token, err := handler.authService.Login(ctx, loggedUser.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterLogins.Inc()

	log.Tracef("new login success: %d", loggedUser.ID)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s", "redirectTo": "/dashboard"}`, token))
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get("X-FITLOG-TOKEN")
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, authToken)
	if err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	handler.loginChecker.Forget(authToken)

	log.Printf("logout for [%s] success", authToken)
	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.onboarding")
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
		log.Errorf("onboarding failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}

	fullName := r.Form.Get("fullName")
	username := r.Form.Get("userName")

	errs, err := ValidateOnboarding(ctx, fullName, username, handler.repo.UsernameTaken)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("onboarding validation: %s", err))
		log.Errorf("onboarding validation: %s", err)
		http.Error(w, "onboarding failed", http.StatusInternalServerError)
		return
	}
	if !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	if err := handler.repo.UpdateOnboarding(ctx, userID, username, fullName); err != nil {
		if pkg.IsUniqueViolationError(err) {
			errs = forms.Errors{}
			errs.Add("userName", "Username already taken")
			forms.WriteFailedValidation(w, errs, nil)
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("update onboarding: %s", err))
		log.Errorf("onboarding failed, update user %d: %s", userID, err)
		http.Error(w, "onboarding failed", http.StatusInternalServerError)
		return
	}

	handler.sendWelcomeEmail(userID)

	pkg.WriteJSONResponseOK(w, `{"redirectTo": "/dashboard"}`)
}

// sendWelcomeEmail fires the welcome email in the background; failures are
// logged and never affect the onboarding response.
func (handler *Handler) sendWelcomeEmail(userID int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := handler.repo.GetByID(ctx, userID)
		if err != nil {
			log.Errorf("welcome email for user %d, get user: %s", userID, err)
			return
		}

		if err := handler.notifier.Notify(ctx, user.FirstName(), user.Email); err != nil {
			log.Errorf("welcome email for user %d: %s", userID, err)
		}
	}()
}

func (handler *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.settings")
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
		log.Errorf("settings update failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}

	fullName := r.Form.Get("fullname")
	profileImage := r.Form.Get("profileImage")

	if errs := ValidateSettings(fullName); !errs.IsEmpty() {
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	if err := handler.repo.UpdateSettings(ctx, userID, fullName, profileImage); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("update settings: %s", err))
		log.Errorf("settings update failed for user %d: %s", userID, err)
		http.Error(w, "settings update failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"redirectTo": "/dashboard/settings"}`)
}

func (handler *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "usersHandler.me")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := handler.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("get user %d: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("marshal user error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, userJson)
}
