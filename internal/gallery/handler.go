package gallery

import (
	"context"
	"encoding/json"
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

type galleryRepo interface {
	Add(ctx context.Context, image Image) (*Image, error)
	List(ctx context.Context, userID int) ([]Image, error)
	Delete(ctx context.Context, id int) error
}

type Handler struct {
	repo    galleryRepo
	metrics *metrics.Manager
}

func NewHandler(repo galleryRepo, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	galleryRouter := mainRouter.PathPrefix("/gallery").Subrouter()
	galleryRouter.HandleFunc("", handler.handleList).Methods("GET").Name("gallery-list")
	galleryRouter.HandleFunc("", handler.handleAdd).Methods("POST", "OPTIONS").Name("gallery-add")
	galleryRouter.HandleFunc("/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("gallery-delete")
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "galleryHandler.add")
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
		log.Errorf("add gallery image failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusInternalServerError)
		return
	}

	// the original client misspells the field; kept for compatibility
	imageURL := r.Form.Get("gallaryImage")
	if imageURL == "" {
		errs := forms.Errors{}
		errs.Add("gallaryImage", "Image is required")
		forms.WriteFailedValidation(w, errs, nil)
		return
	}

	image, err := handler.repo.Add(ctx, Image{
		UserID:    userID,
		URL:       imageURL,
		CreatedAt: time.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("add image: %s", err))
		log.Errorf("failed to add gallery image for user %d: %s", userID, err)
		http.Error(w, "error, failed to add image", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterGalleryUploads.Inc()

	log.Tracef("new gallery image added: %d", image.ID)
	pkg.WriteJSONResponseOK(w, `{"success": true}`)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "galleryHandler.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	images, err := handler.repo.List(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("list images: %s", err))
		log.Errorf("failed to list gallery images for user %d: %s", userID, err)
		http.Error(w, "failed to fetch gallery images", http.StatusInternalServerError)
		return
	}

	if images == nil {
		images = []Image{}
	}

	imagesJson, err := json.Marshal(images)
	if err != nil {
		log.Errorf("marshal gallery images error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, imagesJson)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "galleryHandler.delete")
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

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, image id required", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("delete image: %s", err))
		log.Errorf("failed to delete gallery image %d: %s", id, err)
		http.Error(w, "failed to delete image", http.StatusInternalServerError)
		return
	}

	log.Tracef("gallery image %d deleted", id)
	pkg.WriteJSONResponseOK(w, `{"success": true, "message": "Image deleted successfully"}`)
}
