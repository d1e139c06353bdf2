package v1alpha1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bd2kgenomics/spinnaker/api/v1alpha1"
	"github.com/bd2kgenomics/spinnaker/internal/handlers/validator"
	"github.com/bd2kgenomics/spinnaker/internal/service"
	"github.com/bd2kgenomics/spinnaker/pkg/requestid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const (
	// APIPrefix is the historical prefix of the api. Routes are served with and without it.
	APIPrefix = "/v0"

	internalErrorMessage = "internal error"
)

type ServiceHandler struct {
	submissionSrv *service.SubmissionService
	validator     *validator.Validator
}

func NewServiceHandler(submissionService *service.SubmissionService) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewSubmissionValidationRules()...)

	return &ServiceHandler{
		submissionSrv: submissionService,
		validator:     v,
	}
}

// RegisterRoutes mounts the api under APIPrefix and at the root.
func (s *ServiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.Health)
	r.Route(APIPrefix, s.routes)
	r.Group(s.routes)
}

func (s *ServiceHandler) routes(r chi.Router) {
	r.Get("/submissions", s.ListSubmissions)
	r.Post("/submissions", s.CreateSubmission)
	r.Get("/submissions/{id}", s.GetSubmission)
	r.Put("/submissions/{id}", s.EditSubmission)
	r.Delete("/submissions/{id}", s.DeleteSubmission)
	r.Get("/validate/{id}", s.ValidateSubmission)
}

// decodeBody decodes a json body into dst rejecting unknown fields. An empty body leaves
// dst untouched.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func parseID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid submission id %q", raw)
	}
	return uint(id), nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	_ = render.Render(w, r, v1alpha1.NewError(status, message, requestid.FromRequest(r)))
}

// renderServiceError maps service errors to replies. Anything unexpected is logged and
// hidden behind a generic message.
func renderServiceError(w http.ResponseWriter, r *http.Request, id uint, err error) {
	var (
		notFound *service.ErrResourceNotFound
		invalid  *service.ErrInvalidForm
		stale    *service.ErrValidationStale
	)

	switch {
	case errors.As(err, &notFound):
		renderError(w, r, http.StatusNotFound, fmt.Sprintf("Submission %d does not exist", id))
	case errors.As(err, &invalid):
		renderError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &stale):
		renderError(w, r, http.StatusConflict, err.Error())
	default:
		zap.S().Named("submission_handler").Errorw("request failed", "request_id", requestid.FromRequest(r), "error", err)
		renderError(w, r, http.StatusInternalServerError, internalErrorMessage)
	}
}
