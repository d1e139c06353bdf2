package v1alpha1

import (
	"fmt"
	"net/http"

	"github.com/bd2kgenomics/spinnaker/api/v1alpha1"
	"github.com/bd2kgenomics/spinnaker/internal/handlers/v1alpha1/mappers"
	"github.com/bd2kgenomics/spinnaker/internal/service"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"github.com/go-chi/render"
)

// (GET /submissions)
func (s *ServiceHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	filter := &service.SubmissionFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		st := model.SubmissionStatus(status)
		filter.Status = &st
	}

	submissions, err := s.submissionSrv.ListSubmissions(r.Context(), filter)
	if err != nil {
		renderServiceError(w, r, 0, err)
		return
	}

	_ = render.Render(w, r, mappers.SubmissionListToApi(submissions))
}

// (POST /submissions)
func (s *ServiceHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var form v1alpha1.SubmissionCreate
	if err := decodeBody(r, &form); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.validator.Struct(form); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := s.submissionSrv.CreateSubmission(r.Context(), mappers.SubmissionCreateFormApi(form))
	if err != nil {
		renderServiceError(w, r, 0, err)
		return
	}

	_ = render.Render(w, r, v1alpha1.NewSubmissionReply(mappers.SubmissionToApi(submission), http.StatusCreated))
}

// (GET /submissions/{id})
func (s *ServiceHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := s.submissionSrv.GetSubmission(r.Context(), id)
	if err != nil {
		renderServiceError(w, r, id, err)
		return
	}

	_ = render.Render(w, r, v1alpha1.NewSubmissionReply(mappers.SubmissionToApi(*submission), http.StatusOK))
}

// (PUT /submissions/{id})
func (s *ServiceHandler) EditSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var form v1alpha1.SubmissionUpdate
	if err := decodeBody(r, &form); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.validator.Struct(form); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := s.submissionSrv.EditSubmission(r.Context(), id, mappers.SubmissionUpdateFormApi(form))
	if err != nil {
		renderServiceError(w, r, id, err)
		return
	}

	_ = render.Render(w, r, v1alpha1.NewSubmissionReply(mappers.SubmissionToApi(submission), http.StatusOK))
}

// (DELETE /submissions/{id})
func (s *ServiceHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.submissionSrv.DeleteSubmission(r.Context(), id); err != nil {
		renderServiceError(w, r, id, err)
		return
	}

	_ = render.Render(w, r, v1alpha1.MessageReply{Message: fmt.Sprintf("Deleted submission %d", id)})
}

// (GET /validate/{id})
func (s *ServiceHandler) ValidateSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	_, result, err := s.submissionSrv.ValidateSubmission(r.Context(), id)
	if err != nil {
		renderServiceError(w, r, id, err)
		return
	}

	message := "Failed validation: " + result.Response
	if result.Validated {
		message = "Validated " + result.Response
	}

	_ = render.Render(w, r, v1alpha1.ValidationReply{Message: message, Validated: result.Validated})
}
