package v1alpha1

import (
	"net/http"

	"github.com/bd2kgenomics/spinnaker/api/v1alpha1"
	"github.com/go-chi/render"
)

// (GET /health)
func (s *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, v1alpha1.HealthReply{Status: "ok"})
}
