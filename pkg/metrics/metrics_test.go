package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("submission stats collector", func() {
	var s store.Store

	BeforeEach(func() {
		cfg := config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "spinnaker.db")
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.InitialMigration()).To(Succeed())
	})

	AfterEach(func() {
		_ = s.Close()
	})

	It("exports the number of submissions per status", func() {
		now := time.Now().UTC()
		for _, status := range []model.SubmissionStatus{model.SubmissionStatusNew, model.SubmissionStatusNew, model.SubmissionStatusInvalid} {
			_, err := s.Submission().Create(context.TODO(), model.Submission{Status: status, Created: now, Modified: now})
			Expect(err).To(BeNil())
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewSubmissionStatsCollector(s))

		expected := `
# HELP spinnaker_submissions_total Total number of submissions.
# TYPE spinnaker_submissions_total gauge
spinnaker_submissions_total 3
`
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(expected), "spinnaker_submissions_total")).To(Succeed())

		// one series per known status
		Expect(testutil.CollectAndCount(metrics.NewSubmissionStatsCollector(s), "spinnaker_submissions_by_status_total")).To(Equal(len(model.SubmissionStatuses)))
	})
})

var _ = Describe("http middleware", func() {
	It("counts requests by route pattern", func() {
		m := metrics.NewMiddleware("test")
		reg := prometheus.NewRegistry()
		m.MustRegister(reg)

		router := chi.NewRouter()
		router.Use(m.Handler)
		router.Get("/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		for _, path := range []string{"/submissions/1", "/submissions/2", "/elsewhere"} {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		}

		expected := `
# HELP spinnaker_http_requests_total Number of HTTP requests partitioned by status code, method and HTTP path.
# TYPE spinnaker_http_requests_total counter
spinnaker_http_requests_total{code="404",method="GET",path="/submissions/{id}",service="test"} 2
spinnaker_http_requests_total{code="404",method="GET",path="unmatched",service="test"} 1
`
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(expected), "spinnaker_http_requests_total")).To(Succeed())
	})
})

var _ = Describe("counters", func() {
	It("increments the validation job outcomes", func() {
		before := testutil.ToFloat64(metrics.ValidationJobsCounter(metrics.JobStale))
		metrics.IncreaseValidationJobsMetric(metrics.JobStale)
		Expect(testutil.ToFloat64(metrics.ValidationJobsCounter(metrics.JobStale))).To(Equal(before + 1))
	})
})
