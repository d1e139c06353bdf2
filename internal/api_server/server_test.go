package apiserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	apiserver "github.com/bd2kgenomics/spinnaker/internal/api_server"
	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// objects served by the fake storage, by object id
var objects = map[string]string{
	"manifest-ok":  `{"files":[{"object_id":"reads-1","format":"fastq"}]}`,
	"manifest-bad": `{"files":[{"object_id":"reads-2","format":"vcf"}]}`,
	"reads-1":      "@read1\nACGT\n+\nFFFF\n",
	"reads-2":      "not a vcf",
}

var _ = Describe("api server", Ordered, func() {
	var (
		storageSrv *httptest.Server
		objectSrv  *httptest.Server
		s          store.Store
		baseURL    string
		metricsURL string
		cancel     context.CancelFunc
		done       chan error
	)

	BeforeAll(func() {
		objectSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := objects[strings.TrimPrefix(r.URL.Path, "/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, body)
		}))
		storageSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/download/")
			_, _ = fmt.Fprintf(w, `{"parts":[{"url":"%s/%s"}]}`, objectSrv.URL, id)
		}))

		cfg := config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "spinnaker.db")
		cfg.Service.Storage.URL = storageSrv.URL

		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.InitialMigration()).To(Succeed())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		baseURL = "http://" + listener.Addr().String()

		metricsListener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		metricsURL = "http://" + metricsListener.Addr().String()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 2)
		go func() { done <- apiserver.New(cfg, s, listener).Run(ctx) }()
		go func() { done <- apiserver.NewMetricServer(metricsListener.Addr().String(), metricsListener).Run(ctx) }()

		Eventually(func() int {
			resp, err := http.Get(baseURL + "/health")
			if err != nil {
				return 0
			}
			_ = resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))
	})

	AfterAll(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
		Eventually(done).Should(Receive(BeNil()))
		_ = s.Close()
		storageSrv.Close()
		objectSrv.Close()
	})

	type reply struct {
		Submission struct {
			Id     uint   `json:"id"`
			Status string `json:"status"`
		} `json:"submission"`
	}

	send := func(method, path, body string) reply {
		req, err := http.NewRequest(method, baseURL+path, strings.NewReader(body))
		Expect(err).To(BeNil())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(BeNumerically("<", 300))

		var r reply
		Expect(json.NewDecoder(resp.Body).Decode(&r)).To(Succeed())
		return r
	}

	status := func(id uint) func() string {
		return func() string {
			return send(http.MethodGet, fmt.Sprintf("/v0/submissions/%d", id), "").Submission.Status
		}
	}

	It("validates an edited submission in the background", func() {
		created := send(http.MethodPost, "/v0/submissions", "{}")
		Expect(created.Submission.Status).To(Equal("new"))

		edited := send(http.MethodPut, fmt.Sprintf("/v0/submissions/%d", created.Submission.Id), `{"receipt":"manifest-ok"}`)
		Expect(edited.Submission.Status).To(Equal("received"))

		Eventually(status(created.Submission.Id)).Should(Equal("validated"))
	})

	It("marks a submission with a bad file invalid", func() {
		created := send(http.MethodPost, "/v0/submissions", `{"receipt":"manifest-bad"}`)
		send(http.MethodPut, fmt.Sprintf("/v0/submissions/%d", created.Submission.Id), "{}")

		Eventually(status(created.Submission.Id)).Should(Equal("invalid"))
	})

	It("marks a submission with an unknown manifest invalid", func() {
		created := send(http.MethodPost, "/v0/submissions", "{}")
		send(http.MethodPut, fmt.Sprintf("/v0/submissions/%d", created.Submission.Id), `{"receipt":"missing"}`)

		Eventually(status(created.Submission.Id)).Should(Equal("invalid"))
	})

	It("exposes the metrics", func() {
		resp, err := http.Get(metricsURL + "/metrics")
		Expect(err).To(BeNil())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		Expect(string(body)).To(ContainSubstring("spinnaker_submissions_total"))
		Expect(string(body)).To(ContainSubstring("spinnaker_http_requests_total"))
		Expect(string(body)).To(ContainSubstring(`spinnaker_validation_jobs_total{outcome="completed"}`))
	})
})

var _ = Describe("api server restarted in the same process", func() {
	start := func() (store.Store, string, func()) {
		cfg := config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "spinnaker.db")
		cfg.Service.Dispatcher.Type = config.DispatcherNone

		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s := store.NewStore(db)
		Expect(s.InitialMigration()).To(Succeed())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		baseURL := "http://" + listener.Addr().String()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- apiserver.New(cfg, s, listener).Run(ctx) }()

		Eventually(func() int {
			resp, err := http.Get(baseURL + "/health")
			if err != nil {
				return 0
			}
			_ = resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))

		return s, baseURL, func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
			_ = s.Close()
		}
	}

	call := func(method, url string) int {
		req, err := http.NewRequest(method, url, strings.NewReader("{}"))
		Expect(err).To(BeNil())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	scrape := func() string {
		rec := httptest.NewRecorder()
		promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rec.Body.String()
	}

	It("exports the requests and the store of the second run", func() {
		_, firstURL, stopFirst := start()
		Expect(call(http.MethodPost, firstURL+"/v0/submissions")).To(Equal(http.StatusCreated))
		Expect(call(http.MethodPost, firstURL+"/v0/submissions")).To(Equal(http.StatusCreated))
		stopFirst()

		_, secondURL, stopSecond := start()
		defer stopSecond()

		Expect(call(http.MethodPost, secondURL+"/v0/submissions")).To(Equal(http.StatusCreated))
		Expect(call(http.MethodDelete, secondURL+"/v0/submissions/9999")).To(Equal(http.StatusNotFound))

		Expect(scrape()).To(ContainSubstring(`code="404",method="DELETE"`))
		Expect(testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(`
# HELP spinnaker_submissions_total Total number of submissions.
# TYPE spinnaker_submissions_total gauge
spinnaker_submissions_total 1
`), "spinnaker_submissions_total")).To(Succeed())
	})
})
