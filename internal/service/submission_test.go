package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/events"
	"github.com/bd2kgenomics/spinnaker/internal/jobs"
	"github.com/bd2kgenomics/spinnaker/internal/service"
	"github.com/bd2kgenomics/spinnaker/internal/service/mappers"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

var _ = Describe("submission service", Ordered, func() {
	var (
		s           store.Store
		gormDB      *gorm.DB
		dispatcher  *fakeDispatcher
		validator   *fakeValidator
		eventWriter *fakeEventWriter
		srv         *service.SubmissionService
		ctx         context.Context
	)

	BeforeAll(func() {
		s, gormDB = newTestStore()
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		ctx = context.TODO()
		dispatcher = &fakeDispatcher{}
		validator = newFakeValidator("obj-good")
		eventWriter = &fakeEventWriter{}
		srv = service.NewSubmissionService(s, validator,
			service.WithDispatcher(dispatcher),
			service.WithEventWriter(eventWriter),
		)
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from submissions;")
	})

	Context("create", func() {
		It("creates a new submission", func() {
			submission, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			Expect(submission.ID).ToNot(BeZero())
			Expect(submission.Status).To(Equal(model.SubmissionStatusNew))
			Expect(submission.Receipt).To(BeNil())
			Expect(submission.Created).To(BeTemporally("==", submission.Modified))
			Expect(submission.Created.Location()).To(Equal(time.UTC))

			Expect(dispatcher.Jobs()).To(BeEmpty())
			Expect(eventWriter.Kinds()).To(ConsistOf(events.SubmissionCreatedKind))
		})

		It("keeps an initial receipt without validating it", func() {
			submission, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())
			Expect(submission.Status).To(Equal(model.SubmissionStatusNew))
			Expect(submission.ReceiptValue()).To(Equal("obj-good"))
			Expect(dispatcher.Jobs()).To(BeEmpty())
		})

		It("uses a timestamp per row", func() {
			first, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			time.Sleep(2 * time.Millisecond)
			second, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			Expect(second.Created.After(first.Created)).To(BeTrue())
		})
	})

	Context("list", func() {
		It("lists every submission", func() {
			for i := 0; i < 3; i++ {
				_, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
				Expect(err).To(BeNil())
			}

			submissions, err := srv.ListSubmissions(ctx, nil)
			Expect(err).To(BeNil())
			Expect(submissions).To(HaveLen(3))
		})

		It("filters by status", func() {
			first, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.EditSubmission(ctx, first.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())

			status := model.SubmissionStatusReceived
			submissions, err := srv.ListSubmissions(ctx, &service.SubmissionFilter{Status: &status})
			Expect(err).To(BeNil())
			Expect(submissions).To(HaveLen(1))
			Expect(submissions[0].ID).To(Equal(first.ID))
		})

		It("rejects an unknown status", func() {
			status := model.SubmissionStatus("archived")
			_, err := srv.ListSubmissions(ctx, &service.SubmissionFilter{Status: &status})

			var invalidErr *service.ErrInvalidForm
			Expect(errors.As(err, &invalidErr)).To(BeTrue())
		})
	})

	Context("edit", func() {
		It("moves the submission to received and enqueues a job", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-123")})
			Expect(err).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(edited.ReceiptValue()).To(Equal("obj-123"))
			Expect(edited.Modified.After(created.Modified)).To(BeTrue())
			Expect(edited.Created).To(BeTemporally("==", created.Created))

			Expect(dispatcher.Jobs()).To(HaveLen(1))
			Expect(dispatcher.Jobs()[0].SubmissionID).To(Equal(created.ID))
			Expect(*dispatcher.Jobs()[0].Receipt).To(Equal("obj-123"))

			// validation runs on the dispatcher only
			Expect(validator.Calls()).To(BeZero())
		})

		It("keeps the stored receipt when none is given", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{Receipt: strPtr("obj-1")})
			Expect(err).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{})
			Expect(err).To(BeNil())
			Expect(edited.ReceiptValue()).To(Equal("obj-1"))
			Expect(*dispatcher.Jobs()[0].Receipt).To(Equal("obj-1"))
		})

		It("clears the stored receipt when asked", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{Receipt: strPtr("obj-1")})
			Expect(err).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{ClearReceipt: true})
			Expect(err).To(BeNil())
			Expect(edited.Receipt).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(dispatcher.Jobs()[0].Receipt).To(BeNil())
		})

		It("moves a terminal submission back to received", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())
			Expect(srv.CompleteValidation(ctx, created.ID, strPtr("obj-good"))).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
		})

		It("strictly increases modified when the clock does not move", func() {
			frozen := time.Now()
			srv = service.NewSubmissionService(s, validator, service.WithDispatcher(dispatcher), service.WithClock(func() time.Time { return frozen }))

			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			first, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("a")})
			Expect(err).To(BeNil())
			second, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("b")})
			Expect(err).To(BeNil())

			Expect(first.Modified.After(created.Modified)).To(BeTrue())
			Expect(second.Modified.After(first.Modified)).To(BeTrue())
		})

		It("succeeds when the dispatcher rejects the job", func() {
			dispatcher.reject = true
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-1")})
			Expect(err).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
		})

		It("succeeds without a dispatcher", func() {
			srv = service.NewSubmissionService(s, validator)
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-1")})
			Expect(err).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
		})
	})

	Context("missing submission", func() {
		expectNotFound := func(err error, id uint) {
			var notFound *service.ErrResourceNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(fmt.Sprintf("%d", id)))
		}

		It("is not found on get", func() {
			_, err := srv.GetSubmission(ctx, 999)
			expectNotFound(err, 999)
		})

		It("is not found on edit and nothing is enqueued", func() {
			_, err := srv.EditSubmission(ctx, 999, mappers.SubmissionUpdateForm{Receipt: strPtr("x")})
			expectNotFound(err, 999)
			Expect(dispatcher.Jobs()).To(BeEmpty())
		})

		It("is not found on delete", func() {
			err := srv.DeleteSubmission(ctx, 999)
			expectNotFound(err, 999)
		})

		It("is not found on validate", func() {
			_, _, err := srv.ValidateSubmission(ctx, 999)
			expectNotFound(err, 999)
			Expect(validator.Calls()).To(BeZero())
		})

		It("does not change other submissions", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			_, err = srv.EditSubmission(ctx, created.ID+100, mappers.SubmissionUpdateForm{Receipt: strPtr("x")})
			Expect(err).ToNot(BeNil())

			got, err := srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusNew))
			Expect(got.Modified).To(BeTemporally("==", created.Modified))
		})
	})

	Context("delete", func() {
		It("deletes the submission", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			Expect(srv.DeleteSubmission(ctx, created.ID)).To(BeNil())

			_, err = srv.GetSubmission(ctx, created.ID)
			var notFound *service.ErrResourceNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(eventWriter.Kinds()).To(ContainElement(events.SubmissionDeletedKind))
		})
	})

	Context("synchronous validation", func() {
		It("records validated", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())

			submission, result, err := srv.ValidateSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(result.Validated).To(BeTrue())
			Expect(submission.Status).To(Equal(model.SubmissionStatusValidated))
			Expect(submission.Modified.After(created.Modified)).To(BeTrue())
		})

		It("records invalid for a missing receipt", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())

			submission, result, err := srv.ValidateSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(result.Validated).To(BeFalse())
			Expect(result.Response).To(Equal("receipt is empty"))
			Expect(submission.Status).To(Equal(model.SubmissionStatusInvalid))
		})

		It("is stale when the receipt changes during validation", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())

			validator.before = func() {
				defer GinkgoRecover()
				// another request edits the submission while it is validated
				_, err := s.Submission().Update(context.TODO(), model.Submission{
					ID:       created.ID,
					Status:   model.SubmissionStatusReceived,
					Modified: time.Now().UTC().Add(time.Second),
					Receipt:  strPtr("obj-other"),
				})
				Expect(err).To(BeNil())
			}

			_, _, err = srv.ValidateSubmission(ctx, created.ID)
			var staleErr *service.ErrValidationStale
			Expect(errors.As(err, &staleErr)).To(BeTrue())

			got, err := srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusReceived))
		})
	})

	Context("asynchronous validation", func() {
		It("discards the job of a deleted submission", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())
			Expect(srv.DeleteSubmission(ctx, created.ID)).To(BeNil())

			Expect(srv.CompleteValidation(ctx, created.ID, strPtr("obj-good"))).To(BeNil())
			Expect(validator.Calls()).To(BeZero())
		})

		It("follows the submission lifecycle", func() {
			// create with {}
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			Expect(created.Status).To(Equal(model.SubmissionStatusNew))
			Expect(created.Receipt).To(BeNil())

			// edit with a receipt: one job for that receipt
			edited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-123")})
			Expect(err).To(BeNil())
			Expect(edited.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(dispatcher.Jobs()).To(HaveLen(1))
			firstJob := dispatcher.Jobs()[0]
			Expect(*firstJob.Receipt).To(Equal("obj-123"))

			// the job runs: obj-123 is not valid content
			Expect(srv.CompleteValidation(ctx, firstJob.SubmissionID, firstJob.Receipt)).To(BeNil())
			got, err := srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusInvalid))
			Expect(got.Modified.After(edited.Modified)).To(BeTrue())

			// re-edit: received again with a new job
			reEdited, err := srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-456")})
			Expect(err).To(BeNil())
			Expect(reEdited.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(dispatcher.Jobs()).To(HaveLen(2))

			// the late completion of the first job must not resurrect invalid
			Expect(srv.CompleteValidation(ctx, firstJob.SubmissionID, firstJob.Receipt)).To(BeNil())
			got, err = srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(got.Modified).To(BeTemporally("==", reEdited.Modified))

			Expect(eventWriter.Kinds()).To(Equal([]string{
				events.SubmissionCreatedKind,
				events.SubmissionReceivedKind,
				events.SubmissionInvalidKind,
				events.SubmissionReceivedKind,
			}))
		})

		It("discards an outcome when the submission is edited during validation", func() {
			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())

			var reEdited model.Submission
			validator.before = func() {
				defer GinkgoRecover()
				validator.before = nil
				reEdited, err = srv.EditSubmission(context.TODO(), created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-bad")})
				Expect(err).To(BeNil())
			}

			Expect(srv.CompleteValidation(ctx, created.ID, strPtr("obj-good"))).To(BeNil())

			got, err := srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusReceived))
			Expect(got.ReceiptValue()).To(Equal("obj-bad"))
			Expect(got.Modified).To(BeTemporally("==", reEdited.Modified))

			// the job of the re-edit records its own outcome
			last := dispatcher.Jobs()[len(dispatcher.Jobs())-1]
			Expect(srv.CompleteValidation(ctx, last.SubmissionID, last.Receipt)).To(BeNil())
			got, err = srv.GetSubmission(ctx, created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.SubmissionStatusInvalid))
		})

		It("runs on the local dispatcher", func() {
			local := jobs.NewLocalDispatcher(2, 10)
			srv = service.NewSubmissionService(s, validator, service.WithDispatcher(local))
			Expect(local.Start(ctx, srv)).To(BeNil())
			defer func() { _ = local.Stop(context.TODO()) }()

			created, err := srv.CreateSubmission(ctx, mappers.SubmissionCreateForm{})
			Expect(err).To(BeNil())
			_, err = srv.EditSubmission(ctx, created.ID, mappers.SubmissionUpdateForm{Receipt: strPtr("obj-good")})
			Expect(err).To(BeNil())

			Eventually(func() model.SubmissionStatus {
				got, err := srv.GetSubmission(ctx, created.ID)
				if err != nil {
					return ""
				}
				return got.Status
			}).Should(Equal(model.SubmissionStatusValidated))
		})
	})
})
