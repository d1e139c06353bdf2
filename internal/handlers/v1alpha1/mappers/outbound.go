package mappers

import (
	"github.com/bd2kgenomics/spinnaker/api/v1alpha1"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
)

func SubmissionToApi(s model.Submission) v1alpha1.Submission {
	return v1alpha1.Submission{
		Id:       s.ID,
		Status:   v1alpha1.SubmissionStatus(s.Status),
		Created:  s.Created,
		Modified: s.Modified,
		Receipt:  s.Receipt,
	}
}

func SubmissionListToApi(submissions model.SubmissionList) v1alpha1.SubmissionListReply {
	reply := v1alpha1.SubmissionListReply{Submissions: make([]v1alpha1.Submission, 0, len(submissions))}
	for _, s := range submissions {
		reply.Submissions = append(reply.Submissions, SubmissionToApi(s))
	}
	return reply
}
