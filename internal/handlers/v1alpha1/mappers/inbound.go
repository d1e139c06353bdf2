package mappers

import (
	"github.com/bd2kgenomics/spinnaker/api/v1alpha1"
	"github.com/bd2kgenomics/spinnaker/internal/service/mappers"
)

func SubmissionCreateFormApi(resource v1alpha1.SubmissionCreate) mappers.SubmissionCreateForm {
	return mappers.SubmissionCreateForm{Receipt: resource.Receipt}
}

func SubmissionUpdateFormApi(resource v1alpha1.SubmissionUpdate) mappers.SubmissionUpdateForm {
	return mappers.SubmissionUpdateForm{Receipt: resource.Receipt, ClearReceipt: resource.ClearReceipt}
}
