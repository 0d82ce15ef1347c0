package aggregate

import (
	"fmt"

	"github.com/johnwards/insights/internal/domain"
)

// ValidatePipeline checks the shape of a pipeline without touching any data.
// maxStages <= 0 means no ceiling.
func ValidatePipeline(p domain.Pipeline, maxStages int) error {
	if p.ObjectName == "" {
		return domain.Invalid("objectName", "is required")
	}
	if len(p.Stages) == 0 {
		return domain.Invalid("stages", "must contain at least one stage")
	}
	if maxStages > 0 && len(p.Stages) > maxStages {
		return domain.Invalid("stages", "has %d stages, maximum is %d", len(p.Stages), maxStages)
	}
	for i, s := range p.Stages {
		if !s.Type.Valid() {
			return domain.Invalid(fmt.Sprintf("stages[%d].type", i), "unknown stage type %q", s.Type)
		}
		if s.Body == nil {
			return domain.Invalid(fmt.Sprintf("stages[%d].body", i), "is required")
		}
	}
	return nil
}
