package patients

import (
	"strconv"

	"github.com/orthocare/orthocare/internal/extract"
)

// DraftFromFields maps dictated fields onto a CreateInput. Missing fields
// stay blank for the user to complete; run Validate before submitting.
func DraftFromFields(fields extract.Fields) CreateInput {
	var in CreateInput
	for f, v := range fields {
		switch f {
		case extract.PatientName:
			in.PatientName = v
		case extract.Age:
			if n, err := strconv.Atoi(v); err == nil {
				in.Age = n
			}
		case extract.Diagnosis:
			in.Diagnosis = v
		case extract.Procedure:
			in.Procedure = v
		case extract.Hospital:
			in.Hospital = v
		case extract.Expectations:
			in.Expectations = v
		case extract.FollowUpParameters:
			in.FollowUpParameters = v
		case extract.KWireRemoval:
			in.KWireRemoval = v
		case extract.SplintChangeRemoval:
			in.SplintChangeRemoval = v
		case extract.TypeAndSutureRemoval:
			in.TypeAndSutureRemoval = v
		case extract.FollowUpFirst:
			in.PlannedFollowUps.First = v
		case extract.FollowUpSecond:
			in.PlannedFollowUps.Second = v
		case extract.FollowUpThird:
			in.PlannedFollowUps.Third = v
		}
	}
	in.Normalize()
	return in
}
