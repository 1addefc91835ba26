// Package extract pulls structured patient-intake fields out of free-form
// dictated text.
//
// Extraction is a chain of case-insensitive patterns per field. The first
// pattern that yields a non-empty value wins; fields with no match are left
// out of the result entirely so callers never overwrite existing input with
// an empty string.
package extract

// Field names a form field the extractor can populate. The string values
// match the JSON names used by the patient API.
type Field string

const (
	PatientName          Field = "patientName"
	Age                  Field = "age"
	Diagnosis            Field = "diagnosis"
	Procedure            Field = "procedure"
	Hospital             Field = "hospital"
	Expectations         Field = "expectations"
	FollowUpParameters   Field = "followUpParameters"
	KWireRemoval         Field = "kWireRemoval"
	SplintChangeRemoval  Field = "splintChangeRemoval"
	TypeAndSutureRemoval Field = "typeAndSutureRemoval"
	FollowUpFirst        Field = "followUpFirst"
	FollowUpSecond       Field = "followUpSecond"
	FollowUpThird        Field = "followUpThird"
)

// AllFields lists every extractable field in form order.
var AllFields = []Field{
	PatientName,
	Age,
	Diagnosis,
	Procedure,
	Hospital,
	Expectations,
	FollowUpParameters,
	KWireRemoval,
	SplintChangeRemoval,
	TypeAndSutureRemoval,
	FollowUpFirst,
	FollowUpSecond,
	FollowUpThird,
}

// Valid reports whether f is one of AllFields.
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// Fields is a sparse field -> value mapping. A key is present only when a
// pattern matched and produced a non-empty value.
type Fields map[Field]string

// Get returns the value for f and whether it was extracted.
func (fs Fields) Get(f Field) (string, bool) {
	v, ok := fs[f]
	return v, ok
}

// Present returns the extracted fields in form order.
func (fs Fields) Present() []Field {
	out := make([]Field, 0, len(fs))
	for _, f := range AllFields {
		if _, ok := fs[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
