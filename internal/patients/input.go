package patients

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError maps field names to problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid patient: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// CreateInput is the body of a new patient record.
type CreateInput struct {
	PatientName          string    `json:"patientName"`
	Age                  int       `json:"age"`
	Date                 string    `json:"date,omitempty"`
	Diagnosis            string    `json:"diagnosis"`
	Procedure            string    `json:"procedure,omitempty"`
	Hospital             string    `json:"hospital"`
	Expectations         string    `json:"expectations,omitempty"`
	FollowUpParameters   string    `json:"followUpParameters,omitempty"`
	KWireRemoval         string    `json:"kWireRemoval,omitempty"`
	SplintChangeRemoval  string    `json:"splintChangeRemoval,omitempty"`
	TypeAndSutureRemoval string    `json:"typeAndSutureRemoval,omitempty"`
	PlannedFollowUps     FollowUps `json:"plannedFollowUps"`
}

// Normalize trims every text field.
func (in *CreateInput) Normalize() {
	for _, s := range []*string{
		&in.PatientName, &in.Date, &in.Diagnosis, &in.Procedure, &in.Hospital,
		&in.Expectations, &in.FollowUpParameters, &in.KWireRemoval,
		&in.SplintChangeRemoval, &in.TypeAndSutureRemoval,
		&in.PlannedFollowUps.First, &in.PlannedFollowUps.Second, &in.PlannedFollowUps.Third,
	} {
		*s = strings.TrimSpace(*s)
	}
}

// Validate checks required fields, the age range and the date format.
func (in *CreateInput) Validate() error {
	var ve ValidationError
	if in.PatientName == "" {
		ve.add("patientName", "Patient name is required")
	}
	if in.Diagnosis == "" {
		ve.add("diagnosis", "Diagnosis is required")
	}
	if in.Hospital == "" {
		ve.add("hospital", "Hospital is required")
	}
	if msg := ageProblem(in.Age); msg != "" {
		ve.add("age", msg)
	}
	if msg := dateProblem(in.Date); msg != "" {
		ve.add("date", msg)
	}
	return ve.orNil()
}

// Patient builds the record a store persists.
func (in *CreateInput) Patient(id string, now time.Time) Patient {
	return Patient{
		ID:                   id,
		PatientName:          in.PatientName,
		Age:                  in.Age,
		Date:                 in.Date,
		Diagnosis:            in.Diagnosis,
		Procedure:            in.Procedure,
		Hospital:             in.Hospital,
		Expectations:         in.Expectations,
		FollowUpParameters:   in.FollowUpParameters,
		KWireRemoval:         in.KWireRemoval,
		SplintChangeRemoval:  in.SplintChangeRemoval,
		TypeAndSutureRemoval: in.TypeAndSutureRemoval,
		PlannedFollowUps:     in.PlannedFollowUps,
		CreatedAt:            now,
	}
}

// FollowUpsPatch updates individual follow-up slots.
type FollowUpsPatch struct {
	First  *string `json:"first,omitempty"`
	Second *string `json:"second,omitempty"`
	Third  *string `json:"third,omitempty"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	PatientName          *string         `json:"patientName,omitempty"`
	Age                  *int            `json:"age,omitempty"`
	Date                 *string         `json:"date,omitempty"`
	Diagnosis            *string         `json:"diagnosis,omitempty"`
	Procedure            *string         `json:"procedure,omitempty"`
	Hospital             *string         `json:"hospital,omitempty"`
	Expectations         *string         `json:"expectations,omitempty"`
	FollowUpParameters   *string         `json:"followUpParameters,omitempty"`
	KWireRemoval         *string         `json:"kWireRemoval,omitempty"`
	SplintChangeRemoval  *string         `json:"splintChangeRemoval,omitempty"`
	TypeAndSutureRemoval *string         `json:"typeAndSutureRemoval,omitempty"`
	PlannedFollowUps     *FollowUpsPatch `json:"plannedFollowUps,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u *UpdateInput) Empty() bool {
	return u.PatientName == nil && u.Age == nil && u.Date == nil && u.Diagnosis == nil &&
		u.Procedure == nil && u.Hospital == nil && u.Expectations == nil &&
		u.FollowUpParameters == nil && u.KWireRemoval == nil && u.SplintChangeRemoval == nil &&
		u.TypeAndSutureRemoval == nil && u.PlannedFollowUps == nil
}

// Validate checks only the supplied fields.
func (u *UpdateInput) Validate() error {
	var ve ValidationError
	required := map[string]*string{
		"patientName": u.PatientName,
		"diagnosis":   u.Diagnosis,
		"hospital":    u.Hospital,
	}
	for name, v := range required {
		if v != nil && strings.TrimSpace(*v) == "" {
			ve.add(name, "This field is required")
		}
	}
	if u.Age != nil {
		if msg := ageProblem(*u.Age); msg != "" {
			ve.add("age", msg)
		}
	}
	if u.Date != nil {
		if msg := dateProblem(strings.TrimSpace(*u.Date)); msg != "" {
			ve.add("date", msg)
		}
	}
	return ve.orNil()
}

// Apply merges u into p.
func (u *UpdateInput) Apply(p *Patient) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.PatientName, u.PatientName)
	set(&p.Date, u.Date)
	set(&p.Diagnosis, u.Diagnosis)
	set(&p.Procedure, u.Procedure)
	set(&p.Hospital, u.Hospital)
	set(&p.Expectations, u.Expectations)
	set(&p.FollowUpParameters, u.FollowUpParameters)
	set(&p.KWireRemoval, u.KWireRemoval)
	set(&p.SplintChangeRemoval, u.SplintChangeRemoval)
	set(&p.TypeAndSutureRemoval, u.TypeAndSutureRemoval)
	if u.Age != nil {
		p.Age = *u.Age
	}
	if f := u.PlannedFollowUps; f != nil {
		set(&p.PlannedFollowUps.First, f.First)
		set(&p.PlannedFollowUps.Second, f.Second)
		set(&p.PlannedFollowUps.Third, f.Third)
	}
}

func ageProblem(age int) string {
	if age < MinAge || age > MaxAge {
		return fmt.Sprintf("Age must be between %d and %d", MinAge, MaxAge)
	}
	return ""
}

func dateProblem(date string) string {
	if date == "" {
		return ""
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "Date must be YYYY-MM-DD"
	}
	return ""
}
