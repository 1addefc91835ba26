package extract

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDictatedIntake(t *testing.T) {
	text := "patient name is John Carter, age 52, diagnosis is rotator cuff tear, " +
		"procedure is arthroscopic repair, hospital is St. Mary's Hospital"

	got := Parse(text)
	want := Fields{
		PatientName: "John Carter",
		Age:         "52",
		Diagnosis:   "Rotator cuff tear",
		Procedure:   "Arthroscopic repair",
		Hospital:    "St. Mary'S Hospital",
	}
	assert.Equal(t, want, got)
}

func TestParseBoundaries(t *testing.T) {
	got := Parse("diagnosis is distal radius fracture procedure is closed reduction")
	assert.Equal(t, "Distal radius fracture", got[Diagnosis])
	assert.Equal(t, "Closed reduction", got[Procedure])
	assert.NotContains(t, got[Diagnosis], "procedure")
}

func TestParseStopsAtSentenceEnd(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field Field
		want  string
	}{
		{"diagnosis", "diagnosis is rotator cuff tear. Patient stable", Diagnosis, "Rotator cuff tear"},
		{"procedure", "procedure is closed reduction. Tolerated well", Procedure, "Closed reduction"},
		{"decimal_kept", "diagnosis is 2.5 cm laceration. Clean wound", Diagnosis, "2.5 cm laceration"},
		{"end_of_input", "suture removal at day 14.", TypeAndSutureRemoval, "Day 14"},
		{"follow_up", "first follow up in 2 weeks. Call if swelling", FollowUpFirst, "In 2 weeks"},
		{"hospital_keeps_abbreviation", "hospital is St. Mary's Hospital. Discharged", Hospital, "St. Mary'S Hospital. Discharged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.text)[tt.field]; got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"age_is", "age is 45", "45", true},
		{"age_bare", "age 7 with wrist pain", "7", true},
		{"years_old", "a 63 year old male", "63", true},
		{"years_hyphen", "a 12-year-old girl", "12", true},
		{"yo", "34yo female", "34", true},
		{"out_of_range", "age is 200", "", false},
		{"zero", "age 0", "", false},
		{"falls_through_to_next_pattern", "age 300, she is 41 years old", "41", true},
		{"stage_is_not_age", "stage 3 lesion", "", false},
		{"no_age", "diagnosis is sprain", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text).Get(Age)
			if ok != tt.ok || got != tt.want {
				t.Errorf("age = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"patient_name_is", "patient name is mary ann lee, age 30", "Mary Ann Lee"},
		{"patient_is", "patient is JOHN SMITH, diagnosis is sprain", "John Smith"},
		{"name_is", "name is ana lopez, 40 years old", "Ana Lopez"},
		{"before_age", "this is peter parker age 18", "Peter Parker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)[PatientName]
			if got != tt.want {
				t.Errorf("patientName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClinicalFields(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field Field
		want  string
	}{
		{"diagnosed_with", "she was diagnosed with a scaphoid fracture treatment pending", Diagnosis, "A scaphoid fracture"},
		{"presenting_with", "presenting with knee pain", Diagnosis, "Knee pain"},
		{"diagnosis_colon", "Diagnosis: ACL tear", Diagnosis, "ACL tear"},
		{"underwent", "underwent ORIF of the radius, follow up in clinic", Procedure, "ORIF of the radius"},
		{"scheduled_for", "scheduled for total knee replacement hospital is Mercy", Procedure, "Total knee replacement"},
		{"surgery", "surgery is carpal tunnel release", Procedure, "Carpal tunnel release"},
		{"hospital_is", "hospital is general hospital expected recovery 6 weeks", Hospital, "General Hospital"},
		{"at_medical_center", "seen at riverside medical center", Hospital, "Riverside Medical Center"},
		{"admitted_to", "admitted to county hospital", Hospital, "County Hospital"},
		{"expectations", "expectations are full range of motion follow up in 2 weeks", Expectations, "Full range of motion"},
		{"goals", "goals include return to sport", Expectations, "Return to sport"},
		{"parameters", "follow up parameters include x-ray and wound check splint change at 2 weeks", FollowUpParameters, "X-ray and wound check"},
		{"monitoring", "monitoring neurovascular status", FollowUpParameters, "Neurovascular status"},
		{"k_wire", "k-wire removal at 4 weeks, splint change at 2 weeks", KWireRemoval, "4 weeks"},
		{"remove_k_wire", "remove k wire at six weeks", KWireRemoval, "Six weeks"},
		{"splint", "splint change at 2 weeks suture removal at 10 days", SplintChangeRemoval, "2 weeks"},
		{"suture", "suture removal at 10 days", TypeAndSutureRemoval, "10 days"},
		{"absorbable", "absorbable sutures no removal needed", TypeAndSutureRemoval, "No removal needed"},
		{"first_follow_up", "first follow up in 1 week second follow-up in 6 weeks third followup in 3 months", FollowUpFirst, "In 1 week"},
		{"second_follow_up", "first follow up in 1 week second follow-up in 6 weeks third followup in 3 months", FollowUpSecond, "In 6 weeks"},
		{"third_follow_up", "first follow up in 1 week second follow-up in 6 weeks third followup in 3 months", FollowUpThird, "In 3 months"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text).Get(tt.field)
			if !ok {
				t.Fatalf("%s not extracted from %q", tt.field, tt.text)
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestParseNeverEmitsEmptyValues(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"diagnosis is",
		"procedure is , hospital is .",
		"nothing clinical here at all",
	}
	for _, in := range inputs {
		for f, v := range Parse(in) {
			if v == "" {
				t.Errorf("Parse(%q)[%s] is empty", in, f)
			}
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"st. mary's hospital": "St. Mary'S Hospital",
		"JOHN   carter":       "John Carter",
		"3rd street clinic":   "3rd Street Clinic",
		"o'neil":              "O'Neil",
	}
	for in, want := range tests {
		got, ok := titleCase(in)
		if !ok || got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFieldsPresentOrder(t *testing.T) {
	fs := Fields{Hospital: "x", PatientName: "y", FollowUpThird: "z"}
	want := []Field{PatientName, Hospital, FollowUpThird}
	if got := fs.Present(); !reflect.DeepEqual(got, want) {
		t.Errorf("Present() = %v, want %v", got, want)
	}
}
