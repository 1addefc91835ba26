// Package patients defines the patient record, its validation and the
// search and ordering rules every store implementation follows.
package patients

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of the clinical date.
const DateLayout = "2006-01-02"

const (
	MinAge = 1
	MaxAge = 150
)

// ErrNotFound is returned when no patient has the requested id.
var ErrNotFound = errors.New("patient not found")

// FollowUps are the three planned follow-up appointments, free text.
type FollowUps struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

// Patient is one stored patient record.
type Patient struct {
	ID                   string    `json:"id"`
	PatientName          string    `json:"patientName"`
	Age                  int       `json:"age"`
	Date                 string    `json:"date,omitempty"` // YYYY-MM-DD, empty when undated
	Diagnosis            string    `json:"diagnosis"`
	Procedure            string    `json:"procedure,omitempty"`
	Hospital             string    `json:"hospital"`
	Expectations         string    `json:"expectations,omitempty"`
	FollowUpParameters   string    `json:"followUpParameters,omitempty"`
	KWireRemoval         string    `json:"kWireRemoval,omitempty"`
	SplintChangeRemoval  string    `json:"splintChangeRemoval,omitempty"`
	TypeAndSutureRemoval string    `json:"typeAndSutureRemoval,omitempty"`
	PlannedFollowUps     FollowUps `json:"plannedFollowUps"`
	CreatedAt            time.Time `json:"createdAt"`
}

// searchable lists the fields a search query is matched against.
func (p *Patient) searchable() []string {
	return []string{
		p.PatientName,
		p.Diagnosis,
		p.Procedure,
		p.Hospital,
		fmt.Sprint(p.Age),
		p.Expectations,
		p.FollowUpParameters,
		p.KWireRemoval,
		p.SplintChangeRemoval,
		p.TypeAndSutureRemoval,
	}
}

// Matches reports whether query is a case-insensitive substring of any
// searchable field. A blank query matches everything.
func (p *Patient) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, v := range p.searchable() {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Filter returns the patients matching query, preserving order.
func Filter(list []Patient, query string) []Patient {
	if strings.TrimSpace(query) == "" {
		return list
	}
	out := make([]Patient, 0, len(list))
	for i := range list {
		if list[i].Matches(query) {
			out = append(out, list[i])
		}
	}
	return out
}

// SortByDate orders newest clinical date first. Undated records share one
// rank after all dated ones and keep their relative order.
func SortByDate(list []Patient) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Date, list[j].Date
		switch {
		case a == "" || b == "":
			return a != "" && b == ""
		default:
			return a > b
		}
	})
}
