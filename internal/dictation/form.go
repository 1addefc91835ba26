package dictation

import (
	"sync"

	"github.com/orthocare/orthocare/internal/extract"
)

// FormSink receives proposed field values. The controller calls Set while
// holding its own lock, so implementations must not call back into the
// controller.
type FormSink interface {
	Set(field, value string)
}

// Form is an in-memory FormSink keyed by field name.
type Form struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{values: make(map[string]string)}
}

func (f *Form) Set(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[field] = value
}

// Get returns a field value and whether it has been set.
func (f *Form) Get(field string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[field]
	return v, ok
}

// Values returns a copy of every set field.
func (f *Form) Values() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Fields returns the form content as extractor fields, dropping keys the
// extractor does not know.
func (f *Form) Fields() extract.Fields {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := extract.Fields{}
	for k, v := range f.values {
		if fld := extract.Field(k); fld.Valid() && v != "" {
			out[fld] = v
		}
	}
	return out
}
