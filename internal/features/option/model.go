package option

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go-fleetreport/pkg/orderedmap"
)

var ErrDuplicateOption = errors.New("duplicate report option")

// ReportOption is one selectable parameter bundle. Values are injected into
// report properties and where clauses when the option is bound.
type ReportOption struct {
	ID          string
	Description string
	Values      *orderedmap.Map[string, string]
}

func NewReportOption(id, description string) *ReportOption {
	return &ReportOption{
		ID:          id,
		Description: description,
		Values:      orderedmap.New[string, string](),
	}
}

func (o *ReportOption) SetValue(key, value string) *ReportOption {
	o.Values.Set(key, value)
	return o
}

func (o *ReportOption) Value(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	return o.Values.Get(key)
}

func (o *ReportOption) Clone() *ReportOption {
	if o == nil {
		return nil
	}
	return &ReportOption{ID: o.ID, Description: o.Description, Values: o.Values.Clone()}
}

// MarshalJSON writes values as an object in their declared order.
func (o *ReportOption) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if err := writeJSON(&buf, o.ID); err != nil {
		return nil, err
	}
	buf.WriteString(`,"description":`)
	if err := writeJSON(&buf, o.Description); err != nil {
		return nil, err
	}
	buf.WriteString(`,"values":{`)
	var err error
	i := 0
	o.Values.Each(func(k, v string) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		if err = writeJSON(&buf, k); err != nil {
			return false
		}
		buf.WriteByte(':')
		err = writeJSON(&buf, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Set is an ordered collection of options keyed by id.
type Set struct {
	options *orderedmap.Map[string, *ReportOption]
}

func NewSet() *Set {
	return &Set{options: orderedmap.New[string, *ReportOption]()}
}

// Add appends opt. Ids are unique within a set.
func (s *Set) Add(opt *ReportOption) error {
	if s.options.Has(opt.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateOption, opt.ID)
	}
	s.options.Set(opt.ID, opt)
	return nil
}

func (s *Set) Get(id string) (*ReportOption, bool) {
	if s == nil {
		return nil, false
	}
	return s.options.Get(id)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.options.Len()
}

func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	return s.options.Keys()
}

// List returns the options in order.
func (s *Set) List() []*ReportOption {
	out := make([]*ReportOption, 0, s.Len())
	if s == nil {
		return out
	}
	s.options.Each(func(_ string, o *ReportOption) bool {
		out = append(out, o)
		return true
	})
	return out
}

func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// Context carries the account scoped state resolvers read.
type Context struct {
	AccountID string
	// GroupIDs lists the device groups visible to the user, including the
	// synthetic "all" group.
	GroupIDs []string
	// StatusCodes maps codes known to the current label context to descriptions.
	StatusCodes map[int]string
	Locale      string
}
