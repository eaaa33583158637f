package constraint

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Unbounded marks an open time bound or a disabled limit.
const Unbounded int64 = -1

// LimitType selects which end of a per-target result set a selection limit keeps.
type LimitType int

const (
	LimitFirst LimitType = iota
	LimitLast
)

func (t LimitType) String() string {
	if t == LimitLast {
		return "last"
	}
	return "first"
}

func (t LimitType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseLimitType resolves a declared limit type. An absent or unrecognized
// type resolves to LAST for a positive limit and FIRST otherwise.
func ParseLimitType(s string, limit int64) LimitType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return LimitFirst
	case "last":
		return LimitLast
	}
	if limit > 0 {
		return LimitLast
	}
	return LimitFirst
}

// Constraints bounds a record selection. Time bounds are inclusive epoch
// seconds. SelectionLimit caps records per target, ReportLimit caps the sum
// across all targets of one report instance.
type Constraints struct {
	TimeStart          int64     `json:"timeStart" yaml:"timeStart"`
	TimeEnd            int64     `json:"timeEnd" yaml:"timeEnd"`
	TimeZone           string    `json:"timeZone,omitempty" yaml:"timeZone,omitempty"`
	ValidGPSRequired   bool      `json:"validGPSRequired" yaml:"validGPSRequired"`
	StatusCodes        []int     `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty"`
	OrderAscending     bool      `json:"orderAscending" yaml:"orderAscending"`
	SelectionLimitType LimitType `json:"selectionLimitType" yaml:"selectionLimitType"`
	SelectionLimit     int64     `json:"selectionLimit" yaml:"selectionLimit"`
	ReportLimit        int64     `json:"reportLimit" yaml:"reportLimit"`
	Where              string    `json:"where,omitempty" yaml:"where,omitempty"`
	RuleSelector       string    `json:"ruleSelector,omitempty" yaml:"ruleSelector,omitempty"`
}

// New returns unbounded, ascending constraints.
func New() *Constraints {
	return &Constraints{
		TimeStart:          Unbounded,
		TimeEnd:            Unbounded,
		OrderAscending:     true,
		SelectionLimitType: LimitFirst,
		SelectionLimit:     Unbounded,
		ReportLimit:        Unbounded,
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c *Constraints) Clone() *Constraints {
	if c == nil {
		return New()
	}
	out := *c
	out.StatusCodes = slices.Clone(c.StatusCodes)
	return &out
}

// SetTimeRange overrides both time bounds. A non-positive value leaves the
// bound open.
func (c *Constraints) SetTimeRange(start, end int64) {
	c.TimeStart = normalizeBound(start)
	c.TimeEnd = normalizeBound(end)
}

// SetSelectionLimit sets the per-target cap.
func (c *Constraints) SetSelectionLimit(t LimitType, limit int64) {
	c.SelectionLimitType = t
	if limit < 0 {
		limit = Unbounded
	}
	c.SelectionLimit = limit
}

// HasSelectionLimit reports whether the per-target cap applies.
func (c *Constraints) HasSelectionLimit() bool {
	return c.SelectionLimit >= 0
}

// HasReportLimit reports whether the cross-target cap applies.
func (c *Constraints) HasReportLimit() bool {
	return c.ReportLimit >= 0
}

// ReportLimitReached reports whether total already consumes the report limit.
func (c *Constraints) ReportLimitReached(total int64) bool {
	return c.HasReportLimit() && total >= c.ReportLimit
}

// MatchesStatusCode reports whether code passes the status code filter.
// An empty filter accepts every code.
func (c *Constraints) MatchesStatusCode(code int) bool {
	if len(c.StatusCodes) == 0 {
		return true
	}
	return slices.Contains(c.StatusCodes, code)
}

// EffectiveRange returns the time range a retrieval should use. Positive
// overrides replace the constraint bounds.
func (c *Constraints) EffectiveRange(overrideStart, overrideEnd int64) (int64, int64) {
	start, end := c.TimeStart, c.TimeEnd
	if overrideStart > 0 {
		start = overrideStart
	}
	if overrideEnd > 0 {
		end = overrideEnd
	}
	return start, end
}

func (c *Constraints) String() string {
	return fmt.Sprintf("range=[%d,%d] gps=%t asc=%t limit=%s:%d report=%d codes=%v where=%q rule=%q",
		c.TimeStart, c.TimeEnd, c.ValidGPSRequired, c.OrderAscending,
		c.SelectionLimitType, c.SelectionLimit, c.ReportLimit, c.StatusCodes, c.Where, c.RuleSelector)
}

func normalizeBound(v int64) int64 {
	if v <= 0 {
		return Unbounded
	}
	return v
}

// ParseStatusCodes reads a comma or space separated list of decimal or 0x
// hex status codes.
func ParseStatusCodes(s string) ([]int, error) {
	var codes []int
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		v, err := strconv.ParseInt(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("status code %q: %w", f, err)
		}
		codes = append(codes, int(v))
	}
	return codes, nil
}
