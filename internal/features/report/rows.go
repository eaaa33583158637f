package report

import (
	"strings"
	"time"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/option"
)

const (
	defaultDateFormat = "2006/01/02"
	defaultTimeFormat = "15:04:05"
)

// Row holds the values of one output line keyed by column name.
type Row map[string]any

// Values returns the row values in column order.
func (r Row) Values(cols []catalog.Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r[c.Name]
	}
	return out
}

// RowIterator is a forward-only, single-pass row sequence.
type RowIterator struct {
	rows []Row
	pos  int
}

func (it *RowIterator) Next() (Row, bool) {
	if it == nil || it.pos >= len(it.rows) {
		return nil, false
	}
	r := it.rows[it.pos]
	it.rows[it.pos] = nil
	it.pos++
	return r, true
}

// Output is a built report ready for rendering. Rows and Totals hand out
// their sequence once; later calls get an exhausted iterator.
type Output struct {
	Columns      []catalog.Column
	HeaderGroups []catalog.HeaderGroup
	Partial      bool
	Counters     Counters

	rows   []Row
	totals []Row
}

func (o *Output) Rows() *RowIterator {
	it := &RowIterator{rows: o.rows}
	o.rows = nil
	return it
}

func (o *Output) Totals() *RowIterator {
	it := &RowIterator{rows: o.totals}
	o.totals = nil
	return it
}

func (o *Output) addRow(r Row)   { o.rows = append(o.rows, r) }
func (o *Output) addTotal(r Row) { o.totals = append(o.totals, r) }

func (in *Instance) newOutput(c Counters) *Output {
	return &Output{
		Columns:      in.Columns(),
		HeaderGroups: in.HeaderGroups(),
		Partial:      c.IsPartial,
		Counters:     c,
	}
}

// recordRow renders rec for the instance's columns. index is zero based.
func (in *Instance) recordRow(index int, rec *event.Record) Row {
	loc := in.location()
	ts := time.Unix(rec.Timestamp, 0).In(loc)
	row := make(Row, len(in.columns))
	for _, c := range in.columns {
		var v any
		switch c.Name {
		case "index":
			v = index + 1
		case "deviceId":
			v = rec.DeviceID
		case "deviceDesc":
			v = deviceName(rec)
		case "date":
			v = ts.Format(goLayout(in.layout.DateFormat, defaultDateFormat))
		case "time":
			v = ts.Format(goLayout(in.layout.TimeFormat, defaultTimeFormat))
		case "timestamp":
			v = ts.Format(goLayout(in.layout.DateFormat, defaultDateFormat) + " " + goLayout(in.layout.TimeFormat, defaultTimeFormat))
		case "statusCode":
			v = option.FormatStatusCode(rec.StatusCode)
		case "latitude":
			v = rec.Latitude
		case "longitude":
			v = rec.Longitude
		case "speed":
			v = rec.SpeedKPH
		case "heading":
			v = rec.Heading
		case "altitude":
			v = rec.Altitude
		case "odometer":
			v = rec.OdometerKM
		case "driverId":
			v = rec.DriverID
		case "geozoneId":
			v = rec.GeozoneID
		case "address":
			v = rec.Address
		case "distance":
			if d, ok := rec.ReportDistanceKM(); ok {
				v = d
			}
		}
		row[c.Name] = v
	}
	return in.fillBlanks(row)
}

// fillBlanks keeps the instance's columns only and applies blank fill text.
func (in *Instance) fillBlanks(row Row) Row {
	out := make(Row, len(in.columns))
	for _, c := range in.columns {
		v := row[c.Name]
		if isBlank(v) {
			v = c.BlankFill
		}
		out[c.Name] = v
	}
	return out
}

func (in *Instance) location() *time.Location {
	if tz := in.constraints.TimeZone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

var dateTokens = strings.NewReplacer(
	"yyyy", "2006", "yy", "06",
	"MM", "01", "dd", "02",
	"HH", "15", "mm", "04", "ss", "05",
)

// goLayout accepts either a Go reference layout or a yyyy/MM/dd HH:mm:ss
// style pattern.
func goLayout(format, def string) string {
	switch {
	case format == "":
		return def
	case strings.Contains(format, "2006") || strings.Contains(format, "15"):
		return format
	}
	return dateTokens.Replace(format)
}
