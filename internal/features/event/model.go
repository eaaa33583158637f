package event

import (
	"context"
	"math"
	"strconv"

	"go-fleetreport/internal/features/constraint"
	"go-fleetreport/internal/features/directory"
)

// Record is one time-series event. The previous link, the owning device and
// the derived distance are set by the selection pipeline and never persisted.
type Record struct {
	AccountID  string  `bson:"account_id" json:"accountID"`
	DeviceID   string  `bson:"device_id" json:"deviceID"`
	Timestamp  int64   `bson:"event_time" json:"timestamp"`
	StatusCode int     `bson:"status_code" json:"statusCode"`
	Latitude   float64 `bson:"latitude" json:"latitude"`
	Longitude  float64 `bson:"longitude" json:"longitude"`
	GPSValid   bool    `bson:"gps_valid" json:"gpsValid"`
	SpeedKPH   float64 `bson:"speed_kph" json:"speedKPH"`
	Heading    float64 `bson:"heading" json:"heading"`
	Altitude   float64 `bson:"altitude" json:"altitude"`
	OdometerKM float64 `bson:"odometer_km" json:"odometerKM"`
	DriverID   string  `bson:"driver_id,omitempty" json:"driverID,omitempty"`
	GeozoneID  string  `bson:"geozone_id,omitempty" json:"geozoneID,omitempty"`
	Address    string  `bson:"address,omitempty" json:"address,omitempty"`

	previous    *Record
	device      *directory.Device
	distanceKM  float64
	hasDistance bool
}

func (r *Record) Previous() *Record { return r.previous }

func (r *Record) SetPrevious(prev *Record) { r.previous = prev }

func (r *Record) Device() *directory.Device { return r.device }

func (r *Record) SetDevice(d *directory.Device) { r.device = d }

// SameOwner reports whether r and other belong to the same account and device.
func (r *Record) SameOwner(other *Record) bool {
	return other != nil && r.AccountID == other.AccountID && r.DeviceID == other.DeviceID
}

// ReportDistanceKM returns the distance from the previous record, if computed.
func (r *Record) ReportDistanceKM() (float64, bool) {
	return r.distanceKM, r.hasDistance
}

// CalculateReportDistance sets the great circle distance from prev. Both
// records need a valid fix.
func (r *Record) CalculateReportDistance(prev *Record) float64 {
	if prev == nil || !r.IsValidGPS() || !prev.IsValidGPS() {
		return 0
	}
	r.distanceKM = HaversineKM(prev.Latitude, prev.Longitude, r.Latitude, r.Longitude)
	r.hasDistance = true
	return r.distanceKM
}

func (r *Record) IsValidGPS() bool {
	if !r.GPSValid {
		return false
	}
	return r.Latitude != 0 || r.Longitude != 0
}

// Field returns a filterable field by its query name.
func (r *Record) Field(name string) (string, bool) {
	switch name {
	case "accountID":
		return r.AccountID, true
	case "deviceID":
		return r.DeviceID, true
	case "driverID":
		return r.DriverID, true
	case "geozoneID":
		return r.GeozoneID, true
	case "statusCode":
		return strconv.Itoa(r.StatusCode), true
	}
	return "", false
}

const earthRadiusKM = 6371.0088

func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Decision is a record handler's verdict.
type Decision int

const (
	// Accept retains the record.
	Accept Decision = iota
	// Skip drops the record and continues.
	Skip
	// Stop drops the record and ends the query.
	Stop
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	}
	return "accept"
}

// Handler inspects each candidate record in delivery order.
type Handler func(rec *Record) Decision

// Filter constrains a query by a non-entity key such as a driver.
type Filter struct {
	Field string
	Value string
}

// RangeQuery selects events of one account. DeviceID is empty when the
// selection is by Filter or by Where only.
type RangeQuery struct {
	AccountID        string
	DeviceID         string
	Filter           *Filter
	TimeStart        int64
	TimeEnd          int64
	StatusCodes      []int
	ValidGPSRequired bool
	LimitType        constraint.LimitType
	Limit            int64
	Ascending        bool
	// Where is passed to the store verbatim.
	Where string
}

// Store is the time-series collaborator. RangeEvents applies the limit, then
// calls h for each candidate in delivery order and returns the accepted ones.
// A nil handler accepts everything.
type Store interface {
	RangeEvents(ctx context.Context, q RangeQuery, h Handler) ([]*Record, error)
	CountEvents(ctx context.Context, q RangeQuery) (int64, error)
}

// fetchDescending reports whether a store must read newest first to honor
// the limit type.
func (q RangeQuery) fetchDescending() bool {
	if q.Limit >= 0 {
		return q.LimitType == constraint.LimitLast
	}
	return !q.Ascending
}

// deliver runs h over records and keeps the accepted ones.
func deliver(records []*Record, h Handler) []*Record {
	if h == nil {
		return records
	}
	kept := make([]*Record, 0, len(records))
	for _, rec := range records {
		switch h(rec) {
		case Accept:
			kept = append(kept, rec)
		case Stop:
			return kept
		}
	}
	return kept
}

// orderForDelivery flips records read in fetch order into the requested order.
func orderForDelivery(records []*Record, q RangeQuery) []*Record {
	if q.fetchDescending() == !q.Ascending {
		return records
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records
}

func clampCount(n int64, q RangeQuery) int64 {
	if q.Limit >= 0 && n > q.Limit {
		return q.Limit
	}
	return n
}
