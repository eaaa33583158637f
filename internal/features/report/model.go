package report

import (
	"time"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/directory"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TargetKind string

const (
	// TargetNone selects by the where clause alone.
	TargetNone    TargetKind = ""
	TargetDevice  TargetKind = "device"
	TargetDevices TargetKind = "devices"
	TargetGroup   TargetKind = "group"
	TargetDriver  TargetKind = "driver"
)

// Target is the entity a report instance retrieves records for. It is stored
// as given; existence is checked on first retrieval.
type Target struct {
	Kind      TargetKind `json:"kind" bson:"kind"`
	DeviceID  string     `json:"deviceID,omitempty" bson:"device_id,omitempty"`
	DeviceIDs []string   `json:"deviceIDs,omitempty" bson:"device_ids,omitempty"`
	GroupID   string     `json:"groupID,omitempty" bson:"group_id,omitempty"`
	DriverID  string     `json:"driverID,omitempty" bson:"driver_id,omitempty"`
	// Device, when set, is attached to every record of a single device
	// target without a directory lookup.
	Device *directory.Device `json:"-" bson:"-"`
}

func DeviceTarget(deviceID string) Target {
	return Target{Kind: TargetDevice, DeviceID: deviceID}
}

func DevicesTarget(deviceIDs ...string) Target {
	return Target{Kind: TargetDevices, DeviceIDs: deviceIDs}
}

func GroupTarget(groupID string) Target {
	return Target{Kind: TargetGroup, GroupID: groupID}
}

func DriverTarget(driverID string) Target {
	return Target{Kind: TargetDriver, DriverID: driverID}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetDevice:
		return "device:" + t.DeviceID
	case TargetDevices:
		return "devices"
	case TargetGroup:
		return "group:" + t.GroupID
	case TargetDriver:
		return "driver:" + t.DriverID
	}
	return "account"
}

// Requester is the authenticated caller of a report operation.
type Requester struct {
	AccountID string
	UserID    string
	SysAdmin  bool
	GroupIDs  []string
	Locale    string
}

// RunRequest is the body of a run or export call.
type RunRequest struct {
	Option         string   `json:"option,omitempty"`
	DeviceID       string   `json:"deviceID,omitempty"`
	DeviceIDs      []string `json:"deviceIDs,omitempty"`
	GroupID        string   `json:"groupID,omitempty"`
	DriverID       string   `json:"driverID,omitempty"`
	TimeStart      int64    `json:"timeStart,omitempty"`
	TimeEnd        int64    `json:"timeEnd,omitempty"`
	IncludeColumns []string `json:"includeColumns,omitempty"`
	ExcludeColumns []string `json:"excludeColumns,omitempty"`
	Filename       string   `json:"filename,omitempty"`
}

// Target derives the retrieval target. The most specific selector wins.
func (r RunRequest) Target() Target {
	switch {
	case r.DeviceID != "":
		return DeviceTarget(r.DeviceID)
	case len(r.DeviceIDs) > 0:
		return DevicesTarget(r.DeviceIDs...)
	case r.GroupID != "":
		return GroupTarget(r.GroupID)
	case r.DriverID != "":
		return DriverTarget(r.DriverID)
	}
	return Target{}
}

// RunResult is the JSON form of a built report.
type RunResult struct {
	Report       string                `json:"report"`
	Title        string                `json:"title"`
	Option       string                `json:"option,omitempty"`
	Columns      []catalog.Column      `json:"columns"`
	HeaderGroups []catalog.HeaderGroup `json:"headerGroups,omitempty"`
	Rows         [][]any               `json:"rows"`
	Totals       [][]any               `json:"totals,omitempty"`
	IsPartial    bool                  `json:"isPartial"`
	Counters     Counters              `json:"counters"`
}

// RunRecord is one entry of the run history.
type RunRecord struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Report     string             `json:"report" bson:"report"`
	Option     string             `json:"option,omitempty" bson:"option,omitempty"`
	Format     string             `json:"format" bson:"format"`
	AccountID  string             `json:"accountID" bson:"account_id"`
	UserID     string             `json:"userID,omitempty" bson:"user_id,omitempty"`
	Target     Target             `json:"target" bson:"target"`
	Records    int64              `json:"records" bson:"records"`
	IsPartial  bool               `json:"isPartial" bson:"is_partial"`
	DurationMS int64              `json:"durationMS" bson:"duration_ms"`
	Error      string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
}

// HealthStatus reports the state of the last catalog load.
type HealthStatus struct {
	Reports     int               `json:"reports"`
	HasErrors   bool              `json:"hasErrors"`
	HasWarnings bool              `json:"hasWarnings"`
	Problems    []catalog.Problem `json:"problems,omitempty"`
}

// ReportSummary is one menu line.
type ReportSummary struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Scope        catalog.Scope `json:"scope"`
	Menu         string        `json:"menu"`
	Title        string        `json:"title"`
	SysAdminOnly bool          `json:"sysAdminOnly"`
	HasOptions   bool          `json:"hasOptions"`
}
