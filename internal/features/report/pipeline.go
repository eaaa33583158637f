package report

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/event"

	"go.uber.org/zap"
)

// Counters describe one retrieval call. The per-target fields hold the
// values of the last target visited.
type Counters struct {
	EventsSeenThisTarget    int64 `json:"eventsSeenThisTarget"`
	EventsMatchedThisTarget int64 `json:"eventsMatchedThisTarget"`
	MaxEventsAnyTarget      int64 `json:"maxEventsAnyTarget"`
	TotalRecordsEmitted     int64 `json:"totalRecordsEmitted"`
	IsPartial               bool  `json:"isPartial"`
	TargetsVisited          int   `json:"targetsVisited"`
	TargetFailures          int   `json:"targetFailures"`
	// CrossOwnerLinks counts records chained to a record of another device.
	CrossOwnerLinks int `json:"crossOwnerLinks"`
}

// Consumer receives every matching record in delivery order. Accept counts
// the record as emitted, Skip declines it and Stop ends the current target.
// An Accept once the report limit is reached is not emitted: it ends the
// retrieval with IsPartial set, so a consumer that retains accepted records
// keeps only the first TotalRecordsEmitted of them.
// An error or panic ends the whole retrieval with a *ForwardError.
type Consumer func(rec *event.Record) (event.Decision, error)

// ForwardError reports a consumer failure.
type ForwardError struct {
	Target string
	Err    error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forwarding %s record: %v", e.Target, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// Retrieval is the result of one retrieval call. Records is empty when a
// consumer was supplied.
type Retrieval struct {
	Records  []*event.Record
	Counters Counters
}

type selectMode int

const (
	selectDevice selectMode = iota
	selectDriver
	selectWhere
)

type target struct {
	mode   selectMode
	id     string
	device *directory.Device
}

func (t target) String() string {
	switch t.mode {
	case selectDriver:
		return "driver " + t.id
	case selectWhere:
		return "where"
	}
	return "device " + t.id
}

var errNoStore = errors.New("no event store configured")

// Events retrieves records for the instance's target.
func (in *Instance) Events(ctx context.Context, consume Consumer) (*Retrieval, error) {
	switch in.target.Kind {
	case TargetDevice:
		return in.EventsForDevice(ctx, in.target.DeviceID, consume)
	case TargetDevices, TargetGroup:
		ids, err := in.targetDeviceIDs(ctx)
		if err != nil {
			return nil, err
		}
		return in.EventsForDevices(ctx, ids, consume)
	case TargetDriver:
		return in.EventsForDriver(ctx, in.target.DriverID, consume)
	}
	return in.EventsByWhere(ctx, consume)
}

// EventsForDevice retrieves the records of one device. The target's device
// is attached without a lookup when it was supplied.
func (in *Instance) EventsForDevice(ctx context.Context, deviceID string, consume Consumer) (*Retrieval, error) {
	t := target{mode: selectDevice, id: deviceID}
	if d := in.target.Device; d != nil && d.ID == deviceID && d.AccountID == in.context.AccountID {
		t.device = d
	}
	return in.retrieve(ctx, consume, []target{t})
}

// EventsForDevices retrieves the records of each device in order, stopping
// once the report limit is consumed.
func (in *Instance) EventsForDevices(ctx context.Context, deviceIDs []string, consume Consumer) (*Retrieval, error) {
	targets := make([]target, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		targets = append(targets, target{mode: selectDevice, id: id})
	}
	return in.retrieve(ctx, consume, targets)
}

// EventsForDriver retrieves records by driver id. No device is attached.
func (in *Instance) EventsForDriver(ctx context.Context, driverID string, consume Consumer) (*Retrieval, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is blank", ErrInvalidTarget)
	}
	return in.retrieve(ctx, consume, []target{{mode: selectDriver, id: driverID}})
}

// EventsByWhere retrieves the account's records selected by the where
// clause alone. Without a where clause nothing is selected.
func (in *Instance) EventsByWhere(ctx context.Context, consume Consumer) (*Retrieval, error) {
	if strings.TrimSpace(in.WhereSelector()) == "" {
		in.logger.Warn("No device specified and no where selection, nothing retrieved",
			zap.String("report", in.Entry().Name()))
		return &Retrieval{}, nil
	}
	return in.retrieve(ctx, consume, []target{{mode: selectWhere}})
}

func (in *Instance) retrieve(ctx context.Context, consume Consumer, targets []target) (*Retrieval, error) {
	if in.store == nil {
		return nil, errNoStore
	}
	in.PostInitialize()
	r := &retrieval{in: in, consume: consume}
	if err := r.run(ctx, targets); err != nil {
		return nil, err
	}
	return &Retrieval{Records: r.records, Counters: r.counters}, nil
}

// retrieval is the state of one call. Nothing survives the call.
type retrieval struct {
	in       *Instance
	consume  Consumer
	counters Counters
	records  []*event.Record
	failure  error
}

func (r *retrieval) run(ctx context.Context, targets []target) error {
	c := r.in.constraints
	for i, t := range targets {
		if c.ReportLimitReached(r.counters.TotalRecordsEmitted) {
			if !r.counters.IsPartial {
				r.counters.IsPartial = r.anyRemaining(ctx, targets[i:])
			}
			break
		}
		r.runTarget(ctx, t)
		if r.failure != nil {
			return r.failure
		}
	}
	return nil
}

func (r *retrieval) runTarget(ctx context.Context, t target) {
	in := r.in
	r.counters.EventsSeenThisTarget = 0
	r.counters.EventsMatchedThisTarget = 0
	r.counters.TargetsVisited++

	if t.mode == selectDevice && t.device == nil && in.directory != nil {
		dev, err := in.directory.GetDevice(ctx, in.context.AccountID, t.id)
		if err != nil {
			r.counters.TargetFailures++
			if errors.Is(err, directory.ErrNotFound) {
				in.logger.Warn("Report device not found", zap.String("device", t.id))
			} else {
				in.logger.Error("Report device lookup failed", zap.String("device", t.id), zap.Error(err))
			}
			return
		}
		t.device = dev
	}

	kept, emitted := len(r.records), r.counters.TotalRecordsEmitted
	_, err := in.store.RangeEvents(ctx, in.queryFor(t), r.handler(t))
	if r.failure != nil {
		return
	}
	if err != nil {
		r.counters.TargetFailures++
		in.logger.Error("Event retrieval failed", zap.Stringer("target", t), zap.Error(err))
		if r.consume == nil {
			r.records = r.records[:kept]
			r.counters.TotalRecordsEmitted = emitted
		}
	}
	r.counters.MaxEventsAnyTarget = max(r.counters.MaxEventsAnyTarget, r.counters.EventsSeenThisTarget)
}

// handler links, attaches, filters and collects the records of one target.
// Skipped records still become the previous record of the next one.
func (r *retrieval) handler(t target) event.Handler {
	in := r.in
	var prev *event.Record
	return func(rec *event.Record) event.Decision {
		r.counters.EventsSeenThisTarget++
		rec.SetPrevious(prev)
		r.attach(t, rec, prev)
		if prev != nil && in.dataFields {
			rec.CalculateReportDistance(prev)
		}
		prev = rec

		if !in.kind.IsMatch(in, rec) || !in.matchesRule(rec) {
			return event.Skip
		}
		full := in.constraints.ReportLimitReached(r.counters.TotalRecordsEmitted)
		if r.consume == nil {
			if full {
				r.counters.IsPartial = true
				return event.Stop
			}
			r.counters.EventsMatchedThisTarget++
			r.records = append(r.records, rec)
			r.counters.TotalRecordsEmitted++
			return event.Accept
		}

		// A consumer may still decline records once the limit is reached;
		// only a record it would accept makes the result partial.
		d, err := r.forward(rec)
		if err != nil {
			in.logger.Error("Record consumer failed", zap.Stringer("target", t), zap.Error(err))
			r.failure = &ForwardError{Target: t.String(), Err: err}
			return event.Stop
		}
		if d == event.Accept && full {
			r.counters.IsPartial = true
			return event.Stop
		}
		r.counters.EventsMatchedThisTarget++
		if d == event.Accept {
			r.counters.TotalRecordsEmitted++
		}
		return d
	}
}

func (r *retrieval) attach(t target, rec, prev *event.Record) {
	switch {
	case t.device != nil:
		rec.SetDevice(t.device)
	case prev == nil:
	case prev.SameOwner(rec):
		rec.SetDevice(prev.Device())
	default:
		// driver and where selections interleave devices in one chain
		r.counters.CrossOwnerLinks++
		r.in.logger.Debug("Record chained to another device",
			zap.String("device", rec.DeviceID),
			zap.String("previous", prev.DeviceID))
	}
}

func (r *retrieval) forward(rec *event.Record) (d event.Decision, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, err = event.Stop, fmt.Errorf("consumer panic: %v", p)
		}
	}()
	return r.consume(rec)
}

// anyRemaining asks the count query whether a remaining device target has a
// record. Counts ignore match predicates, so this over-reports at worst.
func (r *retrieval) anyRemaining(ctx context.Context, rest []target) bool {
	for _, t := range rest {
		if t.mode != selectDevice {
			continue
		}
		n, err := r.in.store.CountEvents(ctx, r.in.queryFor(t))
		if err != nil {
			r.in.logger.Warn("Event count failed, assuming more records", zap.Stringer("target", t), zap.Error(err))
			return true
		}
		if n > 0 {
			return true
		}
	}
	return false
}

func (in *Instance) matchesRule(rec *event.Record) bool {
	selector := in.constraints.RuleSelector
	if selector == "" {
		return true
	}
	if in.rules == nil {
		if !in.warnedNoRules {
			in.warnedNoRules = true
			in.logger.Warn("No rule engine installed, rule selector ignored", zap.String("selector", selector))
		}
		return true
	}
	return in.rules.IsMatch(selector, rec)
}

func (in *Instance) queryFor(t target) event.RangeQuery {
	switch t.mode {
	case selectDriver:
		q := in.rangeQuery("")
		q.Filter = &event.Filter{Field: "driverID", Value: t.id}
		return q
	case selectWhere:
		return in.rangeQuery("")
	}
	return in.rangeQuery(t.id)
}

func (in *Instance) rangeQuery(deviceID string) event.RangeQuery {
	c := in.constraints
	start, end := in.TimeRange()
	return event.RangeQuery{
		AccountID:        in.context.AccountID,
		DeviceID:         deviceID,
		TimeStart:        start,
		TimeEnd:          end,
		StatusCodes:      slices.Clone(c.StatusCodes),
		ValidGPSRequired: c.ValidGPSRequired,
		LimitType:        c.SelectionLimitType,
		Limit:            c.SelectionLimit,
		Ascending:        c.OrderAscending,
		Where:            in.WhereSelector(),
	}
}

// targetDeviceIDs resolves a device, device list or group target. An
// unknown group resolves to no devices.
func (in *Instance) targetDeviceIDs(ctx context.Context) ([]string, error) {
	switch in.target.Kind {
	case TargetDevice:
		return []string{in.target.DeviceID}, nil
	case TargetDevices:
		return slices.Clone(in.target.DeviceIDs), nil
	case TargetGroup:
		if in.directory == nil {
			return nil, fmt.Errorf("%w: group %s needs a directory", ErrInvalidTarget, in.target.GroupID)
		}
		ids, err := in.directory.GroupDeviceIDs(ctx, in.context.AccountID, in.target.GroupID)
		if errors.Is(err, directory.ErrNotFound) {
			in.logger.Warn("Report device group not found", zap.String("group", in.target.GroupID))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", in.target.GroupID, err)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %s does not name devices", ErrInvalidTarget, in.target)
}

func (in *Instance) lookupDevice(ctx context.Context, deviceID string) *directory.Device {
	if in.directory == nil {
		return nil
	}
	dev, err := in.directory.GetDevice(ctx, in.context.AccountID, deviceID)
	if err != nil {
		return nil
	}
	return dev
}
