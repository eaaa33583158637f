package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/constraint"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/option"

	"go.uber.org/zap"
)

var (
	ErrUnknownKind   = errors.New("unknown report kind")
	ErrInvalidTarget = errors.New("invalid report target")
)

const (
	ClassEventDetail  = "event.detail"
	ClassEventSummary = "event.summary"
	ClassEventCount   = "event.count"

	LayoutTable       = "table"
	LayoutSpreadsheet = "spreadsheet"
)

// Report properties read by the built-in kinds.
const (
	PropSelectBy              = "selectBy"
	PropIgnoreReportStartTime = "ignoreReportStartTime"
	PropStatusCodes           = "statusCodes"
	PropDataFieldEnabled      = "reportDataFieldEnabled"
)

const (
	SelectByDevice = "device"
	SelectByDriver = "driver"
	SelectByWhere  = "where"
)

// Kind is the runtime behavior bound to a catalog entry's class.
type Kind interface {
	Name() string
	Layout() string
	// OptionsResolver backs the custom options kind; nil means none.
	OptionsResolver() option.Resolver
	// PostInitialize adjusts the instance once, before any retrieval.
	PostInitialize(in *Instance)
	// IsMatch is the per-record acceptance predicate.
	IsMatch(in *Instance, rec *event.Record) bool
	Build(ctx context.Context, in *Instance) (*Output, error)
}

type baseKind struct {
	name   string
	layout string
}

func (k baseKind) Name() string                                 { return k.name }
func (k baseKind) Layout() string                               { return k.layout }
func (k baseKind) OptionsResolver() option.Resolver             { return nil }
func (k baseKind) PostInitialize(in *Instance)                  {}
func (k baseKind) IsMatch(in *Instance, rec *event.Record) bool { return true }

// Kinds maps class names and layout names to their implementations. It is
// the binding registry consulted by catalog loads.
type Kinds struct {
	mu      sync.RWMutex
	kinds   map[string]Kind
	layouts map[string]struct{}
}

func NewKinds() *Kinds {
	return &Kinds{
		kinds:   make(map[string]Kind),
		layouts: make(map[string]struct{}),
	}
}

// DefaultKinds registers the built-in event kinds and layouts.
func DefaultKinds() *Kinds {
	k := NewKinds()
	k.RegisterLayout(LayoutTable, LayoutSpreadsheet)
	k.Register(&DetailKind{baseKind{name: ClassEventDetail, layout: LayoutTable}})
	k.Register(&SummaryKind{baseKind{name: ClassEventSummary, layout: LayoutTable}})
	k.Register(&CountKind{baseKind{name: ClassEventCount, layout: LayoutTable}})
	return k
}

func (k *Kinds) Register(kind Kind) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kinds[kind.Name()] = kind
}

func (k *Kinds) RegisterLayout(names ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, n := range names {
		k.layouts[n] = struct{}{}
	}
}

func (k *Kinds) Binding(class string) (catalog.Binding, bool) {
	kind, err := k.Kind(class)
	if err != nil {
		return nil, false
	}
	return kind, true
}

func (k *Kinds) HasLayout(name string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.layouts[name]
	return ok
}

func (k *Kinds) Kind(class string) (Kind, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kind, ok := k.kinds[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, class)
	}
	return kind, nil
}

func (k *Kinds) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.kinds))
	for n := range k.kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DetailKind lists every selected record. The selectBy property switches
// between the target (default) and the where clause.
type DetailKind struct{ baseKind }

func (k *DetailKind) Build(ctx context.Context, in *Instance) (*Output, error) {
	var (
		ret *Retrieval
		err error
	)
	switch strings.ToLower(in.EffectiveProperties().String(PropSelectBy, SelectByDevice)) {
	case SelectByWhere:
		ret, err = in.EventsByWhere(ctx, nil)
	case SelectByDriver:
		if in.Target().Kind != TargetDriver {
			return nil, fmt.Errorf("%w: %s selects by driver", ErrInvalidTarget, in.Entry().Name())
		}
		ret, err = in.Events(ctx, nil)
	default:
		ret, err = in.Events(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	out := in.newOutput(ret.Counters)
	for i, rec := range ret.Records {
		out.addRow(in.recordRow(i, rec))
	}
	return out, nil
}

// SummaryKind reports the first matching record of every device, ordered by
// device description.
type SummaryKind struct{ baseKind }

// PostInitialize drops the start time when the latest records are wanted.
func (k *SummaryKind) PostInitialize(in *Instance) {
	c := in.Constraints()
	if c.SelectionLimitType == constraint.LimitLast ||
		in.EffectiveProperties().Bool(false, PropIgnoreReportStartTime) {
		c.TimeStart = constraint.Unbounded
		in.overrideStart = 0
	}
}

func (k *SummaryKind) Build(ctx context.Context, in *Instance) (*Output, error) {
	seen := make(map[string]bool)
	var picked []*event.Record
	ret, err := in.Events(ctx, func(rec *event.Record) (event.Decision, error) {
		if seen[rec.DeviceID] {
			return event.Skip, nil
		}
		seen[rec.DeviceID] = true
		picked = append(picked, rec)
		return event.Accept, nil
	})
	if err != nil {
		return nil, err
	}
	if n := int(ret.Counters.TotalRecordsEmitted); len(picked) > n {
		picked = picked[:n]
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return strings.ToLower(deviceName(picked[i])) < strings.ToLower(deviceName(picked[j]))
	})
	out := in.newOutput(ret.Counters)
	for i, rec := range picked {
		out.addRow(in.recordRow(i, rec))
	}
	return out, nil
}

// CountKind reports the number of matching records per device using the
// count query. Match predicates and rule selectors do not apply to counts.
type CountKind struct{ baseKind }

// Motion option ids served by CountKind.
const (
	MotionAll     = "all"
	MotionMoving  = "moving"
	MotionStopped = "stopped"
)

func (k *CountKind) OptionsResolver() option.Resolver {
	return option.ResolverFunc(func(ctx context.Context, oc option.Context) (*option.Set, error) {
		set := option.NewSet()
		for _, o := range []*option.ReportOption{
			option.NewReportOption(MotionAll, "All events"),
			option.NewReportOption(MotionMoving, "Moving events").SetValue(PropStatusCodes, "0xF111,0xF112"),
			option.NewReportOption(MotionStopped, "Stopped events").SetValue(PropStatusCodes, "0xF113,0xF114"),
		} {
			if err := set.Add(o); err != nil {
				return nil, err
			}
		}
		return set, nil
	})
}

// PostInitialize applies a statusCodes property to the constraints.
func (k *CountKind) PostInitialize(in *Instance) {
	raw, ok := in.EffectiveProperties().Get(PropStatusCodes)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	codes, err := constraint.ParseStatusCodes(raw)
	if err != nil {
		in.logger.Warn("Ignoring invalid status code list", zap.Error(err))
		return
	}
	in.Constraints().StatusCodes = codes
}

func (k *CountKind) Build(ctx context.Context, in *Instance) (*Output, error) {
	if in.store == nil {
		return nil, errNoStore
	}
	in.PostInitialize()
	ids, err := in.targetDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := in.newOutput(Counters{})
	var total int64
	for i, id := range ids {
		out.Counters.TargetsVisited++
		n, err := in.store.CountEvents(ctx, in.rangeQuery(id))
		if err != nil {
			out.Counters.TargetFailures++
			in.logger.Error("Event count failed", zap.String("device", id), zap.Error(err))
			n = 0
		}
		total += n
		desc := id
		if dev := in.lookupDevice(ctx, id); dev != nil {
			desc = dev.DisplayName()
		}
		out.addRow(in.fillBlanks(Row{"index": i + 1, "deviceId": id, "deviceDesc": desc, "count": n}))
	}
	out.Counters.TotalRecordsEmitted = int64(len(ids))
	out.addTotal(in.fillBlanks(Row{"deviceDesc": "Total", "count": total}))
	return out, nil
}

func deviceName(rec *event.Record) string {
	if d := rec.Device(); d != nil {
		return d.DisplayName()
	}
	return rec.DeviceID
}
