package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/option"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// acct matches the account injected when authentication is skipped.
const acct = "demo"

const detailDoc = `
<ReportDefinition>
  <Report name="trip.detail" type="device" class="event.detail">
    <Title>Trip Detail</Title>
    <SimpleColumns>index,deviceId,deviceDesc,timestamp,speed,distance</SimpleColumns>
    <Constraints>
      <ReportLimit>10</ReportLimit>
    </Constraints>
  </Report>
</ReportDefinition>`

// selectorRules accepts records whose status code is named in the selector,
// e.g. "code:61472".
type selectorRules struct{}

func (selectorRules) Name() string { return "tengo" }

func (selectorRules) CheckSyntax(s string) bool { return strings.HasPrefix(s, "code:") }

func (selectorRules) IsMatch(selector string, rec *event.Record) bool {
	return selector == "code:"+strconv.Itoa(rec.StatusCode)
}

func loadCatalog(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()
	root, err := catalog.DecodeXML(strings.NewReader(doc))
	require.NoError(t, err)
	c := catalog.NewCatalog(catalog.Config{Bindings: DefaultKinds(), Rules: selectorRules{}}, zap.NewNop())
	res := c.Load(catalog.TreeSource{Root: root})
	require.False(t, res.HasErrors, res.Problems)
	return c
}

func newFactory(c *catalog.Catalog, store event.Store, dir directory.DirectoryRepository) *Factory {
	return &Factory{
		Catalog:   c,
		Kinds:     DefaultKinds(),
		Store:     store,
		Directory: dir,
		Rules:     selectorRules{},
		Logger:    zap.NewNop(),
	}
}

func rec(device string, ts int64) event.Record {
	return event.Record{
		AccountID:  acct,
		DeviceID:   device,
		Timestamp:  ts,
		StatusCode: 0xF020,
		GPSValid:   true,
		Latitude:   45.0 + float64(ts%100)/1000,
		Longitude:  -122.0,
		SpeedKPH:   50,
	}
}

// series returns n records of device starting at ts, one minute apart.
func series(device string, ts int64, n int) []event.Record {
	out := make([]event.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rec(device, ts+int64(i)*60))
	}
	return out
}

// fleetStore holds counts[i] records for device d<i+1>.
func fleetStore(counts ...int) *event.MemoryStore {
	store := event.NewMemoryStore()
	for i, n := range counts {
		store.Insert(series(fmt.Sprintf("d%d", i+1), 1700000000+int64(i)*10000, n)...)
	}
	return store
}

func newInstance(t *testing.T, doc, name string, store event.Store, dir directory.DirectoryRepository, target Target) *Instance {
	t.Helper()
	c := loadCatalog(t, doc)
	in, err := newFactory(c, store, dir).CreateByName(context.Background(), name, "", target, option.Context{AccountID: acct})
	require.NoError(t, err)
	return in
}

func devicesOf(ret *Retrieval) map[string]int {
	out := make(map[string]int)
	for _, r := range ret.Records {
		out[r.DeviceID]++
	}
	return out
}

func TestEvents_ReportLimitAcrossDevices(t *testing.T) {
	in := newInstance(t, detailDoc, "trip.detail", fleetStore(4, 4, 5), nil, DevicesTarget("d1", "d2", "d3"))

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, ret.Records, 10)
	assert.True(t, ret.Counters.IsPartial)
	assert.Equal(t, int64(10), ret.Counters.TotalRecordsEmitted)
	assert.Equal(t, map[string]int{"d1": 4, "d2": 4, "d3": 2}, devicesOf(ret))
	assert.Equal(t, 3, ret.Counters.TargetsVisited)
	assert.Equal(t, int64(5), ret.Counters.MaxEventsAnyTarget)
}

func TestEvents_ExactLimitRemainingTargets(t *testing.T) {
	doc := strings.Replace(detailDoc, "<ReportLimit>10</ReportLimit>", "<ReportLimit>8</ReportLimit>", 1)

	t.Run("nothing remaining", func(t *testing.T) {
		in := newInstance(t, doc, "trip.detail", fleetStore(4, 4, 0), nil, DevicesTarget("d1", "d2", "d3"))
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, ret.Records, 8)
		assert.False(t, ret.Counters.IsPartial)
		assert.Equal(t, 2, ret.Counters.TargetsVisited)
	})

	t.Run("remaining device has records", func(t *testing.T) {
		in := newInstance(t, doc, "trip.detail", fleetStore(4, 4, 3), nil, DevicesTarget("d1", "d2", "d3"))
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, ret.Records, 8)
		assert.True(t, ret.Counters.IsPartial)
	})

	t.Run("count failure assumes more", func(t *testing.T) {
		store := fleetStore(4, 4, 0)
		store.Failures = map[string]error{"d3": errors.New("count down")}
		in := newInstance(t, doc, "trip.detail", store, nil, DevicesTarget("d1", "d2", "d3"))
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, ret.Counters.IsPartial)
	})
}

func TestEvents_SelectionLimitPerDevice(t *testing.T) {
	doc := `
<ReportDefinition>
  <Report name="last.two" type="fleet" class="event.detail">
    <SimpleColumns>deviceId,timestamp</SimpleColumns>
    <Constraints>
      <SelectionLimit type="last">2</SelectionLimit>
    </Constraints>
  </Report>
</ReportDefinition>`
	in := newInstance(t, doc, "last.two", fleetStore(4, 3), nil, DevicesTarget("d1", "d2"))

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ret.Records, 4)
	assert.Equal(t, map[string]int{"d1": 2, "d2": 2}, devicesOf(ret))
	// newest two of d1, delivered oldest first
	assert.Equal(t, int64(1700000000+120), ret.Records[0].Timestamp)
	assert.Equal(t, int64(1700000000+180), ret.Records[1].Timestamp)
	assert.False(t, ret.Counters.IsPartial)
}

func TestEvents_ChainsSkippedRecords(t *testing.T) {
	doc := `
<ReportDefinition>
  <Report name="alarms" type="device" class="event.detail">
    <SimpleColumns>index,timestamp,distance</SimpleColumns>
    <Property key="reportDataFieldEnabled">true</Property>
    <Constraints>
      <RuleSelector>code:61714</RuleSelector>
    </Constraints>
  </Report>
</ReportDefinition>`
	records := series("d1", 1700000000, 3)
	records[2].StatusCode = 0xF112
	records[2].Latitude = records[1].Latitude + 0.01

	in := newInstance(t, doc, "alarms", event.NewMemoryStore(records...), nil, DeviceTarget("d1"))
	require.True(t, in.DataFieldsEnabled())

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ret.Records, 1)

	got := ret.Records[0]
	assert.Equal(t, 0xF112, got.StatusCode)
	require.NotNil(t, got.Previous())
	assert.Equal(t, records[1].Timestamp, got.Previous().Timestamp)
	require.NotNil(t, got.Previous().Previous())
	assert.Nil(t, got.Previous().Previous().Previous())

	d, ok := got.ReportDistanceKM()
	assert.True(t, ok)
	assert.InDelta(t, 1.11, d, 0.01)
	assert.Equal(t, int64(3), ret.Counters.EventsSeenThisTarget)
	assert.Equal(t, int64(1), ret.Counters.EventsMatchedThisTarget)
}

func TestEvents_RuleSelectorWithoutEngine(t *testing.T) {
	doc := `
<ReportDefinition>
  <Report name="alarms" type="device" class="event.detail">
    <SimpleColumns>index</SimpleColumns>
    <Constraints><RuleSelector>code:61714</RuleSelector></Constraints>
  </Report>
</ReportDefinition>`
	c := loadCatalog(t, doc)
	f := newFactory(c, event.NewMemoryStore(series("d1", 1700000000, 3)...), nil)
	f.Rules = nil
	in, err := f.CreateByName(context.Background(), "alarms", "", DeviceTarget("d1"), option.Context{AccountID: acct})
	require.NoError(t, err)

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, ret.Records, 3)
}

func TestEvents_AttachesDevices(t *testing.T) {
	dir := &directory.MemoryRepository{Devices: []directory.Device{
		{ID: "d1", AccountID: acct, Description: "Truck 1"},
		{ID: "d2", AccountID: acct, Description: "Truck 2"},
	}}

	t.Run("directory lookup", func(t *testing.T) {
		in := newInstance(t, detailDoc, "trip.detail", fleetStore(2, 2), dir, DevicesTarget("d1", "d2"))
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, ret.Records, 4)
		for _, r := range ret.Records {
			require.NotNil(t, r.Device())
			assert.Equal(t, r.DeviceID, r.Device().ID)
		}
	})

	t.Run("supplied device", func(t *testing.T) {
		target := DeviceTarget("d1")
		target.Device = &directory.Device{ID: "d1", AccountID: acct, Description: "Given"}
		in := newInstance(t, detailDoc, "trip.detail", fleetStore(2), nil, target)
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, ret.Records, 2)
		assert.Equal(t, "Given", ret.Records[1].Device().Description)
	})

	t.Run("unknown device", func(t *testing.T) {
		in := newInstance(t, detailDoc, "trip.detail", fleetStore(2, 2, 2), dir, DevicesTarget("d1", "d3", "d2"))
		ret, err := in.Events(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"d1": 2, "d2": 2}, devicesOf(ret))
		assert.Equal(t, 1, ret.Counters.TargetFailures)
	})
}

func TestEvents_StorageFailureContributesNothing(t *testing.T) {
	store := fleetStore(2, 2, 2)
	store.Failures = map[string]error{"d2": errors.New("connection reset")}
	in := newInstance(t, detailDoc, "trip.detail", store, nil, DevicesTarget("d1", "d2", "d3"))

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d1": 2, "d3": 2}, devicesOf(ret))
	assert.Equal(t, 1, ret.Counters.TargetFailures)
	assert.Equal(t, int64(4), ret.Counters.TotalRecordsEmitted)
	assert.False(t, ret.Counters.IsPartial)
}

func TestEvents_ConsumerFailureStopsCall(t *testing.T) {
	tests := []struct {
		name    string
		consume Consumer
	}{
		{"error", func(rec *event.Record) (event.Decision, error) {
			return event.Accept, errors.New("sink full")
		}},
		{"panic", func(rec *event.Record) (event.Decision, error) {
			panic("sink exploded")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInstance(t, detailDoc, "trip.detail", fleetStore(2, 2), nil, DevicesTarget("d1", "d2"))
			ret, err := in.Events(context.Background(), tt.consume)
			require.Error(t, err)
			assert.Nil(t, ret)

			var fwd *ForwardError
			require.ErrorAs(t, err, &fwd)
			assert.Equal(t, "device d1", fwd.Target)
		})
	}
}

func TestEvents_ConsumerDecisions(t *testing.T) {
	in := newInstance(t, detailDoc, "trip.detail", fleetStore(5), nil, DeviceTarget("d1"))

	var seen int
	ret, err := in.Events(context.Background(), func(rec *event.Record) (event.Decision, error) {
		seen++
		switch seen {
		case 2:
			return event.Skip, nil
		case 4:
			return event.Stop, nil
		}
		return event.Accept, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, seen)
	assert.Empty(t, ret.Records)
	assert.Equal(t, int64(2), ret.Counters.TotalRecordsEmitted)
}

func TestEvents_ConsumerAtReportLimit(t *testing.T) {
	doc := strings.Replace(detailDoc, "<ReportLimit>10</ReportLimit>", "<ReportLimit>2</ReportLimit>", 1)
	firstPerDevice := func(seen map[string]bool) Consumer {
		return func(rec *event.Record) (event.Decision, error) {
			if seen[rec.DeviceID] {
				return event.Skip, nil
			}
			seen[rec.DeviceID] = true
			return event.Accept, nil
		}
	}

	t.Run("declined records keep the result complete", func(t *testing.T) {
		in := newInstance(t, doc, "trip.detail", fleetStore(2, 2), nil, DevicesTarget("d1", "d2"))
		ret, err := in.Events(context.Background(), firstPerDevice(map[string]bool{}))
		require.NoError(t, err)
		assert.Equal(t, int64(2), ret.Counters.TotalRecordsEmitted)
		assert.False(t, ret.Counters.IsPartial)
		assert.Equal(t, int64(2), ret.Counters.EventsSeenThisTarget)
	})

	t.Run("accepted record past the limit is partial", func(t *testing.T) {
		in := newInstance(t, doc, "trip.detail", fleetStore(3), nil, DeviceTarget("d1"))
		var offered int
		ret, err := in.Events(context.Background(), func(rec *event.Record) (event.Decision, error) {
			offered++
			return event.Accept, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, offered)
		assert.Equal(t, int64(2), ret.Counters.TotalRecordsEmitted)
		assert.Equal(t, int64(2), ret.Counters.EventsMatchedThisTarget)
		assert.True(t, ret.Counters.IsPartial)
	})
}

func TestSummaryKind_ReportLimitWithinTarget(t *testing.T) {
	doc := `
<ReportDefinition>
  <Report name="driver.last" type="driver" class="event.summary">
    <SimpleColumns>index,deviceId</SimpleColumns>
    <Constraints>
      <ReportLimit>1</ReportLimit>
    </Constraints>
  </Report>
</ReportDefinition>`
	records := []event.Record{rec("d1", 100), rec("d1", 200), rec("d2", 300)}
	for i := range records {
		records[i].DriverID = "drv7"
	}

	in := newInstance(t, doc, "driver.last", event.NewMemoryStore(records...), nil, DriverTarget("drv7"))
	out, err := in.Build(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Counters.IsPartial)
	it := out.Rows()
	row, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "d1", row["deviceId"])
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestEvents_ByDriver(t *testing.T) {
	records := []event.Record{rec("d1", 100), rec("d2", 200), rec("d1", 300), rec("d2", 400)}
	for i := range records {
		records[i].DriverID = "drv7"
	}
	records[3].DriverID = "other"
	dir := &directory.MemoryRepository{Devices: []directory.Device{{ID: "d1", AccountID: acct}}}

	in := newInstance(t, detailDoc, "trip.detail", event.NewMemoryStore(records...), dir, DriverTarget("drv7"))
	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, ret.Records, 3)
	for _, r := range ret.Records {
		assert.Nil(t, r.Device())
		assert.Equal(t, "drv7", r.DriverID)
	}
	assert.Equal(t, 2, ret.Counters.CrossOwnerLinks)

	_, err = in.EventsForDriver(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestEvents_Group(t *testing.T) {
	dir := &directory.MemoryRepository{
		Devices: []directory.Device{{ID: "d1", AccountID: acct}, {ID: "d2", AccountID: acct}, {ID: "d3", AccountID: acct}},
		Groups:  []directory.DeviceGroup{{ID: "north", AccountID: acct, DeviceIDs: []string{"d3", "d1"}}},
	}

	in := newInstance(t, detailDoc, "trip.detail", fleetStore(1, 1, 1), dir, GroupTarget("north"))
	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ret.Records, 2)
	assert.Equal(t, "d3", ret.Records[0].DeviceID)
	assert.Equal(t, "d1", ret.Records[1].DeviceID)

	in = newInstance(t, detailDoc, "trip.detail", fleetStore(1, 1, 1), dir, GroupTarget("missing"))
	ret, err = in.Events(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ret.Records)

	in = newInstance(t, detailDoc, "trip.detail", fleetStore(1), nil, GroupTarget("north"))
	_, err = in.Events(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestEvents_CallsAreIndependent(t *testing.T) {
	in := newInstance(t, detailDoc, "trip.detail", fleetStore(3), nil, DeviceTarget("d1"))

	first, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	second, err := in.Events(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Counters, second.Counters)
	assert.Nil(t, second.Records[0].Previous())
}

func TestEvents_NoTargetNoWhere(t *testing.T) {
	in := newInstance(t, detailDoc, "trip.detail", fleetStore(3, 4), nil, Target{})

	ret, err := in.Events(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ret.Records)
	assert.Zero(t, ret.Counters.TargetsVisited)
	assert.False(t, ret.Counters.IsPartial)

	out, err := in.Build(context.Background())
	require.NoError(t, err)
	_, ok := out.Rows().Next()
	assert.False(t, ok)
}

func TestEvents_NoStore(t *testing.T) {
	in := newInstance(t, detailDoc, "trip.detail", nil, nil, DeviceTarget("d1"))
	_, err := in.Events(context.Background(), nil)
	assert.Error(t, err)
}
