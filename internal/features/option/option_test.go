package option

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-fleetreport/internal/features/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testDirectory() *directory.MemoryRepository {
	return &directory.MemoryRepository{
		Devices: []directory.Device{{ID: "truck1", AccountID: "acme"}},
		Groups: []directory.DeviceGroup{
			{ID: "north", AccountID: "acme", Description: "North Yard", DeviceIDs: []string{"truck1"}},
		},
		Drivers: []directory.Driver{
			{ID: "d1", AccountID: "acme", Description: "Dana"},
			{ID: "d2", AccountID: "other"},
		},
		Geozones: []directory.Geozone{
			{ID: "depot", AccountID: "acme", Description: "Depot", SortID: 1, ArrivalZone: true},
			{ID: "depot", AccountID: "acme", Description: "Depot", SortID: 2},
			{ID: "home", AccountID: "acme"},
		},
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		kind    Kind
		withAll bool
		ok      bool
	}{
		{in: "", kind: KindList, ok: true},
		{in: "default", kind: KindList, ok: true},
		{in: "geozones.all", kind: KindGeozones, withAll: true, ok: true},
		{in: "devicegroups", kind: KindDeviceGroups, ok: true},
		{in: "device-groups", kind: KindDeviceGroups, ok: true},
		{in: "driver", kind: KindDrivers, ok: true},
		{in: "statusCodes.all", kind: KindStatusCodes, withAll: true, ok: true},
		{in: "Custom", kind: KindCustom, ok: true},
		{in: "weather", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, withAll, ok := ParseKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.withAll, withAll)
		})
	}
}

func TestGeozoneResolver(t *testing.T) {
	r := NewResolver(KindGeozones, true, Dependencies{Directory: testDirectory(), ShowGeozoneID: true})
	set, err := r.Resolve(context.Background(), Context{AccountID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, []string{AllGeozonesID, "depot", "home"}, set.IDs())
	depot, ok := set.Get("depot")
	require.True(t, ok)
	assert.Equal(t, "Depot (depot)", depot.Description)
	v, _ := depot.Value("arrivalZone")
	assert.Equal(t, "1", v)
	home, _ := set.Get("home")
	assert.Equal(t, "home (home)", home.Description)
	all, _ := set.Get(AllGeozonesID)
	assert.Equal(t, "All Geozones (ALL)", all.Description)
}

func TestDeviceGroupResolverSkipsUnknownGroups(t *testing.T) {
	r := NewResolver(KindDeviceGroups, false, Dependencies{Directory: testDirectory()})
	set, err := r.Resolve(context.Background(), Context{AccountID: "acme", GroupIDs: []string{"all", "north", "ghost"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "north"}, set.IDs())
	north, _ := set.Get("north")
	assert.Equal(t, "[north] North Yard", north.Description)
}

func TestDriverResolverScopesByAccount(t *testing.T) {
	r := NewResolver(KindDrivers, false, Dependencies{Directory: testDirectory()})
	set, err := r.Resolve(context.Background(), Context{AccountID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, set.IDs())
}

func TestDriverResolverKeepsFirstDuplicate(t *testing.T) {
	dir := testDirectory()
	dir.Drivers = append(dir.Drivers,
		directory.Driver{ID: "d1", AccountID: "acme", Description: "Dana (old badge)"},
		directory.Driver{ID: "", AccountID: "acme", Description: "unassigned"},
		directory.Driver{ID: "d3", AccountID: "acme"},
	)
	r := NewResolver(KindDrivers, false, Dependencies{Directory: dir})
	set, err := r.Resolve(context.Background(), Context{AccountID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3"}, set.IDs())
	d1, _ := set.Get("d1")
	assert.Equal(t, "Dana", d1.Description)
}

func TestStatusCodeResolver(t *testing.T) {
	set, err := StatusCodeResolver{}.Resolve(context.Background(), Context{
		AccountID:   "acme",
		StatusCodes: map[int]string{0xF020: "Location", 0xF010: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xF010", "0xF020"}, set.IDs())
	opt, _ := set.Get("0xF010")
	assert.Equal(t, "0xF010", opt.Description)
}

func TestSourceMissingAccountYieldsNoOptions(t *testing.T) {
	called := false
	src := ResolverSource(KindCustom, ResolverFunc(func(ctx context.Context, oc Context) (*Set, error) {
		called = true
		return NewSet(), nil
	}))
	set := src.Options(context.Background(), Context{}, zap.NewNop())
	assert.NotNil(t, set)
	assert.Equal(t, 0, set.Len())
	assert.False(t, called)
}

func TestSourceResolverFailuresDegradeToEmpty(t *testing.T) {
	tests := []struct {
		name     string
		resolver Resolver
	}{
		{
			name: "error",
			resolver: ResolverFunc(func(ctx context.Context, oc Context) (*Set, error) {
				return nil, errors.New("boom")
			}),
		},
		{
			name: "panic",
			resolver: ResolverFunc(func(ctx context.Context, oc Context) (*Set, error) {
				panic("boom")
			}),
		},
		{
			name: "nil set",
			resolver: ResolverFunc(func(ctx context.Context, oc Context) (*Set, error) {
				return nil, nil
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			src := ResolverSource(KindCustom, tt.resolver)

			var set *Set
			assert.NotPanics(t, func() {
				set = src.Options(context.Background(), Context{AccountID: "acme"}, zap.New(core))
			})
			require.NotNil(t, set)
			assert.Equal(t, 0, set.Len())
			if tt.name != "nil set" {
				assert.Equal(t, 1, logs.FilterMessage("Report option resolver failed").Len())
			}
			assert.Nil(t, src.Option(context.Background(), "x", Context{AccountID: "acme"}, zap.NewNop()))
		})
	}
}

func TestStaticSourceReturnsSameList(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(NewReportOption("a", "A")))
	require.ErrorIs(t, set.Add(NewReportOption("a", "again")), ErrDuplicateOption)

	src := StaticSource(set)
	assert.True(t, src.HasOptions())
	assert.Same(t, set, src.Options(context.Background(), Context{}, nil))
	assert.Equal(t, "A", src.Option(context.Background(), "a", Context{}, nil).Description)
	assert.Nil(t, src.Option(context.Background(), "", Context{}, nil))
}

func TestReportOptionJSONKeepsOrder(t *testing.T) {
	opt := NewReportOption("z1", "Zone").SetValue("b", "2").SetValue("a", "1")
	b, err := json.Marshal(opt)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"z1","description":"Zone","values":{"b":"2","a":"1"}}`, string(b))
}

func TestNilSourceIsEmpty(t *testing.T) {
	var src *Source
	assert.False(t, src.HasOptions())
	assert.Equal(t, KindNone, src.Kind())
	assert.Equal(t, 0, src.Options(context.Background(), Context{AccountID: "acme"}, nil).Len())
}

func TestParseStatusCodeTable(t *testing.T) {
	table, err := ParseStatusCodeTable("0xF020=Location, 61713 = Start,,0xF113")
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0xF020: "Location", 0xF111: "Start", 0xF113: ""}, table)

	_, err = ParseStatusCodeTable("0xF020=Location,moving=Moving")
	assert.Error(t, err)
	_, err = ParseStatusCodeTable("0xF020 0xF111=Pair")
	assert.Error(t, err)

	assert.Equal(t, "Location", DefaultStatusCodes()[0xF020])
}
