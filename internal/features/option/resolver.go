package option

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-fleetreport/internal/features/directory"
)

// Kind names where an entry's options come from.
type Kind string

const (
	KindNone         Kind = ""
	KindList         Kind = "list"
	KindGeozones     Kind = "geozones"
	KindDeviceGroups Kind = "device-groups"
	KindDrivers      Kind = "drivers"
	KindStatusCodes  Kind = "status-codes"
	KindCustom       Kind = "custom"
)

// AllGeozonesID is the id of the synthetic option prepended by "geozones.all".
const AllGeozonesID = "ALL"

// ParseKind maps a declared options type to a Kind. includeAll reports the
// ".all" variant.
func ParseKind(s string) (kind Kind, includeAll bool, ok bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if base, found := strings.CutSuffix(name, ".all"); found {
		name, includeAll = base, true
	}
	switch name {
	case "", "list", "default":
		return KindList, includeAll, true
	case "geozones", "geozone":
		return KindGeozones, includeAll, true
	case "devicegroups", "device-groups", "groups":
		return KindDeviceGroups, includeAll, true
	case "drivers", "driver":
		return KindDrivers, includeAll, true
	case "statuscodes", "status-codes":
		return KindStatusCodes, includeAll, true
	case "custom":
		return KindCustom, includeAll, true
	}
	return KindNone, false, false
}

// Resolver produces the options for one request. Results are account scoped
// and never cached across calls.
type Resolver interface {
	Resolve(ctx context.Context, oc Context) (*Set, error)
}

type ResolverFunc func(ctx context.Context, oc Context) (*Set, error)

func (f ResolverFunc) Resolve(ctx context.Context, oc Context) (*Set, error) {
	return f(ctx, oc)
}

// Dependencies are shared by the built-in resolvers.
type Dependencies struct {
	Directory     directory.DirectoryRepository
	ShowGeozoneID bool
}

// NewResolver returns the built-in resolver for kind. It returns nil for
// list, custom and unknown kinds.
func NewResolver(kind Kind, includeAll bool, deps Dependencies) Resolver {
	switch kind {
	case KindGeozones:
		return &GeozoneResolver{Directory: deps.Directory, IncludeAll: includeAll, ShowZoneID: deps.ShowGeozoneID}
	case KindDeviceGroups:
		return &DeviceGroupResolver{Directory: deps.Directory}
	case KindDrivers:
		return &DriverResolver{Directory: deps.Directory}
	case KindStatusCodes:
		return StatusCodeResolver{}
	}
	return nil
}

type GeozoneResolver struct {
	Directory  directory.DirectoryRepository
	IncludeAll bool
	ShowZoneID bool
}

func (r *GeozoneResolver) Resolve(ctx context.Context, oc Context) (*Set, error) {
	set := NewSet()
	if oc.AccountID == "" || r.Directory == nil {
		return set, nil
	}
	zones, err := r.Directory.ListGeozones(ctx, oc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list geozones: %w", err)
	}
	if r.IncludeAll {
		desc := "All Geozones"
		if r.ShowZoneID {
			desc += " (" + AllGeozonesID + ")"
		}
		all := NewReportOption(AllGeozonesID, desc).
			SetValue("accountID", oc.AccountID).
			SetValue("geozoneID", AllGeozonesID).
			SetValue("description", desc)
		_ = set.Add(all)
	}
	for _, z := range zones {
		if set.options.Has(z.ID) {
			continue
		}
		desc := z.Description
		if desc == "" {
			desc = z.ID
		}
		if r.ShowZoneID {
			desc += " (" + z.ID + ")"
		}
		opt := NewReportOption(z.ID, desc).
			SetValue("accountID", z.AccountID).
			SetValue("geozoneID", z.ID).
			SetValue("sortID", strconv.Itoa(z.SortID)).
			SetValue("zonePurposeID", z.ZonePurposeID).
			SetValue("reverseGeocode", flag(z.ReverseGeocode)).
			SetValue("arrivalZone", flag(z.ArrivalZone)).
			SetValue("departureZone", flag(z.DepartureZone)).
			SetValue("groupID", z.GroupID).
			SetValue("description", desc)
		_ = set.Add(opt)
	}
	return set, nil
}

type DeviceGroupResolver struct {
	Directory directory.DirectoryRepository
}

func (r *DeviceGroupResolver) Resolve(ctx context.Context, oc Context) (*Set, error) {
	set := NewSet()
	if oc.AccountID == "" || r.Directory == nil {
		return set, nil
	}
	for _, id := range oc.GroupIDs {
		if set.options.Has(id) {
			continue
		}
		group, err := r.Directory.GetDeviceGroup(ctx, oc.AccountID, id)
		if err != nil {
			continue
		}
		opt := NewReportOption(group.ID, "["+group.ID+"] "+group.Description).
			SetValue("accountID", oc.AccountID).
			SetValue("groupID", group.ID).
			SetValue("description", group.Description)
		_ = set.Add(opt)
	}
	return set, nil
}

type DriverResolver struct {
	Directory directory.DirectoryRepository
}

func (r *DriverResolver) Resolve(ctx context.Context, oc Context) (*Set, error) {
	set := NewSet()
	if oc.AccountID == "" || r.Directory == nil {
		return set, nil
	}
	drivers, err := r.Directory.ListDrivers(ctx, oc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	for _, d := range drivers {
		if d.ID == "" || set.options.Has(d.ID) {
			continue
		}
		desc := d.Description
		if desc == "" {
			desc = d.ID
		}
		opt := NewReportOption(d.ID, desc).
			SetValue("accountID", d.AccountID).
			SetValue("driverID", d.ID).
			SetValue("description", desc)
		if err := set.Add(opt); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// StatusCodeResolver lists the codes of the current label context, in
// ascending code order, keyed by their hex form.
type StatusCodeResolver struct{}

func (StatusCodeResolver) Resolve(ctx context.Context, oc Context) (*Set, error) {
	set := NewSet()
	if oc.AccountID == "" {
		return set, nil
	}
	codes := make([]int, 0, len(oc.StatusCodes))
	for code := range oc.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		id := FormatStatusCode(code)
		desc := oc.StatusCodes[code]
		if desc == "" {
			desc = id
		}
		opt := NewReportOption(id, desc).
			SetValue("statusCode", id).
			SetValue("description", desc)
		_ = set.Add(opt)
	}
	return set, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func FormatStatusCode(code int) string {
	return fmt.Sprintf("0x%04X", code)
}
