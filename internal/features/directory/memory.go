package directory

import (
	"context"
	"slices"
	"sort"
)

// MemoryRepository is an in-process DirectoryRepository backed by slices.
type MemoryRepository struct {
	Accounts []Account
	Devices  []Device
	Groups   []DeviceGroup
	Drivers  []Driver
	Geozones []Geozone
}

func (m *MemoryRepository) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	for i := range m.Accounts {
		if m.Accounts[i].ID == accountID {
			a := m.Accounts[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error) {
	for i := range m.Devices {
		if m.Devices[i].AccountID == accountID && m.Devices[i].ID == deviceID {
			d := m.Devices[i]
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListDeviceIDs(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	for _, d := range m.Devices {
		if d.AccountID == accountID {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryRepository) GetDeviceGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	if groupID == GroupAll {
		ids, _ := m.ListDeviceIDs(ctx, accountID)
		return &DeviceGroup{ID: GroupAll, AccountID: accountID, Description: "All", DeviceIDs: ids}, nil
	}
	for i := range m.Groups {
		if m.Groups[i].AccountID == accountID && m.Groups[i].ID == groupID {
			g := m.Groups[i]
			g.DeviceIDs = slices.Clone(g.DeviceIDs)
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) GroupDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	g, err := m.GetDeviceGroup(ctx, accountID, groupID)
	if err != nil {
		return nil, err
	}
	return g.DeviceIDs, nil
}

func (m *MemoryRepository) ListDrivers(ctx context.Context, accountID string) ([]Driver, error) {
	var out []Driver
	for _, d := range m.Drivers {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListGeozones(ctx context.Context, accountID string) ([]Geozone, error) {
	var out []Geozone
	for _, z := range m.Geozones {
		if z.AccountID == accountID {
			out = append(out, z)
		}
	}
	return out, nil
}
