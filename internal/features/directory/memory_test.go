package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryGroups(t *testing.T) {
	repo := &MemoryRepository{
		Devices: []Device{
			{ID: "truck2", AccountID: "acme"},
			{ID: "truck1", AccountID: "acme"},
			{ID: "van1", AccountID: "other"},
		},
		Groups: []DeviceGroup{
			{ID: "north", AccountID: "acme", DeviceIDs: []string{"truck2"}},
		},
	}
	ctx := context.Background()

	ids, err := repo.GroupDeviceIDs(ctx, "acme", GroupAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"truck1", "truck2"}, ids)

	ids, err = repo.GroupDeviceIDs(ctx, "acme", "north")
	require.NoError(t, err)
	assert.Equal(t, []string{"truck2"}, ids)

	_, err = repo.GroupDeviceIDs(ctx, "acme", "south")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceDisplayName(t *testing.T) {
	var d *Device
	assert.Equal(t, "", d.DisplayName())
	assert.Equal(t, "truck1", (&Device{ID: "truck1"}).DisplayName())
	assert.Equal(t, "Truck One", (&Device{ID: "truck1", Description: "Truck One"}).DisplayName())
}
