package directory

import (
	"context"
	"errors"

	"go-fleetreport/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DirectoryRepository answers the id lookups needed by option resolution,
// target resolution and entity attachment.
type DirectoryRepository interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error)
	ListDeviceIDs(ctx context.Context, accountID string) ([]string, error)
	GetDeviceGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error)
	GroupDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error)
	ListDrivers(ctx context.Context, accountID string) ([]Driver, error)
	ListGeozones(ctx context.Context, accountID string) ([]Geozone, error)
}

type DirectoryRepositoryImpl struct {
	Accounts *mongo.Collection
	Devices  *mongo.Collection
	Groups   *mongo.Collection
	Drivers  *mongo.Collection
	Geozones *mongo.Collection
}

func NewDirectoryRepository(db *database.MongodbDB) DirectoryRepository {
	return &DirectoryRepositoryImpl{
		Accounts: db.DB.Collection("accounts"),
		Devices:  db.DB.Collection("devices"),
		Groups:   db.DB.Collection("device_groups"),
		Drivers:  db.DB.Collection("drivers"),
		Geozones: db.DB.Collection("geozones"),
	}
}

func (r *DirectoryRepositoryImpl) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	err := r.Accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&account)
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *DirectoryRepositoryImpl) GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error) {
	var device Device
	err := r.Devices.FindOne(ctx, bson.M{"account_id": accountID, "device_id": deviceID}).Decode(&device)
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (r *DirectoryRepositoryImpl) ListDeviceIDs(ctx context.Context, accountID string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"device_id": 1}).
		SetSort(bson.D{{Key: "device_id", Value: 1}})
	cursor, err := r.Devices.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []Device
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *DirectoryRepositoryImpl) GetDeviceGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	if groupID == GroupAll {
		ids, err := r.ListDeviceIDs(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &DeviceGroup{ID: GroupAll, AccountID: accountID, Description: "All", DeviceIDs: ids}, nil
	}
	var group DeviceGroup
	err := r.Groups.FindOne(ctx, bson.M{"account_id": accountID, "group_id": groupID}).Decode(&group)
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (r *DirectoryRepositoryImpl) GroupDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	group, err := r.GetDeviceGroup(ctx, accountID, groupID)
	if err != nil {
		return nil, err
	}
	return group.DeviceIDs, nil
}

func (r *DirectoryRepositoryImpl) ListDrivers(ctx context.Context, accountID string) ([]Driver, error) {
	opts := options.Find().SetSort(bson.D{{Key: "driver_id", Value: 1}})
	cursor, err := r.Drivers.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var drivers []Driver
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *DirectoryRepositoryImpl) ListGeozones(ctx context.Context, accountID string) ([]Geozone, error) {
	opts := options.Find().SetSort(bson.D{{Key: "geozone_id", Value: 1}, {Key: "sort_id", Value: 1}})
	cursor, err := r.Geozones.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var zones []Geozone
	if err := cursor.All(ctx, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
