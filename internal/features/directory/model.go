package directory

import "errors"

// GroupAll is the synthetic group holding every device of an account.
const GroupAll = "all"

var ErrNotFound = errors.New("directory entry not found")

type Account struct {
	ID          string `bson:"_id" json:"id"`
	Description string `bson:"description" json:"description"`
	TimeZone    string `bson:"time_zone" json:"time_zone"`
	Active      bool   `bson:"active" json:"active"`
}

type Device struct {
	ID          string `bson:"device_id" json:"device_id"`
	AccountID   string `bson:"account_id" json:"account_id"`
	Description string `bson:"description" json:"description"`
	VehicleID   string `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	DriverID    string `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	Active      bool   `bson:"active" json:"active"`
}

// DisplayName returns the description, falling back to the id.
func (d *Device) DisplayName() string {
	if d == nil {
		return ""
	}
	if d.Description != "" {
		return d.Description
	}
	return d.ID
}

type DeviceGroup struct {
	ID          string   `bson:"group_id" json:"group_id"`
	AccountID   string   `bson:"account_id" json:"account_id"`
	Description string   `bson:"description" json:"description"`
	DeviceIDs   []string `bson:"device_ids" json:"device_ids"`
}

type Driver struct {
	ID          string `bson:"driver_id" json:"driver_id"`
	AccountID   string `bson:"account_id" json:"account_id"`
	Description string `bson:"description" json:"description"`
	BadgeID     string `bson:"badge_id,omitempty" json:"badge_id,omitempty"`
}

type Geozone struct {
	ID             string `bson:"geozone_id" json:"geozone_id"`
	AccountID      string `bson:"account_id" json:"account_id"`
	SortID         int    `bson:"sort_id" json:"sort_id"`
	Description    string `bson:"description" json:"description"`
	ZonePurposeID  string `bson:"zone_purpose_id,omitempty" json:"zone_purpose_id,omitempty"`
	GroupID        string `bson:"group_id,omitempty" json:"group_id,omitempty"`
	ReverseGeocode bool   `bson:"reverse_geocode" json:"reverse_geocode"`
	ArrivalZone    bool   `bson:"arrival_zone" json:"arrival_zone"`
	DepartureZone  bool   `bson:"departure_zone" json:"departure_zone"`
}
