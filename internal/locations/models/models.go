package models

import "time"

// CollectionName is the MongoDB collection holding published location records
const CollectionName = "locations"

// SolarSystem is a resolved solar system
type SolarSystem struct {
	ID   int64  `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Location wraps the solar system a character is in
type Location struct {
	System SolarSystem `bson:"system" json:"system"`
}

// Ship is the active ship of a character. Type is the hull's display name,
// Name the player-given instance name.
type Ship struct {
	TypeID int64  `bson:"type_id" json:"type_id"`
	Type   string `bson:"type" json:"type"`
	ItemID int64  `bson:"item_id" json:"item_id"`
	Name   string `bson:"name" json:"name"`
}

// LocationRecord is the consolidated, published view of one online character.
// It exists only while the character was online and fully resolved in its last pass.
type LocationRecord struct {
	CharacterID   int64     `bson:"_id" json:"character_id"`
	Name          string    `bson:"name" json:"name"`
	CorporationID int64     `bson:"corporation_id" json:"corporation_id"`
	AllianceID    *int64    `bson:"alliance_id" json:"alliance_id"`
	Location      Location  `bson:"location" json:"location"`
	Ship          Ship      `bson:"ship" json:"ship"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}
