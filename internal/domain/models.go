package domain

import "time"

// NodeRecord is the last known state of a mesh node.
type NodeRecord struct {
	LongName  string
	ShortName string
	HwModel   string
	SeenAt    time.Time
	UpdatedAt time.Time
}

// NodeUpdate is a sparse NodeRecord mutation. Nil fields are left unchanged.
type NodeUpdate struct {
	LongName  *string
	ShortName *string
	HwModel   *string
	SeenAt    *time.Time
}

// Apply merges the update into rec and returns the result.
func (u NodeUpdate) Apply(rec NodeRecord) NodeRecord {
	if u.LongName != nil {
		rec.LongName = *u.LongName
	}
	if u.ShortName != nil {
		rec.ShortName = *u.ShortName
	}
	if u.HwModel != nil {
		rec.HwModel = *u.HwModel
	}
	if u.SeenAt != nil {
		rec.SeenAt = *u.SeenAt
	}

	return rec
}

// IdentityUpdate builds the store mutation for a decoded identity record. An
// unset hardware model keeps the one already on record.
func IdentityUpdate(id Identity) NodeUpdate {
	u := NodeUpdate{
		LongName:  &id.LongName,
		ShortName: &id.ShortName,
	}
	if id.HwModel != "" {
		u.HwModel = &id.HwModel
	}

	return u
}

// SeenUpdate builds the store mutation that only bumps the last seen time.
func SeenUpdate(at time.Time) NodeUpdate {
	return NodeUpdate{SeenAt: &at}
}
