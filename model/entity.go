package model

// NoID is the identifier of an entity that has not been stored yet.
const NoID int64 = 0

// Entity is implemented by every type kept in a keyed repository. The
// repository assigns the identifier on first store; it never changes after.
type Entity interface {
	GetID() int64
	SetID(id int64)
}
