package entity

// Follow and Like rows exist only while the relation is true.
type Follow struct {
	UserID    string `json:"user_id" gorm:"primaryKey;type:varchar(128)"`
	DatasetID string `json:"dataset_id" gorm:"primaryKey;type:varchar(64)"`
	CreatedAt string `json:"created_at" gorm:"type:varchar(32)"`
}

type Like struct {
	UserID    string `json:"user_id" gorm:"primaryKey;type:varchar(128)"`
	DatasetID string `json:"dataset_id" gorm:"primaryKey;type:varchar(64)"`
	CreatedAt string `json:"created_at" gorm:"type:varchar(32)"`
}

type RelationKind string

const (
	RelationFollow RelationKind = "follow"
	RelationLike   RelationKind = "like"
	RelationTag    RelationKind = "tag"
)

// Relation is the storage-neutral form of a (user, target) presence pair.
type Relation struct {
	Kind   RelationKind `json:"kind"`
	UserID string       `json:"user_id"`
	Target string       `json:"target"`
}
