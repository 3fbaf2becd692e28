package models

// Sequence is a named monotonically increasing counter used to mint
// human-facing document numbers and entity codes.
type Sequence struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null;default:0"`
}
