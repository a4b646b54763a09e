package model

import (
	"time"

	"github.com/google/uuid"
)

type Upload struct {
	Id          uuid.UUID `db:"id" json:"id"`
	Extension   string    `db:"extension" json:"extension"`
	DeviceId    string    `db:"device_id" json:"device_id"`
	Filename    *string   `db:"filename" json:"filename,omitempty"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	DeleteAfter time.Time `db:"delete_after" json:"delete_after"`
}

// Key is the blob store key the upload content lives under.
func (u *Upload) Key() string {
	return u.Id.String() + u.Extension
}
