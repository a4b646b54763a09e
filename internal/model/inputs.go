package model

import (
	"time"

	"github.com/google/uuid"
)

type SaveUploadInput struct {
	DeviceId    string
	Filename    string
	DeleteAfter time.Time
}

type RepositoryCreateUploadInput struct {
	Id          uuid.UUID
	Extension   string
	DeviceId    string
	Filename    *string
	SizeBytes   int64
	DeleteAfter time.Time
}
