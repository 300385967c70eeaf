package core

import "github.com/google/uuid"

// AllocationID names a GPU allocation for the lifetime of the process.
type AllocationID = uuid.UUID

func NewAllocationID() AllocationID {
	return uuid.New()
}
