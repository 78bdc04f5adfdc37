package app

import "errors"

var (
	ErrClassroomNotFound = errors.New("classroom not found")
	ErrRoomNotFound      = errors.New("room not found")

	// ErrClassroomNotEmpty blocks deletion while rooms still reference the
	// classroom. Rooms must be removed first; there is no cascade.
	ErrClassroomNotEmpty = errors.New("classroom still has rooms")
)
