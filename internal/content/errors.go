package content

import "errors"

var (
	// ErrInvalidKey is returned by Update for an empty or oversized key.
	ErrInvalidKey = errors.New("invalid content key")

	// ErrPersist wraps every failed PersistAll. The dirty flag is still set.
	ErrPersist = errors.New("saving content failed")

	// ErrUnsavedChanges is returned by ConfirmLeave while the store is dirty.
	ErrUnsavedChanges = errors.New("you have unsaved changes")
)

// UnloadMessage is the prompt shown when leaving with unsaved changes.
const UnloadMessage = "You have unsaved changes. Are you sure you want to leave?"
