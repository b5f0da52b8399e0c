package autodiff

import "github.com/google/uuid"

// ID identifies a tensor record or a graph node. Only equality is meaningful.
// The zero ID means "none".
type ID string

// IsZero reports whether id is unset.
func (id ID) IsZero() bool {
	return id == ""
}

func newID(kind string) ID {
	return ID(kind + "-" + uuid.NewString())
}
