package ids

import (
	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier used for request ids and log correlation.
func New() string {
	return ulid.Make().String()
}
