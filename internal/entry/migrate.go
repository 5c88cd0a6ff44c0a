package entry

import (
	"errors"
	"fmt"

	"overkiz2mqtt/pkg/overkiz"
)

// CurrentVersion is the entry schema this build reads and writes.
const CurrentVersion = 2

var ErrUnsupportedSchema = errors.New("unsupported entry schema version")

// Migrate upgrades an entry to the current schema in place and reports
// whether it changed. Entries from a newer build fail, downgrading is not
// supported.
func Migrate(e *Entry) (bool, error) {
	if e.Version == CurrentVersion {
		return false, nil
	}
	if e.Version > CurrentVersion || e.Version < 1 {
		return false, fmt.Errorf("%w: %d", ErrUnsupportedSchema, e.Version)
	}

	// v1 -> v2: "hub" renamed to "server", api type added. V1 only knew the
	// cloud API.
	if e.Version == 1 {
		hub, ok := e.Data[KeyHub]
		if !ok {
			return false, fmt.Errorf("%w: v1 entry without %s", ErrUnsupportedSchema, KeyHub)
		}
		e.Data[KeyServer] = hub
		delete(e.Data, KeyHub)
		e.Data[KeyAPIType] = string(overkiz.APITypeCloud)
		e.Version = 2
	}

	return true, nil
}
