package scanner

import (
	"time"

	"github.com/djherbis/times"
)

// stampTimes copies the birth, access and change times of path into ev.
// Times the platform does not record are left empty.
func stampTimes(ev *Evidence, path string) error {
	ts, err := times.Stat(path)
	if err != nil {
		return err
	}
	ev.AccessTime = ts.AccessTime().Format(time.RFC3339)
	if ts.HasChangeTime() {
		ev.ChangeTime = ts.ChangeTime().Format(time.RFC3339)
	}
	if ts.HasBirthTime() {
		ev.CreationTime = ts.BirthTime().Format(time.RFC3339)
	}
	return nil
}
