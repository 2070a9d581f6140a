package stress

import "sync"

// RaceKind classifies a detected race.
type RaceKind string

const (
	RaceWriteWrite RaceKind = "write-write"
	RaceWriteRead  RaceKind = "write-read"
	RaceReadWrite  RaceKind = "read-write"
)

// Race describes a single data race between goroutines on a variable address.
type Race struct {
	VarAddr uintptr
	Thread1 int64
	Thread2 int64
	Kind    RaceKind
}

type accessKind uint8

const (
	accessRead  accessKind = 1 << 0
	accessWrite accessKind = 1 << 1
)

type raceVar struct {
	seenByThread map[int64]accessKind
	lockset      map[int64]struct{}
	reportedEdge map[string]struct{}
}

// RaceDetector implements a lightweight dynamic race detector using a lockset
// analysis similar to Eraser. It is fed by cooperative instrumentation at
// lock/unlock and read/write points, typically from a lock-protected
// critical section under test.
type RaceDetector struct {
	mu        sync.Mutex
	locksHeld map[int64]map[int64]struct{}
	vars      map[uintptr]*raceVar
	races     []Race
}

// NewRaceDetector creates a new detector instance.
func NewRaceDetector() *RaceDetector {
	return &RaceDetector{
		locksHeld: make(map[int64]map[int64]struct{}),
		vars:      make(map[uintptr]*raceVar),
	}
}

// OnLock records that thread gid acquired a lock with logical ID lid.
func (d *RaceDetector) OnLock(gid, lid int64) {
	d.mu.Lock()
	set := d.locksHeld[gid]
	if set == nil {
		set = make(map[int64]struct{})
		d.locksHeld[gid] = set
	}
	set[lid] = struct{}{}
	d.mu.Unlock()
}

// OnUnlock records that thread gid released a lock with logical ID lid.
func (d *RaceDetector) OnUnlock(gid, lid int64) {
	d.mu.Lock()
	if set := d.locksHeld[gid]; set != nil {
		delete(set, lid)
	}
	d.mu.Unlock()
}

// Read marks a read access to the variable at address addr by thread gid.
func (d *RaceDetector) Read(gid int64, addr uintptr) {
	d.onAccess(gid, addr, accessRead)
}

// Write marks a write access to the variable at address addr by thread gid.
func (d *RaceDetector) Write(gid int64, addr uintptr) {
	d.onAccess(gid, addr, accessWrite)
}

// Races returns a snapshot of all detected races.
func (d *RaceDetector) Races() []Race {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Race, len(d.races))
	copy(out, d.races)
	return out
}

// HasRace reports whether any race has been detected.
func (d *RaceDetector) HasRace() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.races) > 0
}

func (d *RaceDetector) onAccess(gid int64, addr uintptr, kind accessKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	curLocks := d.copyLocks(d.locksHeld[gid])

	st := d.vars[addr]
	if st == nil {
		st = &raceVar{
			seenByThread: make(map[int64]accessKind),
			reportedEdge: make(map[string]struct{}),
		}
		st.lockset = curLocks
		d.vars[addr] = st
	}

	for other, okind := range st.seenByThread {
		if other == gid {
			continue
		}
		if conflicts(kind, okind) {
			if isEmpty(intersect(st.lockset, curLocks)) {
				t1, t2 := orderPair(gid, other)
				var rk RaceKind
				switch {
				case kind&accessWrite != 0 && okind&accessWrite != 0:
					rk = RaceWriteWrite
				case kind&accessWrite != 0:
					rk = RaceWriteRead
				default:
					rk = RaceReadWrite
				}
				key := edgeKey(addr, t1, t2, rk)
				if _, dup := st.reportedEdge[key]; !dup {
					st.reportedEdge[key] = struct{}{}
					d.races = append(d.races, Race{VarAddr: addr, Thread1: t1, Thread2: t2, Kind: rk})
				}
			}
		}
	}

	st.lockset = intersect(st.lockset, curLocks)
	st.seenByThread[gid] = st.seenByThread[gid] | kind
}

func conflicts(a, b accessKind) bool {
	return (a&accessWrite) != 0 || (b&accessWrite) != 0
}

func (d *RaceDetector) copyLocks(src map[int64]struct{}) map[int64]struct{} {
	if src == nil {
		return make(map[int64]struct{})
	}
	out := make(map[int64]struct{}, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}

func intersect(a, b map[int64]struct{}) map[int64]struct{} {
	if len(a) > len(b) {
		return intersect(b, a)
	}
	out := make(map[int64]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func isEmpty(m map[int64]struct{}) bool { return len(m) == 0 }

func orderPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

func edgeKey(addr uintptr, t1, t2 int64, kind RaceKind) string {
	return string(kind) + ":" + itoa64(int64(addr)) + ":" + itoa64(t1) + "/" + itoa64(t2)
}

// itoa64 is a minimal int64 to base-10 string formatter to avoid allocations from fmt.
func itoa64(n int64) string {
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
