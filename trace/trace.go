// Package trace is a bounded, allocation-free ring of (status, event,
// param, count, timestamp) tuples for post-mortem debugging of a transfer
// (spec.md 4.3), generalized from a single fixed event taxonomy to the
// engine's status+event stream, with run-length collapse: a repeated
// status increments the current entry's count instead of consuming a new
// slot.
//
// Trace is a pure observer: nothing in package engine or dispatch changes
// behavior because tracing is enabled or disabled, and a zero-capacity
// Recorder costs one length check per call. The methods need a non-nil
// *Recorder; engine.New substitutes New(0) for a nil one.
package trace

// Event annotates what the engine or dispatcher was doing when a status
// sample was recorded. These are distinct from, but pair with, the raw SR1
// status bits.
type Event uint8

const (
	EventNone Event = iota
	EventStart
	EventAddrACK
	EventAddrNACK
	EventStop
	EventWriteByte
	EventReadByte
	EventWaitBTF
	EventMsgAdvance
	EventShutdown
	EventDeviceNotReady
	EventStateError
	EventWriteFlagError
	EventReadError
	EventDone
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventAddrACK:
		return "addr-ack"
	case EventAddrNACK:
		return "addr-nack"
	case EventStop:
		return "stop"
	case EventWriteByte:
		return "write-byte"
	case EventReadByte:
		return "read-byte"
	case EventWaitBTF:
		return "wait-btf"
	case EventMsgAdvance:
		return "msg-advance"
	case EventShutdown:
		return "shutdown"
	case EventDeviceNotReady:
		return "device-not-ready"
	case EventStateError:
		return "state-error"
	case EventWriteFlagError:
		return "write-flag-error"
	case EventReadError:
		return "read-error"
	case EventDone:
		return "done"
	default:
		return "none"
	}
}

// Entry is one collapsed slot in the ring.
type Entry struct {
	Status    uint32 // combined SR1 | SR2<<16 at the time of the sample
	Event     Event
	Param     uint32
	Count     uint32 // how many consecutive samples collapsed into this slot
	Timestamp uint32 // monotonic tick supplied by the caller
}

// DefaultCapacity is the conventional ring size (spec.md 4.3 and 6). New
// does not apply it on its own: it uses exactly the capacity it is given,
// and a capacity of 0 records nothing.
const DefaultCapacity = 32

// Recorder is a bounded ring. The zero value is usable but has zero
// capacity and records nothing — use New to get a working ring.
type Recorder struct {
	entries   []Entry
	head      int
	len       int
	overflowN uint32
}

// New creates a Recorder with the given capacity. Capacity <= 0 yields a
// Recorder that records nothing, which is how trace-disabled builds get a
// zero-footprint no-op without a second code path (spec.md 9's "trace
// facility... behind a compile-time flag").
func New(capacity int) *Recorder {
	if capacity <= 0 {
		return &Recorder{}
	}
	return &Recorder{entries: make([]Entry, capacity)}
}

// Sample records a status snapshot at ts. If it differs from the current
// (most recent) entry's status, a new entry is started; otherwise the
// current entry's count is incremented.
func (r *Recorder) Sample(status uint32, ts uint32) {
	if len(r.entries) == 0 {
		return
	}
	if r.len > 0 {
		cur := &r.entries[r.lastIndex()]
		if cur.Status == status {
			cur.Count++
			return
		}
	}
	r.push(Entry{Status: status, Timestamp: ts, Count: 1})
}

// Event annotates the current (most recently pushed) entry with an event
// and parameter. If the ring is empty or disabled, the annotation is not
// stored and is counted in Overflowed instead.
func (r *Recorder) Event(evt Event, param uint32) {
	if len(r.entries) == 0 || r.len == 0 {
		r.overflowN++
		return
	}
	cur := &r.entries[r.lastIndex()]
	cur.Event = evt
	cur.Param = param
}

func (r *Recorder) lastIndex() int {
	idx := r.head - 1
	if idx < 0 {
		idx += len(r.entries)
	}
	return idx
}

func (r *Recorder) push(e Entry) {
	r.entries[r.head] = e
	r.head = (r.head + 1) % len(r.entries)
	if r.len < len(r.entries) {
		r.len++
	} else {
		r.overflowN++
	}
}

// Reset clears the ring's contents, e.g. before starting a new transfer.
func (r *Recorder) Reset() {
	r.head, r.len, r.overflowN = 0, 0, 0
	for i := range r.entries {
		r.entries[i] = Entry{}
	}
}

// Entries returns the collapsed entries in chronological order (oldest
// first). The returned slice is a copy and safe to retain.
func (r *Recorder) Entries() []Entry {
	out := make([]Entry, r.len)
	start := r.head - r.len
	if start < 0 {
		start += len(r.entries)
	}
	for i := 0; i < r.len; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}

// Overflowed reports how many entries were overwritten because the ring was
// full, plus how many events found no entry to annotate (empty or disabled
// ring). Samples taken on a disabled ring are not counted.
func (r *Recorder) Overflowed() uint32 { return r.overflowN }

// Dump renders the ring as diagnostic lines via w, one call per entry,
// followed by one summary line when Overflowed is nonzero.
func (r *Recorder) Dump(w func(string)) {
	if w == nil {
		return
	}
	for _, e := range r.Entries() {
		w("[I2C-TRACE] status=" + hex32(e.Status) +
			" event=" + e.Event.String() +
			" param=" + hex32(e.Param) +
			" count=" + itoa(int(e.Count)) +
			" ts=" + itoa(int(e.Timestamp)))
	}
	if n := r.Overflowed(); n > 0 {
		w("[I2C-TRACE] dropped " + itoa(int(n)) + " entries (ring full)")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	var buf [10]byte
	buf[0] = '0'
	buf[1] = 'x'
	for i := 0; i < 8; i++ {
		shift := uint(28 - i*4)
		buf[2+i] = digits[(v>>shift)&0xF]
	}
	return string(buf[:])
}
