// Package wireversion maps the server's advertised maxWireVersion integer
// to a small, closed enumeration of the MongoDB releases this core
// understands.
package wireversion

import "fmt"

// WireVersion is a release from the closed enumeration below, comparable
// by its underlying numeric protocol level.
type WireVersion int

const (
	Unknown WireVersion = 0
	V3_0    WireVersion = 3
	V3_2    WireVersion = 4
	V3_4    WireVersion = 5
	V3_6    WireVersion = 6
	V4_0    WireVersion = 7
	V4_2    WireVersion = 8
	V5_0    WireVersion = 13
	V5_1    WireVersion = 14
	V6_0    WireVersion = 17
	V7_0    WireVersion = 21
	V7_1    WireVersion = 22
	V7_2    WireVersion = 23
	V7_3    WireVersion = 24
	V8_0    WireVersion = 25
)

// ordered lists every known level from lowest to highest, used by Coerce
// to find the nearest known level at or below an arbitrary integer.
var ordered = []WireVersion{
	V3_0, V3_2, V3_4, V3_6, V4_0, V4_2, V5_0, V5_1, V6_0, V7_0, V7_1, V7_2, V7_3, V8_0,
}

var releaseNames = map[WireVersion]string{
	V3_0: "3.0",
	V3_2: "3.2",
	V3_4: "3.4",
	V3_6: "3.6",
	V4_0: "4.0",
	V4_2: "4.2",
	V5_0: "5.0",
	V5_1: "5.1",
	V6_0: "6.0",
	V7_0: "7.0",
	V7_1: "7.1",
	V7_2: "7.2",
	V7_3: "7.3",
	V8_0: "8.0",
}

func (w WireVersion) String() string {
	if name, ok := releaseNames[w]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(w))
}

// Level returns the raw numeric protocol level, the quantity comparisons
// actually operate on.
func (w WireVersion) Level() int { return int(w) }

// AtLeast reports whether w's numeric level is >= required's.
func (w WireVersion) AtLeast(required WireVersion) bool {
	return w.Level() >= required.Level()
}

// Coerce rounds an arbitrary maxWireVersion integer down to the nearest
// known release, by design: "anything below 3.2 is treated as
// 3.0". A value above the highest known release coerces to that release
// rather than erroring — a server newer than this core understands is
// still usable at the highest protocol level this core speaks.
func Coerce(level int) WireVersion {
	if level < int(V3_2) {
		return V3_0
	}
	best := V3_0
	for _, v := range ordered {
		if int(v) <= level {
			best = v
			continue
		}
		break
	}
	return best
}

// Capability flags gate operations that require a minimum release: a
// command that requires one of these must check before sending, failing
// with UnsupportedOperation{required, actual} rather than sending a
// frame the server can't parse.
const (
	// CapabilityOpMsg is the minimum level at which OP_MSG replaces
	// OP_QUERY for command dispatch.
	CapabilityOpMsg = V3_6
	// CapabilityRetryableWrites is the minimum level the retryable-writes
	// failover path requires.
	CapabilityRetryableWrites = V3_6
	// CapabilityTransactions is the minimum level multi-document
	// transactions require.
	CapabilityTransactions = V4_0
)

// Supports reports whether w meets the given capability's minimum level.
func (w WireVersion) Supports(capability WireVersion) bool {
	return w.AtLeast(capability)
}
