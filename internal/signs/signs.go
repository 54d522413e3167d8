// Package signs holds the static traffic-sign lookup table keyed by the
// classifier's class identifiers. The table is immutable and read-only.
package signs

// Kind groups sign classes by their regulatory role.
type Kind string

const (
	KindLimit  Kind = "limit"  // numeric speed ceiling
	KindForbid Kind = "forbid" // prohibition
	KindGuide  Kind = "guide"  // mandatory direction or lane
	KindWarn   Kind = "warn"   // hazard warning
	KindStop   Kind = "stop"   // mandatory stop
	KindInfo   Kind = "info"   // informational only
)

// Descriptor describes one sign class. SpeedLimit is only meaningful for
// KindLimit descriptors.
type Descriptor struct {
	ClassID    string  `json:"class_id"`
	Label      string  `json:"label"`
	Icon       string  `json:"icon"`
	Kind       Kind    `json:"kind"`
	SpeedLimit float64 `json:"speed_limit,omitempty"`
	Advisory   string  `json:"advisory"`
}

// Unknown is returned by Lookup for class identifiers absent from the table.
var Unknown = Descriptor{ClassID: "unknown", Label: "Unknown sign", Icon: "?", Kind: KindInfo, Advisory: "Unknown sign ahead, watch the road"}

var table = map[string]Descriptor{
	// Speed limits.
	"class_0": {Label: "Speed limit 5", Icon: "5", Kind: KindLimit, SpeedLimit: 5, Advisory: "Limit 5 km/h ahead, crawl speed only"},
	"class_1": {Label: "Speed limit 15", Icon: "15", Kind: KindLimit, SpeedLimit: 15, Advisory: "Limit 15 km/h ahead, slow down"},
	"class_2": {Label: "Speed limit 30", Icon: "30", Kind: KindLimit, SpeedLimit: 30, Advisory: "Entering a 30 km/h zone, check your speed"},
	"class_3": {Label: "Speed limit 40", Icon: "40", Kind: KindLimit, SpeedLimit: 40, Advisory: "Limit 40 km/h, do not exceed"},
	"class_4": {Label: "Speed limit 50", Icon: "50", Kind: KindLimit, SpeedLimit: 50, Advisory: "Urban limit 50 km/h, drive steady"},
	"class_5": {Label: "Speed limit 60", Icon: "60", Kind: KindLimit, SpeedLimit: 60, Advisory: "Limit 60 km/h, keep your distance"},
	"class_6": {Label: "Speed limit 70", Icon: "70", Kind: KindLimit, SpeedLimit: 70, Advisory: "Limit 70 km/h, do not exceed"},
	"class_7": {Label: "Speed limit 80", Icon: "80", Kind: KindLimit, SpeedLimit: 80, Advisory: "Expressway limit 80 km/h, stay alert"},

	// Prohibitions.
	"class_8":  {Label: "No straight or left", Icon: "↛", Kind: KindForbid, Advisory: "No going straight or turning left at junction"},
	"class_9":  {Label: "No straight or right", Icon: "↛", Kind: KindForbid, Advisory: "No going straight or turning right at junction"},
	"class_10": {Label: "No straight ahead", Icon: "↑", Kind: KindForbid, Advisory: "No through traffic, use a detour"},
	"class_11": {Label: "No left turn", Icon: "↰", Kind: KindForbid, Advisory: "No left turn at junction"},
	"class_12": {Label: "No left or right turn", Icon: "↔", Kind: KindForbid, Advisory: "No turning left or right"},
	"class_13": {Label: "No right turn", Icon: "↱", Kind: KindForbid, Advisory: "No right turn at junction"},
	"class_14": {Label: "No overtaking", Icon: "⇉", Kind: KindForbid, Advisory: "No overtaking on this stretch"},
	"class_15": {Label: "No U-turn", Icon: "↶", Kind: KindForbid, Advisory: "No U-turn ahead"},
	"class_16": {Label: "No entry for vehicles", Icon: "⃠", Kind: KindForbid, Advisory: "Motor vehicles prohibited"},
	"class_17": {Label: "No horns", Icon: "☊", Kind: KindForbid, Advisory: "Quiet zone, no horn use"},

	// Limit lifted.
	"class_18": {Label: "End of speed limit", Icon: "○", Kind: KindInfo, Advisory: "Speed restriction zone ends"},
	"class_19": {Label: "End of speed limit", Icon: "○", Kind: KindInfo, Advisory: "Speed restriction zone ends"},

	// Mandatory directions and lanes.
	"class_20": {Label: "Straight or right only", Icon: "↱", Kind: KindGuide, Advisory: "Proceed straight or turn right only"},
	"class_21": {Label: "Straight only", Icon: "↑", Kind: KindGuide, Advisory: "Straight ahead only"},
	"class_22": {Label: "Left turn only", Icon: "↰", Kind: KindGuide, Advisory: "Left turn only ahead"},
	"class_23": {Label: "Left or right only", Icon: "↔", Kind: KindGuide, Advisory: "Turn left or right only"},
	"class_24": {Label: "Right turn only", Icon: "↱", Kind: KindGuide, Advisory: "Right turn only ahead"},
	"class_25": {Label: "Keep left", Icon: "↖", Kind: KindGuide, Advisory: "Keep to the left side of the road"},
	"class_26": {Label: "Keep right", Icon: "↗", Kind: KindGuide, Advisory: "Keep to the right side of the road"},
	"class_27": {Label: "Roundabout", Icon: "↺", Kind: KindGuide, Advisory: "Entering roundabout, yield to circulating traffic"},
	"class_28": {Label: "Motor vehicle lane", Icon: "⛍", Kind: KindGuide, Advisory: "Motor vehicle lane, keep moving"},
	"class_29": {Label: "Sound horn", Icon: "♪", Kind: KindGuide, Advisory: "Poor visibility, sound your horn"},
	"class_30": {Label: "Non-motor lane", Icon: "⚲", Kind: KindGuide, Advisory: "Non-motor vehicle lane"},
	"class_31": {Label: "U-turn permitted", Icon: "↶", Kind: KindGuide, Advisory: "U-turn permitted at junction"},

	// Warnings.
	"class_32": {Label: "Pass either side", Icon: "↔", Kind: KindWarn, Advisory: "Obstacle ahead, slow down and pass either side"},
	"class_33": {Label: "Traffic signals", Icon: "⦿", Kind: KindWarn, Advisory: "Traffic signals ahead, watch for lights"},
	"class_34": {Label: "Danger", Icon: "!", Kind: KindWarn, Advisory: "Danger ahead, drive with caution"},
	"class_35": {Label: "Pedestrians", Icon: "⚷", Kind: KindWarn, Advisory: "Slow down and yield to pedestrians"},
	"class_36": {Label: "Cyclists", Icon: "⚲", Kind: KindWarn, Advisory: "Watch for non-motor vehicles"},
	"class_37": {Label: "Children", Icon: "⚠", Kind: KindWarn, Advisory: "School zone, watch for children"},
	"class_38": {Label: "Sharp right bend", Icon: "⤵", Kind: KindWarn, Advisory: "Sharp right bend ahead, slow down"},
	"class_39": {Label: "Sharp left bend", Icon: "⤶", Kind: KindWarn, Advisory: "Sharp left bend ahead, slow down"},
	"class_40": {Label: "Steep descent", Icon: "▽", Kind: KindWarn, Advisory: "Downhill ahead, control your speed"},
	"class_41": {Label: "Steep ascent", Icon: "△", Kind: KindWarn, Advisory: "Uphill ahead, mind your gear"},
	"class_42": {Label: "Slow", Icon: "SLOW", Kind: KindWarn, Advisory: "Complex road ahead, slow down"},
	"class_43": {Label: "T-junction right", Icon: "⊢", Kind: KindWarn, Advisory: "Road merges from the right"},
	"class_44": {Label: "T-junction left", Icon: "⊣", Kind: KindWarn, Advisory: "Road merges from the left"},
	"class_45": {Label: "Village", Icon: "⌂", Kind: KindWarn, Advisory: "Passing through village, stay alert"},
	"class_46": {Label: "Double bend", Icon: "⌇", Kind: KindWarn, Advisory: "Reverse bends ahead"},
	"class_47": {Label: "Unguarded rail crossing", Icon: "⛙", Kind: KindWarn, Advisory: "Unguarded railway crossing ahead"},
	"class_48": {Label: "Road works", Icon: "⛏", Kind: KindWarn, Advisory: "Road works ahead, merge carefully"},
	"class_49": {Label: "Winding road", Icon: "⌇", Kind: KindWarn, Advisory: "Consecutive bends, slow down"},
	"class_50": {Label: "Guarded rail crossing", Icon: "⛙", Kind: KindWarn, Advisory: "Guarded railway crossing ahead"},
	"class_51": {Label: "Accident black spot", Icon: "⚠", Kind: KindWarn, Advisory: "Accident-prone stretch, drive carefully"},

	// Priority and checkpoint shapes.
	"class_52": {Label: "Stop and give way", Icon: "STOP", Kind: KindStop, Advisory: "Stop fully, proceed when safe"},
	"class_53": {Label: "Road closed", Icon: "⃠", Kind: KindForbid, Advisory: "Road closed to all traffic"},
	"class_54": {Label: "No stopping", Icon: "╳", Kind: KindForbid, Advisory: "No stopping or parking at any time"},
	"class_55": {Label: "No entry", Icon: "⛔", Kind: KindForbid, Advisory: "No entry for vehicles"},
	"class_56": {Label: "Give way", Icon: "▽", Kind: KindWarn, Advisory: "Slow down, main road traffic has priority"},
	"class_57": {Label: "Checkpoint", Icon: "✋", Kind: KindStop, Advisory: "Stop for inspection"},
}

// Lookup returns the descriptor for classID, or Unknown when the class is
// not in the table. The returned descriptor always carries the queried
// classID so callers can report what was actually seen.
func Lookup(classID string) Descriptor {
	d, ok := table[classID]
	if !ok {
		d = Unknown
	}
	d.ClassID = classID
	return d
}

// All returns every descriptor in the table keyed by class identifier.
// The map is a copy; mutating it does not affect the table.
func All() map[string]Descriptor {
	out := make(map[string]Descriptor, len(table))
	for id, d := range table {
		d.ClassID = id
		out[id] = d
	}
	return out
}
