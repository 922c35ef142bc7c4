package model

import (
	"fmt"
	"strconv"
)

// Sender sends a typed command message to the server. *conn.Conn
// satisfies this interface.
type Sender interface {
	Send(msgType, body string) error
}

// Switch states reported by the server.
const (
	SwitchStraight = "straight"
	SwitchTurnout  = "turnout"
	SwitchLeft     = "left"
	SwitchRight    = "right"
)

// Signal aspects reported by the server.
const (
	AspectRed    = "red"
	AspectGreen  = "green"
	AspectYellow = "yellow"
	AspectWhite  = "white"
)

// Route statuses reported by the server.
const (
	RouteLocked = "locked"
	RouteFree   = "free"
)

// Feedback is a track occupancy sensor.
type Feedback struct {
	ID    string
	State bool

	// Extra holds server attributes without a typed field, kept for
	// forward compatibility with undocumented server versions.
	Extra map[string]string

	sender Sender
}

// Locomotive is a tracked engine with speed, direction and functions.
type Locomotive struct {
	ID      string
	V       int // current speed
	VMax    int
	VMin    int
	Dir     bool // true = forward
	Lights  bool
	Placing bool
	Active  bool
	Addr    int
	BlockID string
	Train   string
	Mode    string
	Fn      map[int]bool

	Extra map[string]string

	sender Sender
}

// Block is a track section that locomotives occupy and reserve.
type Block struct {
	ID       string
	Occupied bool
	Reserved bool
	LocID    string
	State    string // "open" or "closed"

	Extra map[string]string

	sender Sender
}

// Switch is a turnout.
type Switch struct {
	ID    string
	State string // straight, turnout, left, right

	Extra map[string]string

	sender Sender
}

// Signal is a trackside signal.
type Signal struct {
	ID     string
	Aspect string // red, green, yellow, white

	Extra map[string]string

	sender Sender
}

// Output is a generic switched accessory (lights, uncouplers, relays).
type Output struct {
	ID    string
	State bool // on/off

	Extra map[string]string

	sender Sender
}

// Route is a path of switches and signals between blocks.
type Route struct {
	ID     string
	Status string // locked, free

	Extra map[string]string

	sender Sender
}

// parseBool mirrors the server's boolean attribute encoding.
func parseBool(v string) bool {
	return v == "true" || v == "True"
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (f *Feedback) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			f.ID = v
		case "state":
			f.State = parseBool(v)
		default:
			f.Extra[k] = v
		}
	}
}

func (l *Locomotive) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			l.ID = v
		case "V":
			l.V = parseInt(v, l.V)
		case "V_max":
			l.VMax = parseInt(v, l.VMax)
		case "V_min":
			l.VMin = parseInt(v, l.VMin)
		case "dir":
			l.Dir = parseBool(v)
		case "lights":
			l.Lights = parseBool(v)
		case "placing":
			l.Placing = parseBool(v)
		case "active":
			l.Active = parseBool(v)
		case "addr":
			l.Addr = parseInt(v, l.Addr)
		case "blockid":
			l.BlockID = v
		case "train":
			l.Train = v
		case "mode":
			l.Mode = v
		default:
			l.Extra[k] = v
		}
	}
}

func (b *Block) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			b.ID = v
		case "occ":
			b.Occupied = parseBool(v)
		case "reserved":
			b.Reserved = parseBool(v)
		case "locid":
			b.LocID = v
		case "state":
			b.State = v
		default:
			b.Extra[k] = v
		}
	}
}

func (s *Switch) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			s.ID = v
		case "state":
			s.State = v
		default:
			s.Extra[k] = v
		}
	}
}

func (s *Signal) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			s.ID = v
		case "aspect":
			s.Aspect = v
		default:
			s.Extra[k] = v
		}
	}
}

func (o *Output) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			o.ID = v
		case "state":
			o.State = v == "on" || parseBool(v)
		default:
			o.Extra[k] = v
		}
	}
}

func (r *Route) apply(attrs map[string]string) {
	for k, v := range attrs {
		switch k {
		case "id":
			r.ID = v
		case "status":
			r.Status = v
		default:
			r.Extra[k] = v
		}
	}
}

// Command methods are thin attribute formatters over the wire templates
// the server expects. State mutation waits for the server's echo; the
// local object is not updated optimistically.

// SetSpeed sets the locomotive speed, clamped to 0..100.
func (l *Locomotive) SetSpeed(v int) error {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" V="%d"/>`, l.ID, v))
}

// SetDirection sets the travel direction; true is forward.
func (l *Locomotive) SetDirection(forward bool) error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" dir="%t"/>`, l.ID, forward))
}

// Stop sets speed to zero.
func (l *Locomotive) Stop() error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" V="0"/>`, l.ID))
}

// SetFunction switches a decoder function on or off.
func (l *Locomotive) SetFunction(n int, on bool) error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" fn="%d" fnstate="%t"/>`, l.ID, n, on))
}

// Go releases the locomotive into automatic mode.
func (l *Locomotive) Go() error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" cmd="go"/>`, l.ID))
}

// Dispatch offers the locomotive for throttle control.
func (l *Locomotive) Dispatch() error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" cmd="dispatch"/>`, l.ID))
}

// Swap reverses the locomotive's placing orientation.
func (l *Locomotive) Swap() error {
	return l.sender.Send("lc", fmt.Sprintf(`<lc id="%s" cmd="swap"/>`, l.ID))
}

// Set commands the sensor state; no-op when already in that state.
func (f *Feedback) Set(on bool) error {
	if f.State == on {
		return nil
	}
	return f.sender.Send("fb", fmt.Sprintf(`<fb id="%s" state="%t"/>`, f.ID, on))
}

// On activates the sensor.
func (f *Feedback) On() error { return f.Set(true) }

// Off deactivates the sensor.
func (f *Feedback) Off() error { return f.Set(false) }

// Flip toggles the sensor.
func (f *Feedback) Flip() error {
	return f.sender.Send("fb", fmt.Sprintf(`<fb id="%s" cmd="flip"/>`, f.ID))
}

// Straight throws the switch to the straight position.
func (s *Switch) Straight() error {
	return s.sender.Send("sw", fmt.Sprintf(`<sw id="%s" cmd="straight"/>`, s.ID))
}

// Turnout throws the switch to the diverging position.
func (s *Switch) Turnout() error {
	return s.sender.Send("sw", fmt.Sprintf(`<sw id="%s" cmd="turnout"/>`, s.ID))
}

// Left throws a three-way switch left.
func (s *Switch) Left() error {
	return s.sender.Send("sw", fmt.Sprintf(`<sw id="%s" cmd="left"/>`, s.ID))
}

// Right throws a three-way switch right.
func (s *Switch) Right() error {
	return s.sender.Send("sw", fmt.Sprintf(`<sw id="%s" cmd="right"/>`, s.ID))
}

// Flip toggles the switch position.
func (s *Switch) Flip() error {
	return s.sender.Send("sw", fmt.Sprintf(`<sw id="%s" cmd="flip"/>`, s.ID))
}

// SetAspect commands a signal aspect (red, green, yellow, white).
func (s *Signal) SetAspect(aspect string) error {
	return s.sender.Send("sg", fmt.Sprintf(`<sg id="%s" cmd="%s"/>`, s.ID, aspect))
}

// On switches the output on.
func (o *Output) On() error {
	return o.sender.Send("co", fmt.Sprintf(`<co id="%s" cmd="on"/>`, o.ID))
}

// Off switches the output off.
func (o *Output) Off() error {
	return o.sender.Send("co", fmt.Sprintf(`<co id="%s" cmd="off"/>`, o.ID))
}

// Flip toggles the output.
func (o *Output) Flip() error {
	return o.sender.Send("co", fmt.Sprintf(`<co id="%s" cmd="flip"/>`, o.ID))
}

// Reserve reserves the block, optionally for a specific locomotive.
func (b *Block) Reserve(locID string) error {
	if locID != "" {
		return b.sender.Send("bk", fmt.Sprintf(`<bk id="%s" cmd="reserve" locid="%s"/>`, b.ID, locID))
	}
	return b.sender.Send("bk", fmt.Sprintf(`<bk id="%s" cmd="reserve"/>`, b.ID))
}

// Free releases the block reservation.
func (b *Block) Free() error {
	return b.sender.Send("bk", fmt.Sprintf(`<bk id="%s" cmd="free"/>`, b.ID))
}

// Close closes the block for traffic.
func (b *Block) Close() error {
	return b.sender.Send("bk", fmt.Sprintf(`<bk id="%s" state="closed"/>`, b.ID))
}

// Open reopens the block for traffic.
func (b *Block) Open() error {
	return b.sender.Send("bk", fmt.Sprintf(`<bk id="%s" state="open"/>`, b.ID))
}

// Set activates the route.
func (r *Route) Set() error {
	return r.sender.Send("st", fmt.Sprintf(`<st id="%s" cmd="set"/>`, r.ID))
}

// Lock locks the route.
func (r *Route) Lock() error {
	return r.sender.Send("st", fmt.Sprintf(`<st id="%s" cmd="lock"/>`, r.ID))
}

// Unlock unlocks the route.
func (r *Route) Unlock() error {
	return r.sender.Send("st", fmt.Sprintf(`<st id="%s" cmd="unlock"/>`, r.ID))
}
