package model

import (
	"sync"

	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
)

// Clock is the layout's fast clock as last reported by the server.
type Clock struct {
	Hour    int
	Minute  int
	Divider int
	Frozen  bool
}

// ClockHandler is invoked after every clock document, with the new time.
type ClockHandler func(hour, minute int)

// ObjectHandler is invoked after an update document mutates a tracked
// object. objType is the wire tag (fb, bk, sw, sg, lc, co, st).
type ObjectHandler func(objType, objID string, obj interface{})

// Model is the live registry of layout objects. The connection's reader
// goroutine is the only mutator; everything else reads. Registry lookups
// are guarded; object field reads tolerate concurrent access per the
// protocol's single-writer discipline.
type Model struct {
	sender Sender
	logger log.Logger

	mu        sync.RWMutex
	clock     Clock
	planTitle string

	feedbacks   map[string]*Feedback
	locomotives map[string]*Locomotive
	blocks      map[string]*Block
	switches    map[string]*Switch
	signals     map[string]*Signal
	outputs     map[string]*Output
	routes      map[string]*Route

	serverShutdown bool

	onClock  ClockHandler
	onObject ObjectHandler
}

// New creates an empty model bound to a command sender. The logger may
// be nil, in which case output is discarded.
func New(sender Sender, logger log.Logger) *Model {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Model{
		sender:      sender,
		logger:      logger,
		feedbacks:   make(map[string]*Feedback),
		locomotives: make(map[string]*Locomotive),
		blocks:      make(map[string]*Block),
		switches:    make(map[string]*Switch),
		signals:     make(map[string]*Signal),
		outputs:     make(map[string]*Output),
		routes:      make(map[string]*Route),
	}
}

// Init requests the layout plan from the server. Call after the
// connection is up; the plan document arrives asynchronously.
func (m *Model) Init() error {
	return m.sender.Send("model", `<model cmd="plan"/>`)
}

// SetClockHandler registers the clock-advance hook. One handler only;
// the scheduler is its consumer.
func (m *Model) SetClockHandler(h ClockHandler) {
	m.onClock = h
}

// SetObjectHandler registers the object-changed hook.
func (m *Model) SetObjectHandler(h ObjectHandler) {
	m.onObject = h
}

// ServerShuttingDown reports whether a server shutdown announcement was
// decoded. Consulted by the connection's disconnect classification.
func (m *Model) ServerShuttingDown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serverShutdown
}

// Clock returns a copy of the current fast clock.
func (m *Model) Clock() Clock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock
}

// PlanTitle returns the layout plan title, if a plan was received.
func (m *Model) PlanTitle() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.planTitle
}

// Decode applies one decoded server document to the model. Invoked from
// the connection's reader goroutine in document order.
func (m *Model) Decode(doc *frame.Document) {
	for _, el := range doc.Root.Children {
		switch el.Name {
		case "clock":
			m.applyClock(el)
		case "plan":
			m.buildPlan(el)
		case "sys":
			m.applySys(el)
		case "fb":
			if fb := m.lookupFeedback(el.GetAttr("id")); fb != nil {
				fb.apply(el.Attr)
				m.notifyObject("fb", fb.ID, fb)
			}
		case "lc":
			if lc := m.lookupLocomotive(el.GetAttr("id")); lc != nil {
				lc.apply(el.Attr)
				m.notifyObject("lc", lc.ID, lc)
			}
		case "bk":
			if bk := m.lookupBlock(el.GetAttr("id")); bk != nil {
				bk.apply(el.Attr)
				m.notifyObject("bk", bk.ID, bk)
			}
		case "sw":
			if sw := m.lookupSwitch(el.GetAttr("id")); sw != nil {
				sw.apply(el.Attr)
				m.notifyObject("sw", sw.ID, sw)
			}
		case "sg":
			if sg := m.lookupSignal(el.GetAttr("id")); sg != nil {
				sg.apply(el.Attr)
				m.notifyObject("sg", sg.ID, sg)
			}
		case "co":
			if co := m.lookupOutput(el.GetAttr("id")); co != nil {
				co.apply(el.Attr)
				m.notifyObject("co", co.ID, co)
			}
		case "st":
			if st := m.lookupRoute(el.GetAttr("id")); st != nil {
				st.apply(el.Attr)
				m.notifyObject("st", st.ID, st)
			}
		default:
			m.logger.Debug("ignoring document element", log.String("tag", el.Name))
		}
	}
}

func (m *Model) applyClock(el *frame.Element) {
	m.mu.Lock()
	if el.HasAttr("hour") {
		m.clock.Hour = parseInt(el.GetAttr("hour"), m.clock.Hour)
	}
	if el.HasAttr("minute") {
		m.clock.Minute = parseInt(el.GetAttr("minute"), m.clock.Minute)
	}
	if el.HasAttr("divider") {
		m.clock.Divider = parseInt(el.GetAttr("divider"), m.clock.Divider)
	}
	if el.HasAttr("freeze") {
		m.clock.Frozen = parseBool(el.GetAttr("freeze"))
	}
	hour, minute := m.clock.Hour, m.clock.Minute
	m.mu.Unlock()

	if m.onClock != nil {
		m.onClock(hour, minute)
	}
}

func (m *Model) applySys(el *frame.Element) {
	if el.GetAttr("cmd") == "shutdown" {
		m.mu.Lock()
		m.serverShutdown = true
		m.mu.Unlock()
		m.logger.Info("server announced shutdown")
	}
}

// buildPlan replaces the registries from a plan document's object lists.
func (m *Model) buildPlan(plan *frame.Element) {
	m.mu.Lock()
	m.planTitle = plan.GetAttr("title")
	for _, list := range plan.Children {
		switch list.Name {
		case "fblist":
			for _, el := range list.Children {
				fb := &Feedback{Extra: map[string]string{}, sender: m.sender}
				fb.apply(el.Attr)
				m.feedbacks[fb.ID] = fb
			}
		case "lclist":
			for _, el := range list.Children {
				lc := &Locomotive{Extra: map[string]string{}, Fn: map[int]bool{}, sender: m.sender}
				lc.apply(el.Attr)
				m.locomotives[lc.ID] = lc
			}
		case "bklist":
			for _, el := range list.Children {
				bk := &Block{Extra: map[string]string{}, sender: m.sender}
				bk.apply(el.Attr)
				m.blocks[bk.ID] = bk
			}
		case "swlist":
			for _, el := range list.Children {
				sw := &Switch{Extra: map[string]string{}, sender: m.sender}
				sw.apply(el.Attr)
				m.switches[sw.ID] = sw
			}
		case "sglist":
			for _, el := range list.Children {
				sg := &Signal{Extra: map[string]string{}, sender: m.sender}
				sg.apply(el.Attr)
				m.signals[sg.ID] = sg
			}
		case "colist":
			for _, el := range list.Children {
				co := &Output{Extra: map[string]string{}, sender: m.sender}
				co.apply(el.Attr)
				m.outputs[co.ID] = co
			}
		case "stlist":
			for _, el := range list.Children {
				st := &Route{Extra: map[string]string{}, sender: m.sender}
				st.apply(el.Attr)
				m.routes[st.ID] = st
			}
		}
	}
	counts := []log.Field{
		log.String("title", m.planTitle),
		log.Int("feedbacks", len(m.feedbacks)),
		log.Int("locomotives", len(m.locomotives)),
		log.Int("blocks", len(m.blocks)),
		log.Int("switches", len(m.switches)),
	}
	m.mu.Unlock()
	m.logger.Info("plan loaded", counts...)
}

func (m *Model) notifyObject(objType, objID string, obj interface{}) {
	if m.onObject != nil {
		m.onObject(objType, objID, obj)
	}
}

func (m *Model) lookupFeedback(id string) *Feedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedbacks[id]
}

func (m *Model) lookupLocomotive(id string) *Locomotive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locomotives[id]
}

func (m *Model) lookupBlock(id string) *Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blocks[id]
}

func (m *Model) lookupSwitch(id string) *Switch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.switches[id]
}

func (m *Model) lookupSignal(id string) *Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signals[id]
}

func (m *Model) lookupOutput(id string) *Output {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outputs[id]
}

func (m *Model) lookupRoute(id string) *Route {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes[id]
}

// GetFeedback returns the sensor with the given ID, or nil.
func (m *Model) GetFeedback(id string) *Feedback { return m.lookupFeedback(id) }

// GetLocomotive returns the locomotive with the given ID, or nil.
func (m *Model) GetLocomotive(id string) *Locomotive { return m.lookupLocomotive(id) }

// GetBlock returns the block with the given ID, or nil.
func (m *Model) GetBlock(id string) *Block { return m.lookupBlock(id) }

// GetSwitch returns the switch with the given ID, or nil.
func (m *Model) GetSwitch(id string) *Switch { return m.lookupSwitch(id) }

// GetSignal returns the signal with the given ID, or nil.
func (m *Model) GetSignal(id string) *Signal { return m.lookupSignal(id) }

// GetOutput returns the output with the given ID, or nil.
func (m *Model) GetOutput(id string) *Output { return m.lookupOutput(id) }

// GetRoute returns the route with the given ID, or nil.
func (m *Model) GetRoute(id string) *Route { return m.lookupRoute(id) }

// Feedbacks returns a copy of the sensor registry.
func (m *Model) Feedbacks() map[string]*Feedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Feedback, len(m.feedbacks))
	for k, v := range m.feedbacks {
		out[k] = v
	}
	return out
}

// Locomotives returns a copy of the locomotive registry.
func (m *Model) Locomotives() map[string]*Locomotive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Locomotive, len(m.locomotives))
	for k, v := range m.locomotives {
		out[k] = v
	}
	return out
}

// Blocks returns a copy of the block registry.
func (m *Model) Blocks() map[string]*Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Block, len(m.blocks))
	for k, v := range m.blocks {
		out[k] = v
	}
	return out
}

// Switches returns a copy of the switch registry.
func (m *Model) Switches() map[string]*Switch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Switch, len(m.switches))
	for k, v := range m.switches {
		out[k] = v
	}
	return out
}

// Signals returns a copy of the signal registry.
func (m *Model) Signals() map[string]*Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Signal, len(m.signals))
	for k, v := range m.signals {
		out[k] = v
	}
	return out
}

// Outputs returns a copy of the output registry.
func (m *Model) Outputs() map[string]*Output {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Output, len(m.outputs))
	for k, v := range m.outputs {
		out[k] = v
	}
	return out
}

// Routes returns a copy of the route registry.
func (m *Model) Routes() map[string]*Route {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Route, len(m.routes))
	for k, v := range m.routes {
		out[k] = v
	}
	return out
}
