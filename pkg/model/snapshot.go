package model

// Snapshot is a point-in-time export of the safety-relevant layout
// state. The unexpected-disconnect callback receives one so an operator
// can recover train positions after the server is gone.
type Snapshot struct {
	PlanTitle string
	Clock     Clock

	Locomotives []LocomotiveState
	Blocks      []BlockState
	Switches    []SwitchState
}

// LocomotiveState captures a locomotive's last known position and motion.
type LocomotiveState struct {
	ID      string
	Speed   int
	Forward bool
	BlockID string
}

// BlockState captures a block's occupancy.
type BlockState struct {
	ID       string
	Occupied bool
	LocID    string
}

// SwitchState captures a switch position.
type SwitchState struct {
	ID    string
	State string
}

// ExportState builds a snapshot of the current layout state.
func (m *Model) ExportState() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		PlanTitle:   m.planTitle,
		Clock:       m.clock,
		Locomotives: make([]LocomotiveState, 0, len(m.locomotives)),
		Blocks:      make([]BlockState, 0, len(m.blocks)),
		Switches:    make([]SwitchState, 0, len(m.switches)),
	}
	for _, lc := range m.locomotives {
		snap.Locomotives = append(snap.Locomotives, LocomotiveState{
			ID:      lc.ID,
			Speed:   lc.V,
			Forward: lc.Dir,
			BlockID: lc.BlockID,
		})
	}
	for _, bk := range m.blocks {
		snap.Blocks = append(snap.Blocks, BlockState{
			ID:       bk.ID,
			Occupied: bk.Occupied,
			LocID:    bk.LocID,
		})
	}
	for _, sw := range m.switches {
		snap.Switches = append(snap.Switches, SwitchState{
			ID:    sw.ID,
			State: sw.State,
		})
	}
	return snap
}
