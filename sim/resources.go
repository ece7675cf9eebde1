package sim

// Slot is one CPU or IO device. An empty slot has Occupied == false.
type Slot struct {
	Index    int
	Occupied bool
	Job      JobID
	// Quantum is what the policy granted at dispatch; 0 means run to completion.
	Quantum int64
	// QuantumLeft is the number of ticks the occupant may still run before
	// preemption. Only meaningful when Quantum > 0.
	QuantumLeft int64
	// RunTicks counts consecutive ticks the occupant has spent on this slot.
	RunTicks int64
}

func (s *Slot) assign(id JobID, quantum int64) {
	s.Occupied = true
	s.Job = id
	s.Quantum = quantum
	s.QuantumLeft = quantum
	s.RunTicks = 0
}

func (s *Slot) release() {
	s.Occupied = false
	s.Job = 0
	s.Quantum = 0
	s.QuantumLeft = 0
	s.RunTicks = 0
}

// tick charges one tick of service to the slot.
func (s *Slot) tick() {
	s.RunTicks++
	if s.Quantum > 0 {
		s.QuantumLeft--
	}
}

// QuantumExpired reports whether a preemptive grant has been used up.
func (s *Slot) QuantumExpired() bool {
	return s.Quantum > 0 && s.QuantumLeft <= 0
}

// ResourcePool is the fixed set of CPU and IO slots.
type ResourcePool struct {
	CPUs []Slot
	IOs  []Slot
}

// NewResourcePool creates cpus CPU slots and ios IO slots, all idle.
func NewResourcePool(cpus, ios int) *ResourcePool {
	p := &ResourcePool{
		CPUs: make([]Slot, cpus),
		IOs:  make([]Slot, ios),
	}
	for i := range p.CPUs {
		p.CPUs[i].Index = i
	}
	for i := range p.IOs {
		p.IOs[i].Index = i
	}
	return p
}

// BusyCPUs returns the number of occupied CPU slots.
func (p *ResourcePool) BusyCPUs() int { return countBusy(p.CPUs) }

// BusyIOs returns the number of occupied IO slots.
func (p *ResourcePool) BusyIOs() int { return countBusy(p.IOs) }

// Idle reports whether every slot is empty.
func (p *ResourcePool) Idle() bool {
	return p.BusyCPUs() == 0 && p.BusyIOs() == 0
}

func countBusy(slots []Slot) int {
	n := 0
	for i := range slots {
		if slots[i].Occupied {
			n++
		}
	}
	return n
}
