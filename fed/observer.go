package fed

// Observer receives notifications about device activity. Telemetry
// implements it; the default discards everything.
type Observer interface {
	EventRecorded(e Event)
	DeliveryFailed(side Side)
	AppendFailed()
	ModeChanged(m Mode)
}

type nopObserver struct{}

func (nopObserver) EventRecorded(Event) {}
func (nopObserver) DeliveryFailed(Side) {}
func (nopObserver) AppendFailed()       {}
func (nopObserver) ModeChanged(Mode)    {}
