package progress

// Noop discards every event. It is the default sink used by tests and by
// callers that only care about the returned Result.
type Noop struct{}

func (Noop) Start(int)                 {}
func (Noop) SlotStarted(string)        {}
func (Noop) SlotStatus(string, string) {}
func (Noop) SlotDone(string, error)    {}
func (Noop) Finish()                   {}
