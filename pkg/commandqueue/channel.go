package commandqueue

// Channel pairs a command queue with the control flags of one worker loop.
// It is the whole surface an external driver needs.
type Channel struct {
	*CommandQueue
	ControlState
}

// NewChannel creates a channel with an empty queue named "main".
func NewChannel() *Channel {
	return NewNamedChannel("main")
}

// NewNamedChannel creates a channel whose queue is labelled name.
func NewNamedChannel(name string) *Channel {
	return &Channel{CommandQueue: New(name)}
}
