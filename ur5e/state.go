package ur5e

// episodeState is the adapter's only mutable episode state
type episodeState int

const (
	// No live episode, the next step resets regardless of the action
	awaitingReset episodeState = iota
	// An episode is open and steps are forwarded to the session
	running
)

func (s episodeState) String() string {
	switch s {
	case awaitingReset:
		return "AwaitingReset"
	case running:
		return "Running"
	default:
		return "Unknown"
	}
}

// needsReset is the single reset condition of a step
func (s episodeState) needsReset(requested bool) bool {
	return requested || s == awaitingReset
}

// afterReset is the transition taken once the session has reset
func (s episodeState) afterReset() episodeState {
	return running
}

// afterStep is the transition taken after each session step
func (s episodeState) afterStep(last bool) episodeState {
	if last {
		return awaitingReset
	}
	return s
}

// afterError is the transition taken when the session fails mid episode
func (s episodeState) afterError() episodeState {
	return awaitingReset
}
