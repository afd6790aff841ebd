package domain

// Status is a synchronous snapshot of the voice core, for diagnostics
// and host UI. All fields reflect the moment of the call; none of them
// may be written from outside the core.
type Status struct {
	// IsListening is the intended listening state.
	IsListening bool
	// IsRecognitionActive is the last engine state actually observed.
	// It can legitimately lag IsListening while a restart is pending.
	IsRecognitionActive bool
	IsProcessing        bool
	IsHandlingSafeSpot  bool
	IsSpeaking          bool
	QueueDepth          int
	// NextJob summarizes the head of the voice queue, "" when empty.
	NextJob string
	// RestartAttempts counts consecutive recognition restart attempts
	// since the engine last reached Active. Stays at 0 in steady state;
	// a growing value is the observable "degraded" signal.
	RestartAttempts int
}
