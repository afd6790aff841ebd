// Package voice — lines.go centralises every spoken string. Edit this
// file to change the companion's personality. Keep lines short and
// calm; the TTS engine handles inflection.
package voice

import (
	"fmt"
	"math/rand"
)

// ── Safety check-ins ─────────────────────────────────────────────
// Spoken after a quiet period with no user activity. Randomized to
// avoid sounding robotic on a long walk.

var checkInPool = []string{
	"Just checking in. How are you doing?",
	"Still with me? Everything okay?",
	"Hey, quick check-in. All good out there?",
	"You've been quiet for a bit. Everything alright?",
	"Checking in on you. Say something if you need anything.",
	"All quiet here. Doing okay?",
}

// LineCheckIn returns a generic check-in phrase, picked with r. A nil r
// falls back to the global source; tests inject a seeded one.
func LineCheckIn(r *rand.Rand) string {
	if r == nil {
		return checkInPool[rand.Intn(len(checkInPool))]
	}
	return checkInPool[r.Intn(len(checkInPool))]
}

// CheckInPool returns every generic check-in phrase, for prefetching
// and for tests that accept "one of N known strings".
func CheckInPool() []string {
	out := make([]string, len(checkInPool))
	copy(out, checkInPool)
	return out
}

// LineLowSafetyCheckIn is the context-specific warning used instead of
// a generic check-in when the route looks risky.
func LineLowSafetyCheckIn(score, dangerZones int) string {
	if dangerZones > 0 {
		return fmt.Sprintf("Checking in. Heads up — your route passes %d flagged area(s). Stay aware and let me know you're okay.", dangerZones)
	}
	return fmt.Sprintf("Checking in. This stretch scores %d for safety, so stay alert. Are you doing okay?", score)
}

// ── Emergency alert ──────────────────────────────────────────────

func LineEmergencyAck() string {
	return "Okay. Alerting your trusted contacts now. Stay on the line with me."
}

func LineEmergencyFailed() string {
	return "I couldn't reach your contacts. Please call emergency services directly if you need help."
}

func LineEmergencyUnavailable() string {
	return "I can't send alerts right now — no emergency contact service is set up. If you're in danger, call emergency services directly."
}

// ── Nearest safe spot ────────────────────────────────────────────

func LineSafeSpotLooking() string {
	return "Looking for the nearest safe spot. One moment."
}

func LineSafeSpotBusy() string {
	return "Still looking — give me a second."
}

func LineSafeSpotFound() string {
	return "Found one. I've updated your route to the nearest safe spot."
}

func LineSafeSpotFailed() string {
	return "Sorry, I couldn't find a safe spot nearby right now. Stay on well-lit streets and I'll keep watching."
}

func LineSafeSpotUnavailable() string {
	return "I can't search for safe spots right now — location services aren't available."
}

// ── Failure notices ──────────────────────────────────────────────

func LineMicUnavailable() string {
	return "I can't hear you anymore. Check your microphone permissions when you get a chance. I'll keep the route guidance going."
}

// CannedLines returns every fixed phrase (check-ins plus command
// acknowledgements) so they can be prefetched into the TTS cache at
// startup.
func CannedLines() []string {
	out := CheckInPool()
	out = append(out,
		LineEmergencyAck(),
		LineEmergencyFailed(),
		LineEmergencyUnavailable(),
		LineSafeSpotLooking(),
		LineSafeSpotBusy(),
		LineSafeSpotFound(),
		LineSafeSpotFailed(),
		LineSafeSpotUnavailable(),
		LineMicUnavailable(),
	)
	return out
}
