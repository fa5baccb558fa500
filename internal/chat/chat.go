// Package chat turns free-form rider messages into candidate complaint
// records. It detects intent and extracts railway entities (train, coach,
// seat, PNR); the dialogue itself is the frontend's concern, triage only
// needs to know whether a message is a complaint and what it refers to.
package chat

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

// Intent is the coarse purpose of a chat message.
type Intent string

const (
	IntentEmergency Intent = "emergency"
	IntentComplaint Intent = "complaint"
	IntentStatus    Intent = "status"
	IntentGreeting  Intent = "greeting"
	IntentThanks    Intent = "thanks"
	IntentGeneral   Intent = "general"
)

// Entities are railway references extracted from a message. Empty fields
// mean the entity was not mentioned.
type Entities struct {
	TrainNumber string `json:"train_number,omitempty"`
	CoachNumber string `json:"coach_number,omitempty"`
	SeatNumber  string `json:"seat_number,omitempty"`
	PNR         string `json:"pnr,omitempty"`
}

// Analysis is the structured reading of one chat message.
type Analysis struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

var (
	// Intent patterns, checked in priority order: emergency wins over
	// everything, a complaint over a status query.
	reEmergency = regexp.MustCompile(`\b(emergency|urgent|theft|harassment|accident|medical|fire|danger|help)\b`)
	reComplaint = regexp.MustCompile(`\b(complaint|problem|issue|broken|dirty|not working|smell|leaking)\b`)
	reStatus    = regexp.MustCompile(`\b(status|update|progress|track|check)\b`)
	reGreeting  = regexp.MustCompile(`\b(hello|hi|hey|namaste|good morning|good afternoon|good evening)\b`)
	reThanks    = regexp.MustCompile(`\b(thanks|thank you|appreciate|grateful)\b`)

	reTrain = regexp.MustCompile(`\b\d{5}\b`)
	reCoach = regexp.MustCompile(`\b[ABCDES][1-9]\b`)
	reSeat  = regexp.MustCompile(`\b\d{1,3}\b`)
	rePNR   = regexp.MustCompile(`\b\d{10}\b`)
)

// DetectIntent classifies a message's purpose.
func DetectIntent(message string) Intent {
	m := strings.ToLower(strings.TrimSpace(message))
	switch {
	case reEmergency.MatchString(m):
		return IntentEmergency
	case reComplaint.MatchString(m):
		return IntentComplaint
	case reStatus.MatchString(m):
		return IntentStatus
	case reGreeting.MatchString(m):
		return IntentGreeting
	case reThanks.MatchString(m):
		return IntentThanks
	default:
		return IntentGeneral
	}
}

// ExtractEntities pulls train, coach, seat, and PNR references out of a
// message. Seat numbers are only accepted in the plausible berth range.
func ExtractEntities(message string) Entities {
	var e Entities
	if m := reTrain.FindString(message); m != "" {
		e.TrainNumber = m
	}
	if m := reCoach.FindString(strings.ToUpper(message)); m != "" {
		e.CoachNumber = m
	}
	if m := rePNR.FindString(message); m != "" {
		e.PNR = m
	}
	for _, m := range reSeat.FindAllString(message, -1) {
		n, err := strconv.Atoi(m)
		if err == nil && n >= 1 && n <= 100 {
			e.SeatNumber = m
			break
		}
	}
	return e
}

// Analyze reads one message.
func Analyze(message string) Analysis {
	return Analysis{
		Intent:   DetectIntent(message),
		Entities: ExtractEntities(message),
	}
}

// ToComplaint converts an analyzed message into a candidate complaint input.
// Only complaint and emergency intents produce one; greetings, thanks, and
// status queries return ok=false and stay in the dialogue layer.
func (a Analysis) ToComplaint(message string, at time.Time) (*complaint.Input, bool) {
	if a.Intent != IntentComplaint && a.Intent != IntentEmergency {
		return nil, false
	}

	var loc []string
	if a.Entities.CoachNumber != "" {
		loc = append(loc, "coach "+a.Entities.CoachNumber)
	}
	if a.Entities.SeatNumber != "" {
		loc = append(loc, "seat "+a.Entities.SeatNumber)
	}

	return &complaint.Input{
		Text:             strings.TrimSpace(message),
		SubmittedAt:      at,
		ReporterLocation: strings.Join(loc, " "),
	}, true
}
