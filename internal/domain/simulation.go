package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

type EventType string

const (
	EventEmailSent          EventType = "EMAIL_SENT"
	EventEmailDelivered     EventType = "EMAIL_DELIVERED"
	EventEmailBounced       EventType = "EMAIL_BOUNCED"
	EventEmailOpened        EventType = "EMAIL_OPENED"
	EventLinkClicked        EventType = "LINK_CLICKED"
	EventCredentialsEntered EventType = "CREDENTIALS_ENTERED"
	EventEmailReported      EventType = "EMAIL_REPORTED"
	EventLandingPageViewed  EventType = "LANDING_PAGE_VIEWED"
)

// RiskRelevantEvents are the tracking event types the risk engine consumes.
var RiskRelevantEvents = []EventType{
	EventEmailOpened,
	EventLinkClicked,
	EventCredentialsEntered,
	EventEmailReported,
}

func (t EventType) RiskRelevant() bool {
	for _, rt := range RiskRelevantEvents {
		if t == rt {
			return true
		}
	}
	return false
}

// TrackingEvent is one immutable row of the behavioral event log. Rows are
// only ever appended; ordering is created_at with id as the tie-break.
// EventData never carries captured credential values, only presence flags.
// Accepted is false for rows logged while the campaign was not accepting
// the event type; those rows exist for audit only and are invisible to
// the risk engine's dedupe.
type TrackingEvent struct {
	ID           string
	SimulationID string
	CampaignID   string
	EmployeeRef  string
	EventType    EventType
	EventData    map[string]any
	IPAddress    string
	UserAgent    string
	Accepted     bool
	CreatedAt    time.Time
}

type SimulationStatus string

const (
	SimulationPending   SimulationStatus = "PENDING"
	SimulationSent      SimulationStatus = "SENT"
	SimulationDelivered SimulationStatus = "DELIVERED"
	SimulationBounced   SimulationStatus = "BOUNCED"
	SimulationFailed    SimulationStatus = "FAILED"
)

// EmailSimulation is one phishing email targeted at one employee, unique
// per (campaign, employee). Both tokens are minted once at creation and
// never rotate. The four behavior flags are monotone: once set they never
// revert, and the paired timestamp records only the first occurrence.
type EmailSimulation struct {
	ID             string
	CampaignID     string
	EmployeeRef    string
	RecipientEmail string

	TrackingToken string
	LinkToken     string

	Status SimulationStatus

	WasOpened          bool
	WasClicked         bool
	WasReported        bool
	CredentialsEntered bool

	SentAt               *time.Time
	DeliveredAt          *time.Time
	FirstOpenedAt        *time.Time
	ClickedAt            *time.Time
	ReportedAt           *time.Time
	CredentialsEnteredAt *time.Time

	IPAddress string
	UserAgent string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCompromised reports whether the employee clicked the lure link or
// submitted credentials. Derived, never stored.
func (s EmailSimulation) IsCompromised() bool {
	return s.WasClicked || s.CredentialsEntered
}

// Dispatched reports whether the email left the PENDING/FAILED bucket,
// i.e. counts toward the campaign's total_sent.
func (s EmailSimulation) Dispatched() bool {
	return s.Status != SimulationPending && s.Status != SimulationFailed
}

type AttackVector string

const (
	VectorLinkManipulation        AttackVector = "LINK_MANIPULATION"
	VectorCredentialHarvesting    AttackVector = "CREDENTIAL_HARVESTING"
	VectorAttachmentMalware       AttackVector = "ATTACHMENT_MALWARE"
	VectorUrgencyScam             AttackVector = "URGENCY_SCAM"
	VectorAuthorityImpersonation  AttackVector = "AUTHORITY_IMPERSONATION"
	VectorPrizeLottery            AttackVector = "PRIZE_LOTTERY"
	VectorBusinessEmailCompromise AttackVector = "BUSINESS_EMAIL_COMPROMISE"
)

// SimulationTemplate is the reusable lure: email content plus the
// educational landing-page copy shown after a click. CompanyRef empty
// means the template is global.
type SimulationTemplate struct {
	ID          string
	CompanyRef  string
	Name        string
	Description string

	SenderName   string
	SenderEmail  string
	ReplyToEmail string
	Subject      string
	BodyHTML     string
	BodyPlain    string

	AttackVector AttackVector
	Difficulty   string

	RequiresLandingPage bool
	LandingPageTitle    string
	LandingPageMessage  string
	RedFlags            []string

	Active    bool
	CreatedAt time.Time
}

// NewLinkToken returns a 32-byte url-safe lure token.
func NewLinkToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
