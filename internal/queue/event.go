package queue

// Email kinds understood by the dispatcher. Link kinds are delivered to an
// email address; KindPhoneCode carries a short OTP destined for SMS.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
	KindEmailChange   = "email_change"
	KindPhoneCode     = "phone_code"
)

// EmailEvent is published when a flow needs a message delivered out of band.
// It contains everything the dispatcher needs to render and send the message
// without querying the primary database. Delivery failures are retried by
// the consumer, never by the flow that published the event.
type EmailEvent struct {
	Kind      string `json:"kind"`       // one of the Kind* constants
	To        string `json:"to"`         // email address, or phone number for phone_code
	Name      string `json:"name"`       // recipient's username, used in templates
	Token     string `json:"token"`      // single-use token or OTP to embed
	IssuedAt  string `json:"issued_at"`  // RFC3339 issue time
	ExpiresAt string `json:"expires_at"` // RFC3339 expiry, shown in templates
}
