package types

// RequestSendMessage is the body of POST /api/send-message. Number is a bare
// phone number or a full chat id.
type RequestSendMessage struct {
	Number  string `json:"number" form:"number"`
	Message string `json:"message" form:"message"`
}

// RequestIssueToken is the body of POST /api/admin/tokens.
type RequestIssueToken struct {
	Subject    string `json:"subject" form:"subject"`
	Scope      string `json:"scope" form:"scope"`
	TTLSeconds int    `json:"ttl_seconds" form:"ttl_seconds"`
}

type ResponseToken struct {
	Token     string `json:"token"`
	TokenID   string `json:"token_id"`
	Subject   string `json:"subject"`
	ExpiresAt int64  `json:"expires_at"`
}

type ResponseSession struct {
	ChatID  string `json:"chat_id"`
	StateID string `json:"state_id"`
	Seen    bool   `json:"seen"`
}
