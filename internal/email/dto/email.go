package dto

// PubSubPushEnvelope is the wrapper Google Pub/Sub wraps around a pushed
// Gmail notification. Data is base64-encoded JSON.
type PubSubPushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// ConnectImapRequest carries the credentials for connecting an IMAP
// account
type ConnectImapRequest struct {
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	UseTLS   *bool  `json:"use_tls"`
}
