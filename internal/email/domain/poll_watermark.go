package domain

import "time"

// PollWatermark holds the poller's per-user state: whether polling is
// enabled, how often to poll, and the highest message id the poller has
// *attempted* per provider. The watermark only ever moves forward; a
// message whose analysis failed is still considered past (it lands on the
// retry queue instead, see AnalysisRetry).
type PollWatermark struct {
	UserID             string    `json:"user_id" gorm:"primaryKey"`
	Enabled            bool      `json:"enabled"`
	IntervalSeconds    int       `json:"interval_seconds"`
	LastProcessedGmail *string   `json:"last_processed_gmail,omitempty"`
	LastProcessedImap  *string   `json:"last_processed_imap,omitempty"`
	LastPollAt         time.Time `json:"last_poll_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LastProcessed returns the watermark for the given provider, or nil when
// nothing has been processed yet.
func (w *PollWatermark) LastProcessed(provider string) *string {
	switch provider {
	case ProviderGmail:
		return w.LastProcessedGmail
	case ProviderImap:
		return w.LastProcessedImap
	}
	return nil
}

// SetLastProcessed records the watermark for the given provider.
func (w *PollWatermark) SetLastProcessed(provider, messageID string) {
	switch provider {
	case ProviderGmail:
		w.LastProcessedGmail = &messageID
	case ProviderImap:
		w.LastProcessedImap = &messageID
	}
}
