package config

const (
	// TopicNotifyOutcome is the NSQ topic carrying per-run delivery outcome
	// summaries, consumed by the ops dashboard.
	TopicNotifyOutcome = "notify.outcome"
)
