package shared

// OutboxStatus defines message publishing states for the history mirror
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// NotificationKind categorizes events published for the notification dispatcher.
// The engine itself never sends anything; callers publish these after commit.
type NotificationKind string

const (
	NotificationNegativeBalance NotificationKind = "NEGATIVE_BALANCE"
	NotificationResetPrompt     NotificationKind = "RESET_PROMPT"
	NotificationStackCompleted  NotificationKind = "STACK_COMPLETED"
	NotificationAllocationSkip  NotificationKind = "ALLOCATION_SKIPPED"
)
