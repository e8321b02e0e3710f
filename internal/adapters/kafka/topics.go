package kafka

// Topic definitions for Kafka event streaming
const (
	TopicTradeExecuted    = "trade.executed"
	TopicRiskViolation    = "risk.violation"
	TopicSessionCompleted = "agent.session_completed"
)
