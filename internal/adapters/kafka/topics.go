package kafka

// Ticket lifecycle topics
const (
	TopicTicketProposed = "tickets.proposed"
	TopicTicketApproved = "tickets.approved"
	TopicTicketRejected = "tickets.rejected"
)

// Regime and gate topics
const (
	TopicRegimeSnapshot = "regime.snapshots"
	TopicGateBlocked    = "risk.gate_blocked"
)
