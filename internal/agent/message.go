package agent

import (
	"time"
)

// MessageType classifies a coordination message
type MessageType string

const (
	MessageTaskAssignment     MessageType = "task_assignment"
	MessageStatusUpdate       MessageType = "status_update"
	MessageCoordinationReq    MessageType = "coordination_request"
	MessagePerformanceReport  MessageType = "performance_report"
	MessageStrategicGuidance  MessageType = "strategic_guidance"
	MessageInventoryRequest   MessageType = "inventory_request"
	MessageShippingRequest    MessageType = "shipping_request"
	MessageFulfillmentRequest MessageType = "fulfillment_request"
	MessageSupplyChainRequest MessageType = "supply_chain_request"
	MessageGeneral            MessageType = "general"
)

// Priority orders coordination messages
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CoordinationMessage is the envelope for inter-agent communication routed
// by the executive. Timestamp is set at creation.
type CoordinationMessage struct {
	FromAgent        string                 `json:"from_agent"`
	ToAgent          string                 `json:"to_agent"`
	MessageType      MessageType            `json:"message_type"`
	Content          map[string]interface{} `json:"content"`
	Priority         Priority               `json:"priority"`
	RequiresResponse bool                   `json:"requires_response"`
	Timestamp        time.Time              `json:"timestamp"`
}

// NewCoordinationMessage creates a message with defaults applied: general
// type, medium priority, current UTC timestamp.
func NewCoordinationMessage(from, to string, msgType MessageType, content map[string]interface{}) CoordinationMessage {
	if msgType == "" {
		msgType = MessageGeneral
	}
	if content == nil {
		content = make(map[string]interface{})
	}
	return CoordinationMessage{
		FromAgent:   from,
		ToAgent:     to,
		MessageType: msgType,
		Content:     content,
		Priority:    PriorityMedium,
		Timestamp:   time.Now().UTC(),
	}
}

// WithPriority returns a copy of the message with the given priority
func (m CoordinationMessage) WithPriority(p Priority) CoordinationMessage {
	m.Priority = p
	return m
}

// WithResponse returns a copy of the message that expects a response
func (m CoordinationMessage) WithResponse() CoordinationMessage {
	m.RequiresResponse = true
	return m
}
