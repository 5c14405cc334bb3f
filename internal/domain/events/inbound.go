package events

// Inbound saga event types consumed from upstream services.
const (
	TypeOrderCreated       = "order-created"
	TypeOrderCancelled     = "order-cancelled"
	TypeExecutionFailed    = "execution-failed"
	TypeDiagnosisCompleted = "diagnosis-completed"
)

type OrderCreated struct {
	ServiceOrderID string `json:"service_order_id"`
	Description    string `json:"description,omitempty"`
}

type OrderCancelled struct {
	ServiceOrderID string `json:"service_order_id"`
	Reason         string `json:"reason,omitempty"`
}

type ExecutionFailed struct {
	ServiceOrderID string `json:"service_order_id"`
	Reason         string `json:"reason,omitempty"`
	ReworkRequired bool   `json:"rework_required"`
}

type DiagnosisCompleted struct {
	ServiceOrderID string `json:"service_order_id"`
	ExecutionID    string `json:"execution_id,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	EstimatedValue string `json:"estimated_value,omitempty"`
}
