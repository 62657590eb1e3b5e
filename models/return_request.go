package models

import "time"

// Return request statuses
const (
	ReturnPending  = "Pending"
	ReturnApproved = "Approved"
	ReturnRejected = "Rejected"
)

// ReturnRequest records a customer's request to return a delivered order
type ReturnRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     uint       `gorm:"not null;uniqueIndex" json:"order_id"` // at most one per order
	Reason      string     `gorm:"type:text;not null" json:"reason"`
	ProofImages StringList `json:"proof_images"`
	ProofVideo  *string    `json:"proof_video"`
	Status      string     `gorm:"not null;default:'Pending'" json:"status"`
	RequestedAt time.Time  `gorm:"not null" json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

// TableName specifies the table name for the ReturnRequest model
func (ReturnRequest) TableName() string {
	return "return_requests"
}
