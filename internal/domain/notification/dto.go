package notification

// CreateNotificationRequest is the body of the admin manual trigger.
type CreateNotificationRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Message     string   `json:"message" validate:"max=2000"`
	Type        Type     `json:"type" validate:"omitempty,oneof=info success error warning"`
	UserID      string   `json:"userId"`
	TargetRoles []string `json:"targetRoles"`
	Sectors     []string `json:"sector"`
	Link        string   `json:"link"`
}

func (r *CreateNotificationRequest) ToEntity() *Notification {
	return &Notification{
		Title:       r.Title,
		Message:     r.Message,
		Type:        r.Type,
		UserID:      r.UserID,
		TargetRoles: r.TargetRoles,
		Sectors:     r.Sectors,
		Link:        r.Link,
	}
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}
