package domain

// API response shapes of the messaging routes.

type UserView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Image      *string `json:"image"`
	LastSeenAt *string `json:"lastSeenAt"`
	IsOnline   bool    `json:"isOnline"`
}

type ConversationView struct {
	ID            string          `json:"id"`
	LastMessageAt string          `json:"lastMessageAt"`
	HasUnread     bool            `json:"hasUnread"`
	LastMessage   *MessagePayload `json:"lastMessage"`
	OtherUser     UserView        `json:"otherUser"`
}

type WSTokenView struct {
	Token string `json:"token"`
	WSURL string `json:"wsUrl"`
}
