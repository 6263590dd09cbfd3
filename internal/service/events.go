package service

// Push event names shared by the REST and websocket paths.
const (
	EventReceiveMessage         = "receive_message"
	EventMessageSent            = "message_sent"
	EventNewMessageNotification = "new_message_notification"
	EventMessagesRead           = "messages_read"
	EventUserTyping             = "user_typing"
	EventUserStopTyping         = "user_stop_typing"
	EventMessageError           = "message_error"
)

type NewMessageNotification struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	UnreadCount    int64  `json:"unreadCount"`
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	Reader         string `json:"reader"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
}

type MessageError struct {
	Error string `json:"error"`
}
