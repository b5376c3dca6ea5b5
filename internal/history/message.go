package history

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Modality classifies what a message carried, independent of its role.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityImage    Modality = "image"
	ModalityVideo    Modality = "video"
	ModalityAudio    Modality = "audio"
	ModalityPDF      Modality = "pdf"
	ModalityDocument Modality = "document"
	ModalityVoice    Modality = "voice"
)

// Message represents a single turn of a session.
type Message struct {
	Seq            int       `json:"id"`
	Role           Role      `json:"type"`
	Content        string    `json:"content"`
	TextContent    string    `json:"text_content,omitempty"`
	Modality       Modality  `json:"message_type"`
	AttachmentPath string    `json:"file_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PromptText is the text a provider should see for this message: the raw
// typed text when an upload carried some, the display content otherwise.
func (m Message) PromptText() string {
	if m.TextContent != "" {
		return m.TextContent
	}
	return m.Content
}
