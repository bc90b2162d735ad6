package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-level validator instance.
// Using a single instance is more efficient as it caches struct information.
var validatorInstance = validator.New()

// MaxContentLength is the longest chat message body the store accepts, in characters.
const MaxContentLength = 1000

// MessageType classifies chat content.
type MessageType string

const (
	MessageText         MessageType = "Text"
	MessageFile         MessageType = "File"
	MessageSystem       MessageType = "System"
	MessageNotification MessageType = "Notification"
)

// OutboundMessage is a unit of chat content ready for relay.
type OutboundMessage struct {
	ProjectID        string      `json:"projectId" validate:"required"`
	SenderID         string      `json:"senderId" validate:"required"`
	Content          string      `json:"content" validate:"required,max=1000"`
	MessageType      MessageType `json:"messageType" validate:"oneof=Text File System Notification"`
	ReplyToMessageID string      `json:"replyToMessageId,omitempty"`
}

// Normalize trims the content and applies the default message type.
func (m *OutboundMessage) Normalize() {
	m.Content = strings.TrimSpace(m.Content)
	if m.MessageType == "" {
		m.MessageType = MessageText
	}
}

// Validate checks the message against its field rules.
func (m *OutboundMessage) Validate() error {
	return validationError(validatorInstance.Struct(m))
}

// ChatMessage is a message after the chat store accepted it.
type ChatMessage struct {
	ID               string      `json:"id"`
	ProjectID        string      `json:"projectId"`
	SenderID         string      `json:"senderId"`
	Content          string      `json:"content"`
	MessageType      MessageType `json:"messageType"`
	ReplyToMessageID string      `json:"replyToMessageId,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// validationError folds validator output into ErrInvalidInput.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
