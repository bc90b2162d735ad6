// Package topicmgr keeps the catalogue of event bus topics so that
// publishers and subscribers agree on names and the CLI can list them.
package topicmgr

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Scope says whether a topic belongs to the framework or to a module.
type Scope string

const (
	ScopeFramework Scope = "framework"
	ScopeModule    Scope = "module"
)

// Topic names follow a hierarchical lowercase pattern: module.entity.action.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9]*)*$`)

// Topic describes one bus topic.
type Topic struct {
	Name          string    `json:"name"`
	Module        string    `json:"module"`
	Scope         Scope     `json:"scope"`
	Description   string    `json:"description"`
	TypeName      string    `json:"type_name,omitempty"`
	PayloadFields []string  `json:"payload_fields,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// Define builds a module topic, deriving the module from the first name segment.
func Define(name, description string) Topic {
	module, _, _ := strings.Cut(name, ".")
	return Topic{Name: name, Module: module, Scope: ScopeModule, Description: description}
}

// DefineFramework builds a framework topic, which has no owning module.
func DefineFramework(name, description string) Topic {
	return Topic{Name: name, Scope: ScopeFramework, Description: description}
}

// Validate checks name and description.
func (t Topic) Validate() error {
	if !namePattern.MatchString(t.Name) {
		return &TopicError{Kind: ErrorInvalidName, Topic: t.Name, Message: "topic names must be lowercase dot-separated segments"}
	}
	if strings.TrimSpace(t.Description) == "" {
		return &TopicError{Kind: ErrorValidationFailed, Topic: t.Name, Message: "topic description cannot be empty"}
	}
	if t.Scope == ScopeModule && t.Module == "" {
		return &TopicError{Kind: ErrorValidationFailed, Topic: t.Name, Message: "module topics need a module"}
	}
	return nil
}

// ErrorKind classifies TopicError.
type ErrorKind string

const (
	ErrorInvalidName           ErrorKind = "invalid_name"
	ErrorValidationFailed      ErrorKind = "validation_failed"
	ErrorDuplicateRegistration ErrorKind = "duplicate_registration"
)

// TopicError is returned by registration.
type TopicError struct {
	Kind    ErrorKind
	Topic   string
	Message string
}

func (e *TopicError) Error() string {
	return fmt.Sprintf("topic %q: %s (%s)", e.Topic, e.Message, e.Kind)
}
