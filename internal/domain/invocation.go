package domain

import (
	"strings"
	"time"
)

type RequestKind int

const (
	RequestDelete RequestKind = iota
	RequestUpsert
)

func (k RequestKind) String() string {
	if k == RequestUpsert {
		return "upsert"
	}
	return "delete"
}

// Request is the create/update/delete variant, decided once from the raw
// argument text. An empty response always means delete.
type Request struct {
	Kind     RequestKind
	Response string
}

func NewRequest(response string) Request {
	response = strings.TrimSpace(response)
	if response == "" {
		return Request{Kind: RequestDelete}
	}
	return Request{Kind: RequestUpsert, Response: response}
}

// Invocation is one mutation request. It is never persisted.
type Invocation struct {
	ID          string
	CommunityID CommunityID
	Invoker     Invoker
	Name        string
	Request     Request
	At          time.Time
}

type MutationAction string

const (
	ActionCreated MutationAction = "created"
	ActionUpdated MutationAction = "updated"
	ActionDeleted MutationAction = "deleted"
	ActionMissing MutationAction = "missing"
)

// CommandMutation is published after a mutation was committed.
type CommandMutation struct {
	InvocationID string
	CommunityID  CommunityID
	Name         string
	Action       MutationAction
	Response     string
	Actor        string
	At           time.Time
}
