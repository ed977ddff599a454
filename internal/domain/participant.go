// Package domain contains entity without logic, just meta-data
package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const MaxUserIDLen = 36

var (
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrInterpreterNoLang  = errors.New("interpreter role requires a language")
	ErrLanguageNotAllowed = errors.New("language not allowed in room")
)

type (
	UserID       string
	LanguageCode string
)

type RoleKind int

const (
	RoleParticipant RoleKind = iota
	RoleInterpreter
	RoleHost
	RoleAdmin
)

func (k RoleKind) String() string {
	switch k {
	case RoleParticipant:
		return "participant"
	case RoleInterpreter:
		return "interpreter"
	case RoleHost:
		return "host"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", int(k))
}

// Role is a tagged variant: Language is set if and only if Kind is
// RoleInterpreter, where it names the single channel the interpreter
// broadcasts on.
type Role struct {
	Kind     RoleKind
	Language LanguageCode
}

func ParticipantRole() Role { return Role{Kind: RoleParticipant} }

func HostRole() Role { return Role{Kind: RoleHost} }

func AdminRole() Role { return Role{Kind: RoleAdmin} }

func InterpreterRole(l LanguageCode) Role {
	return Role{Kind: RoleInterpreter, Language: l}
}

func (r Role) IsInterpreter() bool { return r.Kind == RoleInterpreter }

func (r Role) Validate() error {
	if r.Kind == RoleInterpreter && r.Language == "" {
		return ErrInterpreterNoLang
	}
	return nil
}

type roleWire struct {
	Kind     string       `json:"kind"`
	Language LanguageCode `json:"language,omitempty"`
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(roleWire{Kind: r.Kind.String(), Language: r.Language})
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var w roleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "participant", "":
		r.Kind = RoleParticipant
	case "interpreter":
		r.Kind = RoleInterpreter
	case "host":
		r.Kind = RoleHost
	case "admin":
		r.Kind = RoleAdmin
	default:
		return fmt.Errorf("unknown role kind %q", w.Kind)
	}
	r.Language = w.Language
	return r.Validate()
}

// Identity is who the local user is when joining a room.
type Identity struct {
	UserID UserID
	Name   string
	Role   Role
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
// An empty userID gets a generated one.
func NewIdentity(userID UserID, name string, role Role) (Identity, error) {
	if userID == "" {
		userID = UserID(uuid.NewString())
	}
	if len(userID) > MaxUserIDLen {
		return Identity{}, ErrUserIDTooLong
	}
	if err := role.Validate(); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Name: name, Role: role}, nil
}
