package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// IdentityKind различает аутентифицированного пользователя и анонимную сессию
type IdentityKind string

const (
	IdentityUser    IdentityKind = "user"
	IdentitySession IdentityKind = "session"
)

// Identity - автор отчёта или верификации. Нулевое значение означает отсутствие
// владельца (данные, загруженные системой).
type Identity struct {
	kind IdentityKind
	ref  string
}

// UserIdentity возвращает идентичность аутентифицированного пользователя
func UserIdentity(userID string) Identity {
	return Identity{kind: IdentityUser, ref: strings.TrimSpace(userID)}
}

// SessionIdentity возвращает идентичность анонимной сессии
func SessionIdentity(token string) Identity {
	return Identity{kind: IdentitySession, ref: strings.TrimSpace(token)}
}

// ParseIdentity восстанавливает идентичность из хранимых колонок kind/ref.
// Пустые kind и ref дают нулевую идентичность.
func ParseIdentity(kind, ref string) (Identity, error) {
	switch {
	case kind == "" && ref == "":
		return Identity{}, nil
	case IdentityKind(kind) == IdentityUser && ref != "":
		return UserIdentity(ref), nil
	case IdentityKind(kind) == IdentitySession && ref != "":
		return SessionIdentity(ref), nil
	}
	return Identity{}, errors.New("invalid identity " + kind + ":" + ref)
}

// IdentityFromRequest собирает идентичность из пары user_id/session_id.
// Должно быть задано ровно одно поле.
func IdentityFromRequest(userID, sessionID string) (Identity, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	switch {
	case userID != "" && sessionID != "":
		return Identity{}, ErrMissingIdentity
	case userID != "":
		return UserIdentity(userID), nil
	case sessionID != "":
		return SessionIdentity(sessionID), nil
	}
	return Identity{}, ErrMissingIdentity
}

func (i Identity) Kind() IdentityKind { return i.kind }

func (i Identity) Ref() string { return i.ref }

func (i Identity) IsZero() bool { return i.kind == "" || i.ref == "" }

func (i Identity) Equal(other Identity) bool {
	return !i.IsZero() && i.kind == other.kind && i.ref == other.ref
}

func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	return string(i.kind) + ":" + i.ref
}

// NullableColumns возвращает значения для колонок *_kind и *_ref
func (i Identity) NullableColumns() (*string, *string) {
	if i.IsZero() {
		return nil, nil
	}
	kind := string(i.kind)
	ref := i.ref
	return &kind, &ref
}

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, ref, _ := strings.Cut(raw, ":")
	parsed, err := ParseIdentity(kind, ref)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
