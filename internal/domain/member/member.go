package member

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Member is the account a subscription belongs to. It is owned by the
// membership service; billing only reads it.
type Member struct {
	id         uint
	email      string
	name       string
	locale     string
	anonymous  bool
	facebookID string
	operator   string
}

// ReconstructMember reconstructs a member from persistence
func ReconstructMember(id uint, email, name, locale string, anonymous bool, facebookID, operator string) (*Member, error) {
	if id == 0 {
		return nil, fmt.Errorf("member ID cannot be zero")
	}
	return &Member{
		id:         id,
		email:      strings.TrimSpace(email),
		name:       name,
		locale:     locale,
		anonymous:  anonymous,
		facebookID: facebookID,
		operator:   operator,
	}, nil
}

func (m *Member) ID() uint {
	return m.id
}

func (m *Member) Email() string {
	return m.email
}

func (m *Member) Name() string {
	return m.name
}

func (m *Member) Locale() string {
	return m.locale
}

// IsAnonymous reports whether the member was created implicitly, without an
// authenticated session.
func (m *Member) IsAnonymous() bool {
	return m.anonymous
}

func (m *Member) FacebookID() string {
	return m.facebookID
}

// Operator is the carrier or partner code the member signed up through.
func (m *Member) Operator() string {
	return m.operator
}

// Language returns the member's preferred language, falling back to fallback
// when the stored locale is empty or malformed.
func (m *Member) Language(fallback language.Tag) language.Tag {
	if m.locale == "" {
		return fallback
	}
	tag, err := language.Parse(strings.ReplaceAll(m.locale, "_", "-"))
	if err != nil {
		return fallback
	}
	return tag
}

// CanReceiveMail reports whether there is an address to send mail to.
func (m *Member) CanReceiveMail() bool {
	return m.email != "" && strings.Contains(m.email, "@")
}
