package lifecycle

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martelinho/martelinho/internal/domain"
)

const (
	StartingBalance    domain.Money = 1000 * 100
	StartingReputation              = 85
	NickChangeCooldown              = 30 * 24 * time.Hour
	DefaultAddress                  = "São Paulo, SP"
)

// Signup is the mock login form.
type Signup struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// NewUser fabricates a profile for s. No credentials are checked.
func NewUser(s Signup, now time.Time) (domain.User, error) {
	email := strings.TrimSpace(s.Email)
	name := NickFromName(s.Name)
	if name == "" {
		name = nickFromEmail(email)
	}
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name or email is required", domain.ErrInvalidProfile)
	}

	seed := s.Name
	if seed == "" {
		seed = email
	}
	return domain.User{
		ID:              "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10],
		Name:            name,
		FullName:        orDefault(s.FullName, "Nome Completo"),
		Email:           email,
		Phone:           orDefault(s.Phone, "(00) 00000-0000"),
		Address:         orDefault(s.Address, DefaultAddress),
		Avatar:          "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(seed),
		Balance:         StartingBalance,
		ReputationScore: StartingReputation,
		IsAdmin:         strings.Contains(strings.ToLower(name), "admin"),
		LastNickChange:  now,
	}, nil
}

// Rename changes u's nickname, at most once per NickChangeCooldown.
func Rename(u domain.User, nick string, now time.Time) (domain.User, error) {
	nick = NickFromName(nick)
	if nick == "" {
		return domain.User{}, fmt.Errorf("%w: nickname is required", domain.ErrInvalidProfile)
	}
	if wait := NickChangeIn(u, now); wait > 0 {
		days := int((wait + 24*time.Hour - 1) / (24 * time.Hour))
		return domain.User{}, fmt.Errorf("%w: wait %d more days", domain.ErrNickChangeTooSoon, days)
	}
	u.Name = nick
	u.LastNickChange = now
	return u, nil
}

// NickChangeIn returns how long until u may rename again.
func NickChangeIn(u domain.User, now time.Time) time.Duration {
	if u.LastNickChange.IsZero() {
		return 0
	}
	if d := u.LastNickChange.Add(NickChangeCooldown).Sub(now); d > 0 {
		return d
	}
	return 0
}

// NickFromName lowercases s and replaces whitespace with underscores.
func NickFromName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// nickFromEmail turns "joao@mail.com" into "joao_mail".
func nickFromEmail(email string) string {
	nick, _, _ := strings.Cut(strings.Replace(email, "@", "_", 1), ".")
	return NickFromName(nick)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
