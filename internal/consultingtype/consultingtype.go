// Package consultingtype resolves per consulting type settings.
package consultingtype

import (
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/config"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
)

var Module = fx.Module("consultingtype",
	fx.Provide(provideHolder),
	fx.Provide(New),
)

// ConsultingType is the counseling topic of a session.
type ConsultingType int

const (
	Addiction  ConsultingType = 0
	U25        ConsultingType = 1
	Pregnancy  ConsultingType = 2
	Aids       ConsultingType = 3
	Children   ConsultingType = 4
	Cure       ConsultingType = 5
	Debt       ConsultingType = 6
	Social     ConsultingType = 7
	Seniority  ConsultingType = 8
	Disability ConsultingType = 9
	Kreuzbund  ConsultingType = 15
)

var all = []ConsultingType{Addiction, U25, Pregnancy, Aids, Children, Cure, Debt, Social, Seniority, Disability, Kreuzbund}

// Values lists every known consulting type.
func Values() []ConsultingType {
	return append([]ConsultingType(nil), all...)
}

func (ct ConsultingType) ID() string {
	return strconv.Itoa(int(ct))
}

func (ct ConsultingType) String() string {
	switch ct {
	case Addiction:
		return "addiction"
	case U25:
		return "u25"
	case Pregnancy:
		return "pregnancy"
	case Aids:
		return "aids"
	case Children:
		return "children"
	case Cure:
		return "cure"
	case Debt:
		return "debt"
	case Social:
		return "social"
	case Seniority:
		return "seniority"
	case Disability:
		return "disability"
	case Kreuzbund:
		return "kreuzbund"
	default:
		return "unknown(" + ct.ID() + ")"
	}
}

func (ct ConsultingType) Valid() bool {
	for _, known := range all {
		if ct == known {
			return true
		}
	}
	return false
}

// Parse reads the registration form value, e.g. "0" for addiction.
func Parse(raw string) (ConsultingType, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !ConsultingType(n).Valid() {
		return 0, apperror.Validation("invalid_consulting_type", "unknown consulting type %q", raw)
	}
	return ConsultingType(n), nil
}

type Monitoring struct {
	Enabled  bool
	Template []string
}

type Registration struct {
	MinAge       int
	MaxAge       int
	RequireAge   bool
	RequireState bool
}

type Settings struct {
	Name                  string
	SendWelcomeMessage    bool
	WelcomeMessage        string
	Monitoring            Monitoring
	FeedbackChat          bool
	NotifyTeamConsultants bool
	LanguageFormal        bool
	UserRoles             []identitydomain.Role
	Registration          Registration
}

// Config is the read-only settings lookup.
type Config struct {
	holder *config.ConsultingTypesHolder
	log    *zap.Logger
}

func New(holder *config.ConsultingTypesHolder, log *zap.Logger) *Config {
	if log == nil {
		log = zap.NewNop()
	}
	return &Config{holder: holder, log: log.Named("consultingtype")}
}

// NewStatic builds a Config over fixed entries.
func NewStatic(entries map[string]config.ConsultingTypeEntry) *Config {
	return New(config.NewStaticConsultingTypesHolder(entries), nil)
}

func provideHolder(log *zap.Logger) (*config.ConsultingTypesHolder, error) {
	return config.NewConsultingTypesHolder(log)
}

// SettingsFor returns the settings of ct. A type missing from the mounted
// configuration is a validation error, as is an unknown type.
func (c *Config) SettingsFor(ct ConsultingType) (Settings, error) {
	switch ct {
	case Addiction, U25, Pregnancy, Aids, Children, Cure, Debt, Social, Seniority, Disability, Kreuzbund:
	default:
		return Settings{}, apperror.Validation("invalid_consulting_type", "unknown consulting type %d", int(ct))
	}

	entry, ok := c.holder.Get()[ct.ID()]
	if !ok {
		return Settings{}, apperror.Validation("invalid_consulting_type", "consulting type %s is not configured", ct)
	}

	roles := make([]identitydomain.Role, 0, len(entry.UserRoles))
	for _, raw := range entry.UserRoles {
		role, err := identitydomain.ParseRole(raw)
		if err != nil {
			c.log.Warn("ignoring unknown role in consulting type settings",
				zap.String("consulting_type", ct.String()), zap.String("role", raw))
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = []identitydomain.Role{identitydomain.RoleUser}
	}

	return Settings{
		Name:                  entry.Name,
		SendWelcomeMessage:    entry.SendWelcomeMessage,
		WelcomeMessage:        entry.WelcomeMessage,
		Monitoring:            Monitoring{Enabled: entry.Monitoring.Enabled, Template: append([]string(nil), entry.Monitoring.Template...)},
		FeedbackChat:          entry.FeedbackChat,
		NotifyTeamConsultants: entry.NotifyTeamConsultants,
		LanguageFormal:        entry.LanguageFormal,
		UserRoles:             roles,
		Registration: Registration{
			MinAge:       entry.Registration.MinAge,
			MaxAge:       entry.Registration.MaxAge,
			RequireAge:   entry.Registration.RequireAge,
			RequireState: entry.Registration.RequireState,
		},
	}, nil
}
