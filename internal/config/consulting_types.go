package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ConsultingTypeEntry is the file representation of one consulting type's settings.
type ConsultingTypeEntry struct {
	Name                  string            `mapstructure:"name"`
	SendWelcomeMessage    bool              `mapstructure:"sendWelcomeMessage"`
	WelcomeMessage        string            `mapstructure:"welcomeMessage"`
	Monitoring            MonitoringEntry   `mapstructure:"monitoring"`
	FeedbackChat          bool              `mapstructure:"feedbackChat"`
	NotifyTeamConsultants bool              `mapstructure:"notifyTeamConsultants"`
	LanguageFormal        bool              `mapstructure:"languageFormal"`
	UserRoles             []string          `mapstructure:"userRoles"`
	Registration          RegistrationEntry `mapstructure:"registration"`
}

type MonitoringEntry struct {
	Enabled  bool     `mapstructure:"enabled"`
	Template []string `mapstructure:"template"`
}

type RegistrationEntry struct {
	MinAge       int  `mapstructure:"minAge"`
	MaxAge       int  `mapstructure:"maxAge"`
	RequireAge   bool `mapstructure:"requireAge"`
	RequireState bool `mapstructure:"requireState"`
}

// DefaultConsultingTypes is used when no consulting_types.yml is mounted.
func DefaultConsultingTypes() map[string]ConsultingTypeEntry {
	return map[string]ConsultingTypeEntry{
		"0": {
			Name:       "addiction",
			Monitoring: MonitoringEntry{Enabled: true, Template: []string{"alcohol", "drugs", "gambling", "others"}},
		},
		"1": {
			Name:               "u25",
			SendWelcomeMessage: true,
			WelcomeMessage:     "Welcome! A counselor will answer you soon.",
			Monitoring:         MonitoringEntry{Enabled: true, Template: []string{"crisis", "self_harm", "suicidality"}},
			FeedbackChat:       true,
			Registration:       RegistrationEntry{MinAge: 14, MaxAge: 25, RequireAge: true, RequireState: true},
		},
		"2":  {Name: "pregnancy", NotifyTeamConsultants: true},
		"3":  {Name: "aids"},
		"4":  {Name: "children", LanguageFormal: false},
		"5":  {Name: "cure", LanguageFormal: true},
		"6":  {Name: "debt", LanguageFormal: true},
		"7":  {Name: "social", LanguageFormal: true},
		"8":  {Name: "seniority", LanguageFormal: true},
		"9":  {Name: "disability", LanguageFormal: true},
		"15": {Name: "kreuzbund", NotifyTeamConsultants: true, LanguageFormal: true},
	}
}

type ConsultingTypesHolder struct {
	current atomic.Value // holds map[string]ConsultingTypeEntry
}

// NewConsultingTypesHolder loads consulting_types.yml from the standard locations and watches it.
func NewConsultingTypesHolder(log *zap.Logger) (*ConsultingTypesHolder, error) {
	v := viper.New()
	v.SetConfigName("consulting_types")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/counseling/config")
	v.AddConfigPath("/etc/counseling")
	v.AddConfigPath(".")
	return newConsultingTypesHolder(v, log)
}

// NewConsultingTypesHolderFromFile loads settings from an explicit file path.
func NewConsultingTypesHolderFromFile(path string, log *zap.Logger) (*ConsultingTypesHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newConsultingTypesHolder(v, log)
}

// NewStaticConsultingTypesHolder returns a holder that never reloads.
func NewStaticConsultingTypesHolder(entries map[string]ConsultingTypeEntry) *ConsultingTypesHolder {
	holder := &ConsultingTypesHolder{}
	holder.current.Store(entries)
	return holder
}

func newConsultingTypesHolder(v *viper.Viper, log *zap.Logger) (*ConsultingTypesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.consulting_types")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("consulting_types.yml not found, using defaults")
		return NewStaticConsultingTypesHolder(DefaultConsultingTypes()), nil
	}

	entries, err := decodeConsultingTypes(v)
	if err != nil {
		return nil, err
	}

	holder := &ConsultingTypesHolder{}
	holder.current.Store(entries)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeConsultingTypes(v)
		if err != nil {
			log.Warn("consulting types reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("consulting types reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// Get returns the current settings keyed by consulting type id.
func (h *ConsultingTypesHolder) Get() map[string]ConsultingTypeEntry {
	return h.current.Load().(map[string]ConsultingTypeEntry)
}

func decodeConsultingTypes(v *viper.Viper) (map[string]ConsultingTypeEntry, error) {
	entries := map[string]ConsultingTypeEntry{}
	if err := v.UnmarshalKey("consultingTypes", &entries); err != nil {
		return nil, err
	}
	if err := validateConsultingTypes(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func validateConsultingTypes(entries map[string]ConsultingTypeEntry) error {
	if len(entries) == 0 {
		return errors.New("consultingTypes cannot be empty")
	}
	for id, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("consultingTypes.%s.name is required", id)
		}
		if entry.Monitoring.Enabled && len(entry.Monitoring.Template) == 0 {
			return fmt.Errorf("consultingTypes.%s.monitoring.template cannot be empty when monitoring is enabled", id)
		}
		if entry.Registration.MaxAge > 0 && entry.Registration.MinAge > entry.Registration.MaxAge {
			return fmt.Errorf("consultingTypes.%s.registration has minAge above maxAge", id)
		}
	}
	return nil
}
