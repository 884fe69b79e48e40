package account

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

var postcodePattern = regexp.MustCompile(`^[0-9]{5}$`)

// registration is a validated RegistrationInput with its resolved references.
type registration struct {
	input          RegistrationInput
	consultingType consultingtype.ConsultingType
	settings       consultingtype.Settings
	agency         agencydomain.Agency
	roles          []identitydomain.Role
	status         sessiondomain.Status
	regType        sessiondomain.RegistrationType
}

func (s *Service) validate(ctx context.Context, in RegistrationInput) (registration, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Postcode = strings.TrimSpace(in.Postcode)

	if in.Anonymous {
		if in.Username == "" {
			in.Username = "anonymous-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		if in.Password == "" {
			in.Password = uuid.NewString()
		}
	}

	if err := userdomain.ValidateUsername(in.Username); err != nil {
		return registration{}, apperror.Validation("invalid_username", "username must be between 5 and 30 characters")
	}
	if strings.TrimSpace(in.Password) == "" {
		return registration{}, apperror.Validation("invalid_password", "password is required")
	}
	if !postcodePattern.MatchString(in.Postcode) {
		return registration{}, apperror.Validation("invalid_postcode", "postcode must have five digits")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return registration{}, apperror.Validation("invalid_email", "email address is malformed")
	}

	ct, err := consultingtype.Parse(in.ConsultingType)
	if err != nil {
		return registration{}, err
	}
	settings, err := s.consultingTypes.SettingsFor(ct)
	if err != nil {
		return registration{}, err
	}

	agency, err := s.agencySvc.GetByID(ctx, in.AgencyID)
	if err != nil {
		if errors.Is(err, agencydomain.ErrNotFound) {
			return registration{}, apperror.Validation("invalid_agency", "agency %s does not exist", in.AgencyID)
		}
		return registration{}, apperror.Internal(err, "could not load agency %s", in.AgencyID)
	}
	if agency.ConsultingType != int(ct) {
		return registration{}, apperror.Validation("invalid_agency", "agency %s does not offer consulting type %s", agency.ID, ct)
	}
	if agency.Offline {
		return registration{}, apperror.Validation("invalid_agency", "agency %s is offline", agency.ID)
	}

	if err := validateAge(settings.Registration, in.Age); err != nil {
		return registration{}, err
	}
	if settings.Registration.RequireState && strings.TrimSpace(in.State) == "" {
		return registration{}, apperror.Validation("invalid_state", "state is required for consulting type %s", ct)
	}

	reg := registration{
		input:          in,
		consultingType: ct,
		settings:       settings,
		agency:         agency,
		roles:          settings.UserRoles,
		status:         sessiondomain.StatusInitial,
		regType:        sessiondomain.RegistrationRegistered,
	}
	if in.Anonymous {
		reg.roles = []identitydomain.Role{identitydomain.RoleAnonymous}
		reg.status = sessiondomain.StatusNew
		reg.regType = sessiondomain.RegistrationAnonymous
	}
	return reg, nil
}

func validateAge(rules consultingtype.Registration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if rules.RequireAge {
			return apperror.Validation("invalid_age", "age is required")
		}
		return nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age < 0 {
		return apperror.Validation("invalid_age", "age must be a number")
	}
	if rules.MinAge > 0 && age < rules.MinAge {
		return apperror.Validation("invalid_age", "age must be at least %d", rules.MinAge)
	}
	if rules.MaxAge > 0 && age > rules.MaxAge {
		return apperror.Validation("invalid_age", "age must be at most %d", rules.MaxAge)
	}
	return nil
}
