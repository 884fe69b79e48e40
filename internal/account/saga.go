package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/apperror"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/observability/logger"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

const defaultLocale = "de"

// creationContext tracks what the saga has committed so far.
type creationContext struct {
	identityID string
	user       userdomain.User
	session    sessiondomain.Session

	identityCreated bool
	userCreated     bool
	sessionCreated  bool
}

func (c creationContext) rollbackInfo() RollbackInfo {
	return RollbackInfo{
		IdentityID:     c.identityID,
		UserID:         c.user.ID,
		SessionID:      c.session.ID,
		DeleteIdentity: c.identityCreated,
		DeleteUser:     c.userCreated,
		DeleteSession:  c.sessionCreated,
	}
}

// CreateAccount registers an asker. Any failure after the identity account
// exists removes everything created so far before the error is returned.
func (s *Service) CreateAccount(ctx context.Context, in RegistrationInput) (Account, error) {
	log := logger.WithContext(ctx, s.log)

	reg, err := s.validate(ctx, in)
	if err != nil {
		s.metrics.RecordAccountCreation(ctx, metrics.OutcomeRejected)
		return Account{}, err
	}
	in = reg.input

	if err := s.checkUsernameAvailable(ctx, in.Username); err != nil {
		s.metrics.RecordAccountCreation(ctx, metrics.OutcomeRejected)
		return Account{}, err
	}

	ref, err := s.identity.CreateAccount(ctx, identitydomain.Profile{
		Username: userdomain.Encode(in.Username),
		Email:    in.Email,
		Locale:   localeOf(in.LanguageCode),
	})
	if err != nil {
		s.metrics.RecordAccountCreation(ctx, metrics.OutcomeRejected)
		return Account{}, createAccountError(err)
	}

	actx := creationContext{identityID: ref.ID, identityCreated: true}
	log = log.With(zap.String("identity_id", ref.ID))

	for _, role := range reg.roles {
		if err := s.identity.AssignRole(ctx, ref.ID, role); err != nil {
			return Account{}, s.abort(ctx, log, actx, apperror.Internal(err, "could not assign role %s", role))
		}
	}

	if err := s.identity.SetPassword(ctx, ref.ID, in.Password); err != nil {
		return Account{}, s.abort(ctx, log, actx, apperror.Internal(err, "could not set password"))
	}

	email := in.Email
	if email == "" {
		email = s.dummyEmail(ref.ID)
		if err := s.identity.SetEmail(ctx, ref.ID, email); err != nil {
			return Account{}, s.abort(ctx, log, actx, apperror.Internal(err, "could not set dummy email"))
		}
	}

	user, err := s.userSvc.Create(ctx, userdomain.CreateUserRequest{
		IdentityID:     ref.ID,
		Username:       in.Username,
		Email:          email,
		LanguageFormal: reg.settings.LanguageFormal,
	})
	if err != nil {
		return Account{}, s.abort(ctx, log, actx, apperror.Internal(err, "could not create user"))
	}
	actx.user = user
	actx.userCreated = true

	session, err := s.sessionSvc.Initialize(ctx, sessiondomain.InitializeRequest{
		UserID:           user.ID,
		ConsultingType:   int(reg.consultingType),
		AgencyID:         reg.agency.ID,
		Postcode:         in.Postcode,
		RegistrationType: reg.regType,
		Status:           reg.status,
		TeamSession:      reg.agency.TeamAgency,
		Monitoring:       reg.settings.Monitoring.Enabled,
		LanguageCode:     in.LanguageCode,
	})
	if err != nil {
		return Account{}, s.abort(ctx, log, actx, apperror.Internal(err, "could not initialize session"))
	}

	s.metrics.RecordAccountCreation(ctx, metrics.OutcomeSuccess)
	log.Info("account created",
		zap.String("user_id", user.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.String("consulting_type", reg.consultingType.String()),
	)
	return Account{IdentityID: ref.ID, User: user, Session: session}, nil
}

func (s *Service) checkUsernameAvailable(ctx context.Context, username string) error {
	accounts, err := s.identity.FindByUsername(ctx, userdomain.Encode(username))
	if err != nil {
		return apperror.Internal(err, "could not check username availability")
	}
	for _, acc := range accounts {
		if userdomain.UsernamesMatch(acc.Username, username) {
			return apperror.ErrUsernameConflict
		}
	}
	return nil
}

func createAccountError(err error) error {
	if conflict, ok := identitydomain.AsConflict(err); ok {
		switch {
		case !conflict.UsernameAvailable:
			return apperror.ErrUsernameConflict
		case !conflict.EmailAvailable:
			return apperror.ErrEmailConflict
		}
	}
	return apperror.Internal(err, "could not create identity account")
}

// abort rolls back what actx committed and returns primary. Rollback
// failures are persisted and logged; they never replace primary.
func (s *Service) abort(ctx context.Context, log *zap.Logger, actx creationContext, primary error) error {
	failures := s.rollback.Rollback(ctx, actx.rollbackInfo())
	if len(failures) == 0 {
		s.metrics.RecordAccountCreation(ctx, metrics.OutcomeRolledBack)
		log.Warn("account creation rolled back", zap.Error(primary))
		return primary
	}

	var rollbackErr *multierror.Error
	for _, f := range failures {
		rollbackErr = multierror.Append(rollbackErr, fmt.Errorf("%s %s: %s", f.TargetType, f.Identifier, f.Reason))
	}
	if s.auditSvc != nil {
		s.auditSvc.RecordWorkflowErrors(context.WithoutCancel(ctx), failures)
	}
	s.metrics.RecordAccountCreation(ctx, metrics.OutcomeRollbackFailed)

	secondary := apperror.Secondary(primary, rollbackErr)
	log.Error("account creation rollback incomplete",
		zap.String("user_id", actx.user.ID.String()),
		zap.String("session_id", actx.session.ID.String()),
		zap.Error(secondary),
	)
	return primary
}

func (s *Service) dummyEmail(identityID string) string {
	return identityID + s.dummySuffix
}

func localeOf(languageCode string) string {
	if code := strings.TrimSpace(languageCode); code != "" {
		return code
	}
	return defaultLocale
}
