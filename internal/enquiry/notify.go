package enquiry

import (
	"context"

	"go.uber.org/zap"

	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	"github.com/smallbiznis/counseling/internal/notification"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
)

// afterEnquiry runs the steps that may fail without affecting the enquiry:
// the welcome message, consultant membership and notifications.
func (s *Service) afterEnquiry(ctx context.Context, log *zap.Logger, session sessiondomain.Session, settings consultingtype.Settings, creds chatdomain.Credentials) {
	if settings.SendWelcomeMessage && settings.WelcomeMessage != "" {
		if err := s.chat.PostMessage(ctx, session.GroupID, s.system, settings.WelcomeMessage); err != nil {
			log.Warn("could not post welcome message", zap.String("group_id", session.GroupID), zap.Error(err))
		}
	}

	agencyName, consultants := s.consultantsToNotify(ctx, log, session, settings)
	if len(consultants) == 0 {
		return
	}

	chatIDs := make([]string, 0, len(consultants))
	recipients := make([]notification.Recipient, 0, len(consultants))
	for _, c := range consultants {
		recipients = append(recipients, notification.Recipient{
			IdentityID: c.IdentityID,
			Email:      c.Email,
			Name:       c.FirstName,
		})
		if !c.HasChatID() {
			continue
		}
		chatIDs = append(chatIDs, c.ChatID)
		for _, groupID := range session.GroupIDs() {
			if err := s.chat.AddMember(ctx, c.ChatID, groupID); err != nil {
				log.Warn("could not add consultant to enquiry group",
					zap.String("consultant_id", c.ID.String()),
					zap.String("chat_user_id", c.ChatID),
					zap.String("group_id", groupID),
					zap.Error(err),
				)
			}
		}
	}

	s.dispatcher.NewEnquiry(ctx, agencyName, recipients)
	s.dispatcher.DirectMessage(ctx, creds.UserID, chatIDs)
}

// consultantsToNotify returns every consultant of a team agency when the
// consulting type notifies the team, otherwise the assigned consultant.
func (s *Service) consultantsToNotify(ctx context.Context, log *zap.Logger, session sessiondomain.Session, settings consultingtype.Settings) (string, []consultantdomain.Consultant) {
	agency, err := s.agencySvc.GetByID(ctx, session.AgencyID)
	if err != nil {
		log.Warn("could not load agency for notification", zap.String("agency_id", session.AgencyID.String()), zap.Error(err))
		return "", nil
	}

	if agency.TeamAgency && settings.NotifyTeamConsultants {
		consultants, err := s.consultantSvc.ListByAgency(ctx, agency.ID)
		if err != nil {
			log.Warn("could not list agency consultants", zap.String("agency_id", agency.ID.String()), zap.Error(err))
			return agency.Name, nil
		}
		return agency.Name, consultants
	}

	if !session.HasConsultant() {
		return agency.Name, nil
	}
	consultant, err := s.consultantSvc.GetByID(ctx, *session.ConsultantID)
	if err != nil {
		log.Warn("could not load assigned consultant", zap.Error(err))
		return agency.Name, nil
	}
	return agency.Name, []consultantdomain.Consultant{consultant}
}
