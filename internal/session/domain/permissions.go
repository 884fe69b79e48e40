package domain

import "github.com/bwmarrin/snowflake"

func UserOwnsSession(userID snowflake.ID, s Session) bool {
	return userID != 0 && s.UserID == userID
}

// ConsultantCanAccess allows the assigned consultant, and for team sessions
// every consultant of the session's agency.
func ConsultantCanAccess(consultantID snowflake.ID, agencyIDs []snowflake.ID, s Session) bool {
	if s.AssignedTo(consultantID) {
		return true
	}
	if !s.TeamSession {
		return false
	}
	for _, id := range agencyIDs {
		if id == s.AgencyID {
			return true
		}
	}
	return false
}
