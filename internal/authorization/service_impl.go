package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/counseling/internal/audit/domain"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Identity identitydomain.Client
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	identity identitydomain.Client
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		identity: p.Identity,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, roles []identitydomain.Role, object, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.anyAllowed(roles, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, roles, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) HasElevatedAuthority(ctx context.Context, identityID string) (bool, error) {
	if strings.TrimSpace(identityID) == "" {
		return false, nil
	}
	roles, err := s.identity.ListRoles(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("list roles of %s: %w", identityID, err)
	}
	return s.anyAllowed(roles, ObjectChatGroup, ActionKeepMembership)
}

func (s *ServiceImpl) anyAllowed(roles []identitydomain.Role, object, action string) (bool, error) {
	for _, role := range roles {
		ok, err := s.enforcer.Enforce(subject(role), object, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, roles []identitydomain.Role, object, action string) {
	if s.auditSvc == nil {
		return
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	targetID := object
	_ = s.auditSvc.AuditLog(ctx, "", nil, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"roles":  strings.Join(names, ","),
	})
}

func subject(role identitydomain.Role) string {
	return "role:" + string(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	consultantRoles := []identitydomain.Role{
		identitydomain.RoleConsultant,
		identitydomain.RoleU25Consultant,
		identitydomain.RoleU25MainConsultant,
		identitydomain.RoleKreuzbundConsultant,
	}

	policies := [][]string{
		{subject(identitydomain.RoleUser), ObjectEnquiry, ActionEnquiryCreate},
		{subject(identitydomain.RoleAnonymous), ObjectEnquiry, ActionEnquiryCreate},

		{subject(identitydomain.RoleTechnical), ObjectChatGroup, ActionKeepMembership},

		{subject(identitydomain.RoleUserAdmin), ObjectAgency, ActionAgencyManage},
		{subject(identitydomain.RoleUserAdmin), ObjectChatGroup, ActionKeepMembership},

		{subject(identitydomain.RoleU25MainConsultant), ObjectChatGroup, ActionKeepMembership},
	}
	for _, role := range consultantRoles {
		policies = append(policies,
			[]string{subject(role), ObjectEnquiry, ActionEnquiryAccept},
			[]string{subject(role), ObjectSession, ActionSessionAssign},
			[]string{subject(role), ObjectSession, ActionSessionView},
		)
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
