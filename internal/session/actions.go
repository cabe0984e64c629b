package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/okovalenko/draftflow/internal/domain"
)

// SetCategory selects the document category, resetting everything
// downstream: template, field state, role claims, signatures, progress.
// When the category has exactly one template it is selected right away.
// The caller must hold the session's transactional lock.
func (s *Service) SetCategory(sess *domain.Session, categoryID string) error {
	category, ok := s.schemas.Category(categoryID)
	if !ok {
		return domain.Schemaf("unknown category %q", categoryID)
	}

	sess.CategoryID = categoryID
	templates := s.schemas.TemplatesFor(categoryID)
	if len(templates) == 1 {
		sess.TemplateID = templates[0].ID
		sess.State = domain.StateTemplateSelected
		slog.Info("category set, single template auto-selected",
			"session_id", sess.SessionID,
			"category_id", categoryID,
			"template_id", sess.TemplateID)
	} else {
		sess.TemplateID = ""
		sess.State = domain.StateCategorySelected
	}

	sess.ContractFields = map[string]*domain.FieldState{}
	sess.PartyFields = map[string]map[string]*domain.FieldState{}
	sess.PartyTypes = map[string]string{}
	sess.PartyUsers = map[string]string{}
	sess.Signatures = map[string]bool{}
	sess.AllData = map[string]*domain.FieldRecord{}
	sess.CanBuildContract = false
	sess.Progress = domain.Progress{}

	// Required roles drive the fully-signed check.
	roles := make([]string, 0, len(category.Roles))
	for role := range category.Roles {
		roles = append(roles, role)
	}
	sess.RequiredRoles = roles

	return s.refreshProgressOnly(sess)
}

// SetTemplate selects a template within the current category. Field
// data is preserved; readiness is recomputed because a template is a
// hard prerequisite for building.
func (s *Service) SetTemplate(sess *domain.Session, templateID string) error {
	t, ok := s.schemas.Template(templateID)
	if !ok {
		return domain.Schemaf("unknown template %q", templateID)
	}
	if sess.CategoryID == "" || t.CategoryID != sess.CategoryID {
		return domain.Schemaf("template %q does not belong to category %q", templateID, sess.CategoryID)
	}
	if sess.TemplateID == templateID {
		return nil
	}
	sess.TemplateID = templateID
	sess.State = domain.StateTemplateSelected
	// Only upgrades to ready_to_build; an unready session stays here.
	return s.refreshReadiness(sess, false)
}

// SetPartyType records the person-type classification of a role. A
// change of type clears the role's fields and data (the old schema no
// longer applies) and invalidates that role's signature.
func (s *Service) SetPartyType(sess *domain.Session, role, personType string) error {
	if sess.CategoryID == "" {
		return domain.Schemaf("category is not set")
	}
	roles, err := s.schemas.RoleNames(sess.CategoryID)
	if err != nil {
		return err
	}
	if !contains(roles, role) {
		return domain.Schemaf("unknown role %q in category %q", role, sess.CategoryID)
	}

	sess.ActiveRole = role
	sess.ActivePersonType = personType

	oldType := sess.PartyTypes[role]
	sess.PartyTypes[role] = personType
	if oldType == "" || oldType == personType {
		return nil
	}

	slog.Info("party type changed, clearing role fields",
		"session_id", sess.SessionID, "role", role,
		"old", oldType, "new", personType)

	delete(sess.PartyFields, role)
	prefix := role + "."
	for key := range sess.AllData {
		if strings.HasPrefix(key, prefix) {
			delete(sess.AllData, key)
		}
	}
	if sess.Signatures[role] {
		sess.Signatures[role] = false
	}
	return s.refreshReadiness(sess, true)
}

// ClaimRole assigns a role to a participant.
//
// Claiming a role you already own is an idempotent success. In partial
// mode a participant holds at most one role; a role never has more than
// one owner. Must run under the session's transactional lock so two
// participants cannot race onto the same role.
func (s *Service) ClaimRole(sess *domain.Session, role, participantID string) error {
	if role == "" || participantID == "" {
		return domain.Schemaf("role and participant id are required")
	}
	if sess.CategoryID == "" {
		return domain.Schemaf("category is not set")
	}
	roles, err := s.schemas.RoleNames(sess.CategoryID)
	if err != nil {
		return err
	}
	if !contains(roles, role) {
		return domain.Schemaf("unknown role %q in category %q", role, sess.CategoryID)
	}

	if owner, ok := sess.PartyUsers[role]; ok && owner != "" {
		if owner == participantID {
			return nil
		}
		return &domain.RoleConflictError{
			Role:          role,
			ParticipantID: participantID,
			Reason:        "role is already claimed by another participant",
		}
	}
	if sess.FillingMode != domain.FillingFull {
		for existing, owner := range sess.PartyUsers {
			if owner == participantID && existing != role {
				return &domain.RoleConflictError{
					Role:          role,
					ParticipantID: participantID,
					Reason:        fmt.Sprintf("participant already owns role %q", existing),
				}
			}
		}
	}
	sess.PartyUsers[role] = participantID
	return nil
}

// Sign records a role's signature. Only the claiming participant may
// sign their role; once every required role has signed the session
// completes and becomes immutable.
func (s *Service) Sign(sess *domain.Session, role, participantID string) error {
	if sess.State == domain.StateCompleted {
		return domain.ErrSessionImmutable
	}
	owner := sess.PartyUsers[role]
	if owner == "" || owner != participantID {
		return &domain.RoleConflictError{
			Role:          role,
			ParticipantID: participantID,
			Reason:        "only the participant holding the role may sign it",
		}
	}
	if sess.Signatures[role] {
		return nil
	}
	sess.Signatures[role] = true
	sess.AppendEvent(domain.Event{
		Type:  "sign",
		Actor: participantID,
		Role:  role,
		Valid: true,
	})
	if sess.IsFullySigned() {
		sess.State = domain.StateCompleted
		slog.Info("session fully signed", "session_id", sess.SessionID)
	}
	return nil
}

// MarkBuilt records a successful external build of the document.
func (s *Service) MarkBuilt(sess *domain.Session) error {
	if !sess.CanBuildContract {
		return fmt.Errorf("session %s is not ready to build", sess.SessionID)
	}
	sess.State = domain.StateBuilt
	return nil
}

// MarkReadyToSign records that a rendered artifact has been frozen for
// signing.
func (s *Service) MarkReadyToSign(sess *domain.Session) error {
	switch sess.State {
	case domain.StateBuilt, domain.StateReadyToBuild:
		sess.State = domain.StateReadyToSign
		return nil
	default:
		return fmt.Errorf("session %s cannot move to signing from state %s", sess.SessionID, sess.State)
	}
}

// refreshProgressOnly recomputes progress counters without touching the
// collecting/ready state, for transitions that fix the state themselves.
func (s *Service) refreshProgressOnly(sess *domain.Session) error {
	required, err := s.requiredFields(sess)
	if err != nil {
		return err
	}
	filled := 0
	for _, ref := range required {
		if fieldOK(sess, ref) {
			filled++
		}
	}
	sess.Progress = domain.Progress{RequiredTotal: len(required), RequiredFilled: filled}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
