package session

import (
	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
)

// EffectivePersonType resolves the person type that applies to a role:
// the explicit party_types entry, then the active editing context, then
// the category's fallback chain.
func (s *Service) EffectivePersonType(sess *domain.Session, role string) string {
	if pt, ok := sess.PartyTypes[role]; ok && pt != "" {
		return pt
	}
	if role == sess.ActiveRole && sess.ActivePersonType != "" {
		return sess.ActivePersonType
	}
	return s.schemas.DefaultPersonType(sess.CategoryID, role)
}

// requiredFields flattens the currently-required fields for the
// session: required contract fields plus the required party fields of
// every role the category declares, under each role's effective person
// type.
func (s *Service) requiredFields(sess *domain.Session) ([]schema.FieldRef, error) {
	if sess.CategoryID == "" {
		return nil, nil
	}
	roles, err := s.schemas.RoleNames(sess.CategoryID)
	if err != nil {
		return nil, err
	}
	partyTypes := make(map[string]string, len(roles))
	for _, role := range roles {
		partyTypes[role] = s.EffectivePersonType(sess, role)
	}
	return s.schemas.RequiredFields(sess.CategoryID, partyTypes)
}

// fieldOK reports whether one required field currently validates.
func fieldOK(sess *domain.Session, ref schema.FieldRef) bool {
	var fs *domain.FieldState
	if ref.Role != "" {
		fs = sess.PartyFieldState(ref.Role, ref.FieldName)
	} else {
		fs = sess.ContractFields[ref.FieldName]
	}
	return fs != nil && fs.Status == domain.FieldOK
}

// Ready reports whether the session can build a contract: a template
// is selected and every required field validates.
func (s *Service) Ready(sess *domain.Session) (bool, error) {
	if sess.TemplateID == "" {
		return false, nil
	}
	required, err := s.requiredFields(sess)
	if err != nil {
		return false, err
	}
	for _, ref := range required {
		if !fieldOK(sess, ref) {
			return false, nil
		}
	}
	return true, nil
}

// refreshReadiness recomputes the readiness cache, the field-collection
// state and the progress counters. The collecting/ready transition is
// recomputed, not remembered: every field mutation goes through here.
func (s *Service) refreshReadiness(sess *domain.Session, moveState bool) error {
	ready, err := s.Ready(sess)
	if err != nil {
		return err
	}
	sess.CanBuildContract = ready
	if moveState {
		if ready {
			sess.State = domain.StateReadyToBuild
		} else {
			sess.State = domain.StateCollectingFields
		}
	} else if ready {
		sess.State = domain.StateReadyToBuild
	}

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
	sess.Progress = domain.Progress{
		RequiredTotal:  len(required),
		RequiredFilled: filled,
	}
	return nil
}

// MissingField describes one unfilled required field, for UI display.
type MissingField struct {
	Key   string `json:"key"`
	Field string `json:"field"`
	Role  string `json:"role,omitempty"`
	Label string `json:"label"`
}

// MissingFields lists the required fields that do not validate yet.
func (s *Service) MissingFields(sess *domain.Session) ([]MissingField, error) {
	required, err := s.requiredFields(sess)
	if err != nil {
		return nil, err
	}
	var missing []MissingField
	for _, ref := range required {
		if fieldOK(sess, ref) {
			continue
		}
		missing = append(missing, MissingField{
			Key:   ref.Key,
			Field: ref.FieldName,
			Role:  ref.Role,
			Label: ref.Label,
		})
	}
	return missing, nil
}
