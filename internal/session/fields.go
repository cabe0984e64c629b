package session

import (
	"log/slog"
	"strings"
	"time"

	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
	"github.com/okovalenko/draftflow/internal/validate"
)

// fieldTarget is the resolved destination of one field update: the
// field either belongs to the contract-level schema or to a per-role
// party module. Resolution happens once per update.
type fieldTarget struct {
	contract *schema.ContractField // nil for party fields
	party    *schema.PartyField    // nil for contract fields
	role     string                // set for party fields
}

func (t fieldTarget) isParty() bool { return t.party != nil }

func (t fieldTarget) required() bool {
	if t.contract != nil {
		return t.contract.Required
	}
	return t.party.Required
}

func (t fieldTarget) valueType(fieldName string) string {
	if t.contract != nil {
		return t.contract.Type
	}
	// Party fields carry no type in the schema; infer from the name.
	return validate.InferType(fieldName)
}

// resolveField decides whether field belongs to the contract schema or
// to a party module, resolving the effective role for the latter. A
// non-empty userMsg means the update cannot proceed and why.
func (s *Service) resolveField(sess *domain.Session, field, role string) (fieldTarget, string, error) {
	contractFields, err := s.schemas.ContractFieldsFor(sess.CategoryID)
	if err != nil {
		return fieldTarget{}, "", err
	}
	for i := range contractFields {
		if contractFields[i].Field == field {
			return fieldTarget{contract: &contractFields[i]}, "", nil
		}
	}

	effectiveRole := role
	if effectiveRole == "" {
		effectiveRole = sess.ActiveRole
	}
	if effectiveRole == "" {
		return fieldTarget{}, "Спочатку потрібно обрати роль або передати її явно.", nil
	}

	personType := s.EffectivePersonType(sess, effectiveRole)
	// Remember the fallback so later lookups see the same schema.
	if _, ok := sess.PartyTypes[effectiveRole]; !ok {
		sess.PartyTypes[effectiveRole] = personType
	}

	partyFields, err := s.schemas.PartyFieldsFor(sess.CategoryID, personType)
	if err != nil {
		return fieldTarget{}, "", err
	}
	for i := range partyFields {
		if partyFields[i].Field == field {
			return fieldTarget{party: &partyFields[i], role: effectiveRole}, "", nil
		}
	}
	return fieldTarget{}, "Поле не належить до обраної категорії.", nil
}

// UpdateField applies one field mutation: schema resolution, validation
// dispatch, field-state and history update, readiness recomputation and
// signature invalidation.
//
// User-input problems come back as (ok=false, errMsg, state); they are
// expected and frequent. The error return is reserved for schema
// integrity failures.
func (s *Service) UpdateField(sess *domain.Session, field, value, role string, actor Actor) (bool, string, domain.FieldState, error) {
	raw := value

	if sess.CategoryID == "" {
		msg := "Спочатку потрібно обрати категорію."
		return false, msg, domain.FieldState{Status: domain.FieldError, Error: "no category"}, nil
	}
	if sess.IsFullySigned() {
		msg := "Документ вже повністю підписаний. Редагування неможливе."
		return false, msg, domain.FieldState{Status: domain.FieldError, Error: "fully signed"}, nil
	}

	target, userMsg, err := s.resolveField(sess, field, role)
	if err != nil {
		return false, "", domain.FieldState{}, err
	}
	if userMsg != "" {
		return false, userMsg, domain.FieldState{Status: domain.FieldError, Error: "unresolved field"}, nil
	}

	// A signer may not edit their own submission; the signature is a
	// commitment. Other roles' signatures are handled after validation.
	signerRole := target.role
	if signerRole == "" {
		signerRole = sess.ActiveRole
	}
	if signerRole != "" && sess.Signatures[signerRole] {
		msg := "Ви вже підписали цей документ. Редагування заборонено."
		return false, msg, domain.FieldState{Status: domain.FieldError, Error: "signed by editor"}, nil
	}

	// An empty value for a required field is itself a validation error,
	// not a skip; empty optional values skip validation entirely.
	required := target.required()
	empty := strings.TrimSpace(raw) == ""
	var normalized, errMsg string
	switch {
	case required && empty:
		normalized, errMsg = raw, "Значення не може бути порожнім."
	case !required && empty:
		normalized, errMsg = "", ""
	default:
		normalized, errMsg = validate.Value(target.valueType(field), raw)
	}
	ok := errMsg == ""

	fs := domain.FieldState{Status: domain.FieldOK}
	if !ok {
		fs = domain.FieldState{Status: domain.FieldError, Error: errMsg}
	}
	key := field
	if target.isParty() {
		key = domain.PartyKey(target.role, field)
		sess.SetPartyFieldState(target.role, field, &fs)
	} else {
		sess.ContractFields[field] = &fs
	}

	// History is append-only: every submission lands there, valid or
	// not, but only accepted values move Current.
	rec := sess.Record(key)
	if ok {
		rec.Current = normalized
	}
	rec.Validated = ok
	if actor.Source != "" {
		rec.Source = actor.Source
	}
	event := domain.FieldEvent{
		Value:     raw,
		Valid:     ok,
		Actor:     actor.ParticipantID,
		Role:      signerRole,
		Timestamp: time.Now().UTC(),
	}
	if ok {
		event.Normalized = normalized
	}
	rec.History = append(rec.History, event)

	sess.AppendEvent(domain.Event{
		Type:  "field_update",
		Key:   key,
		Actor: actor.ParticipantID,
		Role:  signerRole,
		Valid: ok,
	})

	if err := s.refreshReadiness(sess, true); err != nil {
		return false, "", domain.FieldState{}, err
	}

	// Accepted content changes make every other party's prior
	// commitment stale. The editor's own signature was a blocking
	// condition above, so it cannot reach this point.
	if ok {
		var invalidated []string
		for r, signed := range sess.Signatures {
			if signed && r != signerRole {
				sess.Signatures[r] = false
				invalidated = append(invalidated, r)
			}
		}
		if len(invalidated) > 0 {
			slog.Info("signatures invalidated by field update",
				"session_id", sess.SessionID,
				"updated_by", signerRole,
				"roles", invalidated)
		}
	}

	return ok, errMsg, fs, nil
}
