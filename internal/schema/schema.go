// Package schema holds category and template metadata: which roles a
// document has, which person-type modules apply, and which fields are
// required. The engine validates sessions against this registry.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/okovalenko/draftflow/internal/domain"
)

// ContractField describes one document-level field.
type ContractField struct {
	Field      string `json:"field"`
	Type       string `json:"type"`
	Label      string `json:"label"`
	Required   bool   `json:"required"`
	AIRequired bool   `json:"ai_required,omitempty"`
}

// PartyField describes one field of a party module.
type PartyField struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// PartyModule is the field set for one person type (individual / fop /
// company).
type PartyModule struct {
	Label  string       `json:"label,omitempty"`
	Fields []PartyField `json:"fields"`
}

// RoleMeta describes one party role of a category.
type RoleMeta struct {
	Label              string   `json:"label,omitempty"`
	AllowedPersonTypes []string `json:"allowed_person_types,omitempty"`
	DefaultPersonType  string   `json:"default_person_type,omitempty"`
}

// Category groups templates and carries the field schema the session
// engine validates against.
type Category struct {
	ID             string                 `json:"id"`
	Label          string                 `json:"label"`
	Roles          map[string]RoleMeta    `json:"roles"`
	PartyModules   map[string]PartyModule `json:"party_modules"`
	ContractFields []ContractField        `json:"contract_fields"`
}

// Template is a concrete document layout within a category.
type Template struct {
	ID         string `json:"template_id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	File       string `json:"file,omitempty"`
}

// Registry is an in-memory store of categories and templates.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]*Category
	templates  map[string]*Template
	byCategory map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		categories: map[string]*Category{},
		templates:  map[string]*Template{},
		byCategory: map[string][]string{},
	}
}

// AddCategory registers a category.
func (r *Registry) AddCategory(c *Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
}

// AddTemplate registers a template under its category.
func (r *Registry) AddTemplate(t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	r.byCategory[t.CategoryID] = append(r.byCategory[t.CategoryID], t.ID)
}

// Category returns a category by id.
func (r *Registry) Category(id string) (*Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	return c, ok
}

// Template returns a template by id.
func (r *Registry) Template(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// TemplatesFor returns the templates of a category, sorted by id.
func (r *Registry) TemplatesFor(categoryID string) []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := append([]string(nil), r.byCategory[categoryID]...)
	sort.Strings(ids)
	out := make([]*Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.templates[id])
	}
	return out
}

// Categories returns all categories, sorted by id.
func (r *Registry) Categories() []*Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ContractFieldsFor returns the contract-level fields of a category.
func (r *Registry) ContractFieldsFor(categoryID string) ([]ContractField, error) {
	c, ok := r.Category(categoryID)
	if !ok {
		return nil, domain.Schemaf("unknown category %q", categoryID)
	}
	return c.ContractFields, nil
}

// PartyFieldsFor returns the party fields for a person type within a
// category. An unknown person type yields an empty set, not an error:
// person types are free-form until the category declares modules.
func (r *Registry) PartyFieldsFor(categoryID, personType string) ([]PartyField, error) {
	c, ok := r.Category(categoryID)
	if !ok {
		return nil, domain.Schemaf("unknown category %q", categoryID)
	}
	module, ok := c.PartyModules[personType]
	if !ok {
		return nil, nil
	}
	return module.Fields, nil
}

// RoleNames returns the sorted role names of a category.
func (r *Registry) RoleNames(categoryID string) ([]string, error) {
	c, ok := r.Category(categoryID)
	if !ok {
		return nil, domain.Schemaf("unknown category %q", categoryID)
	}
	names := make([]string, 0, len(c.Roles))
	for name := range c.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DefaultPersonType resolves the fallback person type for a role:
// role default, then first allowed type, then first declared module,
// then "individual".
func (r *Registry) DefaultPersonType(categoryID, role string) string {
	c, ok := r.Category(categoryID)
	if !ok {
		return "individual"
	}
	if meta, ok := c.Roles[role]; ok {
		if meta.DefaultPersonType != "" {
			return meta.DefaultPersonType
		}
		if len(meta.AllowedPersonTypes) > 0 {
			return meta.AllowedPersonTypes[0]
		}
	}
	if len(c.PartyModules) > 0 {
		keys := make([]string, 0, len(c.PartyModules))
		for k := range c.PartyModules {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys[0]
	}
	return "individual"
}

// FieldRef is one entry of the flattened required-field list.
type FieldRef struct {
	Key        string // "contract_date" or "lessor.name"
	Role       string // empty for contract fields
	FieldName  string
	Type       string
	Label      string
	Required   bool
	AIRequired bool
}

// RequiredFields flattens the required fields of a category for the given
// role -> person-type assignment: required contract fields plus the
// required party fields of every role's module.
func (r *Registry) RequiredFields(categoryID string, partyTypes map[string]string) ([]FieldRef, error) {
	c, ok := r.Category(categoryID)
	if !ok {
		return nil, domain.Schemaf("unknown category %q", categoryID)
	}

	var refs []FieldRef
	for _, cf := range c.ContractFields {
		if !cf.Required && !cf.AIRequired {
			continue
		}
		refs = append(refs, FieldRef{
			Key:        cf.Field,
			FieldName:  cf.Field,
			Type:       cf.Type,
			Label:      cf.Label,
			Required:   cf.Required,
			AIRequired: cf.AIRequired,
		})
	}

	roles := make([]string, 0, len(c.Roles))
	for name := range c.Roles {
		roles = append(roles, name)
	}
	sort.Strings(roles)

	for _, role := range roles {
		personType := partyTypes[role]
		if personType == "" {
			personType = r.DefaultPersonType(categoryID, role)
		}
		fields, err := r.PartyFieldsFor(categoryID, personType)
		if err != nil {
			return nil, err
		}
		for _, pf := range fields {
			if !pf.Required {
				continue
			}
			refs = append(refs, FieldRef{
				Key:       domain.PartyKey(role, pf.Field),
				Role:      role,
				FieldName: pf.Field,
				Type:      "text",
				Label:     pf.Label,
				Required:  true,
			})
		}
	}
	return refs, nil
}

type indexFile struct {
	Categories []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"categories"`
}

type templateFile struct {
	Template
	Roles          map[string]RoleMeta    `json:"roles"`
	PartyModules   map[string]PartyModule `json:"party_modules"`
	ContractFields []ContractField        `json:"contract_fields"`
}

// LoadDir populates the registry from a metadata directory:
// <dir>/index.json lists categories, <dir>/contracts/*.json hold one
// template each, carrying roles, party modules and contract fields that
// are merged into the owning category.
func (r *Registry) LoadDir(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		return fmt.Errorf("read category index: %w", err)
	}
	var idx indexFile
	if err := json.Unmarshal(raw, &idx); err != nil {
		return fmt.Errorf("parse category index: %w", err)
	}
	for _, c := range idx.Categories {
		r.AddCategory(&Category{
			ID:           c.ID,
			Label:        c.Label,
			Roles:        map[string]RoleMeta{},
			PartyModules: map[string]PartyModule{},
		})
	}

	matches, err := filepath.Glob(filepath.Join(dir, "contracts", "*.json"))
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", filepath.Base(path), err)
		}
		var tf templateFile
		if err := json.Unmarshal(raw, &tf); err != nil {
			return fmt.Errorf("parse template %s: %w", filepath.Base(path), err)
		}
		if tf.ID == "" || tf.CategoryID == "" {
			return fmt.Errorf("template %s: missing template_id or category_id", filepath.Base(path))
		}
		r.AddTemplate(&tf.Template)
		r.mergeCategoryMeta(tf)
	}
	return nil
}

// mergeCategoryMeta folds a template's role/module/field declarations
// into its category. Later templates win on conflicting keys; categories
// in this catalog share schemas across their templates.
func (r *Registry) mergeCategoryMeta(tf templateFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[tf.CategoryID]
	if !ok {
		c = &Category{
			ID:           tf.CategoryID,
			Label:        tf.CategoryID,
			Roles:        map[string]RoleMeta{},
			PartyModules: map[string]PartyModule{},
		}
		r.categories[tf.CategoryID] = c
	}
	for name, meta := range tf.Roles {
		c.Roles[name] = meta
	}
	for name, module := range tf.PartyModules {
		c.PartyModules[name] = module
	}
	if len(tf.ContractFields) > 0 {
		c.ContractFields = tf.ContractFields
	}
}
