package api

import (
	"net/http"
)

type templateView struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
}

type categoryView struct {
	ID        string              `json:"id"`
	Label     string              `json:"label"`
	Roles     map[string]roleView `json:"roles"`
	Templates []templateView      `json:"templates"`
}

type roleView struct {
	Label              string   `json:"label,omitempty"`
	AllowedPersonTypes []string `json:"allowed_person_types,omitempty"`
	DefaultPersonType  string   `json:"default_person_type,omitempty"`
}

// ListCategories returns the selectable categories with their roles
// and templates, for the category picker.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.schemas.Categories()
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		view := categoryView{
			ID:        c.ID,
			Label:     c.Label,
			Roles:     map[string]roleView{},
			Templates: []templateView{},
		}
		for name, meta := range c.Roles {
			view.Roles[name] = roleView(meta)
		}
		for _, t := range h.schemas.TemplatesFor(c.ID) {
			view.Templates = append(view.Templates, templateView{
				TemplateID: t.ID,
				Name:       t.Name,
			})
		}
		out = append(out, view)
	}
	JSON(w, http.StatusOK, out)
}
