package claimer

import (
	"context"
	"fmt"
	"strings"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// CreateTemplate stores a named preset for the entry form.
func (s *Service) CreateTemplate(ctx context.Context, tmpl *model.Template) (*model.Template, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	tmpl.Autor = strings.TrimSpace(tmpl.Autor)
	if tmpl.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "template name is required"}
	}
	if tmpl.Autor == "" {
		return nil, &ValidationError{Field: "autor", Reason: "author is required"}
	}
	if tmpl.Hodiny != nil && tmpl.Minuty != nil {
		h, m, err := ParseDuration(*tmpl.Hodiny, *tmpl.Minuty)
		if err != nil {
			return nil, err
		}
		if err := ValidateDuration(h, m); err != nil {
			return nil, err
		}
	}

	created, err := s.database.CreateTemplate(ctx, tmpl)
	if err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}
	s.logger.Info("template created", "id", created.ID, "name", created.Name, "autor", created.Autor)
	return created, nil
}

// ListTemplates returns the templates owned by autor.
func (s *Service) ListTemplates(ctx context.Context, autor string) ([]*model.Template, error) {
	autor = strings.TrimSpace(autor)
	if autor == "" {
		return nil, &ValidationError{Field: "autor", Reason: "author is required"}
	}
	templates, err := s.database.ListTemplates(ctx, autor)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a template owned by actor.
func (s *Service) DeleteTemplate(ctx context.Context, actor string, id int64) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return &OwnershipError{Kind: "template", ID: id}
	}
	deleted, err := s.database.DeleteTemplate(ctx, id, actor)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if !deleted {
		return &NotFoundError{Kind: "template", Key: fmt.Sprint(id)}
	}
	s.logger.Info("template deleted", "id", id, "autor", actor)
	return nil
}
