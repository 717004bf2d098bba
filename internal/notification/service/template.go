package service

import (
	"context"
	"errors"
	"strings"

	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/sentinel"
)

// renderTemplate substitutes {{key}} placeholders with values from vars.
// Substitution is literal: each variable replaces every occurrence of its
// exact placeholder, and placeholders with no matching variable are left
// verbatim rather than treated as an error.
func renderTemplate(content string, vars map[string]string) string {
	if len(vars) == 0 {
		return content
	}
	for key, value := range vars {
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content
}

// CreateTemplate stores a new template. Template names are unique; a
// duplicate name is a conflict.
func (s *Service) CreateTemplate(ctx context.Context, req models.TemplateRequest) (*models.Template, error) {
	if s.templates == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "template store is not configured")
	}
	if err := validateTemplateRequest(req); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.now()
	tpl := &models.Template{
		ID:           id.NewTemplateID(),
		TemplateName: req.TemplateName,
		Type:         req.Type,
		Channel:      req.Channel,
		Subject:      req.Subject,
		Body:         req.Body,
		HTMLBody:     req.HTMLBody,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "template name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store template")
	}
	return tpl, nil
}

// GetTemplate returns the active template with the given name.
func (s *Service) GetTemplate(ctx context.Context, name string) (*models.Template, error) {
	return s.resolveTemplate(ctx, name)
}

// ListTemplates returns all templates, active or not.
func (s *Service) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	if s.templates == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "template store is not configured")
	}
	list, err := s.templates.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return list, nil
}

func validateTemplateRequest(req models.TemplateRequest) error {
	switch {
	case req.TemplateName == "":
		return dErrors.New(dErrors.CodeBadRequest, "templateName is required")
	case req.Type == "":
		return dErrors.New(dErrors.CodeBadRequest, "notificationType is required")
	case !req.Channel.IsValid():
		return dErrors.New(dErrors.CodeBadRequest, "unknown channel")
	case req.Subject == "":
		return dErrors.New(dErrors.CodeBadRequest, "subject is required")
	case req.Body == "":
		return dErrors.New(dErrors.CodeBadRequest, "body is required")
	}
	return nil
}
