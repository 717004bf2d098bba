package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
)

// Postgres persists notifications in PostgreSQL.
// This store is pure I/O; status transitions and retry accounting belong in
// the service.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const notificationColumns = `
	id, recipient_id, recipient_email, recipient_phone, recipient_name,
	notification_type, channel, status, subject, message, html_content,
	related_entity_id, related_entity_type, scheduled_at, sent_at,
	delivered_at, error_message, retry_count, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.RecipientEmail, nullable(n.RecipientPhone), nullable(n.RecipientName),
		n.Type, n.Channel, n.Status, n.Subject, n.Message, nullable(n.HTMLContent),
		nullable(n.RelatedEntityID), nullable(n.RelatedEntityType), n.ScheduledAt, n.SentAt,
		n.DeliveredAt, nullable(n.ErrorMessage), n.RetryCount, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, n *models.Notification) error {
	query := `
		UPDATE notifications
		SET status = $2, sent_at = $3, delivered_at = $4, error_message = $5,
		    retry_count = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		n.ID, n.Status, n.SentAt, n.DeliveredAt, nullable(n.ErrorMessage), n.RetryCount, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, nid id.NotificationID) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, nid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListByRecipient(ctx context.Context, recipientID string) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, recipientID)
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.Status) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = $1`
	return s.list(ctx, query, status)
}

func (s *Postgres) ListDue(ctx context.Context, now time.Time) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = 'PENDING' AND scheduled_at IS NOT NULL AND scheduled_at <= $1`
	return s.list(ctx, query, now)
}

func (s *Postgres) ListFailedRetryable(ctx context.Context, maxRetries int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = 'FAILED' AND retry_count < $1`
	return s.list(ctx, query, maxRetries)
}

func (s *Postgres) Delete(ctx context.Context, nid id.NotificationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, nid)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n                                  models.Notification
		phone, name, html                  sql.NullString
		relatedID, relatedType, errMessage sql.NullString
		scheduledAt, sentAt, deliveredAt   sql.NullTime
	)
	err := row.Scan(
		&n.ID, &n.RecipientID, &n.RecipientEmail, &phone, &name,
		&n.Type, &n.Channel, &n.Status, &n.Subject, &n.Message, &html,
		&relatedID, &relatedType, &scheduledAt, &sentAt,
		&deliveredAt, &errMessage, &n.RetryCount, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.RecipientPhone = phone.String
	n.RecipientName = name.String
	n.HTMLContent = html.String
	n.RelatedEntityID = relatedID.String
	n.RelatedEntityType = relatedType.String
	n.ErrorMessage = errMessage.String
	if scheduledAt.Valid {
		n.ScheduledAt = &scheduledAt.Time
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if deliveredAt.Valid {
		n.DeliveredAt = &deliveredAt.Time
	}
	return &n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// TemplatePostgres persists notification templates.
type TemplatePostgres struct {
	db *sql.DB
}

// NewTemplatePostgres constructs a PostgreSQL-backed template store.
func NewTemplatePostgres(db *sql.DB) *TemplatePostgres {
	return &TemplatePostgres{db: db}
}

func (s *TemplatePostgres) Create(ctx context.Context, tpl *models.Template) error {
	query := `
		INSERT INTO notification_templates
			(id, template_name, notification_type, channel, subject, body, html_body, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		tpl.ID, tpl.TemplateName, tpl.Type, tpl.Channel,
		tpl.Subject, tpl.Body, nullable(tpl.HTMLBody), tpl.Active,
		tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("template %s: %w", tpl.TemplateName, sentinel.ErrConflict)
		}
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (s *TemplatePostgres) List(ctx context.Context) ([]*models.Template, error) {
	query := `
		SELECT id, template_name, notification_type, channel, subject, body, html_body, is_active, created_at, updated_at
		FROM notification_templates
		ORDER BY template_name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		var (
			tpl      models.Template
			htmlBody sql.NullString
		)
		if err := rows.Scan(
			&tpl.ID, &tpl.TemplateName, &tpl.Type, &tpl.Channel,
			&tpl.Subject, &tpl.Body, &htmlBody, &tpl.Active,
			&tpl.CreatedAt, &tpl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.HTMLBody = htmlBody.String
		out = append(out, &tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func (s *TemplatePostgres) GetByName(ctx context.Context, name string) (*models.Template, error) {
	query := `
		SELECT id, template_name, notification_type, channel, subject, body, html_body, is_active, created_at, updated_at
		FROM notification_templates
		WHERE template_name = $1 AND is_active
	`
	var (
		tpl      models.Template
		htmlBody sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&tpl.ID, &tpl.TemplateName, &tpl.Type, &tpl.Channel,
		&tpl.Subject, &tpl.Body, &htmlBody, &tpl.Active,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	tpl.HTMLBody = htmlBody.String
	return &tpl, nil
}
