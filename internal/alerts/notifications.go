package alerts

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
)

// =========================
// GetUserNotifications - In-app notification feed, newest first
// =========================
func GetUserNotifications(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, purpose, message, COALESCE(entity_id::text, ''), COALESCE(sender_id::text, ''),
                created_at, read_at
         FROM notifications WHERE user_id = $1
         ORDER BY created_at DESC LIMIT 100`,
		userID,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("notification query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, purpose, message, entityID, senderID string
		var createdAt time.Time
		var readAt *time.Time
		if err := rows.Scan(&id, &purpose, &message, &entityID, &senderID, &createdAt, &readAt); err != nil {
			return httpx.Fail(c, apperr.Internal("notification scan failed", err))
		}
		out = append(out, echo.Map{
			"id":         id,
			"purpose":    purpose,
			"message":    message,
			"entity_id":  entityID,
			"sender_id":  senderID,
			"created_at": createdAt,
			"read_at":    readAt,
		})
	}
	return httpx.OK(c, echo.Map{"notifications": out})
}

// =========================
// MarkNotificationRead
// =========================
func MarkNotificationRead(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	tag, err := db.Conn.Exec(context.Background(),
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("notification update failed", err))
	}
	return httpx.OK(c, echo.Map{"updated": tag.RowsAffected() > 0})
}
