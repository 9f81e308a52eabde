package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"lokalhub/backend/pkg/apperr"
)

// ============================================================================
// Notification Operations
// ============================================================================

// CreateNotification appends a notification to a user's inbox via
// HAS_NOTIFICATION. The recipient must exist; callers treat this write as
// best-effort relative to their primary operation.
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) (*Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = NotificationUnread
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})
		CREATE (n:Notification {
			id: $id,
			message: $message,
			type: $type,
			status: $status,
			link: $link,
			created_at: datetime($now)
		})
		CREATE (u)-[:HAS_NOTIFICATION]->(n)
		RETURN n
	`, map[string]interface{}{
		"userID":  n.UserID,
		"id":      n.ID,
		"message": n.Message,
		"type":    n.Type,
		"status":  n.Status,
		"link":    n.Link,
		"now":     now,
	})
	if err != nil {
		return nil, operr("create notification", err)
	}

	record, err := singleOr(ctx, result, apperr.ForeignKeyMissing("User", n.UserID))
	if err != nil {
		return nil, operr("create notification", err)
	}
	node, ok := nodeFromRecord(record, "n")
	if !ok {
		return nil, apperr.MalformedRecord("Notification", "n")
	}
	created, err := notificationFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	created.UserID = n.UserID
	return created, nil
}

// NotificationsByUser lists a user's inbox, newest first
func (r *Repository) NotificationsByUser(ctx context.Context, userID string) ([]*Notification, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})-[:HAS_NOTIFICATION]->(n:Notification)
		RETURN n
		ORDER BY n.created_at DESC
	`, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, operr("notifications by user", err)
	}
	return collectNotifications(ctx, result, userID)
}

// MarkNotificationRead marks one notification as read. The notification
// must belong to the user.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})-[:HAS_NOTIFICATION]->(n:Notification {id: $id})
		SET n.status = $read
		RETURN n.id AS id
	`, map[string]interface{}{
		"userID": userID,
		"id":     notificationID,
		"read":   NotificationRead,
	})
	if err != nil {
		return operr("mark notification read", err)
	}
	if _, err := singleOr(ctx, result, apperr.NotFound("Notification", notificationID)); err != nil {
		return operr("mark notification read", err)
	}
	return nil
}

// MarkAllNotificationsRead marks a user's whole inbox as read and returns
// how many notifications changed
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})-[:HAS_NOTIFICATION]->(n:Notification {status: $unread})
		SET n.status = $read
		RETURN count(n) AS updated
	`, map[string]interface{}{
		"userID": userID,
		"unread": NotificationUnread,
		"read":   NotificationRead,
	})
	if err != nil {
		return 0, operr("mark all notifications read", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, operr("mark all notifications read", err)
	}
	return int64FromRecord(record, "updated"), nil
}

// UnreadNotificationCount returns the number of unread notifications in a
// user's inbox
func (r *Repository) UnreadNotificationCount(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})-[:HAS_NOTIFICATION]->(n:Notification {status: $unread})
		RETURN count(n) AS total
	`, map[string]interface{}{"userID": userID, "unread": NotificationUnread})
	if err != nil {
		return 0, operr("unread notification count", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, operr("unread notification count", err)
	}
	return int64FromRecord(record, "total"), nil
}

func collectNotifications(ctx context.Context, result neo4j.ResultWithContext, userID string) ([]*Notification, error) {
	notifications := []*Notification{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "n")
		if !ok {
			continue
		}
		notification, err := notificationFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		notification.UserID = userID
		notifications = append(notifications, notification)
	}
	if err := result.Err(); err != nil {
		return nil, operr("collect notifications", err)
	}
	return notifications, nil
}
