package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Activity Operations
// ============================================================================

// RecordActivity appends one audit record. Activity nodes are never mutated
// or deleted; this write is durable on its own but deliberately outside any
// primary operation's transaction (callers treat it as best-effort).
func (r *Repository) RecordActivity(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		CREATE (a:Activity {
			id: $id,
			type: $type,
			action: $action,
			user_id: $userID,
			target_id: $targetID,
			target_type: $targetType,
			details: $details,
			timestamp: datetime($timestamp)
		})
	`, map[string]interface{}{
		"id":         a.ID,
		"type":       a.Type,
		"action":     a.Action,
		"userID":     a.UserID,
		"targetID":   a.TargetID,
		"targetType": a.TargetType,
		"details":    a.Details,
		"timestamp":  a.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return operr("record activity", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return operr("record activity", err)
	}
	return nil
}

// RecentActivities lists the newest audit records, up to limit
func (r *Repository) RecentActivities(ctx context.Context, limit int) ([]*Activity, error) {
	if limit < 1 {
		limit = 50
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Activity)
		RETURN a
		ORDER BY a.timestamp DESC
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, operr("recent activities", err)
	}
	return collectActivities(ctx, result)
}

// ActivitiesByUser lists one user's audit trail, newest first
func (r *Repository) ActivitiesByUser(ctx context.Context, userID string, limit int) ([]*Activity, error) {
	if limit < 1 {
		limit = 50
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Activity {user_id: $userID})
		RETURN a
		ORDER BY a.timestamp DESC
		LIMIT $limit
	`, map[string]interface{}{"userID": userID, "limit": limit})
	if err != nil {
		return nil, operr("activities by user", err)
	}
	return collectActivities(ctx, result)
}

func collectActivities(ctx context.Context, result neo4j.ResultWithContext) ([]*Activity, error) {
	activities := []*Activity{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "a")
		if !ok {
			continue
		}
		activity, err := activityFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	if err := result.Err(); err != nil {
		return nil, operr("collect activities", err)
	}
	return activities, nil
}
