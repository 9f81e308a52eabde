package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lokalhub/backend/pkg/apperr"
)

// ============================================================================
// User Operations
// ============================================================================

// UpsertUser creates a user or updates an existing one, keyed by id.
// Email uniqueness across distinct ids is checked in the same transaction.
// The role is fixed at creation; the admin role is only accepted for the
// bootstrap identity.
func (r *Repository) UpsertUser(ctx context.Context, u *User) (*User, error) {
	if !ValidRole(u.Role) {
		return nil, apperr.InvalidTransition("User", "unknown role: "+u.Role)
	}
	if u.Role == RoleAdmin && u.Email != BootstrapAdminEmail {
		return nil, apperr.Unauthorized("admin role cannot be assigned at registration")
	}
	if u.VerificationStatus == "" {
		u.VerificationStatus = VerificationPending
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		dup, err := tx.Run(ctx, `
			MATCH (other:User {email: $email})
			WHERE other.id <> $id
			RETURN other.id AS id
			LIMIT 1
		`, map[string]interface{}{"id": u.ID, "email": u.Email})
		if err != nil {
			return nil, err
		}
		if dup.Next(ctx) {
			return nil, apperr.DuplicateConflict("User", u.ID, "email already registered")
		}

		res, err := tx.Run(ctx, `
			MERGE (u:User {id: $id})
			ON CREATE SET
				u.email = $email,
				u.first_name = $firstName,
				u.last_name = $lastName,
				u.role = $role,
				u.verification_status = $verificationStatus,
				u.password_hash = $passwordHash,
				u.created_at = datetime($now)
			ON MATCH SET
				u.email = $email,
				u.first_name = $firstName,
				u.last_name = $lastName
			RETURN u
		`, map[string]interface{}{
			"id":                 u.ID,
			"email":              u.Email,
			"firstName":          u.FirstName,
			"lastName":           u.LastName,
			"role":               u.Role,
			"verificationStatus": u.VerificationStatus,
			"passwordHash":       u.PasswordHash,
			"now":                now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "u")
		if !ok {
			return nil, apperr.MalformedRecord("User", "u")
		}
		return userFromProps(node.Props)
	})
	if err != nil {
		return nil, operr("upsert user", err)
	}

	user := result.(*User)
	r.logger.Info("User upserted", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// GetUserByID retrieves a user by id
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $id})
		RETURN u
	`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, operr("get user", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get user", err)
		}
		return nil, apperr.NotFound("User", id)
	}

	node, ok := nodeFromRecord(result.Record(), "u")
	if !ok {
		return nil, apperr.MalformedRecord("User", "u")
	}
	return userFromProps(node.Props)
}

// GetUserByEmail retrieves a user by email (unique)
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {email: $email})
		RETURN u
		LIMIT 1
	`, map[string]interface{}{"email": email})
	if err != nil {
		return nil, operr("get user by email", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get user by email", err)
		}
		return nil, apperr.NotFound("User", email)
	}

	node, ok := nodeFromRecord(result.Record(), "u")
	if !ok {
		return nil, apperr.MalformedRecord("User", "u")
	}
	return userFromProps(node.Props)
}

// SubmitVerificationDocuments stores uploaded document references and moves
// the user into pending_verification. Only users that have never submitted
// may use this path; rejected users go through ResubmitVerification.
func (r *Repository) SubmitVerificationDocuments(ctx context.Context, userID, resumePath, permitPath, idDocumentPath string) error {
	return r.submitDocuments(ctx, userID, resumePath, permitPath, idDocumentPath, VerificationPending)
}

// ResubmitVerification lets a rejected user submit fresh documents. The
// rejection reason is cleared and the user returns to pending_verification.
func (r *Repository) ResubmitVerification(ctx context.Context, userID, resumePath, permitPath, idDocumentPath string) error {
	return r.submitDocuments(ctx, userID, resumePath, permitPath, idDocumentPath, VerificationRejected)
}

func (r *Repository) submitDocuments(ctx context.Context, userID, resumePath, permitPath, idDocumentPath, fromStatus string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $id})
			RETURN u.verification_status AS status
		`, map[string]interface{}{"id": userID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("User", userID))
		if err != nil {
			return nil, err
		}
		status := stringFromRecord(record, "status")
		if status == "" {
			status = VerificationPending
		}
		if status != fromStatus {
			return nil, apperr.InvalidTransition("User",
				"documents cannot be submitted while verification status is "+status)
		}

		_, err = tx.Run(ctx, `
			MATCH (u:User {id: $id})
			SET u.resume_path = $resumePath,
			    u.permit_path = $permitPath,
			    u.id_document_path = $idDocumentPath,
			    u.verification_status = $newStatus,
			    u.rejection_reason = null
		`, map[string]interface{}{
			"id":             userID,
			"resumePath":     resumePath,
			"permitPath":     permitPath,
			"idDocumentPath": idDocumentPath,
			"newStatus":      VerificationUnderway,
		})
		return nil, err
	})
	if err != nil {
		return operr("submit verification documents", err)
	}

	r.logger.Info("Verification documents submitted", zap.String("user_id", userID))
	return nil
}

// SetVerificationStatus resolves a pending verification. Only admins may
// call it; rejections must carry a reason.
func (r *Repository) SetVerificationStatus(ctx context.Context, adminID, userID, status, reason string) error {
	if status != VerificationVerified && status != VerificationRejected {
		return apperr.InvalidTransition("User", "unknown verification resolution: "+status)
	}
	if status == VerificationRejected && reason == "" {
		return apperr.InvalidTransition("User", "rejection requires a reason")
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := requireRole(ctx, tx, adminID, RoleAdmin); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $id})
			RETURN u.verification_status AS status
		`, map[string]interface{}{"id": userID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("User", userID))
		if err != nil {
			return nil, err
		}
		if stringFromRecord(record, "status") != VerificationUnderway {
			return nil, apperr.InvalidTransition("User", "user has no verification pending review")
		}

		_, err = tx.Run(ctx, `
			MATCH (u:User {id: $id})
			SET u.verification_status = $status,
			    u.rejection_reason = CASE WHEN $status = 'rejected' THEN $reason ELSE null END
		`, map[string]interface{}{
			"id":     userID,
			"status": status,
			"reason": reason,
		})
		return nil, err
	})
	if err != nil {
		return operr("set verification status", err)
	}

	r.logger.Info("Verification resolved",
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.String("admin_id", adminID),
	)
	return nil
}

// DeleteUser removes a user and all incident relationships. Admin only.
func (r *Repository) DeleteUser(ctx context.Context, adminID, userID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := requireRole(ctx, tx, adminID, RoleAdmin); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $id})
			DETACH DELETE u
			RETURN count(u) AS deleted
		`, map[string]interface{}{"id": userID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if int64FromRecord(record, "deleted") == 0 {
			return nil, apperr.NotFound("User", userID)
		}
		return nil, nil
	})
	if err != nil {
		return operr("delete user", err)
	}

	r.logger.Info("User deleted", zap.String("user_id", userID), zap.String("admin_id", adminID))
	return nil
}

// UsersByRole lists users holding a role, newest first
func (r *Repository) UsersByRole(ctx context.Context, role string) ([]*User, error) {
	if !ValidRole(role) {
		return nil, apperr.InvalidTransition("User", "unknown role: "+role)
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {role: $role})
		RETURN u
		ORDER BY u.created_at DESC
	`, map[string]interface{}{"role": role})
	if err != nil {
		return nil, operr("users by role", err)
	}
	return collectUsers(ctx, result)
}

// UsersPendingVerification lists users awaiting admin review, oldest first
func (r *Repository) UsersPendingVerification(ctx context.Context) ([]*User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {verification_status: $status})
		RETURN u
		ORDER BY u.created_at ASC
	`, map[string]interface{}{"status": VerificationUnderway})
	if err != nil {
		return nil, operr("users pending verification", err)
	}
	return collectUsers(ctx, result)
}

func collectUsers(ctx context.Context, result neo4j.ResultWithContext) ([]*User, error) {
	users := []*User{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "u")
		if !ok {
			continue
		}
		user, err := userFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := result.Err(); err != nil {
		return nil, operr("collect users", err)
	}
	return users, nil
}

// requireRole verifies inside the current transaction that the actor exists
// and holds the given role. Write paths call this themselves rather than
// trusting the route layer to have checked.
func requireRole(ctx context.Context, tx neo4j.ManagedTransaction, userID, role string) error {
	res, err := tx.Run(ctx, `
		MATCH (u:User {id: $id})
		RETURN u.role AS role
	`, map[string]interface{}{"id": userID})
	if err != nil {
		return err
	}
	record, err := singleOr(ctx, res, apperr.Unauthorized("acting user does not exist: "+userID))
	if err != nil {
		return err
	}
	if stringFromRecord(record, "role") != role {
		return apperr.Unauthorized("user " + userID + " does not hold role " + role)
	}
	return nil
}
