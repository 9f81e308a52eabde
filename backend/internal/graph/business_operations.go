package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lokalhub/backend/pkg/apperr"
)

// ============================================================================
// Business Operations
// ============================================================================

// CreateBusiness registers a business owned by ownerID and creates the OWNS
// edge. The owner must exist, hold the business_owner role, and not already
// own a business.
func (r *Repository) CreateBusiness(ctx context.Context, ownerID string, b *Business) (*Business, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		role, exists, err := fetchUserRole(ctx, tx, ownerID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ForeignKeyMissing("User", ownerID)
		}
		if role != RoleBusinessOwner {
			return nil, apperr.Unauthorized("only business owners may register a business")
		}

		owned, err := tx.Run(ctx, `
			MATCH (o:User {id: $ownerID})-[:OWNS]->(existing:Business)
			RETURN existing.id AS id
			LIMIT 1
		`, map[string]interface{}{"ownerID": ownerID})
		if err != nil {
			return nil, err
		}
		if owned.Next(ctx) {
			return nil, apperr.DuplicateConflict("Business", b.ID, "owner already has a registered business")
		}
		if err := owned.Err(); err != nil {
			return nil, err
		}

		// A caller-supplied id must not collide with an existing business;
		// MERGE would bind that node and hang a second OWNS edge on it.
		taken, err := tx.Run(ctx, `
			MATCH (existing:Business {id: $id})
			RETURN existing.id AS id
		`, map[string]interface{}{"id": b.ID})
		if err != nil {
			return nil, err
		}
		if taken.Next(ctx) {
			return nil, apperr.DuplicateConflict("Business", b.ID, "business id already exists")
		}
		if err := taken.Err(); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (o:User {id: $ownerID})
			MERGE (b:Business {id: $id})
			ON CREATE SET
				b.name = $name,
				b.description = $description,
				b.category = $category,
				b.location = $location,
				b.latitude = $latitude,
				b.longitude = $longitude,
				b.phone = $phone,
				b.email = $email,
				b.website = $website,
				b.created_at = datetime($now)
			MERGE (o)-[:OWNS]->(b)
			RETURN b
		`, map[string]interface{}{
			"ownerID":     ownerID,
			"id":          b.ID,
			"name":        b.Name,
			"description": b.Description,
			"category":    b.Category,
			"location":    b.Location,
			"latitude":    b.Latitude,
			"longitude":   b.Longitude,
			"phone":       b.Phone,
			"email":       b.Email,
			"website":     b.Website,
			"now":         now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "b")
		if !ok {
			return nil, apperr.MalformedRecord("Business", "b")
		}
		business, err := businessFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		business.OwnerID = ownerID
		return business, nil
	})
	if err != nil {
		return nil, operr("create business", err)
	}

	business := result.(*Business)
	r.logger.Info("Business created",
		zap.String("business_id", business.ID),
		zap.String("owner_id", ownerID),
	)
	return business, nil
}

// GetBusinessByID retrieves a business with its owner id
func (r *Repository) GetBusinessByID(ctx context.Context, id string) (*Business, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (b:Business {id: $id})
		OPTIONAL MATCH (o:User)-[:OWNS]->(b)
		RETURN b, o.id AS owner_id
	`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, operr("get business", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get business", err)
		}
		return nil, apperr.NotFound("Business", id)
	}

	record := result.Record()
	node, ok := nodeFromRecord(record, "b")
	if !ok {
		return nil, apperr.MalformedRecord("Business", "b")
	}
	business, err := businessFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	business.OwnerID = stringFromRecord(record, "owner_id")
	return business, nil
}

// GetBusinessByOwner retrieves the business owned by a user
func (r *Repository) GetBusinessByOwner(ctx context.Context, ownerID string) (*Business, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (o:User {id: $ownerID})-[:OWNS]->(b:Business)
		RETURN b
		LIMIT 1
	`, map[string]interface{}{"ownerID": ownerID})
	if err != nil {
		return nil, operr("get business by owner", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get business by owner", err)
		}
		return nil, apperr.NotFound("Business", "owner:"+ownerID)
	}

	node, ok := nodeFromRecord(result.Record(), "b")
	if !ok {
		return nil, apperr.MalformedRecord("Business", "b")
	}
	business, err := businessFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	business.OwnerID = ownerID
	return business, nil
}

// UpdateBusiness overwrites the named profile fields of a business the
// caller owns. Identity and ownership are not touched.
func (r *Repository) UpdateBusiness(ctx context.Context, ownerID string, b *Business) (*Business, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (o:User {id: $ownerID})-[:OWNS]->(b:Business {id: $id})
			SET b.name = $name,
			    b.description = $description,
			    b.category = $category,
			    b.location = $location,
			    b.latitude = $latitude,
			    b.longitude = $longitude,
			    b.phone = $phone,
			    b.email = $email,
			    b.website = $website
			RETURN b
		`, map[string]interface{}{
			"ownerID":     ownerID,
			"id":          b.ID,
			"name":        b.Name,
			"description": b.Description,
			"category":    b.Category,
			"location":    b.Location,
			"latitude":    b.Latitude,
			"longitude":   b.Longitude,
			"phone":       b.Phone,
			"email":       b.Email,
			"website":     b.Website,
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			// Distinguish a missing business from someone else's business
			check, cerr := tx.Run(ctx, `
				MATCH (b:Business {id: $id}) RETURN b.id AS id
			`, map[string]interface{}{"id": b.ID})
			if cerr != nil {
				return nil, cerr
			}
			if check.Next(ctx) {
				return nil, apperr.Unauthorized("business is not owned by user " + ownerID)
			}
			if err := check.Err(); err != nil {
				return nil, err
			}
			return nil, apperr.NotFound("Business", b.ID)
		}
		record := res.Record()
		node, ok := nodeFromRecord(record, "b")
		if !ok {
			return nil, apperr.MalformedRecord("Business", "b")
		}
		business, err := businessFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		business.OwnerID = ownerID
		return business, nil
	})
	if err != nil {
		return nil, operr("update business", err)
	}

	return result.(*Business), nil
}

// fetchUserRole returns the role of a user and whether the user exists
func fetchUserRole(ctx context.Context, tx neo4j.ManagedTransaction, userID string) (string, bool, error) {
	res, err := tx.Run(ctx, `
		MATCH (u:User {id: $id})
		RETURN u.role AS role
	`, map[string]interface{}{"id": userID})
	if err != nil {
		return "", false, err
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return stringFromRecord(res.Record(), "role"), true, nil
}
