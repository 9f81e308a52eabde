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
// Review Operations
// ============================================================================

// CreateReview records a user's review of a business with WROTE and FOR
// edges. Ratings are 1 through 5.
func (r *Repository) CreateReview(ctx context.Context, authorID, businessID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.InvalidTransition("Review", "rating must be between 1 and 5")
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	reviewID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, exists, err := fetchUserRole(ctx, tx, authorID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ForeignKeyMissing("User", authorID)
		}

		biz, err := tx.Run(ctx, `
			MATCH (b:Business {id: $businessID})
			RETURN b.id AS id
		`, map[string]interface{}{"businessID": businessID})
		if err != nil {
			return nil, err
		}
		if _, err := singleOr(ctx, biz, apperr.ForeignKeyMissing("Business", businessID)); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $authorID}), (b:Business {id: $businessID})
			CREATE (rv:Review {
				id: $id,
				rating: $rating,
				comment: $comment,
				created_at: datetime($now)
			})
			CREATE (u)-[:WROTE]->(rv)
			CREATE (rv)-[:FOR]->(b)
			RETURN rv
		`, map[string]interface{}{
			"authorID":   authorID,
			"businessID": businessID,
			"id":         reviewID,
			"rating":     rating,
			"comment":    comment,
			"now":        now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "rv")
		if !ok {
			return nil, apperr.MalformedRecord("Review", "rv")
		}
		review, err := reviewFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		review.AuthorID = authorID
		review.BusinessID = businessID
		return review, nil
	})
	if err != nil {
		return nil, operr("create review", err)
	}

	review := result.(*Review)
	r.logger.Info("Review created",
		zap.String("review_id", review.ID),
		zap.String("business_id", businessID),
		zap.Int("rating", rating),
	)
	return review, nil
}

// GetReviewsByBusiness lists a business's reviews, newest first
func (r *Repository) GetReviewsByBusiness(ctx context.Context, businessID string) ([]*Review, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User)-[:WROTE]->(rv:Review)-[:FOR]->(b:Business {id: $businessID})
		RETURN rv, u.id AS author_id
		ORDER BY rv.created_at DESC
	`, map[string]interface{}{"businessID": businessID})
	if err != nil {
		return nil, operr("reviews by business", err)
	}

	reviews := []*Review{}
	for result.Next(ctx) {
		record := result.Record()
		node, ok := nodeFromRecord(record, "rv")
		if !ok {
			continue
		}
		review, err := reviewFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		review.AuthorID = stringFromRecord(record, "author_id")
		review.BusinessID = businessID
		reviews = append(reviews, review)
	}
	if err := result.Err(); err != nil {
		return nil, operr("reviews by business", err)
	}
	return reviews, nil
}

// BusinessAverageRating returns the average rating of a business and the
// number of reviews behind it. A business with no reviews averages zero.
func (r *Repository) BusinessAverageRating(ctx context.Context, businessID string) (float64, int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (b:Business {id: $businessID})
		OPTIONAL MATCH (rv:Review)-[:FOR]->(b)
		RETURN coalesce(avg(rv.rating), 0.0) AS average, count(rv) AS total
	`, map[string]interface{}{"businessID": businessID})
	if err != nil {
		return 0, 0, operr("business average rating", err)
	}

	record, err := singleOr(ctx, result, apperr.NotFound("Business", businessID))
	if err != nil {
		return 0, 0, operr("business average rating", err)
	}
	return float64FromRecord(record, "average"), int64FromRecord(record, "total"), nil
}
