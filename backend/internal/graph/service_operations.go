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
// Service Request Operations
// ============================================================================

// CreateService posts a service request on behalf of a client and creates
// the REQUESTED_BY edge. Only client-role users may request services.
func (r *Repository) CreateService(ctx context.Context, clientID string, s *Service) (*Service, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = ServiceOpen
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		role, exists, err := fetchUserRole(ctx, tx, clientID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ForeignKeyMissing("User", clientID)
		}
		if role != RoleClient {
			return nil, apperr.Unauthorized("only clients may request services")
		}

		// A caller-supplied id must not collide with an existing service;
		// MERGE would bind that node and hang a second REQUESTED_BY edge
		// on it.
		taken, err := tx.Run(ctx, `
			MATCH (existing:Service {id: $id})
			RETURN existing.id AS id
		`, map[string]interface{}{"id": s.ID})
		if err != nil {
			return nil, err
		}
		if taken.Next(ctx) {
			return nil, apperr.DuplicateConflict("Service", s.ID, "service id already exists")
		}
		if err := taken.Err(); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (c:User {id: $clientID})
			MERGE (s:Service {id: $id})
			ON CREATE SET
				s.title = $title,
				s.description = $description,
				s.category = $category,
				s.budget = $budget,
				s.duration = $duration,
				s.location = $location,
				s.status = $status,
				s.created_at = datetime($now)
			MERGE (s)-[:REQUESTED_BY]->(c)
			RETURN s
		`, map[string]interface{}{
			"clientID":    clientID,
			"id":          s.ID,
			"title":       s.Title,
			"description": s.Description,
			"category":    s.Category,
			"budget":      s.Budget,
			"duration":    s.Duration,
			"location":    s.Location,
			"status":      s.Status,
			"now":         now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "s")
		if !ok {
			return nil, apperr.MalformedRecord("Service", "s")
		}
		service, err := serviceFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		service.ClientID = clientID
		return service, nil
	})
	if err != nil {
		return nil, operr("create service", err)
	}

	service := result.(*Service)
	r.logger.Info("Service request created",
		zap.String("service_id", service.ID),
		zap.String("client_id", clientID),
	)
	return service, nil
}

// GetServiceByID retrieves a service request with its client id
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*Service, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (s:Service {id: $id})
		OPTIONAL MATCH (s)-[:REQUESTED_BY]->(c:User)
		RETURN s, c.id AS client_id
	`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, operr("get service", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get service", err)
		}
		return nil, apperr.NotFound("Service", id)
	}

	record := result.Record()
	node, ok := nodeFromRecord(record, "s")
	if !ok {
		return nil, apperr.MalformedRecord("Service", "s")
	}
	service, err := serviceFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	service.ClientID = stringFromRecord(record, "client_id")
	return service, nil
}

// GetServicesByClient lists a client's service requests, newest first
func (r *Repository) GetServicesByClient(ctx context.Context, clientID string) ([]*Service, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (s:Service)-[:REQUESTED_BY]->(c:User {id: $clientID})
		RETURN s
		ORDER BY s.created_at DESC
	`, map[string]interface{}{"clientID": clientID})
	if err != nil {
		return nil, operr("services by client", err)
	}

	services := []*Service{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "s")
		if !ok {
			continue
		}
		service, err := serviceFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		service.ClientID = clientID
		services = append(services, service)
	}
	if err := result.Err(); err != nil {
		return nil, operr("services by client", err)
	}
	return services, nil
}

// SubmitOffer records a job seeker's offer on an open service as properties
// of the OFFERS edge. Re-submitting while the offer is still pending updates
// the proposal in place; a resolved offer cannot be replaced.
func (r *Repository) SubmitOffer(ctx context.Context, offererID, serviceID, proposal, price string) (*ServiceOffer, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		role, exists, err := fetchUserRole(ctx, tx, offererID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ForeignKeyMissing("User", offererID)
		}
		if role != RoleJobSeeker {
			return nil, apperr.Unauthorized("only job seekers may submit offers")
		}

		svc, err := tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})
			RETURN s.status AS status
		`, map[string]interface{}{"serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, svc, apperr.ForeignKeyMissing("Service", serviceID))
		if err != nil {
			return nil, err
		}
		if stringFromRecord(record, "status") != ServiceOpen {
			return nil, apperr.InvalidTransition("Service", "service is not open for offers")
		}

		existing, err := tx.Run(ctx, `
			MATCH (u:User {id: $offererID})-[o:OFFERS]->(s:Service {id: $serviceID})
			RETURN o.status AS status
		`, map[string]interface{}{"offererID": offererID, "serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		if existing.Next(ctx) {
			if stringFromRecord(existing.Record(), "status") != OfferPending {
				return nil, apperr.DuplicateConflict("ServiceOffer", serviceID,
					"offer has already been resolved")
			}
		}
		if err := existing.Err(); err != nil {
			return nil, err
		}

		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $offererID}), (s:Service {id: $serviceID})
			MERGE (u)-[o:OFFERS]->(s)
			ON CREATE SET
				o.status = $status,
				o.created_at = datetime($now)
			SET o.proposal = $proposal,
			    o.price = $price
			RETURN o
		`, map[string]interface{}{
			"offererID": offererID,
			"serviceID": serviceID,
			"status":    OfferPending,
			"proposal":  proposal,
			"price":     price,
			"now":       now,
		})
		if err != nil {
			return nil, err
		}
		record, err = res.Single(ctx)
		if err != nil {
			return nil, err
		}
		rel, ok := relationshipFromRecord(record, "o")
		if !ok {
			return nil, apperr.MalformedRecord("ServiceOffer", "o")
		}
		return offerFromProps(offererID, serviceID, rel.Props)
	})
	if err != nil {
		return nil, operr("submit offer", err)
	}

	offer := result.(*ServiceOffer)
	r.logger.Info("Offer submitted",
		zap.String("service_id", serviceID),
		zap.String("offerer_id", offererID),
	)
	return offer, nil
}

// GetOffersByService lists all offers on a service, newest first
func (r *Repository) GetOffersByService(ctx context.Context, serviceID string) ([]*ServiceOffer, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User)-[o:OFFERS]->(s:Service {id: $serviceID})
		RETURN o, u.id AS offerer_id
		ORDER BY o.created_at DESC
	`, map[string]interface{}{"serviceID": serviceID})
	if err != nil {
		return nil, operr("offers by service", err)
	}

	offers := []*ServiceOffer{}
	for result.Next(ctx) {
		record := result.Record()
		rel, ok := relationshipFromRecord(record, "o")
		if !ok {
			continue
		}
		offer, err := offerFromProps(stringFromRecord(record, "offerer_id"), serviceID, rel.Props)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	if err := result.Err(); err != nil {
		return nil, operr("offers by service", err)
	}
	return offers, nil
}

// AcceptOffer accepts one offer on an open service: the matching offer
// becomes accepted, every rival offer becomes rejected, and the service
// moves to in_progress. All three writes commit in one transaction.
//
// The first statement bumps a version property on the service node. That
// write takes the node's lock, so a concurrent accept blocks here until the
// winner commits and then observes status != open.
func (r *Repository) AcceptOffer(ctx context.Context, clientID, serviceID, offererID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})
			SET s.version = coalesce(s.version, 0) + 1
			WITH s
			OPTIONAL MATCH (s)-[:REQUESTED_BY]->(client:User)
			RETURN s.status AS status, client.id AS client_id
		`, map[string]interface{}{"serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("Service", serviceID))
		if err != nil {
			return nil, err
		}
		if stringFromRecord(record, "client_id") != clientID {
			return nil, apperr.Unauthorized("service was not requested by user " + clientID)
		}
		if status := stringFromRecord(record, "status"); status != ServiceOpen {
			return nil, apperr.InvalidTransition("Service", "service is already "+status)
		}

		match, err := tx.Run(ctx, `
			MATCH (u:User {id: $offererID})-[o:OFFERS]->(s:Service {id: $serviceID})
			WHERE o.status = $pending
			RETURN o
		`, map[string]interface{}{
			"offererID": offererID,
			"serviceID": serviceID,
			"pending":   OfferPending,
		})
		if err != nil {
			return nil, err
		}
		if _, err := singleOr(ctx, match, apperr.NotFound("ServiceOffer", offererID)); err != nil {
			return nil, err
		}

		_, err = tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})
			SET s.status = $inProgress
			WITH s
			MATCH (offerer:User)-[o:OFFERS]->(s)
			SET o.status = CASE WHEN offerer.id = $offererID THEN $accepted ELSE $rejected END
		`, map[string]interface{}{
			"serviceID":  serviceID,
			"offererID":  offererID,
			"inProgress": ServiceInProgress,
			"accepted":   OfferAccepted,
			"rejected":   OfferRejected,
		})
		return nil, err
	})
	if err != nil {
		return operr("accept offer", err)
	}

	r.logger.Info("Offer accepted",
		zap.String("service_id", serviceID),
		zap.String("offerer_id", offererID),
		zap.String("client_id", clientID),
	)
	return nil
}

// RejectOffer resolves a single pending offer as rejected without touching
// the service or any rival offer
func (r *Repository) RejectOffer(ctx context.Context, clientID, serviceID, offererID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})-[:REQUESTED_BY]->(client:User)
			RETURN client.id AS client_id
		`, map[string]interface{}{"serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("Service", serviceID))
		if err != nil {
			return nil, err
		}
		if stringFromRecord(record, "client_id") != clientID {
			return nil, apperr.Unauthorized("service was not requested by user " + clientID)
		}

		upd, err := tx.Run(ctx, `
			MATCH (u:User {id: $offererID})-[o:OFFERS]->(s:Service {id: $serviceID})
			WHERE o.status = $pending
			SET o.status = $rejected
			RETURN o
		`, map[string]interface{}{
			"offererID": offererID,
			"serviceID": serviceID,
			"pending":   OfferPending,
			"rejected":  OfferRejected,
		})
		if err != nil {
			return nil, err
		}
		if _, err := singleOr(ctx, upd, apperr.NotFound("ServiceOffer", offererID)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return operr("reject offer", err)
	}

	r.logger.Info("Offer rejected",
		zap.String("service_id", serviceID),
		zap.String("offerer_id", offererID),
	)
	return nil
}

// CloseService moves an in-progress service to closed. Client only.
func (r *Repository) CloseService(ctx context.Context, clientID, serviceID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})-[:REQUESTED_BY]->(client:User)
			RETURN s.status AS status, client.id AS client_id
		`, map[string]interface{}{"serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("Service", serviceID))
		if err != nil {
			return nil, err
		}
		if stringFromRecord(record, "client_id") != clientID {
			return nil, apperr.Unauthorized("service was not requested by user " + clientID)
		}
		if status := stringFromRecord(record, "status"); status != ServiceInProgress {
			return nil, apperr.InvalidTransition("Service", "only an in_progress service can be closed, got "+status)
		}

		_, err = tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})
			SET s.status = $closed
		`, map[string]interface{}{"serviceID": serviceID, "closed": ServiceClosed})
		return nil, err
	})
	if err != nil {
		return operr("close service", err)
	}

	r.logger.Info("Service closed", zap.String("service_id", serviceID))
	return nil
}

// DeleteService removes a service request and all incident relationships.
// Permitted to the requesting client or an admin.
func (r *Repository) DeleteService(ctx context.Context, actorID, serviceID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		role, exists, err := fetchUserRole(ctx, tx, actorID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.Unauthorized("acting user does not exist: " + actorID)
		}

		if role != RoleAdmin {
			requested, err := tx.Run(ctx, `
				MATCH (s:Service {id: $serviceID})-[:REQUESTED_BY]->(c:User {id: $actorID})
				RETURN s.id AS id
			`, map[string]interface{}{"serviceID": serviceID, "actorID": actorID})
			if err != nil {
				return nil, err
			}
			if !requested.Next(ctx) {
				if err := requested.Err(); err != nil {
					return nil, err
				}
				return nil, apperr.Unauthorized("service was not requested by user " + actorID)
			}
		}

		res, err := tx.Run(ctx, `
			MATCH (s:Service {id: $serviceID})
			DETACH DELETE s
			RETURN count(s) AS deleted
		`, map[string]interface{}{"serviceID": serviceID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if int64FromRecord(record, "deleted") == 0 {
			return nil, apperr.NotFound("Service", serviceID)
		}
		return nil, nil
	})
	if err != nil {
		return operr("delete service", err)
	}

	r.logger.Info("Service deleted", zap.String("service_id", serviceID), zap.String("actor_id", actorID))
	return nil
}
