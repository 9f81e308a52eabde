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
// Job Operations
// ============================================================================

// UpsertJob creates or updates a job posting, keyed by id. The posting
// business must exist (checked in the same transaction, never a silent
// no-op) and be owned by the caller. The POSTED edge is created with the
// node.
func (r *Repository) UpsertJob(ctx context.Context, ownerID string, job *Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Requirements == nil {
		job.Requirements = []string{}
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (b:Business {id: $businessID})
			OPTIONAL MATCH (o:User {id: $ownerID})-[:OWNS]->(b)
			RETURN b.id AS business_id, o.id AS owner_id
		`, map[string]interface{}{
			"businessID": job.BusinessID,
			"ownerID":    ownerID,
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, apperr.ForeignKeyMissing("Business", job.BusinessID)
		}
		if stringFromRecord(res.Record(), "owner_id") == "" {
			return nil, apperr.Unauthorized("business is not owned by user " + ownerID)
		}

		// An existing job stays with its posting business. Without this
		// check the MERGE below would match a job posted elsewhere, rewrite
		// it, and attach a second POSTED edge.
		posted, err := tx.Run(ctx, `
			MATCH (p:Business)-[:POSTED]->(j:Job {id: $id})
			RETURN p.id AS poster_id
		`, map[string]interface{}{"id": job.ID})
		if err != nil {
			return nil, err
		}
		if posted.Next(ctx) {
			if stringFromRecord(posted.Record(), "poster_id") != job.BusinessID {
				return nil, apperr.Unauthorized("job is posted by another business")
			}
		}
		if err := posted.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(ctx, `
			MATCH (b:Business {id: $businessID})
			MERGE (j:Job {id: $id})
			ON CREATE SET
				j.title = $title,
				j.description = $description,
				j.requirements = $requirements,
				j.location = $location,
				j.latitude = $latitude,
				j.longitude = $longitude,
				j.salary = $salary,
				j.job_type = $jobType,
				j.created_at = datetime($now)
			ON MATCH SET
				j.title = $title,
				j.description = $description,
				j.requirements = $requirements,
				j.location = $location,
				j.latitude = $latitude,
				j.longitude = $longitude,
				j.salary = $salary,
				j.job_type = $jobType
			MERGE (b)-[:POSTED]->(j)
			RETURN j
		`, map[string]interface{}{
			"businessID":   job.BusinessID,
			"id":           job.ID,
			"title":        job.Title,
			"description":  job.Description,
			"requirements": job.Requirements,
			"location":     job.Location,
			"latitude":     job.Latitude,
			"longitude":    job.Longitude,
			"salary":       job.Salary,
			"jobType":      job.JobType,
			"now":          now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "j")
		if !ok {
			return nil, apperr.MalformedRecord("Job", "j")
		}
		decoded, err := jobFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		decoded.BusinessID = job.BusinessID
		return decoded, nil
	})
	if err != nil {
		return nil, operr("upsert job", err)
	}

	j := result.(*Job)
	r.logger.Info("Job upserted",
		zap.String("job_id", j.ID),
		zap.String("business_id", j.BusinessID),
	)
	return j, nil
}

// GetJobByID retrieves a job with its posting business id
func (r *Repository) GetJobByID(ctx context.Context, id string) (*Job, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (j:Job {id: $id})
		OPTIONAL MATCH (b:Business)-[:POSTED]->(j)
		RETURN j, b.id AS business_id
	`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, operr("get job", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get job", err)
		}
		return nil, apperr.NotFound("Job", id)
	}

	record := result.Record()
	node, ok := nodeFromRecord(record, "j")
	if !ok {
		return nil, apperr.MalformedRecord("Job", "j")
	}
	job, err := jobFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	job.BusinessID = stringFromRecord(record, "business_id")
	return job, nil
}

// GetJobsByBusiness lists a business's postings, newest first
func (r *Repository) GetJobsByBusiness(ctx context.Context, businessID string) ([]*Job, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (b:Business {id: $businessID})-[:POSTED]->(j:Job)
		RETURN j
		ORDER BY j.created_at DESC
	`, map[string]interface{}{"businessID": businessID})
	if err != nil {
		return nil, operr("jobs by business", err)
	}

	jobs := []*Job{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "j")
		if !ok {
			continue
		}
		job, err := jobFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		job.BusinessID = businessID
		jobs = append(jobs, job)
	}
	if err := result.Err(); err != nil {
		return nil, operr("jobs by business", err)
	}
	return jobs, nil
}

// DeleteJob removes a posting and all incident relationships. Permitted to
// the owner of the posting business or an admin.
func (r *Repository) DeleteJob(ctx context.Context, actorID, jobID string) error {
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
			owned, err := tx.Run(ctx, `
				MATCH (o:User {id: $actorID})-[:OWNS]->(:Business)-[:POSTED]->(j:Job {id: $jobID})
				RETURN j.id AS id
			`, map[string]interface{}{"actorID": actorID, "jobID": jobID})
			if err != nil {
				return nil, err
			}
			if !owned.Next(ctx) {
				if err := owned.Err(); err != nil {
					return nil, err
				}
				return nil, apperr.Unauthorized("job is not posted by a business owned by user " + actorID)
			}
		}

		res, err := tx.Run(ctx, `
			MATCH (j:Job {id: $jobID})
			DETACH DELETE j
			RETURN count(j) AS deleted
		`, map[string]interface{}{"jobID": jobID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if int64FromRecord(record, "deleted") == 0 {
			return nil, apperr.NotFound("Job", jobID)
		}
		return nil, nil
	})
	if err != nil {
		return operr("delete job", err)
	}

	r.logger.Info("Job deleted", zap.String("job_id", jobID), zap.String("actor_id", actorID))
	return nil
}
