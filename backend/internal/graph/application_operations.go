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
// Application Operations
// ============================================================================

// ApplyToJob creates an application linking a job seeker to a posting.
// Applying twice for the same (user, job) pair is rejected as a duplicate;
// the first application stands.
func (r *Repository) ApplyToJob(ctx context.Context, userID, jobID, coverLetter string) (*Application, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	appID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		role, exists, err := fetchUserRole(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.ForeignKeyMissing("User", userID)
		}
		if role != RoleJobSeeker {
			return nil, apperr.Unauthorized("only job seekers may apply to jobs")
		}

		jobRes, err := tx.Run(ctx, `
			MATCH (j:Job {id: $jobID})
			RETURN j.id AS id
		`, map[string]interface{}{"jobID": jobID})
		if err != nil {
			return nil, err
		}
		if _, err := singleOr(ctx, jobRes, apperr.ForeignKeyMissing("Job", jobID)); err != nil {
			return nil, err
		}

		dup, err := tx.Run(ctx, `
			MATCH (u:User {id: $userID})-[:APPLIED_TO]->(a:Application)-[:FOR_JOB]->(j:Job {id: $jobID})
			RETURN a.id AS id
			LIMIT 1
		`, map[string]interface{}{"userID": userID, "jobID": jobID})
		if err != nil {
			return nil, err
		}
		if dup.Next(ctx) {
			return nil, apperr.DuplicateConflict("Application",
				stringFromRecord(dup.Record(), "id"), "user has already applied to this job")
		}

		res, err := tx.Run(ctx, `
			MATCH (u:User {id: $userID}), (j:Job {id: $jobID})
			CREATE (a:Application {
				id: $appID,
				status: $status,
				cover_letter: $coverLetter,
				date_applied: datetime($now)
			})
			CREATE (u)-[:APPLIED_TO]->(a)
			CREATE (a)-[:FOR_JOB]->(j)
			RETURN a
		`, map[string]interface{}{
			"userID":      userID,
			"jobID":       jobID,
			"appID":       appID,
			"status":      ApplicationPending,
			"coverLetter": coverLetter,
			"now":         now,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		node, ok := nodeFromRecord(record, "a")
		if !ok {
			return nil, apperr.MalformedRecord("Application", "a")
		}
		app, err := applicationFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		app.ApplicantID = userID
		app.JobID = jobID
		return app, nil
	})
	if err != nil {
		return nil, operr("apply to job", err)
	}

	app := result.(*Application)
	r.logger.Info("Application created",
		zap.String("application_id", app.ID),
		zap.String("user_id", userID),
		zap.String("job_id", jobID),
	)
	return app, nil
}

// GetApplicationByID retrieves an application with its applicant and job ids
func (r *Repository) GetApplicationByID(ctx context.Context, id string) (*Application, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (a:Application {id: $id})
		OPTIONAL MATCH (u:User)-[:APPLIED_TO]->(a)
		OPTIONAL MATCH (a)-[:FOR_JOB]->(j:Job)
		RETURN a, u.id AS applicant_id, j.id AS job_id
	`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, operr("get application", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, operr("get application", err)
		}
		return nil, apperr.NotFound("Application", id)
	}

	record := result.Record()
	node, ok := nodeFromRecord(record, "a")
	if !ok {
		return nil, apperr.MalformedRecord("Application", "a")
	}
	app, err := applicationFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	app.ApplicantID = stringFromRecord(record, "applicant_id")
	app.JobID = stringFromRecord(record, "job_id")
	return app, nil
}

// GetApplicationsByJob lists applications for a posting, newest first.
// Only the owner of the posting business may list them.
func (r *Repository) GetApplicationsByJob(ctx context.Context, ownerID, jobID string) ([]*Application, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	owned, err := session.Run(ctx, `
		MATCH (o:User {id: $ownerID})-[:OWNS]->(:Business)-[:POSTED]->(j:Job {id: $jobID})
		RETURN j.id AS id
	`, map[string]interface{}{"ownerID": ownerID, "jobID": jobID})
	if err != nil {
		return nil, operr("applications by job", err)
	}
	if !owned.Next(ctx) {
		if err := owned.Err(); err != nil {
			return nil, operr("applications by job", err)
		}
		return nil, apperr.Unauthorized("job is not posted by a business owned by user " + ownerID)
	}

	result, err := session.Run(ctx, `
		MATCH (u:User)-[:APPLIED_TO]->(a:Application)-[:FOR_JOB]->(j:Job {id: $jobID})
		RETURN a, u.id AS applicant_id
		ORDER BY a.date_applied DESC
	`, map[string]interface{}{"jobID": jobID})
	if err != nil {
		return nil, operr("applications by job", err)
	}
	return collectApplications(ctx, result, "", jobID)
}

// GetApplicationsByUser lists a job seeker's applications, newest first
func (r *Repository) GetApplicationsByUser(ctx context.Context, userID string) ([]*Application, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (u:User {id: $userID})-[:APPLIED_TO]->(a:Application)
		OPTIONAL MATCH (a)-[:FOR_JOB]->(j:Job)
		RETURN a, j.id AS job_id
		ORDER BY a.date_applied DESC
	`, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, operr("applications by user", err)
	}
	return collectApplications(ctx, result, userID, "")
}

func collectApplications(ctx context.Context, result neo4j.ResultWithContext, applicantID, jobID string) ([]*Application, error) {
	apps := []*Application{}
	for result.Next(ctx) {
		record := result.Record()
		node, ok := nodeFromRecord(record, "a")
		if !ok {
			continue
		}
		app, err := applicationFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		app.ApplicantID = applicantID
		app.JobID = jobID
		if applicantID == "" {
			app.ApplicantID = stringFromRecord(record, "applicant_id")
		}
		if jobID == "" {
			app.JobID = stringFromRecord(record, "job_id")
		}
		apps = append(apps, app)
	}
	if err := result.Err(); err != nil {
		return nil, operr("collect applications", err)
	}
	return apps, nil
}

// UpdateApplicationStatus performs a guarded status transition. The status
// must be a known value, terminal states admit no further transition, the
// applicant may only withdraw, and the owner of the posting business decides
// everything else.
func (r *Repository) UpdateApplicationStatus(ctx context.Context, actorID, applicationID, status, feedback string) error {
	if !KnownApplicationStatus(status) {
		return apperr.InvalidTransition("Application", "unknown status: "+status)
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Application {id: $id})
			OPTIONAL MATCH (applicant:User)-[:APPLIED_TO]->(a)
			OPTIONAL MATCH (a)-[:FOR_JOB]->(:Job)<-[:POSTED]-(:Business)<-[:OWNS]-(owner:User)
			RETURN a.status AS status, applicant.id AS applicant_id, owner.id AS owner_id
		`, map[string]interface{}{"id": applicationID})
		if err != nil {
			return nil, err
		}
		record, err := singleOr(ctx, res, apperr.NotFound("Application", applicationID))
		if err != nil {
			return nil, err
		}

		current := stringFromRecord(record, "status")
		applicantID := stringFromRecord(record, "applicant_id")
		ownerID := stringFromRecord(record, "owner_id")

		if TerminalApplicationStatus(current) {
			return nil, apperr.InvalidTransition("Application",
				"application is already "+current)
		}

		switch status {
		case ApplicationWithdrawn:
			if actorID != applicantID {
				return nil, apperr.Unauthorized("only the applicant may withdraw an application")
			}
		default:
			if actorID != ownerID {
				return nil, apperr.Unauthorized("only the posting business owner may update an application")
			}
		}

		_, err = tx.Run(ctx, `
			MATCH (a:Application {id: $id})
			SET a.status = $status,
			    a.feedback = $feedback
		`, map[string]interface{}{
			"id":       applicationID,
			"status":   status,
			"feedback": feedback,
		})
		return nil, err
	})
	if err != nil {
		return operr("update application status", err)
	}

	r.logger.Info("Application status updated",
		zap.String("application_id", applicationID),
		zap.String("status", status),
		zap.String("actor_id", actorID),
	)
	return nil
}
