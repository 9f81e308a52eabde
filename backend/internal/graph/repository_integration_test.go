package graph

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lokalhub/backend/pkg/apperr"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD, NEO4J_DATABASE to override the
// local defaults. Run with -short to skip.

func testRepository(t *testing.T) (*Repository, neo4j.DriverWithContext, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	uri := envOr("NEO4J_URI", "bolt://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	password := envOr("NEO4J_PASSWORD", "password")
	database := envOr("NEO4J_DATABASE", "neo4j")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	require.NoError(t, err)

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		t.Skipf("Neo4j not available at %s: %v", uri, err)
	}

	require.NoError(t, EnsureSchema(ctx, driver, database))

	t.Cleanup(func() { driver.Close(context.Background()) })
	return New(driver, database, 15*time.Second), driver, database
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// detachDelete removes test nodes by label and id on cleanup
func detachDelete(t *testing.T, driver neo4j.DriverWithContext, database, label string, ids ...string) {
	t.Helper()
	t.Cleanup(func() {
		ctx := context.Background()
		session := driver.NewSession(ctx, neo4j.SessionConfig{
			AccessMode:   neo4j.AccessModeWrite,
			DatabaseName: database,
		})
		defer session.Close(ctx)
		_, _ = session.Run(ctx,
			"MATCH (n:"+label+") WHERE n.id IN $ids DETACH DELETE n",
			map[string]interface{}{"ids": ids})
	})
}

func seedUser(t *testing.T, repo *Repository, driver neo4j.DriverWithContext, database, role string) *User {
	t.Helper()
	id := uuid.New().String()
	detachDelete(t, driver, database, "User", id)

	user, err := repo.UpsertUser(context.Background(), &User{
		ID:        id,
		Email:     id + "@test.local",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return user
}

func TestUpsertUser_Idempotent(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	id := uuid.New().String()
	detachDelete(t, driver, database, "User", id)

	u := &User{ID: id, Email: id + "@test.local", FirstName: "Ana", Role: RoleClient}

	first, err := repo.UpsertUser(ctx, u)
	require.NoError(t, err)
	second, err := repo.UpsertUser(ctx, u)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, first.Role, second.Role)

	// Exactly one node exists
	session := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	defer session.Close(ctx)
	result, err := session.Run(ctx,
		"MATCH (u:User {id: $id}) RETURN count(u) AS total",
		map[string]interface{}{"id": id})
	require.NoError(t, err)
	record, err := result.Single(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), int64FromRecord(record, "total"))
}

func TestUpsertUser_DuplicateEmail(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	first := seedUser(t, repo, driver, database, RoleClient)

	otherID := uuid.New().String()
	detachDelete(t, driver, database, "User", otherID)
	_, err := repo.UpsertUser(ctx, &User{
		ID:        otherID,
		Email:     first.Email,
		FirstName: "Copycat",
		Role:      RoleClient,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateConflict, apperr.KindOf(err))
}

func TestUpsertUser_AdminRoleRejected(t *testing.T) {
	repo, driver, database := testRepository(t)

	id := uuid.New().String()
	detachDelete(t, driver, database, "User", id)
	_, err := repo.UpsertUser(context.Background(), &User{
		ID:        id,
		Email:     id + "@test.local",
		FirstName: "Mallory",
		Role:      RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestCreateBusiness_RoleGate(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	seeker := seedUser(t, repo, driver, database, RoleJobSeeker)

	bizID := uuid.New().String()
	detachDelete(t, driver, database, "Business", bizID)
	_, err := repo.CreateBusiness(ctx, seeker.ID, &Business{ID: bizID, Name: "Not Allowed"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// No node was created
	_, err = repo.GetBusinessByID(ctx, bizID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateBusiness_OnePerOwner(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)

	first, err := repo.CreateBusiness(ctx, owner.ID, &Business{Name: "First Store", Category: "Retail"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", first.ID)

	secondID := uuid.New().String()
	detachDelete(t, driver, database, "Business", secondID)
	_, err = repo.CreateBusiness(ctx, owner.ID, &Business{ID: secondID, Name: "Second Store"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateConflict, apperr.KindOf(err))

	got, err := repo.GetBusinessByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestCreateBusiness_IDCollision(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	ownerA := seedUser(t, repo, driver, database, RoleBusinessOwner)
	ownerB := seedUser(t, repo, driver, database, RoleBusinessOwner)

	first, err := repo.CreateBusiness(ctx, ownerA.ID, &Business{Name: "Original"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", first.ID)

	// Reusing an existing business id must fail rather than attach a
	// second OWNS edge to the existing node
	_, err = repo.CreateBusiness(ctx, ownerB.ID, &Business{ID: first.ID, Name: "Usurper"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateConflict, apperr.KindOf(err))

	got, err := repo.GetBusinessByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Name)
	assert.Equal(t, ownerA.ID, got.OwnerID)
}

func TestCreateService_IDCollision(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	clientA := seedUser(t, repo, driver, database, RoleClient)
	clientB := seedUser(t, repo, driver, database, RoleClient)

	first, err := repo.CreateService(ctx, clientA.ID, &Service{Title: "Clean gutters"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Service", first.ID)

	_, err = repo.CreateService(ctx, clientB.ID, &Service{ID: first.ID, Title: "Stolen request"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateConflict, apperr.KindOf(err))

	got, err := repo.GetServiceByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clean gutters", got.Title)
	assert.Equal(t, clientA.ID, got.ClientID)
}

func TestUpsertJob_MissingBusiness(t *testing.T) {
	repo, driver, database := testRepository(t)

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)

	_, err := repo.UpsertJob(context.Background(), owner.ID, &Job{
		BusinessID: uuid.New().String(),
		Title:      "Ghost Job",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForeignKeyMissing, apperr.KindOf(err))
}

func TestUpsertJob_KeepsPostingBusiness(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	ownerA := seedUser(t, repo, driver, database, RoleBusinessOwner)
	ownerB := seedUser(t, repo, driver, database, RoleBusinessOwner)

	bizA, err := repo.CreateBusiness(ctx, ownerA.ID, &Business{Name: "Print Shop A"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", bizA.ID)
	bizB, err := repo.CreateBusiness(ctx, ownerB.ID, &Business{Name: "Print Shop B"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", bizB.ID)

	job, err := repo.UpsertJob(ctx, ownerA.ID, &Job{BusinessID: bizA.ID, Title: "Press Operator"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Job", job.ID)

	// A rival owner supplying the existing job id must not capture or
	// rewrite the posting
	_, err = repo.UpsertJob(ctx, ownerB.ID, &Job{
		ID:         job.ID,
		BusinessID: bizB.ID,
		Title:      "Hijacked",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	got, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Press Operator", got.Title)
	assert.Equal(t, bizA.ID, got.BusinessID)

	jobsB, err := repo.GetJobsByBusiness(ctx, bizB.ID)
	require.NoError(t, err)
	assert.Empty(t, jobsB)
}

func TestGetJobsByBusiness(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)
	business, err := repo.CreateBusiness(ctx, owner.ID, &Business{Name: "Bakery", Category: "Food"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", business.ID)

	job, err := repo.UpsertJob(ctx, owner.ID, &Job{
		BusinessID: business.ID,
		Title:      "Baker",
		JobType:    "full_time",
	})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Job", job.ID)

	jobs, err := repo.GetJobsByBusiness(ctx, business.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, business.ID, jobs[0].BusinessID)
}

func TestApplyToJob_Duplicate(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)
	seeker := seedUser(t, repo, driver, database, RoleJobSeeker)

	business, err := repo.CreateBusiness(ctx, owner.ID, &Business{Name: "Cafe"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", business.ID)

	job, err := repo.UpsertJob(ctx, owner.ID, &Job{BusinessID: business.ID, Title: "Barista"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Job", job.ID)

	app, err := repo.ApplyToJob(ctx, seeker.ID, job.ID, "I love coffee")
	require.NoError(t, err)
	detachDelete(t, driver, database, "Application", app.ID)
	assert.Equal(t, ApplicationPending, app.Status)

	_, err = repo.ApplyToJob(ctx, seeker.ID, job.ID, "second attempt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateConflict, apperr.KindOf(err))

	apps, err := repo.GetApplicationsByUser(ctx, seeker.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestUpdateApplicationStatus_Guards(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)
	seeker := seedUser(t, repo, driver, database, RoleJobSeeker)

	business, err := repo.CreateBusiness(ctx, owner.ID, &Business{Name: "Garage"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", business.ID)

	job, err := repo.UpsertJob(ctx, owner.ID, &Job{BusinessID: business.ID, Title: "Mechanic"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Job", job.ID)

	app, err := repo.ApplyToJob(ctx, seeker.ID, job.ID, "")
	require.NoError(t, err)
	detachDelete(t, driver, database, "Application", app.ID)

	// Unknown status
	err = repo.UpdateApplicationStatus(ctx, owner.ID, app.ID, "shortlisted", "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	// Applicant cannot accept their own application
	err = repo.UpdateApplicationStatus(ctx, seeker.ID, app.ID, ApplicationAccepted, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// Owner cannot withdraw on the applicant's behalf
	err = repo.UpdateApplicationStatus(ctx, owner.ID, app.ID, ApplicationWithdrawn, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// Owner accepts
	err = repo.UpdateApplicationStatus(ctx, owner.ID, app.ID, ApplicationAccepted, "Welcome aboard")
	require.NoError(t, err)

	got, err := repo.GetApplicationByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationAccepted, got.Status)
	assert.Equal(t, "Welcome aboard", got.Feedback)

	// Terminal states admit no further transition
	err = repo.UpdateApplicationStatus(ctx, owner.ID, app.ID, ApplicationRejected, "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

// The service-offer scenario: one service, two pending offers, one accept.
func TestAcceptOffer_Exclusivity(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	client := seedUser(t, repo, driver, database, RoleClient)
	offerA := seedUser(t, repo, driver, database, RoleJobSeeker)
	offerB := seedUser(t, repo, driver, database, RoleJobSeeker)

	service, err := repo.CreateService(ctx, client.ID, &Service{Title: "Fix leaky faucet", Category: "Repairs"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Service", service.ID)
	assert.Equal(t, ServiceOpen, service.Status)

	_, err = repo.SubmitOffer(ctx, offerA.ID, service.ID, "Tomorrow morning", "500")
	require.NoError(t, err)
	_, err = repo.SubmitOffer(ctx, offerB.ID, service.ID, "This weekend", "450")
	require.NoError(t, err)

	require.NoError(t, repo.AcceptOffer(ctx, client.ID, service.ID, offerA.ID))

	got, err := repo.GetServiceByID(ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, ServiceInProgress, got.Status)

	offers, err := repo.GetOffersByService(ctx, service.ID)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	statuses := map[string]string{}
	for _, o := range offers {
		statuses[o.OffererID] = o.Status
	}
	assert.Equal(t, OfferAccepted, statuses[offerA.ID])
	assert.Equal(t, OfferRejected, statuses[offerB.ID])

	// A second accept on the same service fails; never two accepted offers
	err = repo.AcceptOffer(ctx, client.ID, service.ID, offerB.ID)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestAcceptOffer_ConcurrentSingleWinner(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	client := seedUser(t, repo, driver, database, RoleClient)
	offerA := seedUser(t, repo, driver, database, RoleJobSeeker)
	offerB := seedUser(t, repo, driver, database, RoleJobSeeker)

	service, err := repo.CreateService(ctx, client.ID, &Service{Title: "Paint fence"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Service", service.ID)

	_, err = repo.SubmitOffer(ctx, offerA.ID, service.ID, "", "800")
	require.NoError(t, err)
	_, err = repo.SubmitOffer(ctx, offerB.ID, service.ID, "", "750")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, offerer := range []string{offerA.ID, offerB.ID} {
		i, offerer := i, offerer
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repo.AcceptOffer(ctx, client.ID, service.ID, offerer)
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one accept must fail")

	offers, err := repo.GetOffersByService(ctx, service.ID)
	require.NoError(t, err)
	accepted := 0
	for _, o := range offers {
		if o.Status == OfferAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one offer may be accepted")
}

func TestSubmitOffer_RoleGate(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	client := seedUser(t, repo, driver, database, RoleClient)
	otherClient := seedUser(t, repo, driver, database, RoleClient)

	service, err := repo.CreateService(ctx, client.ID, &Service{Title: "Walk my dog"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Service", service.ID)

	_, err = repo.SubmitOffer(ctx, otherClient.ID, service.ID, "", "100")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestCreateService_RoleGate(t *testing.T) {
	repo, driver, database := testRepository(t)

	seeker := seedUser(t, repo, driver, database, RoleJobSeeker)

	serviceID := uuid.New().String()
	detachDelete(t, driver, database, "Service", serviceID)
	_, err := repo.CreateService(context.Background(), seeker.ID, &Service{ID: serviceID, Title: "Nope"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSearch_FilterCompositionAndPagination(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	// A unique category keeps this run isolated from whatever else is in
	// the database.
	category := "cat-" + uuid.New().String()

	ownerIDs := make([]string, 3)
	for i := 0; i < 3; i++ {
		owner := seedUser(t, repo, driver, database, RoleBusinessOwner)
		ownerIDs[i] = owner.ID
	}

	locations := []string{"Davao", "Davao", "Cebu"}
	names := []string{"Lola's Carinderia", "Mang Ben Hardware", "Island Surf Shop"}
	for i := 0; i < 3; i++ {
		b, err := repo.CreateBusiness(ctx, ownerIDs[i], &Business{
			Name:     names[i],
			Category: category,
			Location: locations[i],
		})
		require.NoError(t, err)
		detachDelete(t, driver, database, "Business", b.ID)
	}

	// Category alone
	items, total, err := repo.SearchBusinesses(ctx, SearchFilters{Category: category}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)

	// Category AND location
	items, total, err = repo.SearchBusinesses(ctx, SearchFilters{Category: category, Location: "Davao"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	// Query containment, case-normalized
	items, total, err = repo.SearchBusinesses(ctx, SearchFilters{Category: category, Query: "carinderia"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Lola's Carinderia", items[0].Name)

	// Out-of-range page: empty slice, true total, no error
	items, total, err = repo.SearchBusinesses(ctx, SearchFilters{Category: category}, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, items)
}

func TestKeywordSearch_TokenOR(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	marker := "kw" + uuid.New().String()[:8]
	client := seedUser(t, repo, driver, database, RoleClient)

	service, err := repo.CreateService(ctx, client.ID, &Service{
		Title:    "Tutoring " + marker,
		Location: "Iloilo",
	})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Service", service.ID)

	// One matching token among several misses is enough
	hits, err := repo.KeywordSearch(ctx, KindService, "zzz-no-match "+marker)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, service.ID, hits[0].ID)
	assert.LessOrEqual(t, len(hits), 3)
}

func TestVerificationFlow(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	user := seedUser(t, repo, driver, database, RoleJobSeeker)

	// Resolution before submission is invalid
	admin := seedAdmin(t, repo, driver, database)
	err := repo.SetVerificationStatus(ctx, admin.ID, user.ID, VerificationVerified, "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	require.NoError(t, repo.SubmitVerificationDocuments(ctx, user.ID, "/docs/resume.pdf", "/docs/permit.pdf", "/docs/id.png"))

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationUnderway, got.VerificationStatus)

	// Non-admin cannot resolve
	err = repo.SetVerificationStatus(ctx, user.ID, user.ID, VerificationVerified, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// Rejection requires a reason
	err = repo.SetVerificationStatus(ctx, admin.ID, user.ID, VerificationRejected, "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	require.NoError(t, repo.SetVerificationStatus(ctx, admin.ID, user.ID, VerificationRejected, "permit expired"))

	got, err = repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationRejected, got.VerificationStatus)
	assert.Equal(t, "permit expired", got.RejectionReason)

	// Rejected users resubmit through the dedicated path
	require.NoError(t, repo.ResubmitVerification(ctx, user.ID, "/docs/resume.pdf", "/docs/permit2.pdf", "/docs/id.png"))

	got, err = repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationUnderway, got.VerificationStatus)
	assert.Empty(t, got.RejectionReason)
}

func TestNotificationInbox(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	user := seedUser(t, repo, driver, database, RoleClient)

	first, err := repo.CreateNotification(ctx, &Notification{
		UserID:  user.ID,
		Message: "Welcome to the marketplace",
		Type:    "welcome",
	})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Notification", first.ID)
	assert.Equal(t, NotificationUnread, first.Status)

	second, err := repo.CreateNotification(ctx, &Notification{
		UserID:  user.ID,
		Message: "Your offer was accepted",
		Type:    "offer_accepted",
	})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Notification", second.ID)

	unread, err := repo.UnreadNotificationCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkNotificationRead(ctx, user.ID, first.ID))

	unread, err = repo.UnreadNotificationCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	updated, err := repo.MarkAllNotificationsRead(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	// Notification for a missing user is a foreign key failure
	_, err = repo.CreateNotification(ctx, &Notification{UserID: uuid.New().String(), Message: "ghost"})
	assert.Equal(t, apperr.KindForeignKeyMissing, apperr.KindOf(err))
}

func TestRecordActivity_AppendOnly(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	user := seedUser(t, repo, driver, database, RoleClient)

	a := &Activity{
		Type:       "service",
		Action:     "create",
		UserID:     user.ID,
		TargetID:   "svc-1",
		TargetType: "Service",
	}
	require.NoError(t, repo.RecordActivity(ctx, a))
	detachDelete(t, driver, database, "Activity", a.ID)

	activities, err := repo.ActivitiesByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "create", activities[0].Action)
	assert.False(t, activities[0].Timestamp.IsZero())
}

func TestReviewLifecycle(t *testing.T) {
	repo, driver, database := testRepository(t)
	ctx := context.Background()

	owner := seedUser(t, repo, driver, database, RoleBusinessOwner)
	reviewer := seedUser(t, repo, driver, database, RoleClient)

	business, err := repo.CreateBusiness(ctx, owner.ID, &Business{Name: "Laundry Hub"})
	require.NoError(t, err)
	detachDelete(t, driver, database, "Business", business.ID)

	_, err = repo.CreateReview(ctx, reviewer.ID, business.ID, 6, "too good")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	review, err := repo.CreateReview(ctx, reviewer.ID, business.ID, 4, "fast service")
	require.NoError(t, err)
	detachDelete(t, driver, database, "Review", review.ID)

	reviews, err := repo.GetReviewsByBusiness(ctx, business.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)

	average, total, err := repo.BusinessAverageRating(ctx, business.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.InDelta(t, 4.0, average, 0.001)
}

// seedAdmin creates the bootstrap admin identity, replacing any previous one
func seedAdmin(t *testing.T, repo *Repository, driver neo4j.DriverWithContext, database string) *User {
	t.Helper()
	ctx := context.Background()

	// Clear a leftover bootstrap admin from a previous run
	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: database,
	})
	_, _ = session.Run(ctx, "MATCH (u:User {email: $email}) DETACH DELETE u",
		map[string]interface{}{"email": BootstrapAdminEmail})
	session.Close(ctx)

	id := uuid.New().String()
	detachDelete(t, driver, database, "User", id)
	admin, err := repo.UpsertUser(ctx, &User{
		ID:        id,
		Email:     BootstrapAdminEmail,
		FirstName: "Admin",
		Role:      RoleAdmin,
	})
	require.NoError(t, err)
	return admin
}
