package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lokalhub/backend/internal/graph"
	"lokalhub/backend/internal/recorder"
)

// The route layer stays thin: it validates input shape, delegates to the
// repository (which owns role and ownership checks), maps typed errors to
// statuses, and fires best-effort side effects through the recorder.

func registerUserRoutes(api *gin.RouterGroup, repo *graph.Repository, rec *recorder.Recorder) {
	api.POST("/users", func(c *gin.Context) {
		var req struct {
			ID           string `json:"id" binding:"required"`
			Email        string `json:"email" binding:"required"`
			FirstName    string `json:"first_name" binding:"required"`
			LastName     string `json:"last_name"`
			Role         string `json:"role" binding:"required"`
			PasswordHash string `json:"password_hash"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := repo.UpsertUser(c.Request.Context(), &graph.User{
			ID:           req.ID,
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Role:         req.Role,
			PasswordHash: req.PasswordHash,
		})
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("user", "upsert", user.ID, user.ID, "User", "")
		c.JSON(http.StatusOK, user)
	})

	api.GET("/users/:id", func(c *gin.Context) {
		user, err := repo.GetUserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	})

	api.POST("/users/:id/documents", func(c *gin.Context) {
		var req struct {
			ResumePath     string `json:"resume_path"`
			PermitPath     string `json:"permit_path"`
			IDDocumentPath string `json:"id_document_path"`
			Resubmission   bool   `json:"resubmission"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userID := c.Param("id")
		var err error
		if req.Resubmission {
			err = repo.ResubmitVerification(c.Request.Context(), userID, req.ResumePath, req.PermitPath, req.IDDocumentPath)
		} else {
			err = repo.SubmitVerificationDocuments(c.Request.Context(), userID, req.ResumePath, req.PermitPath, req.IDDocumentPath)
		}
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("user", "submit_documents", userID, userID, "User", "")
		c.JSON(http.StatusOK, gin.H{"status": graph.VerificationUnderway})
	})

	api.POST("/admin/:adminId/users/:id/verification", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		adminID, userID := c.Param("adminId"), c.Param("id")
		if err := repo.SetVerificationStatus(c.Request.Context(), adminID, userID, req.Status, req.Reason); err != nil {
			fail(c, err)
			return
		}

		rec.Activity("admin", "verification_"+req.Status, adminID, userID, "User", req.Reason)
		rec.Notify(userID, "Your verification was "+req.Status, "verification", "/profile")
		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	})

	api.DELETE("/admin/:adminId/users/:id", func(c *gin.Context) {
		adminID, userID := c.Param("adminId"), c.Param("id")
		if err := repo.DeleteUser(c.Request.Context(), adminID, userID); err != nil {
			fail(c, err)
			return
		}
		rec.Activity("admin", "delete_user", adminID, userID, "User", "")
		c.JSON(http.StatusOK, gin.H{"deleted": userID})
	})

	api.GET("/admin/:adminId/verifications", func(c *gin.Context) {
		// Listing is read-only; the admin gate lives on the resolution write
		users, err := repo.UsersPendingVerification(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	})
}

func registerBusinessRoutes(api *gin.RouterGroup, repo *graph.Repository, rec *recorder.Recorder) {
	api.POST("/businesses", func(c *gin.Context) {
		var req struct {
			OwnerID     string  `json:"owner_id" binding:"required"`
			Name        string  `json:"name" binding:"required"`
			Description string  `json:"description"`
			Category    string  `json:"category"`
			Location    string  `json:"location"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
			Phone       string  `json:"phone"`
			Email       string  `json:"email"`
			Website     string  `json:"website"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		business, err := repo.CreateBusiness(c.Request.Context(), req.OwnerID, &graph.Business{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Location:    req.Location,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
			Phone:       req.Phone,
			Email:       req.Email,
			Website:     req.Website,
		})
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("business", "create", req.OwnerID, business.ID, "Business", business.Name)
		c.JSON(http.StatusOK, business)
	})

	api.GET("/businesses/:id", func(c *gin.Context) {
		business, err := repo.GetBusinessByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, business)
	})

	api.GET("/businesses/:id/reviews", func(c *gin.Context) {
		businessID := c.Param("id")
		reviews, err := repo.GetReviewsByBusiness(c.Request.Context(), businessID)
		if err != nil {
			fail(c, err)
			return
		}
		average, total, err := repo.BusinessAverageRating(c.Request.Context(), businessID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reviews": reviews, "average_rating": average, "total": total})
	})

	api.POST("/businesses/:id/reviews", func(c *gin.Context) {
		var req struct {
			AuthorID string `json:"author_id" binding:"required"`
			Rating   int    `json:"rating" binding:"required"`
			Comment  string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		review, err := repo.CreateReview(c.Request.Context(), req.AuthorID, c.Param("id"), req.Rating, req.Comment)
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("review", "create", req.AuthorID, review.ID, "Review", "")
		c.JSON(http.StatusOK, review)
	})
}

func registerJobRoutes(api *gin.RouterGroup, repo *graph.Repository, rec *recorder.Recorder) {
	api.POST("/jobs", func(c *gin.Context) {
		var req struct {
			OwnerID      string   `json:"owner_id" binding:"required"`
			BusinessID   string   `json:"business_id" binding:"required"`
			ID           string   `json:"id"`
			Title        string   `json:"title" binding:"required"`
			Description  string   `json:"description"`
			Requirements []string `json:"requirements"`
			Location     string   `json:"location"`
			Latitude     float64  `json:"latitude"`
			Longitude    float64  `json:"longitude"`
			Salary       string   `json:"salary"`
			JobType      string   `json:"job_type"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		job, err := repo.UpsertJob(c.Request.Context(), req.OwnerID, &graph.Job{
			ID:           req.ID,
			BusinessID:   req.BusinessID,
			Title:        req.Title,
			Description:  req.Description,
			Requirements: req.Requirements,
			Location:     req.Location,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			Salary:       req.Salary,
			JobType:      req.JobType,
		})
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("job", "upsert", req.OwnerID, job.ID, "Job", job.Title)
		c.JSON(http.StatusOK, job)
	})

	api.GET("/jobs/:id", func(c *gin.Context) {
		job, err := repo.GetJobByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	})

	api.GET("/businesses/:id/jobs", func(c *gin.Context) {
		jobs, err := repo.GetJobsByBusiness(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, jobs)
	})

	api.DELETE("/jobs/:id", func(c *gin.Context) {
		actorID := c.Query("actor_id")
		if err := repo.DeleteJob(c.Request.Context(), actorID, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		rec.Activity("job", "delete", actorID, c.Param("id"), "Job", "")
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	api.POST("/jobs/:id/applications", func(c *gin.Context) {
		var req struct {
			UserID      string `json:"user_id" binding:"required"`
			CoverLetter string `json:"cover_letter"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		app, err := repo.ApplyToJob(c.Request.Context(), req.UserID, c.Param("id"), req.CoverLetter)
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("application", "apply", req.UserID, app.ID, "Application", "")
		c.JSON(http.StatusOK, app)
	})

	api.GET("/jobs/:id/applications", func(c *gin.Context) {
		apps, err := repo.GetApplicationsByJob(c.Request.Context(), c.Query("owner_id"), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	})

	api.GET("/users/:id/applications", func(c *gin.Context) {
		apps, err := repo.GetApplicationsByUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	})

	api.PUT("/applications/:id/status", func(c *gin.Context) {
		var req struct {
			ActorID  string `json:"actor_id" binding:"required"`
			Status   string `json:"status" binding:"required"`
			Feedback string `json:"feedback"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repo.UpdateApplicationStatus(c.Request.Context(), req.ActorID, c.Param("id"), req.Status, req.Feedback); err != nil {
			fail(c, err)
			return
		}

		rec.Activity("application", "status_"+req.Status, req.ActorID, c.Param("id"), "Application", req.Feedback)
		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	})
}

func registerServiceRoutes(api *gin.RouterGroup, repo *graph.Repository, rec *recorder.Recorder) {
	api.POST("/services", func(c *gin.Context) {
		var req struct {
			ClientID    string `json:"client_id" binding:"required"`
			Title       string `json:"title" binding:"required"`
			Description string `json:"description"`
			Category    string `json:"category"`
			Budget      string `json:"budget"`
			Duration    string `json:"duration"`
			Location    string `json:"location"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		service, err := repo.CreateService(c.Request.Context(), req.ClientID, &graph.Service{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Budget:      req.Budget,
			Duration:    req.Duration,
			Location:    req.Location,
		})
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("service", "create", req.ClientID, service.ID, "Service", service.Title)
		c.JSON(http.StatusOK, service)
	})

	api.GET("/services/:id", func(c *gin.Context) {
		service, err := repo.GetServiceByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, service)
	})

	api.GET("/users/:id/services", func(c *gin.Context) {
		services, err := repo.GetServicesByClient(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, services)
	})

	api.POST("/services/:id/offers", func(c *gin.Context) {
		var req struct {
			OffererID string `json:"offerer_id" binding:"required"`
			Proposal  string `json:"proposal"`
			Price     string `json:"price"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		offer, err := repo.SubmitOffer(c.Request.Context(), req.OffererID, c.Param("id"), req.Proposal, req.Price)
		if err != nil {
			fail(c, err)
			return
		}

		rec.Activity("offer", "submit", req.OffererID, c.Param("id"), "Service", "")
		c.JSON(http.StatusOK, offer)
	})

	api.GET("/services/:id/offers", func(c *gin.Context) {
		offers, err := repo.GetOffersByService(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, offers)
	})

	api.POST("/services/:id/offers/:offererId/accept", func(c *gin.Context) {
		var req struct {
			ClientID string `json:"client_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		serviceID, offererID := c.Param("id"), c.Param("offererId")
		if err := repo.AcceptOffer(c.Request.Context(), req.ClientID, serviceID, offererID); err != nil {
			fail(c, err)
			return
		}

		rec.Activity("offer", "accept", req.ClientID, serviceID, "Service", offererID)
		rec.Notify(offererID, "Your offer was accepted", "offer_accepted", "/services/"+serviceID)
		c.JSON(http.StatusOK, gin.H{"status": graph.ServiceInProgress})
	})

	api.POST("/services/:id/offers/:offererId/reject", func(c *gin.Context) {
		var req struct {
			ClientID string `json:"client_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		serviceID, offererID := c.Param("id"), c.Param("offererId")
		if err := repo.RejectOffer(c.Request.Context(), req.ClientID, serviceID, offererID); err != nil {
			fail(c, err)
			return
		}

		rec.Notify(offererID, "Your offer was declined", "offer_rejected", "/services/"+serviceID)
		c.JSON(http.StatusOK, gin.H{"status": graph.OfferRejected})
	})

	api.POST("/services/:id/close", func(c *gin.Context) {
		var req struct {
			ClientID string `json:"client_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repo.CloseService(c.Request.Context(), req.ClientID, c.Param("id")); err != nil {
			fail(c, err)
			return
		}

		rec.Activity("service", "close", req.ClientID, c.Param("id"), "Service", "")
		c.JSON(http.StatusOK, gin.H{"status": graph.ServiceClosed})
	})

	api.DELETE("/services/:id", func(c *gin.Context) {
		actorID := c.Query("actor_id")
		if err := repo.DeleteService(c.Request.Context(), actorID, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		rec.Activity("service", "delete", actorID, c.Param("id"), "Service", "")
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})
}

func registerSearchRoutes(api *gin.RouterGroup, repo *graph.Repository) {
	api.GET("/search/:kind", func(c *gin.Context) {
		filters := graph.SearchFilters{
			Query:    c.Query("q"),
			Category: c.Query("category"),
			Location: c.Query("location"),
			Status:   c.Query("status"),
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(graph.DefaultPageSize)))

		var (
			items interface{}
			total int64
			err   error
		)
		switch graph.EntityKind(c.Param("kind")) {
		case graph.KindBusiness:
			items, total, err = repo.SearchBusinesses(c.Request.Context(), filters, page, pageSize)
		case graph.KindJob:
			items, total, err = repo.SearchJobs(c.Request.Context(), filters, page, pageSize)
		case graph.KindService:
			items, total, err = repo.SearchServices(c.Request.Context(), filters, page, pageSize)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown search kind: " + c.Param("kind")})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items":       items,
			"total":       total,
			"page":        page,
			"total_pages": graph.TotalPages(total, pageSize),
		})
	})
}

func registerNotificationRoutes(api *gin.RouterGroup, repo *graph.Repository) {
	api.GET("/users/:id/notifications", func(c *gin.Context) {
		notifications, err := repo.NotificationsByUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		unread, err := repo.UnreadNotificationCount(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread": unread})
	})

	api.PUT("/notifications/:notificationId/read", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := repo.MarkNotificationRead(c.Request.Context(), req.UserID, c.Param("notificationId")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": graph.NotificationRead})
	})

	api.PUT("/users/:id/notifications/read-all", func(c *gin.Context) {
		updated, err := repo.MarkAllNotificationsRead(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	})
}

func registerActivityRoutes(api *gin.RouterGroup, repo *graph.Repository) {
	api.GET("/activities", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		activities, err := repo.RecentActivities(c.Request.Context(), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": activities})
	})

	api.GET("/users/:id/activities", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		activities, err := repo.ActivitiesByUser(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": activities})
	})
}
