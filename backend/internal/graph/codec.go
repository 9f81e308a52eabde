package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"lokalhub/backend/pkg/apperr"
)

// ============================================================================
// Record and Property Helpers
// ============================================================================
//
// Graph nodes are schema-less: optional properties may simply be absent.
// Every getter substitutes a documented default so sparse but well-formed
// records never fail to decode. Only a missing identity key is an error.

func nodeFromRecord(record *neo4j.Record, key string) (neo4j.Node, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return neo4j.Node{}, false
	}
	node, ok := val.(neo4j.Node)
	return node, ok
}

func relationshipFromRecord(record *neo4j.Record, key string) (neo4j.Relationship, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return neo4j.Relationship{}, false
	}
	rel, ok := val.(neo4j.Relationship)
	return rel, ok
}

func stringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func int64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	return 0
}

func float64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func stringFromProps(props map[string]interface{}, key, defaultValue string) string {
	val, ok := props[key]
	if !ok || val == nil {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func intFromProps(props map[string]interface{}, key string, defaultValue int) int {
	val, ok := props[key]
	if !ok || val == nil {
		return defaultValue
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if f, ok := val.(float64); ok {
		return int(f)
	}
	return defaultValue
}

func float64FromProps(props map[string]interface{}, key string, defaultValue float64) float64 {
	val, ok := props[key]
	if !ok || val == nil {
		return defaultValue
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return defaultValue
}

func timeFromProps(props map[string]interface{}, key string, defaultValue time.Time) time.Time {
	val, ok := props[key]
	if !ok || val == nil {
		return defaultValue
	}
	// Neo4j datetime values come back as time.Time
	if t, ok := val.(time.Time); ok {
		return t
	}
	// Tolerate properties written as RFC3339 strings
	if s, ok := val.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return defaultValue
}

func stringSliceFromProps(props map[string]interface{}, key string) []string {
	val, ok := props[key]
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// ============================================================================
// Entity Decoders
// ============================================================================

func userFromProps(props map[string]interface{}) (*User, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("User", "id")
	}
	return &User{
		ID:                 id,
		Email:              stringFromProps(props, "email", ""),
		FirstName:          stringFromProps(props, "first_name", ""),
		LastName:           stringFromProps(props, "last_name", ""),
		Role:               stringFromProps(props, "role", RoleJobSeeker),
		VerificationStatus: stringFromProps(props, "verification_status", VerificationPending),
		PasswordHash:       stringFromProps(props, "password_hash", ""),
		ResumePath:         stringFromProps(props, "resume_path", ""),
		PermitPath:         stringFromProps(props, "permit_path", ""),
		IDDocumentPath:     stringFromProps(props, "id_document_path", ""),
		RejectionReason:    stringFromProps(props, "rejection_reason", ""),
		CreatedAt:          timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func businessFromProps(props map[string]interface{}) (*Business, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Business", "id")
	}
	return &Business{
		ID:          id,
		Name:        stringFromProps(props, "name", ""),
		Description: stringFromProps(props, "description", ""),
		Category:    stringFromProps(props, "category", ""),
		Location:    stringFromProps(props, "location", ""),
		Latitude:    float64FromProps(props, "latitude", 0),
		Longitude:   float64FromProps(props, "longitude", 0),
		Phone:       stringFromProps(props, "phone", ""),
		Email:       stringFromProps(props, "email", ""),
		Website:     stringFromProps(props, "website", ""),
		CreatedAt:   timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func jobFromProps(props map[string]interface{}) (*Job, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Job", "id")
	}
	return &Job{
		ID:           id,
		Title:        stringFromProps(props, "title", ""),
		Description:  stringFromProps(props, "description", ""),
		Requirements: stringSliceFromProps(props, "requirements"),
		Location:     stringFromProps(props, "location", ""),
		Latitude:     float64FromProps(props, "latitude", 0),
		Longitude:    float64FromProps(props, "longitude", 0),
		Salary:       stringFromProps(props, "salary", ""),
		JobType:      stringFromProps(props, "job_type", ""),
		CreatedAt:    timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func applicationFromProps(props map[string]interface{}) (*Application, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Application", "id")
	}
	return &Application{
		ID:          id,
		Status:      stringFromProps(props, "status", ApplicationPending),
		CoverLetter: stringFromProps(props, "cover_letter", ""),
		Feedback:    stringFromProps(props, "feedback", ""),
		DateApplied: timeFromProps(props, "date_applied", time.Time{}),
	}, nil
}

func serviceFromProps(props map[string]interface{}) (*Service, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Service", "id")
	}
	return &Service{
		ID:          id,
		Title:       stringFromProps(props, "title", ""),
		Description: stringFromProps(props, "description", ""),
		Category:    stringFromProps(props, "category", ""),
		Budget:      stringFromProps(props, "budget", ""),
		Duration:    stringFromProps(props, "duration", ""),
		Location:    stringFromProps(props, "location", ""),
		Status:      stringFromProps(props, "status", ServiceOpen),
		CreatedAt:   timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

// offerFromProps decodes OFFERS relationship properties. The offerer and
// service ids live on the adjacent nodes, so the caller supplies them.
func offerFromProps(offererID, serviceID string, props map[string]interface{}) (*ServiceOffer, error) {
	if offererID == "" {
		return nil, apperr.MalformedRecord("ServiceOffer", "offerer_id")
	}
	if serviceID == "" {
		return nil, apperr.MalformedRecord("ServiceOffer", "service_id")
	}
	return &ServiceOffer{
		OffererID: offererID,
		ServiceID: serviceID,
		Status:    stringFromProps(props, "status", OfferPending),
		Proposal:  stringFromProps(props, "proposal", ""),
		Price:     stringFromProps(props, "price", ""),
		CreatedAt: timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func reviewFromProps(props map[string]interface{}) (*Review, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Review", "id")
	}
	return &Review{
		ID:        id,
		Rating:    intFromProps(props, "rating", 0),
		Comment:   stringFromProps(props, "comment", ""),
		CreatedAt: timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func notificationFromProps(props map[string]interface{}) (*Notification, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Notification", "id")
	}
	return &Notification{
		ID:        id,
		Message:   stringFromProps(props, "message", ""),
		Type:      stringFromProps(props, "type", ""),
		Status:    stringFromProps(props, "status", NotificationUnread),
		Link:      stringFromProps(props, "link", ""),
		CreatedAt: timeFromProps(props, "created_at", time.Time{}),
	}, nil
}

func activityFromProps(props map[string]interface{}) (*Activity, error) {
	id := stringFromProps(props, "id", "")
	if id == "" {
		return nil, apperr.MalformedRecord("Activity", "id")
	}
	return &Activity{
		ID:         id,
		Type:       stringFromProps(props, "type", ""),
		Action:     stringFromProps(props, "action", ""),
		UserID:     stringFromProps(props, "user_id", ""),
		TargetID:   stringFromProps(props, "target_id", ""),
		TargetType: stringFromProps(props, "target_type", ""),
		Details:    stringFromProps(props, "details", ""),
		Timestamp:  timeFromProps(props, "timestamp", time.Time{}),
	}, nil
}
