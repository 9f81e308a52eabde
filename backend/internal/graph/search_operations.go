package graph

import (
	"context"
	"strings"

	"lokalhub/backend/pkg/apperr"
)

// ============================================================================
// Search / Filter Operations
// ============================================================================

// EntityKind selects which collection a search runs over
type EntityKind string

const (
	KindBusiness EntityKind = "business"
	KindJob      EntityKind = "job"
	KindService  EntityKind = "service"
)

// SearchFilters are combined with logical AND. Unset fields constrain
// nothing. Query is case-normalized substring containment over the name or
// title plus the description; the rest are exact matches.
type SearchFilters struct {
	Query    string
	Category string
	Location string
	Status   string
}

// DefaultPageSize is used when the caller passes a non-positive page size
const DefaultPageSize = 10

// keywordResultCap bounds the keyword (chat) search mode
const keywordResultCap = 3

// KeywordHit is one result of the keyword search mode
type KeywordHit struct {
	Kind        EntityKind `json:"kind"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// kindSpec maps an entity kind onto its label and filterable properties
type kindSpec struct {
	label        string
	titleProp    string
	categoryProp string
	orderProp    string
}

func specFor(kind EntityKind) (kindSpec, error) {
	switch kind {
	case KindBusiness:
		return kindSpec{label: "Business", titleProp: "name", categoryProp: "category", orderProp: "created_at"}, nil
	case KindJob:
		return kindSpec{label: "Job", titleProp: "title", categoryProp: "job_type", orderProp: "created_at"}, nil
	case KindService:
		return kindSpec{label: "Service", titleProp: "title", categoryProp: "category", orderProp: "created_at"}, nil
	}
	return kindSpec{}, apperr.InvalidTransition("Search", "unknown entity kind: "+string(kind))
}

// buildWhere composes the WHERE clause for the set filters only. The node
// variable is n.
func buildWhere(spec kindSpec, f SearchFilters) (string, map[string]interface{}) {
	clauses := []string{}
	params := map[string]interface{}{}

	if f.Query != "" {
		clauses = append(clauses,
			"(toLower(n."+spec.titleProp+") CONTAINS $query OR toLower(coalesce(n.description, '')) CONTAINS $query)")
		params["query"] = strings.ToLower(f.Query)
	}
	if f.Category != "" {
		clauses = append(clauses, "n."+spec.categoryProp+" = $category")
		params["category"] = f.Category
	}
	if f.Location != "" {
		clauses = append(clauses, "n.location = $location")
		params["location"] = f.Location
	}
	if f.Status != "" {
		clauses = append(clauses, "n.status = $status")
		params["status"] = f.Status
	}

	if len(clauses) == 0 {
		return "", params
	}
	return "WHERE " + strings.Join(clauses, " AND "), params
}

// pageWindow normalizes pagination inputs into a skip/limit window.
// Pages are 1-based; out-of-range pages simply yield an empty window.
func pageWindow(page, pageSize int) (skip, limit int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize, pageSize
}

// TotalPages computes the 1-based page count for a result total
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// runSearch executes the filtered, paginated search for one entity kind and
// returns the raw node property maps plus the unpaginated total.
func (r *Repository) runSearch(ctx context.Context, kind EntityKind, f SearchFilters, page, pageSize int) ([]map[string]interface{}, int64, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, 0, err
	}

	where, params := buildWhere(spec, f)
	skip, limit := pageWindow(page, pageSize)
	params["skip"] = skip
	params["limit"] = limit

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	countRes, err := session.Run(ctx,
		"MATCH (n:"+spec.label+") "+where+" RETURN count(n) AS total", params)
	if err != nil {
		return nil, 0, operr("search count", err)
	}
	countRecord, err := countRes.Single(ctx)
	if err != nil {
		return nil, 0, operr("search count", err)
	}
	total := int64FromRecord(countRecord, "total")

	itemsRes, err := session.Run(ctx,
		"MATCH (n:"+spec.label+") "+where+
			" RETURN n ORDER BY n."+spec.orderProp+" DESC SKIP $skip LIMIT $limit", params)
	if err != nil {
		return nil, 0, operr("search", err)
	}

	items := []map[string]interface{}{}
	for itemsRes.Next(ctx) {
		if node, ok := nodeFromRecord(itemsRes.Record(), "n"); ok {
			items = append(items, node.Props)
		}
	}
	if err := itemsRes.Err(); err != nil {
		return nil, 0, operr("search", err)
	}
	return items, total, nil
}

// SearchBusinesses returns a page of businesses matching the filters and
// the unpaginated total
func (r *Repository) SearchBusinesses(ctx context.Context, f SearchFilters, page, pageSize int) ([]*Business, int64, error) {
	rows, total, err := r.runSearch(ctx, KindBusiness, f, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*Business, 0, len(rows))
	for _, props := range rows {
		b, err := businessFromProps(props)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, nil
}

// SearchJobs returns a page of jobs matching the filters and the
// unpaginated total. The category filter matches the job type.
func (r *Repository) SearchJobs(ctx context.Context, f SearchFilters, page, pageSize int) ([]*Job, int64, error) {
	rows, total, err := r.runSearch(ctx, KindJob, f, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*Job, 0, len(rows))
	for _, props := range rows {
		j, err := jobFromProps(props)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, j)
	}
	return items, total, nil
}

// SearchServices returns a page of service requests matching the filters
// and the unpaginated total
func (r *Repository) SearchServices(ctx context.Context, f SearchFilters, page, pageSize int) ([]*Service, int64, error) {
	rows, total, err := r.runSearch(ctx, KindService, f, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*Service, 0, len(rows))
	for _, props := range rows {
		s, err := serviceFromProps(props)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// tokenizeQuery splits a keyword query on whitespace, lowercased. Empty
// queries yield no tokens.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// KeywordSearch is the chat/recommendation search mode: the query is
// tokenized on whitespace and an entity matches if any token is contained
// in any of its title, description, location, or category. Results are
// capped, not paginated. This mode is separate from the filtered search
// above: OR containment over tokens, not AND of exact filters.
func (r *Repository) KeywordSearch(ctx context.Context, kind EntityKind, query string) ([]KeywordHit, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	tokens := tokenizeQuery(query)
	if len(tokens) == 0 {
		return []KeywordHit{}, nil
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n:`+spec.label+`)
		WHERE any(tok IN $tokens WHERE
			toLower(n.`+spec.titleProp+`) CONTAINS tok
			OR toLower(coalesce(n.description, '')) CONTAINS tok
			OR toLower(coalesce(n.location, '')) CONTAINS tok
			OR toLower(coalesce(n.`+spec.categoryProp+`, '')) CONTAINS tok)
		RETURN n
		LIMIT $cap
	`, map[string]interface{}{
		"tokens": tokens,
		"cap":    keywordResultCap,
	})
	if err != nil {
		return nil, operr("keyword search", err)
	}

	hits := []KeywordHit{}
	for result.Next(ctx) {
		node, ok := nodeFromRecord(result.Record(), "n")
		if !ok {
			continue
		}
		hits = append(hits, KeywordHit{
			Kind:        kind,
			ID:          stringFromProps(node.Props, "id", ""),
			Title:       stringFromProps(node.Props, spec.titleProp, ""),
			Description: stringFromProps(node.Props, "description", ""),
			Location:    stringFromProps(node.Props, "location", ""),
			Category:    stringFromProps(node.Props, spec.categoryProp, ""),
		})
	}
	if err := result.Err(); err != nil {
		return nil, operr("keyword search", err)
	}
	return hits, nil
}
