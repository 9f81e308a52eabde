package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lokalhub/backend/pkg/apperr"
)

type fakeStream struct {
	records []*neo4j.Record
	err     error
	pos     int
}

func (f *fakeStream) Next(ctx context.Context) bool {
	if f.pos < len(f.records) {
		f.pos++
		return true
	}
	return false
}

func (f *fakeStream) Record() *neo4j.Record { return f.records[f.pos-1] }

func (f *fakeStream) Err() error { return f.err }

func TestSingleOr_ReturnsRecord(t *testing.T) {
	want := &neo4j.Record{Keys: []string{"id"}, Values: []interface{}{"u-1"}}
	stream := &fakeStream{records: []*neo4j.Record{want}}

	record, err := singleOr(context.Background(), stream, apperr.NotFound("User", "u-1"))
	require.NoError(t, err)
	assert.Same(t, want, record)
}

func TestSingleOr_EmptyYieldsDomainError(t *testing.T) {
	stream := &fakeStream{}
	notFound := apperr.NotFound("User", "u-1")

	_, err := singleOr(context.Background(), stream, notFound)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSingleOr_StreamFailurePassesThrough(t *testing.T) {
	// A dropped connection mid-result must not be reported as the domain
	// condition the caller supplied for the empty case.
	cause := errors.New("connection reset by peer")
	stream := &fakeStream{err: cause}

	_, err := singleOr(context.Background(), stream, apperr.NotFound("User", "u-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.NotEqual(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOperr_Mapping(t *testing.T) {
	err := operr("get user", context.DeadlineExceeded)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))

	// Typed errors pass through unchanged
	domain := apperr.Unauthorized("no")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(operr("op", domain)))

	// Anything else is a query failure
	assert.Equal(t, apperr.KindConnectionUnavailable, apperr.KindOf(operr("op", errors.New("boom"))))
}
