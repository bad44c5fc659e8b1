package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/okian/findna/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items by primary key the way a single table would.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	puts  int
	fail  error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.puts++
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func TestDynamoStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store, err := NewDynamoStore(api, "findna")
	require.NoError(t, err)

	p := profile("s1", 72)
	score := 781
	p.CreditScore = &score
	p.Projections[30] = model.Projection{HorizonYears: 30, ProjectedNetWorth: 1e7, ProjectedAge: 60, FreedomScore: 100, Milestones: []string{}}

	require.NoError(t, store.Upsert(ctx, p))
	require.NoError(t, store.Upsert(ctx, p))

	assert.Equal(t, 2, api.puts)
	assert.Len(t, api.items, 1)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.TotalNetWorth, got.TotalNetWorth)
	assert.Equal(t, p.AssetBreakdown, got.AssetBreakdown)
	assert.Equal(t, 781, *got.CreditScore)
	assert.Equal(t, p.Projections[30], got.Projections[30])
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
}

func TestDynamoStore_ContextLivesBesideProfile(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store, err := NewDynamoStore(api, "findna")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, profile("s1", 10)))
	require.NoError(t, store.UpsertContext(ctx, "s1", model.NarrativeContext{"session_id": "s1"}))

	assert.Len(t, api.items, 2)
	assert.Contains(t, api.items, "SESSION#s1|PROFILE")
	assert.Contains(t, api.items, "SESSION#s1|CONTEXT")

	c, err := store.GetContext(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", c["session_id"])
}

func TestDynamoStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewDynamoStore(newFakeDynamo(), "")
	assert.ErrorIs(t, err, ErrEmptyTable)

	store, err := NewDynamoStore(newFakeDynamo(), "findna")
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetContext(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Upsert(ctx, profile("", 1)), ErrInvalidSession)

	broken := newFakeDynamo()
	broken.fail = errors.New("throttled")
	store, err = NewDynamoStore(broken, "findna")
	require.NoError(t, err)
	err = store.Upsert(ctx, profile("s1", 1))
	assert.ErrorContains(t, err, "throttled")
}
