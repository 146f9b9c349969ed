package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func recordDoc(r Record) bson.D {
	return bson.D{
		{Key: "_id", Value: r.ID},
		{Key: "request_id", Value: r.RequestID},
		{Key: "key", Value: r.Key},
		{Key: "filename", Value: r.Filename},
		{Key: "path", Value: r.Path},
		{Key: "relative_path", Value: r.RelativePath},
		{Key: "size", Value: r.Size},
		{Key: "content_type", Value: r.ContentType},
		{Key: "created_at", Value: r.CreatedAt},
	}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("insert", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.Insert(context.Background(), sampleRecord("a", "avatar", created), sampleRecord("b", "cv", created))
		require.NoError(mt, err)
	})

	mt.Run("insert nothing", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		require.NoError(mt, s.Insert(context.Background()))
	})

	mt.Run("get", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		want := sampleRecord("a", "avatar", created)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, recordDoc(want)))

		got, err := s.Get(context.Background(), "a")
		require.NoError(mt, err)
		assert.Equal(mt, want, got)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list by request", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		a := sampleRecord("a", "avatar", created)
		b := sampleRecord("b", "cv", created)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, recordDoc(a), recordDoc(b)))

		got, err := s.ListByRequest(context.Background(), a.RequestID)
		require.NoError(mt, err)
		assert.Equal(mt, []Record{a, b}, got)
	})

	mt.Run("list expired", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		old := sampleRecord("a", "avatar", created)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, recordDoc(old)))

		got, err := s.ListExpired(context.Background(), created.Add(time.Hour), 10)
		require.NoError(mt, err)
		assert.Equal(mt, []Record{old}, got)
	})

	mt.Run("delete", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, s.Delete(context.Background(), "a"))
	})

	mt.Run("migrate", func(mt *mtest.T) {
		s := NewMongo(nil, mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, s.Migrate(context.Background()))
	})
}
