package mongoexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanqingluo/dble/lib/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one document per sequence: {_id: name, next, span}.
const Collection = "dseq_sequences"

// sequenceDoc is the document of a sequence
type sequenceDoc struct {
	Name string `bson:"_id"`
	Next int64  `bson:"next"`
	Span int64  `bson:"span"`
}

// reserveUpdate advances next by the span stored in the same document.
var reserveUpdate = mongo.Pipeline{
	{{Key: "$set", Value: bson.D{{Key: "next", Value: bson.D{{Key: "$add", Value: bson.A{"$next", "$span"}}}}}}},
}

// Executor reserves segments in a MongoDB collection.
type Executor struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to the server at uri and uses the given database.
func New(ctx context.Context, uri, database string) (*Executor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to reach mongodb: %w", err)
	}
	return &Executor{
		client: client,
		coll:   client.Database(database).Collection(Collection),
	}, nil
}

// Define creates or replaces a sequence.
func (e *Executor) Define(ctx context.Context, name string, start, span int64) error {
	if span <= 0 {
		return fmt.Errorf("span must be positive, got %d", span)
	}
	_, err := e.coll.ReplaceOne(ctx,
		bson.M{"_id": name},
		sequenceDoc{Name: name, Next: start, Span: span},
		options.Replace().SetUpsert(true),
	)
	return translate(err)
}

func (e *Executor) Exec(ctx context.Context, query string) ([][]byte, error) {
	name, err := backend.ParseNextvalQuery(query)
	if err != nil {
		return nil, &backend.ErrorResponse{Code: "42000", Message: err.Error()}
	}

	var before sequenceDoc
	err = e.coll.FindOneAndUpdate(
		ctx, bson.M{"_id": name}, reserveUpdate,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return [][]byte{[]byte(backend.NotFoundRow)}, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return [][]byte{backend.FormatSegmentRow(before.Next, before.Span)}, nil
}

func (e *Executor) Close() error {
	return e.client.Disconnect(context.Background())
}

// translate turns errors reported by the server into error responses.
func translate(err error) error {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return &backend.ErrorResponse{Code: fmt.Sprintf("%d", cmdErr.Code), Message: cmdErr.Message}
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		return &backend.ErrorResponse{Code: "WRITE", Message: writeErr.Error()}
	}
	return err
}
