package cms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names for the content database.
const (
	collectionPosts     = "posts"
	collectionPostsMeta = "posts_meta"
	collectionTags      = "tags"
	collectionUsers     = "users"
)

// MongoStore backs the content models with a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore connects to the content database.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger.With("component", "mongo_store"),
	}, nil
}

// Models returns the four content models.
func (s *MongoStore) Models() *Models {
	return &Models{
		Posts:     s.model(collectionPosts),
		PostsMeta: s.model(collectionPostsMeta),
		Tags:      s.model(collectionTags),
		Users:     s.model(collectionUsers),
	}
}

// Close disconnects from the database.
func (s *MongoStore) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(disconnectCtx)
}

func (s *MongoStore) model(collection string) *mongoModel {
	return &mongoModel{
		collection: s.db.Collection(collection),
		name:       collection,
		logger:     s.logger.With("collection", collection),
	}
}

// mongoModel implements Model for one collection.
type mongoModel struct {
	collection *mongo.Collection
	name       string
	logger     *slog.Logger
}

func (m *mongoModel) FindAll(ctx context.Context, opts Options) ([]Resource, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.name, err)
	}
	defer cursor.Close(ctx)

	var resources []Resource
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.name, err)
		}
		resources = append(resources, newMongoResource(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", m.name, err)
	}

	m.logger.Debug("resources loaded", "count", len(resources))
	return resources, nil
}

func (m *mongoModel) FindPage(ctx context.Context, opts Options) (*Page, error) {
	// The migration always requests Limit "all"; a single find covers it.
	resources, err := m.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Page{Data: resources}, nil
}

func (m *mongoModel) Edit(ctx context.Context, fields map[string]string, opts Options) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for field, value := range fields {
		set[field] = value
	}

	filter := bson.M{"_id": idFilter(opts.ID)}
	res, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s %s: %w", m.name, opts.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s %s: no such resource", m.name, opts.ID)
	}

	m.logger.Debug("resource updated", "id", opts.ID, "fields", len(fields))
	return nil
}

// idFilter matches both ObjectID and plain string primary keys; exported
// content databases carry either.
func idFilter(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// mongoResource adapts a raw document to the Resource contract.
type mongoResource struct {
	id  string
	doc bson.M
}

func newMongoResource(doc bson.M) *mongoResource {
	id := ""
	switch v := doc["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	}
	return &mongoResource{id: id, doc: doc}
}

func (r *mongoResource) ID() string { return r.id }

// Get returns the field as a string; absent and non-string fields read as
// empty, which the inliner treats as "nothing to do".
func (r *mongoResource) Get(field string) string {
	if v, ok := r.doc[field].(string); ok {
		return v
	}
	return ""
}
