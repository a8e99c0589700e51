package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"postsapi/app/models"
)

const (
	postsCollection    = "posts"
	commentsCollection = "comments"
	countersCollection = "counters"

	mongoTimeout = 10 * time.Second
)

// MongoStore implements Store on MongoDB. Integer IDs come from a counters
// collection so that ids look the same whichever backend is configured.
type MongoStore struct {
	client   *mongo.Client
	posts    *mongo.Collection
	comments *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// OpenMongo connects to url and pings the primary before returning.
func OpenMongo(ctx context.Context, url, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
		counters: db.Collection(countersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}

	_, err = s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create comment index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) nextID(ctx context.Context, name string) (int, error) {
	var counter struct {
		Seq int `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s counter: %w", name, err)
	}
	return counter.Seq, nil
}

// Find retrieves all posts
func (s *MongoStore) Find(ctx context.Context, criteria Criteria) ([]*models.Post, error) {
	cursor, err := s.posts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

// FindByID retrieves a post by ID
func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": n}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post %d: %w", n, err)
	}
	return &post, nil
}

// Insert creates a new post
func (s *MongoStore) Insert(ctx context.Context, input models.PostInput) (int, error) {
	id, err := s.nextID(ctx, postsCollection)
	if err != nil {
		return 0, err
	}
	if _, err := s.posts.InsertOne(ctx, models.NewPost(id, input, s.now())); err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	return id, nil
}

// Update updates an existing post
func (s *MongoStore) Update(ctx context.Context, id string, input models.PostInput) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": n}, bson.M{"$set": bson.M{
		"title":      input.Title,
		"contents":   input.Contents,
		"updated_at": s.now(),
	}})
	if err != nil {
		return 0, fmt.Errorf("failed to update post %d: %w", n, err)
	}
	return int(res.MatchedCount), nil
}

// Remove deletes a post and its comments
func (s *MongoStore) Remove(ctx context.Context, id string) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	if _, err := s.comments.DeleteMany(ctx, bson.M{"post_id": n}); err != nil {
		return 0, fmt.Errorf("failed to delete comments of post %d: %w", n, err)
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": n})
	if err != nil {
		return 0, fmt.Errorf("failed to delete post %d: %w", n, err)
	}
	return int(res.DeletedCount), nil
}

// InsertComment creates a new comment on an existing post
func (s *MongoStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	if err := comment.Validate(); err != nil {
		return fmt.Errorf("invalid comment: %w", err)
	}

	post, err := s.FindByID(ctx, fmt.Sprint(comment.PostID))
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d: %w", comment.PostID, ErrNotFound)
	}

	id, err := s.nextID(ctx, commentsCollection)
	if err != nil {
		return err
	}
	comment.ID = id
	comment.BeforeCreate(s.now())

	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// FindPostComments retrieves all comments for a post
func (s *MongoStore) FindPostComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	n, ok := parseID(postID)
	if !ok {
		return comments, nil
	}

	cursor, err := s.comments.Find(ctx, bson.M{"post_id": n}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query comments of post %d: %w", n, err)
	}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}
