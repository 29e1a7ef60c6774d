// Package mongostore implements todo.Store over a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"todosync/internal/todo"
)

const defaultPingTimeout = 10 * time.Second

type Options struct {
	URI          string
	DatabaseID   string
	CollectionID string
	Timeout      time.Duration
}

func (o Options) pingTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultPingTimeout
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
}

// document is the stored shape of a todo.
type document struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Text      string        `bson:"text"`
	Completed bool          `bson:"completed"`
}

func (d document) todo() todo.Todo {
	return todo.Todo{ID: d.ID.Hex(), Text: d.Text, Completed: d.Completed}
}

// Open connects to the server and pings it before returning.
func Open(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if opts.DatabaseID == "" || opts.CollectionID == "" {
		return nil, errors.New("mongo database and collection ids are required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.WithPrefix("mongo")

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.pingTimeout())
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected", "uri", redactURI(opts.URI), "database", opts.DatabaseID, "collection", opts.CollectionID)

	return &Store{
		client: client,
		coll:   client.Database(opts.DatabaseID).Collection(opts.CollectionID),
		logger: logger,
	}, nil
}

func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	todos := make([]todo.Todo, 0, len(docs))
	for _, d := range docs {
		todos = append(todos, d.todo())
	}
	s.logger.Debug("listed documents", "count", len(todos))
	return todos, nil
}

func (s *Store) Create(ctx context.Context, text string, completed bool) (todo.Todo, error) {
	d := document{Text: text, Completed: completed}
	res, err := s.coll.InsertOne(ctx, d)
	if err != nil {
		return todo.Todo{}, fmt.Errorf("insertOne: %w", err)
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return todo.Todo{}, fmt.Errorf("insertOne: unexpected id type %T", res.InsertedID)
	}
	d.ID = oid
	return d.todo(), nil
}

func (s *Store) Update(ctx context.Context, id string, p todo.Patch) (todo.Todo, error) {
	oid, err := parseID(id)
	if err != nil {
		return todo.Todo{}, err
	}
	filter := bson.D{{Key: "_id", Value: oid}}

	var d document
	if p.Empty() {
		err = s.coll.FindOne(ctx, filter).Decode(&d)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.coll.FindOneAndUpdate(ctx, filter, updateDoc(p), opts).Decode(&d)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return todo.Todo{}, fmt.Errorf("update %s: %w", id, todo.ErrNotFound)
	}
	if err != nil {
		return todo.Todo{}, fmt.Errorf("update %s: %w", id, err)
	}
	return d.todo(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("deleteOne %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("deleteOne %s: %w", id, todo.ErrNotFound)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func updateDoc(p todo.Patch) bson.D {
	set := bson.D{}
	if p.Text != nil {
		set = append(set, bson.E{Key: "text", Value: *p.Text})
	}
	if p.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: *p.Completed})
	}
	return bson.D{{Key: "$set", Value: set}}
}

// parseID accepts the hex form produced by document.todo. Anything else
// cannot name a stored document.
func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("invalid id %q: %w", id, todo.ErrNotFound)
	}
	return oid, nil
}

// redactURI hides the password in a connection string for logging.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	userinfo := rest[:at]
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		userinfo = user + ":***"
	}
	return scheme + "://" + userinfo + rest[at:]
}
