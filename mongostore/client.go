// Package mongostore is the MongoDB backend. Live booking snapshots follow
// the collection's change stream, or polling where change streams are not
// available (standalone servers).
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/eringen/touradmin/booking"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "touradmin"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect connects to MongoDB, checks the connection, and returns a Client
// for database.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{client: client, db: client.Database(database)}, nil
}

// BookingsCollection returns the bookings collection.
func (c *Client) BookingsCollection() *mongo.Collection {
	return c.db.Collection(booking.CollectionName)
}

// UsersCollection returns the admin users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the unique email index on users and the createdAt
// index the dashboard counts use.
func (c *Client) CreateIndexes(ctx context.Context) error {
	usersIndex := mongo.IndexModel{
		Keys:    map[string]int{"email": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	bookingsIndex := mongo.IndexModel{Keys: map[string]int{"createdAt": 1}}
	if _, err := c.BookingsCollection().Indexes().CreateOne(ctx, bookingsIndex); err != nil {
		return fmt.Errorf("failed to create bookings index: %w", err)
	}
	return nil
}
