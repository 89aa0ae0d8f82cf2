package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/eringen/touradmin/auth"
)

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func (d *userDocument) user() *auth.User {
	return &auth.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// Users is an auth.UserStore over a Mongo collection.
type Users struct {
	coll *mongo.Collection
}

// NewUsers returns a Users store using coll.
func NewUsers(coll *mongo.Collection) *Users {
	return &Users{coll: coll}
}

// CreateUser implements auth.UserStore.
func (u *Users) CreateUser(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	now := time.Now()
	doc := &userDocument{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := u.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		doc.ID = oid
	}
	return doc.user(), nil
}

// GetUserByEmail implements auth.UserStore.
func (u *Users) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var doc userDocument
	err := u.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return doc.user(), nil
}

// UpdatePassword implements auth.UserStore.
func (u *Users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password":   passwordHash,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
