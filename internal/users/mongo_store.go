package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/useradmin/internal/models"
)

// MongoStore is the Store backed by the users collection.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}

	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}

	return &user, nil
}

func (s *MongoStore) List(ctx context.Context, query ListQuery) ([]models.User, int64, error) {
	filter := searchFilter(query.Search)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(query.Skip).
		SetLimit(query.Limit).
		SetProjection(bson.M{"password": 0})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo find users: %w", err)
	}

	users := make([]models.User, 0, query.Limit)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("mongo decode users: %w", err)
	}

	return users, total, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, patch Patch) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	update := bson.M{"$set": patchDocument(patch, time.Now().UTC())}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&user); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrEmailExists
		default:
			return nil, fmt.Errorf("mongo update user: %w", err)
		}
	}

	return &user, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func searchFilter(search string) bson.M {
	if search == "" {
		return bson.M{}
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	return bson.M{
		"$or": bson.A{
			bson.M{"email": pattern},
			bson.M{"phoneNumber": pattern},
			bson.M{"remarks": pattern},
		},
	}
}

func patchDocument(p Patch, now time.Time) bson.M {
	doc := bson.M{"updatedAt": now}

	setIf(doc, "email", p.Email)
	setIf(doc, "phoneNumber", p.PhoneNumber)
	setIf(doc, "password", p.PasswordHash)
	setIf(doc, "agreeToTerms", p.AgreeToTerms)
	setIf(doc, "isRecruiter", p.IsRecruiter)
	setIf(doc, "isVerified", p.IsVerified)
	setIf(doc, "cinPanGst", p.CinPanGst)
	setIf(doc, "companyEmail", p.CompanyEmail)
	setIf(doc, "officeEmail", p.OfficeEmail)
	setIf(doc, "remarks", p.Remarks)
	if p.FavouriteCourses != nil {
		doc["favouriteCourses"] = append([]string{}, (*p.FavouriteCourses)...)
	}

	return doc
}

func setIf[T any](doc bson.M, key string, value *T) {
	if value != nil {
		doc[key] = *value
	}
}
