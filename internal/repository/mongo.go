package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sun/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the document store.
const (
	usersCollection     = "users"
	donationsCollection = "donations"
)

// MongoStore persists users and donations as MongoDB documents.
type MongoStore struct {
	client    *mongo.Client
	db        *mongo.Database
	users     *mongoUserRepository
	donations *mongoDonationRepository
}

// NewMongoStore wraps a connected client. Call EnsureIndexes before serving traffic.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client: client,
		db:     db,
		users: &mongoUserRepository{
			coll:  db.Collection(usersCollection),
			locks: newKeyedMutex(),
			obs:   newInstrumentation(BackendMongo, usersCollection),
		},
		donations: &mongoDonationRepository{
			coll:  db.Collection(donationsCollection),
			locks: newKeyedMutex(),
			obs:   newInstrumentation(BackendMongo, donationsCollection),
		},
	}
}

func (s *MongoStore) Users() UserRepository         { return s.users }
func (s *MongoStore) Donations() DonationRepository { return s.donations }
func (s *MongoStore) Name() string                  { return BackendMongo }

// Ping checks connectivity to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique email index and the listing indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "points", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	_, err = s.donations.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "donorId", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create donation indexes: %w", err)
	}
	return nil
}

func insertionOrder() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}

type mongoUserRepository struct {
	coll  *mongo.Collection
	locks *keyedMutex
	obs   *instrumentation
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	prepareUser(user)
	if _, err = r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewDuplicateEmailError()
		}
		return models.NewInternalError(err)
	}
	r.obs.log.LogCreate(ctx, user.ID)
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	user.Normalize()
	return &user, nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByEmail")
	defer func() { done(err) }()
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *mongoUserRepository) List(ctx context.Context) (_ []*models.User, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	cursor, err := r.coll.Find(ctx, bson.M{}, insertionOrder())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	users := []*models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, u := range users {
		u.Normalize()
	}
	return users, nil
}

func (r *mongoUserRepository) Mutate(ctx context.Context, id string, fn UserMutator) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, models.NewNotFoundError("User", id)
	}

	working := current.Clone()
	if err = fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.Email = current.Email
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, working)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		err = models.NewInternalError(fmt.Errorf("user %s: %w", id, errConcurrentUpdate))
		return nil, err
	}
	return working, nil
}

type mongoDonationRepository struct {
	coll  *mongo.Collection
	locks *keyedMutex
	obs   *instrumentation
}

func (r *mongoDonationRepository) Create(ctx context.Context, donation *models.Donation) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	prepareDonation(donation)
	if _, err = r.coll.InsertOne(ctx, donation); err != nil {
		return models.NewInternalError(err)
	}
	r.obs.log.LogCreate(ctx, donation.ID)
	return nil
}

func (r *mongoDonationRepository) GetByID(ctx context.Context, id string) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()

	var donation models.Donation
	if err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&donation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Donation", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &donation, nil
}

func (r *mongoDonationRepository) List(ctx context.Context) (_ []*models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	cursor, err := r.coll.Find(ctx, bson.M{}, insertionOrder())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	donations := []*models.Donation{}
	if err = cursor.All(ctx, &donations); err != nil {
		return nil, models.NewInternalError(err)
	}
	return donations, nil
}

func (r *mongoDonationRepository) Mutate(ctx context.Context, id string, fn DonationMutator) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	unlock := r.locks.Lock(id)
	defer unlock()

	var current models.Donation
	if err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Donation", id)
		}
		return nil, models.NewInternalError(err)
	}

	working := current.Clone()
	if err = fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, working)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		err = models.NewInternalError(fmt.Errorf("donation %s: %w", id, errConcurrentUpdate))
		return nil, err
	}
	return working, nil
}
