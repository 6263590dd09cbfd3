package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
)

// MongoStore backs the three collections with MongoDB. The unique index
// on conversations.pair_key is what enforces at-most-one conversation
// per participant pair under concurrent first contact.
type MongoStore struct {
	users Users
	convs Conversations
	msgs  Messages
}

func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	users := db.Collection("users")
	convs := db.Collection("conversations")
	msgs := db.Collection("messages")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "mobile", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}
	if _, err := convs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}
	if _, err := msgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return nil, err
	}

	return &MongoStore{
		users: &mongoUsers{col: users},
		convs: &mongoConversations{col: convs},
		msgs:  &mongoMessages{col: msgs},
	}, nil
}

func (s *MongoStore) Users() Users                 { return s.users }
func (s *MongoStore) Conversations() Conversations { return s.convs }
func (s *MongoStore) Messages() Messages           { return s.msgs }

func newID() string { return primitive.NewObjectID().Hex() }

// storeErr classifies a driver error into the caller-facing taxonomy.
func storeErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return errs.Conflict("already exists")
	}
	return errs.Transient("storage error", err)
}

type mongoUsers struct {
	col *mongo.Collection
}

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.ID = newID()
	u.CreatedAt = now
	u.LastSeen = now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.Conflict("user already exists")
		}
		return storeErr(err)
	}
	return nil
}

func (r *mongoUsers) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"mobile": mobile}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("user not found")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) TouchLastSeen(ctx context.Context, mobile string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"mobile": mobile}, bson.M{"$set": bson.M{"last_seen": at.UTC()}})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *mongoUsers) UpdateProfilePicture(ctx context.Context, mobile, url string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"mobile": mobile}, bson.M{"$set": bson.M{"profile_picture": url}})
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("user not found")
	}
	return nil
}

type mongoConversations struct {
	col *mongo.Collection
}

func (r *mongoConversations) Find(ctx context.Context, a, b string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{"pair_key": models.PairKey(a, b)}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("conversation not found")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *mongoConversations) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:           newID(),
		PairKey:      models.PairKey(a, b),
		Participants: [2]string{a, b},
		Unread:       map[string]int64{a: 0, b: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.col.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.Conflict("conversation already exists")
		}
		return nil, storeErr(err)
	}
	return c, nil
}

func (r *mongoConversations) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("conversation not found")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *mongoConversations) ListForUser(ctx context.Context, mobile string) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"participants": mobile}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, &c)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *mongoConversations) ApplyNewMessage(ctx context.Context, convID string, m *models.Message) (*models.Conversation, error) {
	update := bson.M{
		"$inc": bson.M{"unread." + m.Receiver: 1},
		"$set": bson.M{"last_message": m, "updated_at": m.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Conversation
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": convID}, update, opts).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("conversation not found")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *mongoConversations) DecrementUnread(ctx context.Context, convID, mobile string, n int64) error {
	if n <= 0 {
		return nil
	}
	// Pipeline update so the subtract-and-floor is a single atomic
	// document operation; a concurrent $inc lands before or after it,
	// never inside.
	field := "unread." + mobile
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{
		{Key: "$max", Value: bson.A{int64(0), bson.D{
			{Key: "$subtract", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, int64(0)}}},
				n,
			}},
		}}},
	}}}}}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": convID}, update)
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("conversation not found")
	}
	return nil
}

type mongoMessages struct {
	col *mongo.Collection
}

func (r *mongoMessages) Append(ctx context.Context, m *models.Message) error {
	m.ID = newID()
	m.CreatedAt = time.Now().UTC()
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *mongoMessages) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *mongoMessages) ListByConversation(ctx context.Context, convID string) ([]*models.Message, error) {
	// Object ids grow monotonically, which settles creation-time ties
	// in append order.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"conversation_id": convID}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *mongoMessages) MarkRead(ctx context.Context, convID, reader string) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"conversation_id": convID, "receiver": reader, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, storeErr(err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessages) CountUnread(ctx context.Context, convID, receiver string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"conversation_id": convID, "receiver": receiver, "read": false})
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
