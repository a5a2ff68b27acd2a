package applications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "job_applications"

// MongoRepo implements Repo on a MongoDB collection, one document per
// application with the status history embedded.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo binds the repo to the job_applications collection of db.
func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection(mongoCollection)}
}

// EnsureIndexes creates the owner-scoped indexes used by listings and stats.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "current_status", Value: 1}}},
	})
	return storageErr("ensure indexes", err)
}

type mongoApplication struct {
	ID              string        `bson:"_id"`
	OwnerID         string        `bson:"owner_id"`
	CompanyName     string        `bson:"company_name"`
	JobRole         string        `bson:"job_role"`
	CurrentStatus   string        `bson:"current_status"`
	StatusHistory   []StatusEvent `bson:"status_history"`
	Attachment      *Attachment   `bson:"attachment,omitempty"`
	JobDescription  string        `bson:"job_description"`
	Salary          string        `bson:"salary"`
	Location        string        `bson:"location"`
	JobURL          string        `bson:"job_url"`
	ApplicationDate time.Time     `bson:"application_date"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

var mongoSortKeys = map[SortField]string{
	SortCreatedAt:       "created_at",
	SortUpdatedAt:       "updated_at",
	SortApplicationDate: "application_date",
	SortCompanyName:     "company_name",
	SortJobRole:         "job_role",
	SortCurrentStatus:   "current_status",
}

func toMongo(app Application) mongoApplication {
	return mongoApplication{
		ID:              app.ID,
		OwnerID:         app.OwnerID,
		CompanyName:     app.CompanyName,
		JobRole:         app.JobRole,
		CurrentStatus:   string(app.CurrentStatus),
		StatusHistory:   app.History.Events(),
		Attachment:      app.Attachment,
		JobDescription:  app.JobDescription,
		Salary:          app.Salary,
		Location:        app.Location,
		JobURL:          app.JobURL,
		ApplicationDate: app.ApplicationDate,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
}

func (d mongoApplication) toApplication() Application {
	return Application{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		CompanyName:     d.CompanyName,
		JobRole:         d.JobRole,
		CurrentStatus:   Status(d.CurrentStatus),
		History:         NewHistory(d.StatusHistory),
		Attachment:      d.Attachment,
		JobDescription:  d.JobDescription,
		Salary:          d.Salary,
		Location:        d.Location,
		JobURL:          d.JobURL,
		ApplicationDate: d.ApplicationDate.UTC(),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func ownerFilter(ownerID, id string) bson.M {
	return bson.M{"_id": id, "owner_id": ownerID}
}

// Create inserts a new application document.
func (r *MongoRepo) Create(ctx context.Context, app Application) error {
	_, err := r.col.InsertOne(ctx, toMongo(app))
	return storageErr("insert application", err)
}

// GetByID fetches an application document for its owner.
func (r *MongoRepo) GetByID(ctx context.Context, ownerID, id string) (Application, error) {
	var doc mongoApplication
	err := r.col.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Application{}, ErrNotFound
	}
	if err != nil {
		return Application{}, storageErr("get application", err)
	}
	return doc.toApplication(), nil
}

// ListByOwner finds the owner's applications filtered and ordered per opts.
func (r *MongoRepo) ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]Application, error) {
	opts = opts.normalized()
	key, ok := mongoSortKeys[opts.SortField]
	if !ok {
		return nil, invalidField("sortBy", "unsupported sort field")
	}
	order := -1
	if opts.Ascending {
		order = 1
	}

	filter := bson.M{"owner_id": ownerID}
	if opts.Status != "" {
		filter["current_status"] = string(opts.Status)
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: key, Value: order}, {Key: "_id", Value: order}}).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))

	cur, err := r.col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, storageErr("list applications", err)
	}
	defer cur.Close(ctx)

	out := []Application{}
	for cur.Next(ctx) {
		var doc mongoApplication
		if err := cur.Decode(&doc); err != nil {
			return nil, storageErr("decode application", err)
		}
		out = append(out, doc.toApplication())
	}
	if err := cur.Err(); err != nil {
		return nil, storageErr("list applications", err)
	}
	return out, nil
}

// Update replaces the whole document so the history append and the current
// status land in a single write. Concurrent writers resolve last-write-wins.
func (r *MongoRepo) Update(ctx context.Context, ownerID, id string, fn MutateFunc) (Application, error) {
	app, err := r.GetByID(ctx, ownerID, id)
	if err != nil {
		return Application{}, err
	}
	if err := fn(&app); err != nil {
		return Application{}, err
	}
	res, err := r.col.ReplaceOne(ctx, ownerFilter(ownerID, id), toMongo(app))
	if err != nil {
		return Application{}, storageErr("update application", err)
	}
	if res.MatchedCount == 0 {
		return Application{}, ErrNotFound
	}
	return app, nil
}

// Delete removes an application document owned by ownerID.
func (r *MongoRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.col.DeleteOne(ctx, ownerFilter(ownerID, id))
	if err != nil {
		return storageErr("delete application", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups the owner's documents by current status.
func (r *MongoRepo) CountByStatus(ctx context.Context, ownerID string) (StatusCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$current_status", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return StatusCounts{}, storageErr("count applications", err)
	}
	defer cur.Close(ctx)

	counts := StatusCounts{ByStatus: make(map[Status]int)}
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return StatusCounts{}, storageErr("decode counts", err)
		}
		counts.ByStatus[Status(row.Status)] = row.Count
		counts.Total += row.Count
	}
	if err := cur.Err(); err != nil {
		return StatusCounts{}, storageErr("count applications", err)
	}
	return counts, nil
}

var _ Repo = (*MongoRepo)(nil)
