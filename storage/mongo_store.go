package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realestate-leads/models"
)

const (
	propertiesCollection = "properties"
	dealsCollection      = "deals"
	duplicateKeyCode     = 11000
)

// listingDoc adds the dedup key to the stored document so the unique index
// can enforce it.
type listingDoc struct {
	models.Listing `bson:",inline"`
	DedupKey       string `bson:"dedup_key"`
}

// dealDoc stores whether the deal is active so a partial unique index can
// hold one active deal per property and agent.
type dealDoc struct {
	models.Deal `bson:",inline"`
	Active      bool `bson:"active"`
}

func newDealDoc(d *models.Deal) dealDoc {
	return dealDoc{Deal: *d, Active: d.IsActive()}
}

// MongoStore persists listings and deals to MongoDB.
type MongoStore struct {
	client     *mongo.Client
	properties *mongo.Collection
	deals      *mongo.Collection
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures
// the collection indexes exist.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(dbName)
	ms := &MongoStore{
		client:     client,
		properties: db.Collection(propertiesCollection),
		deals:      db.Collection(dealsCollection),
	}
	if err := ms.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: indexes: %w", err)
	}
	return ms, nil
}

func (ms *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := ms.properties.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "dedup_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "neighborhood", Value: 1}}},
		{Keys: bson.D{{Key: "is_hot_deal", Value: 1}, {Key: "hot_deal_score", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = ms.deals.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "property_id", Value: 1}}},
		{
			Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "agent_id", Value: 1}},
			Options: options.Index().
				SetName("one_active_deal").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
	})
	return err
}

// InsertNew inserts unordered so one duplicate does not abort the batch.
func (ms *MongoStore) InsertNew(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	if len(listings) == 0 {
		return nil, nil
	}

	docs := make([]interface{}, len(listings))
	for i, l := range listings {
		docs[i] = listingDoc{Listing: *l, DedupKey: l.DedupKey()}
	}

	_, err := ms.properties.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return listings, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return nil, fmt.Errorf("mongo: insert listings: %w", err)
	}
	skipped := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, fmt.Errorf("mongo: insert listings: %w", err)
		}
		skipped[we.Index] = true
	}

	inserted := make([]*models.Listing, 0, len(listings)-len(skipped))
	for i, l := range listings {
		if !skipped[i] {
			inserted = append(inserted, l)
		}
	}
	return inserted, nil
}

func (ms *MongoStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := ms.properties.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get %s: %w", id, err)
	}
	return &l, nil
}

func (ms *MongoStore) Find(ctx context.Context, f models.SearchFilter, p models.Page) ([]*models.Listing, int, error) {
	filter := mongoFilter(f)

	total, err := ms.properties.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count: %w", err)
	}

	col := "created_at"
	switch f.SortBy {
	case models.SortPrice:
		col = "price"
	case models.SortHotDealScore:
		col = "hot_deal_score"
	}
	dir := -1
	if f.Asc {
		dir = 1
	}
	opts := pageOptions(p).SetSort(bson.D{{Key: col, Value: dir}, {Key: "_id", Value: 1}})

	out, err := ms.findListings(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (ms *MongoStore) Comparables(ctx context.Context, q models.ComparableQuery) ([]*models.Listing, error) {
	filter := bson.M{
		"_id":           bson.M{"$ne": q.ExcludeID},
		"status":        models.StatusActive,
		"city":          exactFold(q.City),
		"neighborhood":  exactFold(q.Neighborhood),
		"property_type": exactFold(q.PropertyType),
		"rooms":         bson.M{"$gte": q.MinRooms, "$lte": q.MaxRooms},
	}
	opts := pageOptions(models.Page{Limit: q.Limit}).SetSort(bson.D{{Key: "created_at", Value: -1}})
	return ms.findListings(ctx, filter, opts)
}

func (ms *MongoStore) HotDeals(ctx context.Context, f models.SearchFilter, limit int) ([]*models.Listing, error) {
	f.HotOnly = true
	if f.Status == "" {
		f.Status = models.StatusActive
	}
	opts := pageOptions(models.Page{Limit: limit}).
		SetSort(bson.D{{Key: "hot_deal_score", Value: -1}, {Key: "created_at", Value: -1}})
	return ms.findListings(ctx, mongoFilter(f), opts)
}

func (ms *MongoStore) All(ctx context.Context) ([]*models.Listing, error) {
	return ms.findListings(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (ms *MongoStore) Stats(ctx context.Context) (*Stats, error) {
	active := bson.D{{Key: "$match", Value: bson.D{{Key: "status", Value: models.StatusActive}}}}

	cur, err := ms.properties.Aggregate(ctx, mongo.Pipeline{
		active,
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "hot", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$is_hot_deal", 1, 0}}}}}},
			{Key: "avg_price", Value: bson.D{{Key: "$avg", Value: "$price"}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: stats: %w", err)
	}
	var totals []struct {
		Total    int     `bson:"total"`
		Hot      int     `bson:"hot"`
		AvgPrice float64 `bson:"avg_price"`
	}
	if err := cur.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("mongo: stats decode: %w", err)
	}

	cur, err = ms.properties.Aggregate(ctx, mongo.Pipeline{
		active,
		{{Key: "$match", Value: bson.D{{Key: "city", Value: bson.D{{Key: "$ne", Value: ""}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$city"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: top cities: %w", err)
	}
	var cities []models.CityCount
	if err := cur.All(ctx, &cities); err != nil {
		return nil, fmt.Errorf("mongo: top cities decode: %w", err)
	}

	s := &Stats{TopCities: cities}
	if len(totals) > 0 {
		s.TotalProperties = totals[0].Total
		s.HotDeals = totals[0].Hot
		s.AveragePrice = totals[0].AvgPrice
	}
	return s, nil
}

func (ms *MongoStore) Cities(ctx context.Context) ([]string, error) {
	values, err := ms.properties.Distinct(ctx, "city", bson.M{"city": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("mongo: cities: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (ms *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func (ms *MongoStore) CreateDeal(ctx context.Context, d *models.Deal) error {
	_, err := ms.deals.InsertOne(ctx, newDealDoc(d))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("mongo: create deal: %w", err)
	}
	return nil
}

func (ms *MongoStore) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	return ms.findDeal(ctx, bson.M{"_id": id})
}

func (ms *MongoStore) SaveDeal(ctx context.Context, d *models.Deal) error {
	doc := newDealDoc(d)
	doc.Version++
	res, err := ms.deals.ReplaceOne(ctx, bson.M{"_id": d.ID, "version": d.Version}, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("mongo: save deal %s: %w", d.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := ms.deals.CountDocuments(ctx, bson.M{"_id": d.ID})
		if err != nil {
			return fmt.Errorf("mongo: save deal %s: %w", d.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	d.Version++
	return nil
}

func (ms *MongoStore) ListDeals(ctx context.Context, agentID string, status models.DealStatus, p models.Page) ([]*models.Deal, int, error) {
	filter := bson.M{}
	if agentID != "" {
		filter["agent_id"] = agentID
	}
	if status != "" {
		filter["status"] = status
	}

	total, err := ms.deals.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count deals: %w", err)
	}

	opts := pageOptions(p).SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := ms.deals.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: list deals: %w", err)
	}
	var out []*models.Deal
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("mongo: list deals decode: %w", err)
	}
	return out, int(total), nil
}

func (ms *MongoStore) FindActiveDeal(ctx context.Context, propertyID, agentID string) (*models.Deal, error) {
	return ms.findDeal(ctx, bson.M{
		"property_id": propertyID,
		"agent_id":    agentID,
		"status":      bson.M{"$nin": bson.A{models.DealClosed, models.DealCancelled}},
	})
}

func (ms *MongoStore) findDeal(ctx context.Context, filter bson.M) (*models.Deal, error) {
	var d models.Deal
	err := ms.deals.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find deal: %w", err)
	}
	return &d, nil
}

func (ms *MongoStore) findListings(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*models.Listing, error) {
	cur, err := ms.properties.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}
	var out []*models.Listing
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decode: %w", err)
	}
	return out, nil
}

// mongoFilter translates f into a query document.
func mongoFilter(f models.SearchFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if len(f.Cities) > 0 {
		q["city"] = bson.M{"$in": foldAll(f.Cities)}
	}
	if len(f.Neighborhoods) > 0 {
		q["neighborhood"] = bson.M{"$in": foldAll(f.Neighborhoods)}
	}
	if len(f.PropertyTypes) > 0 {
		q["property_type"] = bson.M{"$in": foldAll(f.PropertyTypes)}
	}
	if f.SourceWebsite != "" {
		q["source_website"] = strings.ToLower(f.SourceWebsite)
	}
	if r := rangeOf(f.MinPrice, f.MaxPrice); r != nil {
		q["price"] = r
	}
	if r := rangeOf(f.MinRooms, f.MaxRooms); r != nil {
		q["rooms"] = r
	}
	if r := rangeOf(f.MinSize, f.MaxSize); r != nil {
		q["size"] = r
	}
	if f.HotOnly {
		q["is_hot_deal"] = true
	}
	if f.ExcludeEviction {
		q["eviction_building"] = false
	}
	return q
}

func rangeOf(min, max float64) bson.M {
	r := bson.M{}
	if min > 0 {
		r["$gte"] = min
	}
	if max > 0 {
		r["$lte"] = max
	}
	if len(r) == 0 {
		return nil
	}
	return r
}

func exactFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(s)) + "$", Options: "i"}
}

func foldAll(in []string) bson.A {
	out := make(bson.A, len(in))
	for i, s := range in {
		out[i] = exactFold(s)
	}
	return out
}

func pageOptions(p models.Page) *options.FindOptions {
	opts := options.Find()
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	if p.Offset > 0 {
		opts.SetSkip(int64(p.Offset))
	}
	return opts
}
