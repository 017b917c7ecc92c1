package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"teambot/entity"
	"teambot/errs"
	"teambot/log"
)

const (
	snapshotID        = "teams"
	maxConflictRounds = 16
)

type teamDocument struct {
	Name        string `bson:"name"`
	entity.Team `bson:",inline"`
}

type snapshotDocument struct {
	ID      string         `bson:"_id"`
	Version int64          `bson:"version"`
	Teams   []teamDocument `bson:"teams"`
}

// MongoStore keeps the snapshot in one document and commits with a
// compare-and-swap on its version, so concurrent processes cannot interleave.
type MongoStore struct {
	client *mongo.Client
	c      *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		c:      client.Database(database).Collection("teams"),
	}
}

func (st *MongoStore) Read(ctx context.Context) (*entity.Snapshot, error) {
	_, s, err := st.load(ctx)
	return s, err
}

func (st *MongoStore) Transact(ctx context.Context, fn TxFunc) error {
	for round := 0; round < maxConflictRounds; round++ {
		version, s, err := st.load(ctx)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}

		doc := toDocument(s, version+1)
		if version == 0 {
			_, err = st.c.InsertOne(ctx, doc)
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: insert snapshot: %v", errs.ErrStoreIO, err)
			}
			return nil
		}

		res, err := st.c.ReplaceOne(ctx, bson.M{"_id": snapshotID, "version": version}, doc)
		if err != nil {
			return fmt.Errorf("%w: replace snapshot: %v", errs.ErrStoreIO, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
		log.Logger.Debug("snapshot version moved, retrying", zap.Int64("version", version), zap.Int("round", round))
	}
	return errs.ErrStoreConflict
}

func (st *MongoStore) Close(ctx context.Context) error {
	return st.client.Disconnect(ctx)
}

func (st *MongoStore) load(ctx context.Context) (int64, *entity.Snapshot, error) {
	doc := &snapshotDocument{}
	err := st.c.FindOne(ctx, bson.M{"_id": snapshotID}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, entity.NewSnapshot(), nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%w: load snapshot: %v", errs.ErrStoreIO, err)
	}

	s := entity.NewSnapshot()
	for _, t := range doc.Teams {
		team := t.Team
		normalize(&team)
		s.Teams[t.Name] = &team
	}
	return doc.Version, s, nil
}

// Team names may contain characters that are not valid as field names, so
// the document stores teams as a list sorted by name.
func toDocument(s *entity.Snapshot, version int64) *snapshotDocument {
	doc := &snapshotDocument{ID: snapshotID, Version: version, Teams: make([]teamDocument, 0, len(s.Teams))}
	for name, t := range s.Teams {
		doc.Teams = append(doc.Teams, teamDocument{Name: name, Team: *t})
	}
	sort.Slice(doc.Teams, func(i, j int) bool { return doc.Teams[i].Name < doc.Teams[j].Name })
	return doc
}
