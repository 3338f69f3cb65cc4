package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carebridge/realtime-service/internal/models"
)

var ErrNoValidIDs = errors.New("no valid message ids")

// messageDoc is the stored shape; _id is an ObjectID in Mongo but exposed as
// hex upward.
type messageDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	DoctorID   string             `bson:"doctor_id"`
	PatientID  string             `bson:"patient_id"`
	SenderRole models.Role        `bson:"sender_role"`
	Text       string             `bson:"text"`
	Status     models.Status      `bson:"status"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (d *messageDoc) toModel() *models.Message {
	return &models.Message{
		ID:         d.ID.Hex(),
		DoctorID:   d.DoctorID,
		PatientID:  d.PatientID,
		SenderRole: d.SenderRole,
		Text:       d.Text,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
	}
}

type MessageRepo struct {
	col *mongo.Collection
}

func NewMessageRepo(col *mongo.Collection) *MessageRepo {
	return &MessageRepo{col: col}
}

// Insert durably stores m and returns it with id, status and timestamp set.
func (r *MessageRepo) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	doc := messageDoc{
		DoctorID:   m.DoctorID,
		PatientID:  m.PatientID,
		SenderRole: m.SenderRole,
		Text:       m.Text,
		Status:     models.StatusSent,
		CreatedAt:  time.Now().UTC(),
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toModel(), nil
}

// History returns up to limit messages of a thread in chronological order,
// optionally only those created before the given time.
func (r *MessageRepo) History(ctx context.Context, doctorID, patientID string, limit int64, before time.Time) ([]*models.Message, error) {
	filter := bson.M{"doctor_id": doctorID, "patient_id": patientID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkDelivered transitions SENT messages among ids to DELIVERED. Messages
// already DELIVERED or READ are left alone; status never moves backwards.
func (r *MessageRepo) MarkDelivered(ctx context.Context, ids []string) ([]models.ThreadUpdate, error) {
	return r.markStatus(ctx, ids, []models.Status{models.StatusSent}, models.StatusDelivered)
}

// MarkRead transitions SENT or DELIVERED messages among ids to READ.
func (r *MessageRepo) MarkRead(ctx context.Context, ids []string) ([]models.ThreadUpdate, error) {
	return r.markStatus(ctx, ids, []models.Status{models.StatusSent, models.StatusDelivered}, models.StatusRead)
}

func (r *MessageRepo) markStatus(ctx context.Context, ids []string, from []models.Status, to models.Status) ([]models.ThreadUpdate, error) {
	oids := oidsFromHex(ids)
	if len(oids) == 0 {
		return nil, ErrNoValidIDs
	}
	filter := statusFilter(oids, from)

	// Snapshot the affected messages first so the per-thread updates can be
	// reported after the bulk write.
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	cur.Close(ctx)

	if len(docs) == 0 {
		return nil, nil
	}
	if _, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": to}}); err != nil {
		return nil, err
	}
	return groupUpdates(docs, to), nil
}

// statusFilter matches only messages whose current status is in from, so a
// bulk transition can never move a message backwards.
func statusFilter(oids []primitive.ObjectID, from []models.Status) bson.M {
	return bson.M{
		"_id":    bson.M{"$in": oids},
		"status": bson.M{"$in": from},
	}
}

type threadKey struct {
	doctorID   string
	patientID  string
	senderRole models.Role
}

// groupUpdates collapses the affected messages into one ThreadUpdate per
// (doctor, patient, author) group, preserving first-seen order.
func groupUpdates(docs []messageDoc, to models.Status) []models.ThreadUpdate {
	byThread := map[threadKey]int{}
	var out []models.ThreadUpdate
	for _, d := range docs {
		k := threadKey{d.DoctorID, d.PatientID, d.SenderRole}
		i, ok := byThread[k]
		if !ok {
			i = len(out)
			byThread[k] = i
			out = append(out, models.ThreadUpdate{
				DoctorID:   d.DoctorID,
				PatientID:  d.PatientID,
				SenderRole: d.SenderRole,
				Status:     to,
			})
		}
		out[i].MessageIDs = append(out[i].MessageIDs, d.ID.Hex())
	}
	return out
}

func oidsFromHex(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		out = append(out, oid)
	}
	return out
}
