package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carebridge/realtime-service/internal/models"
)

func TestOidsFromHex_SkipsInvalid(t *testing.T) {
	req := require.New(t)
	valid := primitive.NewObjectID()

	out := oidsFromHex([]string{valid.Hex(), "not-an-oid", ""})

	req.Len(out, 1)
	req.Equal(valid, out[0])
}

func TestOidsFromHex_Empty(t *testing.T) {
	require.Empty(t, oidsFromHex(nil))
	require.Empty(t, oidsFromHex([]string{"garbage"}))
}

func TestStatusFilter_GuardsCurrentStatus(t *testing.T) {
	req := require.New(t)
	oid := primitive.NewObjectID()

	// The delivered transition only matches messages still SENT
	f := statusFilter([]primitive.ObjectID{oid}, []models.Status{models.StatusSent})

	req.Equal(bson.M{"$in": []primitive.ObjectID{oid}}, f["_id"])
	req.Equal(bson.M{"$in": []models.Status{models.StatusSent}}, f["status"])

	// The read transition matches SENT and DELIVERED but never READ
	f = statusFilter([]primitive.ObjectID{oid}, []models.Status{models.StatusSent, models.StatusDelivered})
	statuses := f["status"].(bson.M)["$in"].([]models.Status)
	req.ElementsMatch([]models.Status{models.StatusSent, models.StatusDelivered}, statuses)
	req.NotContains(statuses, models.StatusRead)
}

func TestGroupUpdates_OnePerThreadAndAuthor(t *testing.T) {
	req := require.New(t)
	m1 := primitive.NewObjectID()
	m2 := primitive.NewObjectID()
	m3 := primitive.NewObjectID()
	m4 := primitive.NewObjectID()
	docs := []messageDoc{
		{ID: m1, DoctorID: "d1", PatientID: "p1", SenderRole: models.RoleDoctor},
		{ID: m2, DoctorID: "d1", PatientID: "p1", SenderRole: models.RoleDoctor},
		// same thread, other author: its own update
		{ID: m3, DoctorID: "d1", PatientID: "p1", SenderRole: models.RolePatient},
		// different thread entirely
		{ID: m4, DoctorID: "d2", PatientID: "p1", SenderRole: models.RoleDoctor},
	}

	updates := groupUpdates(docs, models.StatusRead)

	req.Len(updates, 3)
	req.Equal([]string{m1.Hex(), m2.Hex()}, updates[0].MessageIDs)
	req.Equal(models.RoleDoctor, updates[0].SenderRole)
	req.Equal([]string{m3.Hex()}, updates[1].MessageIDs)
	req.Equal(models.RolePatient, updates[1].SenderRole)
	req.Equal("d2", updates[2].DoctorID)
	for _, u := range updates {
		req.Equal(models.StatusRead, u.Status)
	}
}

func TestGroupUpdates_Empty(t *testing.T) {
	require.Empty(t, groupUpdates(nil, models.StatusDelivered))
}
