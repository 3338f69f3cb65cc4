package eligibility

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Checker answers whether a patient and a doctor may currently exchange
// messages. The answer can change over the appointment lifecycle, so callers
// re-check per send rather than caching it.
type Checker interface {
	IsChatAllowed(ctx context.Context, patientID, doctorID string) (bool, error)
}

// AppointmentChecker allows chat while the pair has at least one appointment
// that is booked or completed. Cancelled appointments do not count.
type AppointmentChecker struct {
	col *mongo.Collection
}

func NewAppointmentChecker(col *mongo.Collection) *AppointmentChecker {
	return &AppointmentChecker{col: col}
}

func (c *AppointmentChecker) IsChatAllowed(ctx context.Context, patientID, doctorID string) (bool, error) {
	if patientID == "" || doctorID == "" {
		return false, nil
	}
	n, err := c.col.CountDocuments(ctx, bson.M{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"status":     bson.M{"$in": []string{"booked", "completed"}},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
