package models

import "time"

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
	RoleAdmin   Role = "ADMIN"
)

type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

// Message is one chat message inside a (doctor, patient) thread. The pair of
// ids is the thread key; there is no separate thread document.
type Message struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	DoctorID   string    `bson:"doctor_id" json:"doctorId"`
	PatientID  string    `bson:"patient_id" json:"patientId"`
	SenderRole Role      `bson:"sender_role" json:"senderRole"`
	Text       string    `bson:"text" json:"text"`
	Status     Status    `bson:"status" json:"status"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// ThreadUpdate reports a bulk status transition applied to one thread for one
// author side. The relay broadcasts one status event per ThreadUpdate.
type ThreadUpdate struct {
	DoctorID   string
	PatientID  string
	SenderRole Role
	MessageIDs []string
	Status     Status
}
