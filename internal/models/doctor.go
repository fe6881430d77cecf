package models

// DoctorProfile carries a doctor's public listing data together with the
// availability documents the slot generator reads. Schedule and Settings are
// whole JSON documents: updates replace them atomically, guarded by the
// profile version.
type DoctorProfile struct {
	BaseModel
	UserID          string               `gorm:"size:36;uniqueIndex" json:"userId"`
	Specialization  string               `gorm:"size:100;index" json:"specialization"`
	Bio             string               `gorm:"type:text" json:"bio,omitempty"`
	YearsExperience int                  `json:"yearsExperience"`
	Rating          float64              `json:"rating"`
	Active          bool                 `gorm:"default:true" json:"active"`
	Schedule        WeeklySchedule       `gorm:"serializer:json;type:json" json:"schedule"`
	Settings        ConsultationSettings `gorm:"serializer:json;type:json" json:"settings"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DefaultConsultationSettings returns the parameters a freshly onboarded
// doctor starts with before editing their profile.
func DefaultConsultationSettings() ConsultationSettings {
	return ConsultationSettings{
		SessionDuration: 30,
		BufferMinutes:   0,
		MaxPerDay:       16,
		AllowedTypes:    []ConsultationType{ConsultationInPerson},
		FeesByType:      map[ConsultationType]float64{ConsultationInPerson: 0},
		Currency:        "USD",
	}
}
