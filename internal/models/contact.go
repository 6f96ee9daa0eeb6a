package models

import "time"

// ContactSettingID is the primary key of the only contact settings row
const ContactSettingID = 1

// ContactSetting is the singleton row behind the contact page and form
type ContactSetting struct {
	ID             uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RecipientEmail string `json:"recipient_email"`
	ReplySubject   string `json:"reply_subject"`
	Address        string `gorm:"type:text" json:"address"`
	Phone          string `json:"phone"`
	PublicEmail    string `json:"public_email"`
	AutoReply      string `gorm:"type:text" json:"auto_reply"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicContactSettings is what the contact page shows to visitors
type PublicContactSettings struct {
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	PublicEmail string `json:"public_email"`
}

func (s *ContactSetting) Public() PublicContactSettings {
	return PublicContactSettings{Address: s.Address, Phone: s.Phone, PublicEmail: s.PublicEmail}
}
