package love

import "time"

// Page is a paid love page persisted for the retention window.
type Page struct {
	ID      uint        `gorm:"primaryKey" json:"-"`
	Slug    string      `gorm:"size:32;uniqueIndex:idx_love_pages_slug;not null" json:"slug"`
	IsPaid  bool        `gorm:"not null;default:false" json:"isPaid"`
	Payment PaymentMeta `gorm:"embedded;embeddedPrefix:payment_" json:"paymentMeta"`

	YourName      string `gorm:"size:255;not null" json:"yourName"`
	YourGender    string `gorm:"size:64;not null" json:"yourGender"`
	PartnerName   string `gorm:"size:255;not null" json:"partnerName"`
	PartnerGender string `gorm:"size:64;not null" json:"partnerGender"`

	FirstMeeting   string `gorm:"type:text;not null" json:"firstMeeting"`
	FavoriteMemory string `gorm:"type:text;not null" json:"favoriteMemory"`
	Message        string `gorm:"type:text;not null" json:"message"`

	Photos []Photo `gorm:"type:text;serializer:json" json:"photos"`
	Music  string  `gorm:"size:1024" json:"music,omitempty"`
	Theme  string  `gorm:"size:64;not null" json:"theme"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	ExpiresAt time.Time `gorm:"index:idx_love_pages_expires_at;not null" json:"expiresAt"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "love_pages"
}

// Expired reports whether the page is past its retention window at now.
func (p *Page) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PaymentMeta holds the provider references that prove the page was paid for.
type PaymentMeta struct {
	OrderID   string `gorm:"size:128" json:"orderId"`
	PaymentID string `gorm:"size:128" json:"paymentId"`
}

// Photo references an uploaded media object. ID is the storage key needed to delete it.
type Photo struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

// Content is the caller-supplied part of a page.
type Content struct {
	YourName       string
	YourGender     string
	PartnerName    string
	PartnerGender  string
	FirstMeeting   string
	FavoriteMemory string
	Message        string
	Photos         []Photo
	Music          string
	Theme          string
}

const defaultTheme = "default"
