package models

import "time"

// Question is a poll with a publish date and an optional voting deadline.
// Before PubDate the question is invisible to non-admins; after EndDate it
// stays visible but no longer accepts votes.
type Question struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Text        string     `gorm:"column:text;size:200;not null" json:"text"`
	PubDate     time.Time  `gorm:"column:pub_date;not null" json:"pub_date"`
	EndDate     *time.Time `gorm:"column:end_date" json:"end_date"`
	CreatedByID *uint      `gorm:"column:created_by_id" json:"created_by_id"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	CreatedBy *User    `gorm:"foreignKey:CreatedByID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Choices   []Choice `gorm:"foreignKey:QuestionID" json:"choices,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// IsPublished reports whether the question is visible yet.
func (q *Question) IsPublished() bool {
	return !time.Now().Before(q.PubDate)
}

// CanVote reports whether the voting window is currently open. The window is
// [PubDate, EndDate] inclusive; a nil EndDate keeps the question open
// indefinitely once published.
func (q *Question) CanVote() bool {
	now := time.Now()
	if now.Before(q.PubDate) {
		return false
	}
	if q.EndDate != nil && now.After(*q.EndDate) {
		return false
	}
	return true
}

// WasPublishedRecently reports whether PubDate falls within the last day.
// Future publish dates do not count as recent.
func (q *Question) WasPublishedRecently() bool {
	now := time.Now()
	return !q.PubDate.After(now) && !q.PubDate.Before(now.Add(-24*time.Hour))
}
