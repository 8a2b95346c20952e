package models

import "time"

// Vote links a user to the choice they picked for a question. The unique
// index on (user_id, question_id) holds the one-vote-per-question rule even
// if two requests race past the upsert check.
type Vote struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_votes_user_question" json:"user_id"`
	QuestionID uint      `gorm:"not null;uniqueIndex:idx_votes_user_question" json:"question_id"`
	ChoiceID   uint      `gorm:"not null" json:"choice_id"`
	Choice     Choice    `gorm:"foreignKey:ChoiceID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Vote) TableName() string {
	return "votes"
}
