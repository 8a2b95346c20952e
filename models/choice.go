package models

type Choice struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestionID uint     `json:"question_id"`
	Question   Question `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	Text       string   `gorm:"size:200;not null" json:"text"`
	Position   int      `gorm:"default:0" json:"position"`
}

func (Choice) TableName() string {
	return "choices"
}
