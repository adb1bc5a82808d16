package db

// WarningRow хранит счётчик предупреждений пользователя по одному типу нарушения
type WarningRow struct {
	UserID string `gorm:"primaryKey"`
	Type   string `gorm:"primaryKey"`
	Count  int
}

func (WarningRow) TableName() string { return "warnings" }

// PhishingDomain одна запись из списка фишинговых доменов
type PhishingDomain struct {
	Domain string `gorm:"primaryKey"`
}
