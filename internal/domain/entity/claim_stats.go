package entity

import "github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"

type StatusBucket struct {
	Count       int
	TotalAmount float64
}

type SeverityBucket struct {
	Count         int
	AverageAmount float64
}

// MonthlyBucket агрегирует заявки за календарный месяц, Month в формате 2006-01.
type MonthlyBucket struct {
	Month       string
	Count       int
	TotalAmount float64
}

type ClaimStatistics struct {
	Total      int
	ByStatus   map[valueobject.ClaimStatus]StatusBucket
	BySeverity map[valueobject.Severity]SeverityBucket
	Monthly    []MonthlyBucket
}
