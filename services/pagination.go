package services

import "gorm.io/gorm"

// PageSize ist die feste Anzahl an Papers pro Listenseite.
const PageSize = 20

// NormalizePage setzt Seitenzahlen kleiner 1 auf 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// TotalPages berechnet ceil(total / PageSize).
func TotalPages(total int64) int {
	return int((total + PageSize - 1) / PageSize)
}

// Offset liefert den Zeilen-Offset für eine (normalisierte) Seite.
func Offset(page int) int {
	return (NormalizePage(page) - 1) * PageSize
}

// paginate ist ein gorm-Scope für LIMIT/OFFSET einer Listenseite.
func paginate(page int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(Offset(page)).Limit(PageSize)
	}
}
