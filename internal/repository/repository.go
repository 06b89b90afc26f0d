package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate 在支持行锁的方言下加 SELECT ... FOR UPDATE
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "mysql" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// SubjectPoints 聚合查询结果：用户或团队的积分
type SubjectPoints struct {
	SubjectID uint
	Points    int
}
