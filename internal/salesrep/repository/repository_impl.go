package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListSalesReps(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, is_active, is_sales_rep, sales_capacity
		 FROM users
		 WHERE is_active = ? AND is_sales_rep = ?
		 ORDER BY id ASC`,
		true,
		true,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) CountActiveProjects(ctx context.Context, db *gorm.DB, repIDs []snowflake.ID) (map[snowflake.ID]int64, error) {
	counts := make(map[snowflake.ID]int64, len(repIDs))
	if len(repIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RepID snowflake.ID
		Total int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT assigned_sales_rep_id AS rep_id, COUNT(*) AS total
		 FROM projects
		 WHERE assigned_sales_rep_id IN ? AND status IN ?
		 GROUP BY assigned_sales_rep_id`,
		repIDs,
		domain.ActiveStatuses,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.RepID] = row.Total
	}
	return counts, nil
}

func (r *repo) FindUser(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, is_active, is_sales_rep, sales_capacity
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindProject(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, inquiry_number, status, assigned_sales_rep_id, assigned_at
		 FROM projects WHERE id = ?`,
		id,
	).Scan(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == 0 {
		return nil, nil
	}
	return &project, nil
}

func (r *repo) UpdateAssignment(ctx context.Context, db *gorm.DB, projectID snowflake.ID, repID *snowflake.ID, assignedAt *time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE projects SET assigned_sales_rep_id = ?, assigned_at = ? WHERE id = ?`,
		repID,
		assignedAt,
		projectID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
