package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const claimNumberConstraint = "claims_claim_number_key"

const claimColumns = `id, claim_number, user_id, vehicle_info, incident_description, incident_date,
	location, image_refs, damage_analyses, severity, estimated_amount, final_amount, status,
	review_notes, reviewed_at, reviewed_by, submitted_at, updated_at`

type ClaimRepositoryAdapter struct {
	db *sqlx.DB
}

func NewClaimRepositoryAdapter(db *sqlx.DB) *ClaimRepositoryAdapter {
	return &ClaimRepositoryAdapter{db: db}
}

func (r *ClaimRepositoryAdapter) Create(ctx context.Context, claim *entity.Claim) error {
	row, err := newClaimRow(claim)
	if err != nil {
		return err
	}

	query := `INSERT INTO claims (` + claimColumns + `) VALUES (
		:id, :claim_number, :user_id, :vehicle_info, :incident_description, :incident_date,
		:location, :image_refs, :damage_analyses, :severity, :estimated_amount, :final_amount, :status,
		:review_notes, :reviewed_at, :reviewed_by, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, claimNumberConstraint) {
			return apperror.ErrDuplicateClaimNumber
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}
	return nil
}

func (r *ClaimRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Claim, error) {
	var row claimRow
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrClaimNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return row.toEntity()
}

func (r *ClaimRepositoryAdapter) List(ctx context.Context, filter repository.ClaimFilter) ([]*entity.Claim, int, error) {
	where, args := buildClaimWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM claims`+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать заявки")
	}

	query := fmt.Sprintf(`SELECT %s FROM claims%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		claimColumns, where, claimOrderBy(filter), len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var rows []claimRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявки")
	}

	claims := make([]*entity.Claim, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toEntity()
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, c)
	}
	return claims, total, nil
}

// UpdateStatus — сравнение со значением expected и запись аудита в одной транзакции.
func (r *ClaimRepositoryAdapter) UpdateStatus(ctx context.Context, claim *entity.Claim, expected valueobject.ClaimStatus, change entity.StatusChange) error {
	return withTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE claims SET status = $3, review_notes = $4, final_amount = $5,
				reviewed_at = $6, reviewed_by = $7, updated_at = $8
			WHERE id = $1 AND status = $2`,
			claim.ID, string(expected), string(claim.Status), claim.ReviewNotes, claim.FinalAmount,
			claim.ReviewedAt, claim.ReviewedBy, claim.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус заявки")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус заявки")
		}
		if affected == 0 {
			return r.missingOrConflict(ctx, tx, claim.ID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO claim_status_history (id, claim_id, from_status, to_status, actor_id, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			change.ID, change.ClaimID, string(change.FromStatus), string(change.ToStatus),
			change.ActorID, change.Note, change.CreatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать историю статусов")
		}
		return nil
	})
}

// UpdateDetails не трогает столбцы оценки, поэтому не затирает параллельную переоценку.
func (r *ClaimRepositoryAdapter) UpdateDetails(ctx context.Context, claim *entity.Claim) error {
	vehicle, _, _, err := marshalClaimDocuments(claim)
	if err != nil {
		return err
	}
	return r.updateActive(ctx, claim.ID, `
		UPDATE claims SET vehicle_info = $2, incident_description = $3, incident_date = $4,
			location = $5, updated_at = $6
		WHERE id = $1 AND status IN ('pending', 'under-review')`,
		vehicle, claim.IncidentDescription, claim.IncidentDate, claim.Location, claim.UpdatedAt,
	)
}

// UpdateAssessment не трогает описательные поля, поэтому не затирает параллельную правку.
func (r *ClaimRepositoryAdapter) UpdateAssessment(ctx context.Context, claim *entity.Claim) error {
	_, refs, analyses, err := marshalClaimDocuments(claim)
	if err != nil {
		return err
	}
	return r.updateActive(ctx, claim.ID, `
		UPDATE claims SET image_refs = $2, damage_analyses = $3, severity = $4,
			estimated_amount = $5, updated_at = $6
		WHERE id = $1 AND status IN ('pending', 'under-review')`,
		refs, analyses, string(claim.Severity), claim.EstimatedAmount, claim.UpdatedAt,
	)
}

// updateActive выполняет UPDATE незавершённой заявки; $1 в запросе занят id.
func (r *ClaimRepositoryAdapter) updateActive(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	return withTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, append([]any{id}, args...)...)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить заявку")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить заявку")
		}
		if affected == 0 {
			return r.missingOrConflict(ctx, tx, id)
		}
		return nil
	})
}

func (r *ClaimRepositoryAdapter) missingOrConflict(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, id); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить заявку")
	}
	if !exists {
		return apperror.ErrClaimNotFound
	}
	return apperror.ErrStatusConflict
}

func (r *ClaimRepositoryAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить заявку")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить заявку")
	}
	if affected == 0 {
		return apperror.ErrClaimNotFound
	}
	return nil
}

func (r *ClaimRepositoryAdapter) History(ctx context.Context, claimID uuid.UUID) ([]entity.StatusChange, error) {
	var rows []statusChangeRow
	query := `
		SELECT id, claim_id, from_status, to_status, actor_id, note, created_at
		FROM claim_status_history WHERE claim_id = $1 ORDER BY created_at ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, claimID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю статусов")
	}

	history := make([]entity.StatusChange, 0, len(rows))
	for _, row := range rows {
		history = append(history, row.toEntity())
	}
	return history, nil
}

func (r *ClaimRepositoryAdapter) Statistics(ctx context.Context) (*entity.ClaimStatistics, error) {
	stats := &entity.ClaimStatistics{
		ByStatus:   map[valueobject.ClaimStatus]entity.StatusBucket{},
		BySeverity: map[valueobject.Severity]entity.SeverityBucket{},
	}

	var byStatus []struct {
		Status string  `db:"status"`
		Count  int     `db:"count"`
		Amount float64 `db:"amount"`
	}
	if err := r.db.SelectContext(ctx, &byStatus, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(COALESCE(final_amount, estimated_amount)), 0) AS amount
		FROM claims GROUP BY status`); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить статистику")
	}
	for _, s := range byStatus {
		stats.Total += s.Count
		stats.ByStatus[valueobject.ClaimStatus(s.Status)] = entity.StatusBucket{Count: s.Count, TotalAmount: s.Amount}
	}

	var bySeverity []struct {
		Severity string  `db:"severity"`
		Count    int     `db:"count"`
		Average  float64 `db:"average"`
	}
	if err := r.db.SelectContext(ctx, &bySeverity, `
		SELECT severity, COUNT(*) AS count, COALESCE(AVG(estimated_amount), 0) AS average
		FROM claims GROUP BY severity`); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить статистику")
	}
	for _, s := range bySeverity {
		stats.BySeverity[valueobject.Severity(s.Severity)] = entity.SeverityBucket{Count: s.Count, AverageAmount: s.Average}
	}

	var monthly []monthlyRow
	if err := r.db.SelectContext(ctx, &monthly, `
		SELECT TO_CHAR(DATE_TRUNC('month', submitted_at), 'YYYY-MM') AS month,
			COUNT(*) AS count, COALESCE(SUM(estimated_amount), 0) AS amount
		FROM claims
		WHERE submitted_at >= DATE_TRUNC('month', NOW()) - INTERVAL '11 months'
		GROUP BY 1 ORDER BY 1`); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить статистику")
	}
	stats.Monthly = fillMonths(time.Now().UTC(), 12, monthly)

	return stats, nil
}

type monthlyRow struct {
	Month  string  `db:"month"`
	Count  int     `db:"count"`
	Amount float64 `db:"amount"`
}

// fillMonths возвращает ровно n последних месяцев, включая месяцы без заявок.
func fillMonths(now time.Time, n int, rows []monthlyRow) []entity.MonthlyBucket {
	byMonth := make(map[string]entity.MonthlyBucket, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = entity.MonthlyBucket{Month: row.Month, Count: row.Count, TotalAmount: row.Amount}
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	out := make([]entity.MonthlyBucket, 0, n)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		bucket, ok := byMonth[month]
		if !ok {
			bucket = entity.MonthlyBucket{Month: month}
		}
		out = append(out, bucket)
	}
	return out
}

func buildClaimWhere(filter repository.ClaimFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Severity != "" {
		add("severity = $%d", string(filter.Severity))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(claim_number ILIKE $%d OR incident_description ILIKE $%d OR vehicle_info->>'make' ILIKE $%d OR vehicle_info->>'model' ILIKE $%d)",
			n, n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var allowedClaimSort = map[string]bool{
	"submitted_at":     true,
	"updated_at":       true,
	"estimated_amount": true,
	"severity":         true,
	"status":           true,
	"claim_number":     true,
}

func claimOrderBy(filter repository.ClaimFilter) string {
	column := filter.SortBy
	if !allowedClaimSort[column] {
		column = "submitted_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	if column == "severity" {
		column = "CASE severity WHEN 'minor' THEN 1 WHEN 'moderate' THEN 2 ELSE 3 END"
	}
	return column + " " + order + ", id " + order
}

type claimRow struct {
	ID                  uuid.UUID  `db:"id"`
	ClaimNumber         string     `db:"claim_number"`
	UserID              uuid.UUID  `db:"user_id"`
	VehicleInfo         string     `db:"vehicle_info"`
	IncidentDescription string     `db:"incident_description"`
	IncidentDate        time.Time  `db:"incident_date"`
	Location            string     `db:"location"`
	ImageRefs           string     `db:"image_refs"`
	DamageAnalyses      string     `db:"damage_analyses"`
	Severity            string     `db:"severity"`
	EstimatedAmount     float64    `db:"estimated_amount"`
	FinalAmount         *float64   `db:"final_amount"`
	Status              string     `db:"status"`
	ReviewNotes         *string    `db:"review_notes"`
	ReviewedAt          *time.Time `db:"reviewed_at"`
	ReviewedBy          *uuid.UUID `db:"reviewed_by"`
	SubmittedAt         time.Time  `db:"submitted_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// marshalClaimDocuments сериализует JSONB-колонки в строки: lib/pq передаёт
// []byte как bytea.
func marshalClaimDocuments(c *entity.Claim) (vehicle, refs, analyses string, err error) {
	imageRefs := c.ImageRefs
	if imageRefs == nil {
		imageRefs = []string{}
	}
	damage := c.DamageAnalyses
	if damage == nil {
		damage = []entity.DamageAnalysis{}
	}

	docs := []struct {
		value any
		out   *string
		what  string
	}{
		{c.VehicleInfo, &vehicle, "данные автомобиля"},
		{imageRefs, &refs, "ссылки на изображения"},
		{damage, &analyses, "анализ повреждений"},
	}
	for _, d := range docs {
		raw, err := json.Marshal(d.value)
		if err != nil {
			return "", "", "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать "+d.what)
		}
		*d.out = string(raw)
	}
	return vehicle, refs, analyses, nil
}

func newClaimRow(c *entity.Claim) (*claimRow, error) {
	vehicle, refs, analyses, err := marshalClaimDocuments(c)
	if err != nil {
		return nil, err
	}
	return &claimRow{
		ID:                  c.ID,
		ClaimNumber:         c.ClaimNumber,
		UserID:              c.UserID,
		VehicleInfo:         vehicle,
		IncidentDescription: c.IncidentDescription,
		IncidentDate:        c.IncidentDate,
		Location:            c.Location,
		ImageRefs:           refs,
		DamageAnalyses:      analyses,
		Severity:            string(c.Severity),
		EstimatedAmount:     c.EstimatedAmount,
		FinalAmount:         c.FinalAmount,
		Status:              string(c.Status),
		ReviewNotes:         c.ReviewNotes,
		ReviewedAt:          c.ReviewedAt,
		ReviewedBy:          c.ReviewedBy,
		SubmittedAt:         c.SubmittedAt,
		UpdatedAt:           c.UpdatedAt,
	}, nil
}

func (r *claimRow) toEntity() (*entity.Claim, error) {
	c := &entity.Claim{
		ID:                  r.ID,
		ClaimNumber:         r.ClaimNumber,
		UserID:              r.UserID,
		IncidentDescription: r.IncidentDescription,
		IncidentDate:        r.IncidentDate,
		Location:            r.Location,
		Severity:            valueobject.Severity(r.Severity),
		EstimatedAmount:     r.EstimatedAmount,
		FinalAmount:         r.FinalAmount,
		Status:              valueobject.ClaimStatus(r.Status),
		ReviewNotes:         r.ReviewNotes,
		ReviewedAt:          r.ReviewedAt,
		ReviewedBy:          r.ReviewedBy,
		SubmittedAt:         r.SubmittedAt,
		UpdatedAt:           r.UpdatedAt,
		ImageRefs:           []string{},
		DamageAnalyses:      []entity.DamageAnalysis{},
	}

	if err := json.Unmarshal([]byte(r.VehicleInfo), &c.VehicleInfo); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены данные автомобиля в заявке")
	}
	if r.ImageRefs != "" {
		if err := json.Unmarshal([]byte(r.ImageRefs), &c.ImageRefs); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены ссылки на изображения в заявке")
		}
	}
	if r.DamageAnalyses != "" {
		if err := json.Unmarshal([]byte(r.DamageAnalyses), &c.DamageAnalyses); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждён анализ повреждений в заявке")
		}
	}
	return c, nil
}

type statusChangeRow struct {
	ID         uuid.UUID `db:"id"`
	ClaimID    uuid.UUID `db:"claim_id"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	ActorID    uuid.UUID `db:"actor_id"`
	Note       *string   `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r statusChangeRow) toEntity() entity.StatusChange {
	return entity.StatusChange{
		ID:         r.ID,
		ClaimID:    r.ClaimID,
		FromStatus: valueobject.ClaimStatus(r.FromStatus),
		ToStatus:   valueobject.ClaimStatus(r.ToStatus),
		ActorID:    r.ActorID,
		Note:       r.Note,
		CreatedAt:  r.CreatedAt,
	}
}
