package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const (
	MaxIncidentDescriptionLength = 5000
	MaxLocationLength            = 500
	MinVehicleYear               = 1886
)

// VehicleInfo и DamageAnalysis хранятся в JSONB, поэтому несут json-теги.
type VehicleInfo struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	LicensePlate string `json:"licensePlate,omitempty"`
	VIN          string `json:"vin,omitempty"`
	Color        string `json:"color,omitempty"`
}

// DamageAnalysis — результат анализа одного изображения. DamageAnalyses[i]
// всегда относится к ImageRefs[i]; Failed=true отмечает изображение, которое
// сохранено, но не проанализировано.
type DamageAnalysis struct {
	Severity    valueobject.Severity `json:"severity,omitempty"`
	Confidence  float64              `json:"confidence"`
	DamageTypes []string             `json:"damageTypes"`
	Description string               `json:"description,omitempty"`
	Failed      bool                 `json:"failed,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func FailedAnalysis(reason string) DamageAnalysis {
	return DamageAnalysis{Failed: true, Error: reason, DamageTypes: []string{}}
}

// SuccessfulAnalyses возвращает число анализов без отметки Failed.
func (c *Claim) SuccessfulAnalyses() int {
	n := 0
	for _, a := range c.DamageAnalyses {
		if !a.Failed {
			n++
		}
	}
	return n
}

// StatusChange — запись аудита смены статуса. Не изменяется после создания.
type StatusChange struct {
	ID         uuid.UUID
	ClaimID    uuid.UUID
	FromStatus valueobject.ClaimStatus
	ToStatus   valueobject.ClaimStatus
	ActorID    uuid.UUID
	Note       *string
	CreatedAt  time.Time
}

type Claim struct {
	ID                  uuid.UUID
	ClaimNumber         string
	UserID              uuid.UUID
	VehicleInfo         VehicleInfo
	IncidentDescription string
	IncidentDate        time.Time
	Location            string
	ImageRefs           []string
	DamageAnalyses      []DamageAnalysis
	Severity            valueobject.Severity
	EstimatedAmount     float64
	FinalAmount         *float64
	Status              valueobject.ClaimStatus
	ReviewNotes         *string
	ReviewedAt          *time.Time
	ReviewedBy          *uuid.UUID
	SubmittedAt         time.Time
	UpdatedAt           time.Time

	History []StatusChange
}

// IncidentDetails — описательные поля, заданные при подаче заявки.
type IncidentDetails struct {
	VehicleInfo         VehicleInfo
	IncidentDescription string
	IncidentDate        time.Time
	Location            string
}

// Validate проверяет обязательные поля и возвращает ошибку с деталями по полям.
func (d IncidentDetails) Validate(now time.Time) error {
	fields := map[string]string{}

	if strings.TrimSpace(d.VehicleInfo.Make) == "" {
		fields["vehicleInfo.make"] = "марка автомобиля обязательна"
	}
	if strings.TrimSpace(d.VehicleInfo.Model) == "" {
		fields["vehicleInfo.model"] = "модель автомобиля обязательна"
	}
	maxYear := now.Year() + 1
	switch {
	case d.VehicleInfo.Year == 0:
		fields["vehicleInfo.year"] = "год выпуска обязателен"
	case d.VehicleInfo.Year < MinVehicleYear || d.VehicleInfo.Year > maxYear:
		fields["vehicleInfo.year"] = "год выпуска должен быть между " + strconv.Itoa(MinVehicleYear) + " и " + strconv.Itoa(maxYear)
	}

	description := strings.TrimSpace(d.IncidentDescription)
	switch {
	case description == "":
		fields["incidentDescription"] = "описание происшествия обязательно"
	case len([]rune(description)) > MaxIncidentDescriptionLength:
		fields["incidentDescription"] = "описание происшествия слишком длинное"
	}

	switch {
	case d.IncidentDate.IsZero():
		fields["incidentDate"] = "дата происшествия обязательна"
	case d.IncidentDate.After(now.Add(24 * time.Hour)):
		fields["incidentDate"] = "дата происшествия не может быть в будущем"
	}

	if len([]rune(d.Location)) > MaxLocationLength {
		fields["location"] = "местоположение слишком длинное"
	}

	if len(fields) > 0 {
		return apperror.Validation(fields)
	}
	return nil
}

// NewClaim создаёт заявку в статусе pending. Номер заявки назначает вызывающий
// код через NewClaimNumber.
func NewClaim(userID uuid.UUID, details IncidentDetails, now time.Time) (*Claim, error) {
	if userID == uuid.Nil {
		return nil, apperror.Validation(map[string]string{"userId": "идентификатор пользователя обязателен"})
	}
	if err := details.Validate(now); err != nil {
		return nil, err
	}

	return &Claim{
		ID:                  uuid.New(),
		UserID:              userID,
		VehicleInfo:         trimVehicle(details.VehicleInfo),
		IncidentDescription: strings.TrimSpace(details.IncidentDescription),
		IncidentDate:        details.IncidentDate,
		Location:            strings.TrimSpace(details.Location),
		ImageRefs:           []string{},
		DamageAnalyses:      []DamageAnalysis{},
		Severity:            valueobject.SeverityMinor,
		Status:              valueobject.ClaimStatusPending,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}, nil
}

// SetAssessment записывает результат агрегации анализа изображений.
func (c *Claim) SetAssessment(refs []string, analyses []DamageAnalysis, severity valueobject.Severity, estimatedAmount float64) {
	c.ImageRefs = refs
	c.DamageAnalyses = analyses
	c.Severity = severity
	c.EstimatedAmount = estimatedAmount
}

// ApplyTransition переводит заявку в новый статус и возвращает запись аудита.
// При недопустимом переходе заявка не изменяется.
func (c *Claim) ApplyTransition(to valueobject.ClaimStatus, actorID uuid.UUID, notes *string, finalAmount *float64, now time.Time) (StatusChange, error) {
	if !c.Status.CanTransitionTo(to) {
		return StatusChange{}, apperror.InvalidTransition(c.Status.String(), to.String())
	}
	if finalAmount != nil {
		if _, err := valueobject.NewMoney(*finalAmount, ""); err != nil {
			return StatusChange{}, apperror.Validation(map[string]string{"finalAmount": "итоговая сумма не может быть отрицательной"})
		}
	}

	change := StatusChange{
		ID:         uuid.New(),
		ClaimID:    c.ID,
		FromStatus: c.Status,
		ToStatus:   to,
		ActorID:    actorID,
		Note:       notes,
		CreatedAt:  now,
	}

	c.Status = to
	c.ReviewedAt = &now
	c.ReviewedBy = &actorID
	if notes != nil {
		c.ReviewNotes = notes
	}
	if finalAmount != nil {
		amount := *finalAmount
		c.FinalAmount = &amount
	}
	c.UpdatedAt = now
	c.History = append(c.History, change)

	return change, nil
}

// UpdateDetails применяет административную правку описательных полей.
func (c *Claim) UpdateDetails(details IncidentDetails, now time.Time) error {
	if c.Status.IsTerminal() {
		return apperror.New(apperror.ErrCodeBadRequest, "нельзя изменить заявку в конечном статусе")
	}
	if err := details.Validate(now); err != nil {
		return err
	}
	c.VehicleInfo = trimVehicle(details.VehicleInfo)
	c.IncidentDescription = strings.TrimSpace(details.IncidentDescription)
	c.IncidentDate = details.IncidentDate
	c.Location = strings.TrimSpace(details.Location)
	c.UpdatedAt = now
	return nil
}

// PayableAmount возвращает итоговую сумму, если её установил администратор.
func (c *Claim) PayableAmount() float64 {
	if c.FinalAmount != nil {
		return *c.FinalAmount
	}
	return c.EstimatedAmount
}

func (c *Claim) IsOwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}

func trimVehicle(v VehicleInfo) VehicleInfo {
	return VehicleInfo{
		Make:         strings.TrimSpace(v.Make),
		Model:        strings.TrimSpace(v.Model),
		Year:         v.Year,
		LicensePlate: strings.ToUpper(strings.TrimSpace(v.LicensePlate)),
		VIN:          strings.ToUpper(strings.TrimSpace(v.VIN)),
		Color:        strings.TrimSpace(v.Color),
	}
}
