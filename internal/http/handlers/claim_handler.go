package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/http/dto"
	"github.com/ignatzorin/autoclaim-backend/internal/http/response"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
	"github.com/ignatzorin/autoclaim-backend/internal/validation"
)

// multipartOverhead: запас на текстовые поля формы сверх размера изображений.
const multipartOverhead = 1 << 20

type (
	claimSubmitter interface {
		Execute(ctx context.Context, input claim.SubmitClaimInput) (*entity.Claim, error)
	}
	claimGetter interface {
		Execute(ctx context.Context, claimID uuid.UUID, viewer claim.Viewer) (*entity.Claim, error)
	}
	claimHistoryGetter interface {
		Execute(ctx context.Context, claimID uuid.UUID, viewer claim.Viewer) ([]entity.StatusChange, error)
	}
	userClaimsLister interface {
		Execute(ctx context.Context, input claim.ListUserClaimsInput) (*claim.ClaimPage, error)
	}
	allClaimsLister interface {
		Execute(ctx context.Context, input claim.ListAllClaimsInput) (*claim.ClaimPage, error)
	}
	statusUpdater interface {
		Execute(ctx context.Context, input claim.UpdateStatusInput) (*entity.Claim, error)
	}
	claimDeleter interface {
		Execute(ctx context.Context, claimID uuid.UUID) error
	}
	claimReanalyzer interface {
		Execute(ctx context.Context, claimID uuid.UUID) (*entity.Claim, error)
	}
	claimEditor interface {
		Execute(ctx context.Context, input claim.UpdateIncidentDetailsInput) (*entity.Claim, error)
	}
	statisticsProvider interface {
		Execute(ctx context.Context) (*entity.ClaimStatistics, error)
	}
)

// ClaimUseCases собирает зависимости ClaimHandler.
type ClaimUseCases struct {
	Submit        claimSubmitter
	Get           claimGetter
	History       claimHistoryGetter
	ListUser      userClaimsLister
	ListAll       allClaimsLister
	UpdateStatus  statusUpdater
	Delete        claimDeleter
	Reanalyze     claimReanalyzer
	UpdateDetails claimEditor
	Statistics    statisticsProvider
}

type ClaimHandler struct {
	uc     ClaimUseCases
	limits claim.ImageLimits
}

func NewClaimHandler(uc ClaimUseCases, limits claim.ImageLimits) *ClaimHandler {
	return &ClaimHandler{uc: uc, limits: limits}
}

// Submit обрабатывает POST /api/claims/submit (multipart/form-data).
// userId необязателен: по умолчанию заявка подаётся от имени текущего
// пользователя, администратор может подать её за другого.
func (h *ClaimHandler) Submit(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	maxBody := int64(h.limits.MaxImages)*h.limits.MaxImageBytes + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Validation(c, map[string]string{"images": "общий размер запроса превышает лимит"})
			return
		}
		response.BadRequest(c, "ожидается multipart/form-data")
		return
	}

	fields := map[string]string{}
	userID := viewer.ID
	if raw := strings.TrimSpace(formValue(form, "userId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		switch {
		case err != nil:
			fields["userId"] = "некорректный идентификатор пользователя"
		case parsed != viewer.ID && !viewer.IsAdmin:
			response.Error(c, apperror.ErrForbidden)
			return
		default:
			userID = parsed
		}
	}

	details, detailFields := parseIncidentDetails(
		formValue(form, "vehicleInfo"),
		formValue(form, "incidentDescription"),
		formValue(form, "incidentDate"),
		formValue(form, "location"),
	)
	for k, v := range detailFields {
		fields[k] = v
	}

	files := append(form.File["images"], form.File["images[]"]...)
	if len(files) > h.limits.MaxImages {
		fields["images"] = "допускается не более " + strconv.Itoa(h.limits.MaxImages) + " изображений"
	}
	if len(fields) > 0 {
		response.Validation(c, fields)
		return
	}

	images, err := readImages(files, h.limits.MaxImageBytes)
	if err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.uc.Submit.Execute(c.Request.Context(), claim.SubmitClaimInput{
		UserID:  userID,
		Details: details,
		Images:  images,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ClaimEnvelope{
		Message: "Claim submitted successfully",
		Claim:   dto.ToClaimResponse(created),
	})
}

// Get обрабатывает GET /api/claims/:id.
func (h *ClaimHandler) Get(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	found, err := h.uc.Get.Execute(c.Request.Context(), claimID, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToClaimResponse(found))
}

// History обрабатывает GET /api/claims/:id/history.
func (h *ClaimHandler) History(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	history, err := h.uc.History.Execute(c.Request.Context(), claimID, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"history": dto.ToStatusChangeResponses(history)})
}

// ListUser обрабатывает GET /api/claims/user/:userId?page&limit&status.
func (h *ClaimHandler) ListUser(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	page, err := h.uc.ListUser.Execute(c.Request.Context(), claim.ListUserClaimsInput{
		UserID: userID,
		Viewer: viewer,
		Page:   parseIntQuery(c, "page", 1),
		Limit:  parseIntQuery(c, "limit", claim.DefaultPageLimit),
		Status: c.Query("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToClaimListResponse(page))
}

// ListAll обрабатывает GET /api/admin/claims.
func (h *ClaimHandler) ListAll(c *gin.Context) {
	page, err := h.uc.ListAll.Execute(c.Request.Context(), claim.ListAllClaimsInput{
		Page:      parseIntQuery(c, "page", 1),
		Limit:     parseIntQuery(c, "limit", claim.DefaultPageLimit),
		Status:    c.Query("status"),
		Severity:  c.Query("severity"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToClaimListResponse(page))
}

// Statistics обрабатывает GET /api/admin/claims/statistics.
func (h *ClaimHandler) Statistics(c *gin.Context) {
	stats, err := h.uc.Statistics.Execute(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToStatisticsResponse(stats))
}

// UpdateStatus обрабатывает PATCH /api/claims/:id/status.
func (h *ClaimHandler) UpdateStatus(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, map[string]string{"status": "статус обязателен"})
		return
	}

	updated, err := h.uc.UpdateStatus.Execute(c.Request.Context(), claim.UpdateStatusInput{
		ClaimID:     claimID,
		ActorID:     viewer.ID,
		Status:      req.Status,
		ReviewNotes: req.ReviewNotes,
		FinalAmount: req.FinalAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ClaimEnvelope{
		Message: "Claim status updated successfully",
		Claim:   dto.ToClaimResponse(updated),
	})
}

// Update обрабатывает PUT /api/claims/:id (административная правка).
func (h *ClaimHandler) Update(c *gin.Context) {
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	vehicle, err := json.Marshal(req.VehicleInfo)
	if err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	details, fields := parseIncidentDetails(string(vehicle), req.IncidentDescription, req.IncidentDate, req.Location)
	if len(fields) > 0 {
		response.Validation(c, fields)
		return
	}

	updated, err := h.uc.UpdateDetails.Execute(c.Request.Context(), claim.UpdateIncidentDetailsInput{
		ClaimID: claimID,
		Details: details,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ClaimEnvelope{
		Message: "Claim updated successfully",
		Claim:   dto.ToClaimResponse(updated),
	})
}

// Reanalyze обрабатывает POST /api/claims/:id/reanalyze.
func (h *ClaimHandler) Reanalyze(c *gin.Context) {
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	updated, err := h.uc.Reanalyze.Execute(c.Request.Context(), claimID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ClaimEnvelope{
		Message: "Claim reanalyzed successfully",
		Claim:   dto.ToClaimResponse(updated),
	})
}

// Delete обрабатывает DELETE /api/claims/:id.
func (h *ClaimHandler) Delete(c *gin.Context) {
	claimID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.uc.Delete.Execute(c.Request.Context(), claimID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Claim deleted successfully")
}

// parseIncidentDetails разбирает поля происшествия и проверяет только их формат.
// Обязательность полей проверяет домен после поиска пользователя.
func parseIncidentDetails(vehicleJSON, description, incidentDate, location string) (entity.IncidentDetails, map[string]string) {
	fields := map[string]string{}
	details := entity.IncidentDetails{
		IncidentDescription: description,
		Location:            location,
	}

	if strings.TrimSpace(vehicleJSON) != "" {
		if err := json.Unmarshal([]byte(vehicleJSON), &details.VehicleInfo); err != nil {
			fields["vehicleInfo"] = "данные автомобиля должны быть JSON-объектом"
		} else {
			if err := validation.ValidateVIN(details.VehicleInfo.VIN); err != nil {
				fields["vehicleInfo.vin"] = err.Error()
			}
			if err := validation.ValidateLicensePlate(details.VehicleInfo.LicensePlate); err != nil {
				fields["vehicleInfo.licensePlate"] = err.Error()
			}
		}
	}

	if strings.TrimSpace(incidentDate) != "" {
		parsed, err := dto.ParseIncidentDate(strings.TrimSpace(incidentDate))
		if err != nil {
			fields["incidentDate"] = "дата должна быть в формате RFC3339 или YYYY-MM-DD"
		}
		details.IncidentDate = parsed
	}

	return details, fields
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// readImages читает не более maxBytes+1 байт каждого файла, чтобы превышение
// лимита обнаружила проверка изображений.
func readImages(files []*multipart.FileHeader, maxBytes int64) ([]claim.ImageUpload, error) {
	images := make([]claim.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
		}
		images = append(images, claim.ImageUpload{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return images, nil
}
