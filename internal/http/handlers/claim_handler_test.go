package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/http/middleware"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
)

type submitterMock struct{ mock.Mock }

func (m *submitterMock) Execute(ctx context.Context, input claim.SubmitClaimInput) (*entity.Claim, error) {
	args := m.Called(ctx, input)
	c, _ := args.Get(0).(*entity.Claim)
	return c, args.Error(1)
}

type getterFunc func(ctx context.Context, id uuid.UUID, viewer claim.Viewer) (*entity.Claim, error)

func (f getterFunc) Execute(ctx context.Context, id uuid.UUID, viewer claim.Viewer) (*entity.Claim, error) {
	return f(ctx, id, viewer)
}

type statusUpdaterFunc func(ctx context.Context, input claim.UpdateStatusInput) (*entity.Claim, error)

func (f statusUpdaterFunc) Execute(ctx context.Context, input claim.UpdateStatusInput) (*entity.Claim, error) {
	return f(ctx, input)
}

type userListerFunc func(ctx context.Context, input claim.ListUserClaimsInput) (*claim.ClaimPage, error)

func (f userListerFunc) Execute(ctx context.Context, input claim.ListUserClaimsInput) (*claim.ClaimPage, error) {
	return f(ctx, input)
}

type deleterFunc func(ctx context.Context, id uuid.UUID) error

func (f deleterFunc) Execute(ctx context.Context, id uuid.UUID) error {
	return f(ctx, id)
}

var testLimits = claim.ImageLimits{MaxImages: 2, MaxImageBytes: 1 << 20, Workers: 2}

func newTestRouter(userID uuid.UUID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextRoleKey, role)
		}
		c.Next()
	})
	return r
}

func sampleClaim(userID uuid.UUID) *entity.Claim {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &entity.Claim{
		ID:                  uuid.New(),
		ClaimNumber:         "CLM-TEST-0001",
		UserID:              userID,
		VehicleInfo:         entity.VehicleInfo{Make: "Toyota", Model: "Corolla", Year: 2020},
		IncidentDescription: "Rear bumper dented",
		IncidentDate:        now.Add(-48 * time.Hour),
		ImageRefs:           []string{},
		DamageAnalyses:      []entity.DamageAnalysis{},
		Severity:            valueobject.SeverityMinor,
		EstimatedAmount:     1000,
		Status:              valueobject.ClaimStatusPending,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}
}

func multipartBody(t *testing.T, fields map[string]string, images map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range images {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Success bool                   `json:"success"`
		Error   map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestClaimHandler_Submit_Unauthorized(t *testing.T) {
	r := newTestRouter(uuid.Nil, "")
	h := NewClaimHandler(ClaimUseCases{}, testLimits)
	r.POST("/claims/submit", h.Submit)

	body, contentType := multipartBody(t, map[string]string{"incidentDescription": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/claims/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClaimHandler_Submit_Created(t *testing.T) {
	userID := uuid.New()
	r := newTestRouter(userID, entity.RoleUser)

	submitter := &submitterMock{}
	created := sampleClaim(userID)
	submitter.On("Execute", mock.Anything, mock.MatchedBy(func(in claim.SubmitClaimInput) bool {
		return in.UserID == userID &&
			in.Details.VehicleInfo.Make == "Toyota" &&
			in.Details.IncidentDate.Equal(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)) &&
			len(in.Images) == 1 && string(in.Images[0].Data) == "fake-image"
	})).Return(created, nil).Once()

	h := NewClaimHandler(ClaimUseCases{Submit: submitter}, testLimits)
	r.POST("/claims/submit", h.Submit)

	body, contentType := multipartBody(t, map[string]string{
		"vehicleInfo":         `{"make":"Toyota","model":"Corolla","year":2020}`,
		"incidentDescription": "Rear bumper dented",
		"incidentDate":        "2026-02-27",
		"location":            "Main St",
	}, map[string][]byte{"front.jpg": []byte("fake-image")})
	req := httptest.NewRequest(http.MethodPost, "/claims/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Message string `json:"message"`
		Claim   struct {
			ClaimNumber string `json:"claimNumber"`
			Status      string `json:"status"`
		} `json:"claim"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Claim submitted successfully", resp.Message)
	assert.Equal(t, "CLM-TEST-0001", resp.Claim.ClaimNumber)
	assert.Equal(t, "pending", resp.Claim.Status)
	submitter.AssertExpectations(t)
}

func TestClaimHandler_Submit_ValidationErrors(t *testing.T) {
	r := newTestRouter(uuid.New(), entity.RoleUser)
	h := NewClaimHandler(ClaimUseCases{Submit: &submitterMock{}}, testLimits)
	r.POST("/claims/submit", h.Submit)

	body, contentType := multipartBody(t, map[string]string{
		"vehicleInfo":  `not json`,
		"incidentDate": "yesterday",
	}, map[string][]byte{"a.jpg": {1}, "b.jpg": {2}, "c.jpg": {3}})
	req := httptest.NewRequest(http.MethodPost, "/claims/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, string(apperror.ErrCodeValidation), errInfo["code"])
	fields, _ := errInfo["fields"].(map[string]interface{})
	assert.Contains(t, fields, "vehicleInfo")
	assert.Contains(t, fields, "incidentDate")
	assert.Contains(t, fields, "images")
}

func TestClaimHandler_Submit_ForOtherUserRequiresAdmin(t *testing.T) {
	r := newTestRouter(uuid.New(), entity.RoleUser)
	h := NewClaimHandler(ClaimUseCases{Submit: &submitterMock{}}, testLimits)
	r.POST("/claims/submit", h.Submit)

	body, contentType := multipartBody(t, map[string]string{
		"userId":      uuid.NewString(),
		"vehicleInfo": `{"make":"Toyota","model":"Corolla","year":2020}`,
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/claims/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClaimHandler_Submit_UserNotFound(t *testing.T) {
	adminID := uuid.New()
	target := uuid.New()
	r := newTestRouter(adminID, entity.RoleAdmin)

	submitter := &submitterMock{}
	submitter.On("Execute", mock.Anything, mock.MatchedBy(func(in claim.SubmitClaimInput) bool {
		return in.UserID == target
	})).Return(nil, apperror.ErrUserNotFound).Once()

	h := NewClaimHandler(ClaimUseCases{Submit: submitter}, testLimits)
	r.POST("/claims/submit", h.Submit)

	body, contentType := multipartBody(t, map[string]string{
		"userId":              target.String(),
		"vehicleInfo":         `{"make":"Toyota","model":"Corolla","year":2020}`,
		"incidentDescription": "Scratch",
		"incidentDate":        "2026-02-27T10:00:00Z",
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/claims/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	submitter.AssertExpectations(t)
}

func TestClaimHandler_Get(t *testing.T) {
	userID := uuid.New()
	found := sampleClaim(userID)

	r := newTestRouter(userID, entity.RoleUser)
	h := NewClaimHandler(ClaimUseCases{Get: getterFunc(func(_ context.Context, id uuid.UUID, viewer claim.Viewer) (*entity.Claim, error) {
		if id != found.ID {
			return nil, apperror.ErrClaimNotFound
		}
		assert.Equal(t, userID, viewer.ID)
		assert.False(t, viewer.IsAdmin)
		return found, nil
	})}, testLimits)
	r.GET("/claims/:id", h.Get)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/claims/"+found.ID.String(), nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"claimNumber":"CLM-TEST-0001"`)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/claims/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(apperror.ErrCodeNotFound), decodeError(t, w)["code"])
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/claims/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClaimHandler_ListUser_PassesPagination(t *testing.T) {
	userID := uuid.New()
	r := newTestRouter(userID, entity.RoleUser)

	var got claim.ListUserClaimsInput
	h := NewClaimHandler(ClaimUseCases{ListUser: userListerFunc(func(_ context.Context, in claim.ListUserClaimsInput) (*claim.ClaimPage, error) {
		got = in
		return &claim.ClaimPage{Claims: []*entity.Claim{sampleClaim(userID)}, Total: 11, TotalPages: 3, CurrentPage: 2}, nil
	})}, testLimits)
	r.GET("/claims/user/:userId", h.ListUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/claims/user/"+userID.String()+"?page=2&limit=5&status=pending", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, userID, got.UserID)

	var resp struct {
		Claims      []json.RawMessage `json:"claims"`
		TotalPages  int               `json:"totalPages"`
		CurrentPage int               `json:"currentPage"`
		Total       int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Claims, 1)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.CurrentPage)
	assert.Equal(t, 11, resp.Total)
}

func TestClaimHandler_UpdateStatus(t *testing.T) {
	adminID := uuid.New()
	updated := sampleClaim(uuid.New())
	updated.Status = valueobject.ClaimStatusApproved

	r := newTestRouter(adminID, entity.RoleAdmin)
	h := NewClaimHandler(ClaimUseCases{UpdateStatus: statusUpdaterFunc(func(_ context.Context, in claim.UpdateStatusInput) (*entity.Claim, error) {
		if in.Status == "pending" {
			return nil, apperror.InvalidTransition("approved", "pending")
		}
		assert.Equal(t, adminID, in.ActorID)
		require.NotNil(t, in.FinalAmount)
		assert.Equal(t, 1500.0, *in.FinalAmount)
		return updated, nil
	})}, testLimits)
	r.PATCH("/claims/:id/status", h.UpdateStatus)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/claims/"+updated.ID.String()+"/status", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(`{"status":"approved","finalAmount":1500}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Claim status updated successfully"`)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)

	w = send(`{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperror.ErrCodeInvalidTransition), decodeError(t, w)["code"])

	w = send(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandler_Delete(t *testing.T) {
	existing := uuid.New()
	r := newTestRouter(uuid.New(), entity.RoleAdmin)
	h := NewClaimHandler(ClaimUseCases{Delete: deleterFunc(func(_ context.Context, id uuid.UUID) error {
		if id != existing {
			return apperror.ErrClaimNotFound
		}
		return nil
	})}, testLimits)
	r.DELETE("/claims/:id", h.Delete)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/claims/"+existing.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Claim deleted successfully"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/claims/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseIncidentDetails_ValidatesVehicleIdentifiers(t *testing.T) {
	_, fields := parseIncidentDetails(`{"make":"A","model":"B","year":2020,"vin":"SHORT"}`, "desc", "", "")
	assert.Contains(t, fields, "vehicleInfo.vin")

	details, fields := parseIncidentDetails(`{"make":"A","model":"B","year":2020}`, "desc", "2026-01-02", "here")
	assert.Empty(t, fields)
	assert.Equal(t, 2, details.IncidentDate.Day())
	assert.Equal(t, "here", details.Location)
}
