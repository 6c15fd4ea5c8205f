package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/dto"
	"github.com/javandres/bultti-inspections-api/internal/middleware"
	"github.com/javandres/bultti-inspections-api/internal/models"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
)

type inspectionServiceMock struct {
	inspection *models.Inspection
	err        error

	lastQuery dto.InspectionQuery
	lastParty models.AcceptanceParty
	removed   string
}

func (m *inspectionServiceMock) result() (*models.Inspection, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.inspection != nil {
		return m.inspection, nil
	}
	return &models.Inspection{ID: "insp-1", Status: models.StatusDraft}, nil
}

func (m *inspectionServiceMock) Create(ctx context.Context, req dto.CreateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) List(ctx context.Context, query dto.InspectionQuery, claims *models.JWTClaims) ([]models.Inspection, *models.Pagination, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.Inspection{{ID: "insp-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *inspectionServiceMock) Update(ctx context.Context, id string, req dto.UpdateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) Submit(ctx context.Context, id string, req dto.SubmitInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) MakeSanctionable(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) AbandonSanctions(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) Accept(ctx context.Context, id string, party models.AcceptanceParty, claims *models.JWTClaims) (*models.Inspection, error) {
	m.lastParty = party
	return m.result()
}

func (m *inspectionServiceMock) Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) Reject(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) Remove(ctx context.Context, id string, claims *models.JWTClaims) error {
	m.removed = id
	return m.err
}

func (m *inspectionServiceMock) UpdateLinkedInspections(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	return m.result()
}

func (m *inspectionServiceMock) InEffect(ctx context.Context, query dto.InEffectQuery) (*dto.InEffectResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.InEffectResponse{OperatorID: query.OperatorID, SeasonID: query.SeasonID, DocumentType: query.DocumentType, InEffect: false}, nil
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestInspectionHandlerCreate(t *testing.T) {
	mock := &inspectionServiceMock{}
	h := NewInspectionHandler(mock, nil)

	body, _ := json.Marshal(dto.CreateInspectionRequest{
		OperatorID:   7,
		SeasonID:     "season-1",
		DocumentType: models.DocumentTypePre,
	})
	c, w := testContext(t, http.MethodPost, "/inspections", body, adminClaims())
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestInspectionHandlerCreateRequiresAuth(t *testing.T) {
	h := NewInspectionHandler(&inspectionServiceMock{}, nil)
	c, w := testContext(t, http.MethodPost, "/inspections", []byte(`{}`), nil)
	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInspectionHandlerCreateInvalidBody(t *testing.T) {
	h := NewInspectionHandler(&inspectionServiceMock{}, nil)
	c, w := testContext(t, http.MethodPost, "/inspections", []byte(`not json`), adminClaims())
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInspectionHandlerListParsesQuery(t *testing.T) {
	mock := &inspectionServiceMock{}
	h := NewInspectionHandler(mock, nil)

	c, w := testContext(t, http.MethodGet, "/inspections?operatorId=7&documentType=pre&status=draft,in_review&page=2&pageSize=10", nil, adminClaims())
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.lastQuery.OperatorID)
	require.EqualValues(t, 7, *mock.lastQuery.OperatorID)
	require.Equal(t, models.DocumentTypePre, mock.lastQuery.DocumentType)
	require.Equal(t, []models.InspectionStatus{models.StatusDraft, models.StatusInReview}, mock.lastQuery.Status)
	require.Equal(t, 2, mock.lastQuery.Page)
	require.Equal(t, 10, mock.lastQuery.PageSize)
}

func TestInspectionHandlerListRejectsBadOperatorID(t *testing.T) {
	h := NewInspectionHandler(&inspectionServiceMock{}, nil)
	c, w := testContext(t, http.MethodGet, "/inspections?operatorId=abc", nil, adminClaims())
	h.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInspectionHandlerAcceptPassesParty(t *testing.T) {
	mock := &inspectionServiceMock{}
	h := NewInspectionHandler(mock, nil)

	body, _ := json.Marshal(dto.AcceptInspectionRequest{Party: models.PartyOperator})
	c, w := testContext(t, http.MethodPost, "/inspections/insp-1/accept", body, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Accept(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.PartyOperator, mock.lastParty)
}

func TestInspectionHandlerErrorMapping(t *testing.T) {
	mock := &inspectionServiceMock{err: appErrors.ErrInvalidTransition}
	h := NewInspectionHandler(mock, nil)

	c, w := testContext(t, http.MethodPost, "/inspections/insp-1/publish", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Publish(c)
	require.Equal(t, http.StatusConflict, w.Code)

	mock.err = appErrors.ErrNotFound
	c, w = testContext(t, http.MethodGet, "/inspections/missing", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Lost races carry a retry hint; terminal failures do not.
	mock.err = appErrors.ErrConcurrentModification
	c, w = testContext(t, http.MethodPost, "/inspections/insp-1/publish", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Publish(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "0", w.Header().Get("Retry-After"))

	mock.err = appErrors.ErrInvalidTransition
	c, w = testContext(t, http.MethodPost, "/inspections/insp-1/publish", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Publish(c)
	require.Empty(t, w.Header().Get("Retry-After"))
}

func TestInspectionHandlerRemove(t *testing.T) {
	mock := &inspectionServiceMock{}
	h := NewInspectionHandler(mock, nil)

	c, w := testContext(t, http.MethodDelete, "/inspections/insp-1", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Remove(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "insp-1", mock.removed)
}

func TestInspectionHandlerInEffectScopesOperators(t *testing.T) {
	h := NewInspectionHandler(&inspectionServiceMock{}, nil)

	operator := &models.JWTClaims{UserID: "op-1", Role: models.RoleOperator, OperatorIDs: []int64{9}}
	c, w := testContext(t, http.MethodGet, "/inspections/in-effect?operatorId=7&seasonId=season-1&documentType=PRE", nil, operator)
	h.InEffect(c)
	require.Equal(t, http.StatusForbidden, w.Code)

	c, w = testContext(t, http.MethodGet, "/inspections/in-effect?operatorId=7&seasonId=season-1&documentType=PRE", nil, adminClaims())
	h.InEffect(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestInspectionHandlerEventsNotConfigured(t *testing.T) {
	h := NewInspectionHandler(&inspectionServiceMock{}, nil)
	c, w := testContext(t, http.MethodGet, "/inspections/insp-1/events", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	h.Events(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
