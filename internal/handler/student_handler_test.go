package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Amdreaith/elearning-api/internal/models"
	"github.com/Amdreaith/elearning-api/internal/service"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

type studentServiceMock struct {
	listResp   []models.Student
	searchResp []models.Student
	getResp    *models.Student
	getErr     error
	createResp *models.Student
	createErr  error
	updateResp *models.Student
	updateErr  error
	deleteErr  error

	lastFilter models.StudentFilter
	lastQuery  string
	lastCreate service.CreateStudentRequest
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	m.lastFilter = filter
	return m.listResp, nil
}

func (m *studentServiceMock) Search(ctx context.Context, q string) ([]models.Student, error) {
	m.lastQuery = q
	return m.searchResp, nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	return m.getResp, m.getErr
}

func (m *studentServiceMock) Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	m.lastCreate = req
	return m.createResp, m.createErr
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error) {
	return m.updateResp, m.updateErr
}

func (m *studentServiceMock) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func TestStudentHandlerListActiveFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{listResp: []models.Student{{Name: "Jane"}, {Name: "John"}}}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students?active=true", nil)
	c.Request = req

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Active)
	assert.True(t, *mockSvc.lastFilter.Active)

	var body struct {
		Success bool            `json:"success"`
		Count   int             `json:"count"`
		Data    []models.Student `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Data, 2)
}

func TestStudentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	created := &models.Student{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com", IsActive: true}
	mockSvc := &studentServiceMock{createResp: created}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(`{"name":"Jane","email":"jane@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Jane", mockSvc.lastCreate.Name)
	assert.Contains(t, w.Body.String(), "jane@example.com")
}

func TestStudentHandlerCreateValidationDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{
		createErr: appErrors.WithDetails(appErrors.ErrValidation, []string{"Name is required", "Invalid email format"}),
	}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(`{"email":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation Error", body.Error)
	assert.Equal(t, []string{"Name is required", "Invalid email format"}, body.Details)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "Student not found")}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/"+primitive.NewObjectID().Hex(), nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}

	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Student not found")
}

func TestStudentHandlerDeleteConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{deleteErr: appErrors.Clone(appErrors.ErrConflict, "Student has existing enrollments")}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/students/abc", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	h.Delete(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Student has existing enrollments")
}

func TestStudentHandlerSearchPassesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{searchResp: []models.Student{{Name: "Jane"}}}
	h := NewStudentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/search?q=jane", nil)
	c.Request = req

	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jane", mockSvc.lastQuery)
}
