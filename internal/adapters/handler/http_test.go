package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) Submit(ctx context.Context, uploads []port.Upload, mode domain.Mode) (string, error) {
	args := m.Called(ctx, uploads, mode)
	return args.String(0), args.Error(1)
}

func (m *MockBatchService) Status(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).(domain.BatchStatus), args.Error(1)
}

func (m *MockBatchService) Purge(ctx context.Context, batchID string) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(batchID, dir, name string) (string, error) {
	args := m.Called(batchID, dir, name)
	return args.String(0), args.Error(1)
}

const testUploadLimit = 1 << 20

func multipartBody(t *testing.T, mode string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if mode != "" {
		require.NoError(t, mw.WriteField("mode", mode))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		setup    func(m *MockBatchService)
		wantCode int
		wantBody string
	}{
		{
			name: "accepted",
			mode: "ozon_3_4",
			setup: func(m *MockBatchService) {
				m.On("Submit", mock.Anything, mock.MatchedBy(func(u []port.Upload) bool {
					return len(u) == 1 && u[0].Name == "a.png"
				}), domain.ForcedMode(domain.Ozon)).
					Run(func(args mock.Arguments) {
						data, err := io.ReadAll(args.Get(1).([]port.Upload)[0].Body)
						if assert.NoError(t, err) {
							assert.Equal(t, "png-bytes", string(data))
						}
					}).
					Return("abcd1234", nil)
			},
			wantCode: http.StatusAccepted,
			wantBody: `{"batch_id":"abcd1234"}`,
		},
		{
			name:     "bad mode",
			mode:     "sideways",
			setup:    func(m *MockBatchService) {},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "validation error from scheduler",
			setup: func(m *MockBatchService) {
				m.On("Submit", mock.Anything, mock.Anything, domain.OriginalMode).
					Return("", domain.ErrValidation)
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "internal error",
			setup: func(m *MockBatchService) {
				m.On("Submit", mock.Anything, mock.Anything, domain.OriginalMode).
					Return("", errors.New("disk full"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockBatchService)
			tt.setup(svc)

			body, contentType := multipartBody(t, tt.mode, map[string]string{"a.png": "png-bytes"})
			req := httptest.NewRequest(http.MethodPost, "/api/batches", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			NewHTTP(svc, new(MockResolver), testUploadLimit).Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	svc := new(MockBatchService)

	body, contentType := multipartBody(t, "", map[string]string{"big.png": strings.Repeat("x", 4096)})
	req := httptest.NewRequest(http.MethodPost, "/api/batches", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	NewHTTP(svc, new(MockResolver), 1024).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatus(t *testing.T) {
	svc := new(MockBatchService)
	svc.On("Status", mock.Anything, "abcd1234").Return(domain.BatchStatus{
		BatchID: "abcd1234", Status: domain.JobProcessing, Total: 3, Processed: 1, Succeeded: 1,
		Items: []domain.ItemResult{{OriginalName: "a.png", ProducedName: "translated_a.png", Status: domain.ItemSuccess}},
	}, nil)
	svc.On("Status", mock.Anything, "missing").Return(domain.BatchStatus{}, domain.ErrBatchNotFound)

	router := NewHTTP(svc, new(MockResolver), testUploadLimit).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batches/abcd1234", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.BatchStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.JobProcessing, got.Status)
	assert.Equal(t, 1, got.Processed)
	assert.Len(t, got.Items, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batches/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurge(t *testing.T) {
	svc := new(MockBatchService)
	svc.On("Purge", mock.Anything, "done1234").Return(nil)
	svc.On("Purge", mock.Anything, "busy1234").Return(domain.ErrValidation)

	router := NewHTTP(svc, new(MockResolver), testUploadLimit).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/batches/done1234", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/batches/busy1234", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeFiles(t *testing.T) {
	dir := t.TempDir()
	result := filepath.Join(dir, "translated_a.png")
	require.NoError(t, os.WriteFile(result, []byte("result"), 0o644))
	input := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(input, []byte("input"), 0o644))

	files := new(MockResolver)
	files.On("Resolve", "b1", "output", "translated_a.png").Return(result, nil)
	files.On("Resolve", "b1", "input", "a.png").Return(input, nil)
	files.On("Resolve", "b1", "output", "nope.png").Return("", os.ErrNotExist)

	router := NewHTTP(new(MockBatchService), files, testUploadLimit).Router()

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/api/download/b1/translated_a.png", wantCode: http.StatusOK, wantBody: "result"},
		{path: "/api/temp-images/b1/a.png", wantCode: http.StatusOK, wantBody: "input"},
		{path: "/api/download/b1/nope.png", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
	files.AssertExpectations(t)
}
