package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/simflowlab/simflow/pkg/api/middleware"
)

type sweepForm struct {
	Name     string `json:"name" validate:"required"`
	Schedule string `json:"schedule" validate:"cron"`
	Batch    int    `json:"batch" validate:"min=0,max=100"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		form    sweepForm
		wantErr bool
	}{
		{"valid", sweepForm{Name: "nightly", Schedule: "0 2 * * *", Batch: 10}, false},
		{"empty schedule allowed", sweepForm{Name: "adhoc"}, false},
		{"missing name", sweepForm{Schedule: "0 2 * * *"}, true},
		{"bad cron", sweepForm{Name: "nightly", Schedule: "not a cron"}, true},
		{"batch too large", sweepForm{Name: "nightly", Batch: 500}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := middleware.ValidateRequest(tt.form)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	err := middleware.ValidateRequest(sweepForm{Schedule: "bad"})
	assert.Error(t, err)

	details := middleware.ValidationErrorResponse(err)
	assert.Contains(t, details, "Name")
	assert.Contains(t, details, "Schedule")
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/sweeps", func(c *gin.Context) {
		var form sweepForm
		if !middleware.BindAndValidate(c, &form) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": form.Name})
	})

	t.Run("valid body", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name": "nightly", "schedule": "0 2 * * *"}`)
		req := httptest.NewRequest(http.MethodPost, "/sweeps", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name": `)
		req := httptest.NewRequest(http.MethodPost, "/sweeps", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		body := bytes.NewBufferString(`{"schedule": "bad cron"}`)
		req := httptest.NewRequest(http.MethodPost, "/sweeps", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
