package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name    string `json:"name" validate:"required"`
	Percent int    `json:"percent" validate:"gte=0,lte=100"`
}

func TestHandleBody(t *testing.T) {
	log := logger.NewNop()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","percent":50}`))
	body, err := HandleBody[payload](w, r, log)
	require.NoError(t, err)
	assert.Equal(t, "a", body.Name)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	_, err = HandleBody[payload](w, r, log)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"percent":150}`))
	_, err = HandleBody[payload](w, r, log)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"Name":"required"`)
	assert.Contains(t, w.Body.String(), `"Percent":"lte"`)
}
