package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/types"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_DailyForecast_TwoStepFetch(t *testing.T) {
	payload := samplePayload(
		`{"periodo":"00-06","descripcion":"Despejado"},`+
			`{"periodo":"06-12","descripcion":"Nuboso"},`+
			`{"periodo":"12-18","descripcion":"Cubierto"},`+
			`{"periodo":"18-24","descripcion":"Despejado"}`,
		`{"periodo":"00-06","value":70},`+
			`{"periodo":"06-12","value":80}`,
	)

	var envelopeKey, dataKey string
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/prediccion/especifica/municipio/diaria/28079", func(w http.ResponseWriter, r *http.Request) {
		envelopeKey = r.Header.Get("api_key")
		fmt.Fprintf(w, `{"descripcion":"exito","estado":200,"datos":"%s/datos/28079"}`, srv.URL)
	})
	mux.HandleFunc("/datos/28079", func(w http.ResponseWriter, r *http.Request) {
		dataKey = r.Header.Get("api_key")
		_, _ = w.Write(payload)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, types.SecretString("secret-key"), testLogger())

	forecast, err := client.DailyForecast(context.Background(), "28079")
	require.NoError(t, err)

	assert.Equal(t, "Despejado", forecast.Parts.Dawn)
	assert.Equal(t, "Nuboso", forecast.Parts.Morning)
	assert.Equal(t, []string{"00-12"}, forecast.RainIntervals)
	assert.Equal(t, "secret-key", envelopeKey)
	assert.Equal(t, "secret-key", dataKey)
}

func TestClient_DailyForecast_EnvelopeErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"descripcion":"datos no encontrados","estado":404,"datos":""}`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, types.SecretString("k"), testLogger())

	_, err := client.DailyForecast(context.Background(), "28079")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamForecast, appErr.Code)
}

func TestClient_DailyForecast_MalformedPayloadDegrades(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/prediccion/especifica/municipio/diaria/28079", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"descripcion":"exito","estado":200,"datos":"%s/datos/28079"}`, srv.URL)
	})
	mux.HandleFunc("/datos/28079", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`this is not json`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL, types.SecretString("k"), testLogger())

	forecast, err := client.DailyForecast(context.Background(), "28079")
	require.NoError(t, err)

	assert.Equal(t, types.ProcessingErrorDayParts(), forecast.Parts)
	assert.Empty(t, forecast.RainIntervals)
}
