// Package weather implements the AEMET OpenData forecast client and the
// daily-payload parser. AEMET serves data in two steps: the API endpoint
// returns a small envelope pointing at a data URL, and the data URL returns
// the actual forecast document.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"agendabot/internal/external"
	"agendabot/internal/types"
)

// maxResponseBytes caps forecast document reads. AEMET daily documents are a
// few KB; anything past this is a broken upstream.
const maxResponseBytes = 4 << 20

// envelope is the first-step AEMET response.
type envelope struct {
	Descripcion string `json:"descripcion"`
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
}

// Client fetches municipal daily forecasts from AEMET OpenData.
type Client struct {
	base    *external.BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewClient creates an AEMET client routed through the shared resilient
// BaseClient.
func NewClient(httpClient *http.Client, baseURL string, apiKey types.SecretString, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base: external.NewBaseClient(
			httpClient,
			"aemet",
			external.DefaultRetryPolicy(),
			types.ErrCodeUpstreamForecast,
		),
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// fetch performs one GET against url and returns the body. The api_key header
// is sent on every request; AEMET requires it on the envelope endpoint and
// ignores it on the data URL.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api_key", c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast endpoint returned %d", resp.StatusCode),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "failed to read forecast response", err)
	}
	return body, nil
}

// DailyForecast fetches, parses, and consolidates the daily forecast for one
// municipality code.
//
// Transport failures (either fetch step) return an error so the bot can reply
// "try again later". Payload-shape failures never do: the parser degrades to
// sentinel day-parts and the digest still goes out.
func (c *Client) DailyForecast(ctx context.Context, municipalityCode string) (types.Forecast, error) {
	url := fmt.Sprintf("%s/api/prediccion/especifica/municipio/diaria/%s", c.baseURL, municipalityCode)
	body, err := c.fetch(ctx, url)
	if err != nil {
		return types.Forecast{}, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return types.Forecast{}, types.NewAppError(types.ErrCodeUpstreamForecast, "failed to decode forecast envelope", err)
	}
	if env.Estado != http.StatusOK || env.Datos == "" {
		return types.Forecast{}, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast envelope reported estado %d", env.Estado),
			nil,
		)
	}

	payload, err := c.fetch(ctx, env.Datos)
	if err != nil {
		return types.Forecast{}, err
	}

	parts, windows := ParseDaily(payload)
	if parts == types.ProcessingErrorDayParts() {
		c.logger.WarnContext(ctx, "forecast payload failed to parse, using sentinel day-parts",
			"municipality", municipalityCode,
		)
	}

	return types.Forecast{
		Parts:         parts,
		RainIntervals: Consolidate(windows),
	}, nil
}
