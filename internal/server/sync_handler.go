package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mmsync/mmsync/internal/filter"
	"github.com/mmsync/mmsync/internal/loader"
	"github.com/mmsync/mmsync/internal/trange"
)

// SyncPayload 是 POST /api/v1/sync 的请求体。
type SyncPayload struct {
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Instrument    string   `json:"instrument"`
	Probes        []string `json:"probes"`
	DataRates     []string `json:"data_rates"`
	Levels        []string `json:"levels"`
	Datatypes     []string `json:"datatypes"`
	Mode          string   `json:"mode"`
	CDFVersion    string   `json:"cdf_version"`
	LatestVersion bool     `json:"latest_version"`
	MajorVersion  bool     `json:"major_version"`
	MinVersion    string   `json:"min_version"`
	NoUpdate      bool     `json:"no_update"`
}

// Request converts the payload into a loader request.
func (p SyncPayload) Request() (loader.Request, error) {
	r, err := trange.Parse(p.Start, p.End)
	if err != nil {
		return loader.Request{}, err
	}
	mode, err := loader.ParseMode(p.Mode)
	if err != nil {
		return loader.Request{}, err
	}
	if mode == loader.ModeIngest {
		return loader.Request{}, errors.New("ingest mode is not available over http")
	}
	return loader.Request{
		TimeRange:  r,
		Instrument: p.Instrument,
		Probes:     p.Probes,
		DataRates:  p.DataRates,
		Levels:     p.Levels,
		Datatypes:  p.Datatypes,
		Mode:       mode,
		NoUpdate:   p.NoUpdate,
		Policy: filter.Policy{
			Version:    strings.TrimSpace(p.CDFVersion),
			Latest:     p.LatestVersion,
			Major:      p.MajorVersion,
			MinVersion: strings.TrimSpace(p.MinVersion),
		},
	}, nil
}

func syncHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		fields := logrus.Fields{
			"action":     "api_sync",
			"request_id": RequestID(c),
		}

		var payload SyncPayload
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return renderError(c, fiber.StatusBadRequest, "invalid_json", err)
		}
		req, err := payload.Request()
		if err != nil {
			return renderError(c, fiber.StatusBadRequest, "invalid_request", err)
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := opts.Syncer.Sync(ctx, req)
		if err != nil {
			opts.Logger.WithFields(fields).WithError(err).Warn("api_sync_failed")
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return renderError(c, fiber.StatusServiceUnavailable, "sync_canceled", err)
			}
			return renderError(c, fiber.StatusBadRequest, "invalid_request", err)
		}

		fields["kind"] = string(result.Kind)
		fields["items"] = len(result.Items())
		opts.Logger.WithFields(fields).Info("api_sync_completed")
		return c.JSON(result)
	}
}

func renderError(c fiber.Ctx, status int, code string, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error":  code,
		"detail": err.Error(),
	})
}
