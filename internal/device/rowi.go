// Package device implements the HTTP client for the ROWI smart plug that
// switches the pump and reports instantaneous power draw.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hydrohome/sumpctl/internal/models"
)

var (
	ErrRelayRejected = errors.New("relay command rejected by device")
	ErrUnavailable   = errors.New("device unavailable")
)

const (
	requestTimeout = 10 * time.Second

	relayAttempts = 3
	relayBackoff  = 2 * time.Second
)

// Client talks to the plug's embedded web server. All requests pass
// through a rate limiter; the sampler polls at 2 Hz and the embedded
// server falls over well below 10 req/s.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
	backoff time.Duration
}

func NewClient(address string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: "http://" + address,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(4, 2),
		logger:  logger,
		backoff: relayBackoff,
	}
}

// flexFloat tolerates the firmware reporting numeric fields as either
// JSON numbers or quoted strings, which varies across firmware versions.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type relayResponse struct {
	Result string `json:"rslt"`
}

type powerResponse struct {
	Result   string    `json:"rslt"`
	PowerW   flexFloat `json:"pmom"`
	CurrentA flexFloat `json:"imad"`
	VoltageV flexFloat `json:"volt"`
}

// SetRelay commands the relay on or off. The device call is retried a
// fixed number of times with a fixed backoff; only after exhaustion does
// the caller see an error. Safe to retry: the command is idempotent.
func (c *Client) SetRelay(ctx context.Context, on bool) error {
	action := "off"
	if on {
		action = "on"
	}

	var lastErr error
	for attempt := 1; attempt <= relayAttempts; attempt++ {
		lastErr = c.setRelayOnce(ctx, action)
		if lastErr == nil {
			c.logger.WithFields(logrus.Fields{
				"action":  action,
				"attempt": attempt,
			}).Info("Relay command confirmed")
			return nil
		}

		c.logger.WithFields(logrus.Fields{
			"action":  action,
			"attempt": attempt,
		}).WithError(lastErr).Warn("Relay command failed")

		if attempt < relayAttempts {
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("relay %s after %d attempts: %w", action, relayAttempts, lastErr)
}

func (c *Client) setRelayOnce(ctx context.Context, action string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]string{"data": action})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/setRelayStatus", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var rr relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to decode relay response: %w", err)
	}
	if rr.Result != "OK" {
		return fmt.Errorf("%w: rslt=%q", ErrRelayRejected, rr.Result)
	}
	return nil
}

// ReadPower takes a single power meter reading. No retry here: a failed
// poll is just a missing sample, and the sampler polls again on the next
// tick anyway.
func (c *Client) ReadPower(ctx context.Context) (models.PowerSample, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return models.PowerSample{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getPowerMeterData", nil)
	if err != nil {
		return models.PowerSample{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.PowerSample{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.PowerSample{}, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var pr powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return models.PowerSample{}, fmt.Errorf("failed to decode power response: %w", err)
	}
	if pr.Result != "OK" {
		return models.PowerSample{}, fmt.Errorf("%w: rslt=%q", ErrUnavailable, pr.Result)
	}

	return models.PowerSample{
		PowerW:    float64(pr.PowerW),
		CurrentA:  float64(pr.CurrentA),
		VoltageV:  float64(pr.VoltageV),
		Timestamp: time.Now(),
	}, nil
}
