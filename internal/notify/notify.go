// Package notify delivers best-effort health-check pings. Delivery
// failures are logged and swallowed; nothing in the controller waits on
// or reacts to a notification outcome.
package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

type Notifier struct {
	url    string
	http   *http.Client
	logger *logrus.Logger
}

// NewNotifier returns a notifier posting to url. An empty url disables
// delivery entirely.
func NewNotifier(url string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		url:    url,
		http:   &http.Client{Timeout: sendTimeout},
		logger: logger,
	}
}

// Notify posts message as a plain-text body. Fire and forget.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if n.url == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		n.logger.WithError(err).Warn("Health check request build failed")
		return
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.WithError(err).Warn("Health check delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		n.logger.WithField("message", message).Debug("Health check delivered")
	} else {
		n.logger.WithField("status", resp.StatusCode).Warn("Health check rejected")
	}
}
