package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

// ErrBadCommand reports an override string the parser does not accept.
var ErrBadCommand = errors.New("unrecognized override command")

// OverrideSlot is a single-entry command mailbox backed by a sentinel
// file. Depositing overwrites any unread command (latest wins); taking
// reads and removes it (consumed at most once). The controller is the
// only reader, so no locking is needed beyond the filesystem's own
// rename atomicity.
type OverrideSlot struct {
	path   string
	logger *logrus.Logger
}

func NewOverrideSlot(path string, logger *logrus.Logger) *OverrideSlot {
	return &OverrideSlot{path: path, logger: logger}
}

// Deposit validates and writes the raw command text into the slot.
func (o *OverrideSlot) Deposit(raw string) error {
	if _, err := ParseCommand(raw); err != nil {
		return err
	}
	if err := os.WriteFile(o.path, []byte(strings.TrimSpace(raw)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to deposit override: %w", err)
	}
	return nil
}

// Take returns the pending command, or nil when the slot is empty. The
// slot is cleared regardless of whether the content parsed, so a garbage
// deposit cannot wedge the poll loop.
func (o *OverrideSlot) Take() *models.OverrideCommand {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			o.logger.WithError(err).Error("Failed to read override slot")
		}
		return nil
	}

	if err := os.Remove(o.path); err != nil {
		o.logger.WithError(err).Error("Failed to clear override slot")
	}

	cmd, err := ParseCommand(string(data))
	if err != nil {
		o.logger.WithField("raw", strings.TrimSpace(string(data))).Warn("Discarding unrecognized override")
		return nil
	}
	return cmd
}

// ParseCommand parses one of: stop, normal, pump_now, wait <minutes>.
func ParseCommand(raw string) (*models.OverrideCommand, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 {
		return nil, ErrBadCommand
	}

	switch fields[0] {
	case "stop":
		return &models.OverrideCommand{Kind: models.OverrideStop}, nil
	case "normal":
		return &models.OverrideCommand{Kind: models.OverrideNormal}, nil
	case "pump_now":
		return &models.OverrideCommand{Kind: models.OverridePumpNow}, nil
	case "wait":
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: wait needs a minute count", ErrBadCommand)
		}
		minutes, err := strconv.Atoi(fields[1])
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("%w: bad minute count %q", ErrBadCommand, fields[1])
		}
		return &models.OverrideCommand{Kind: models.OverrideWait, WaitMinutes: minutes}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBadCommand, fields[0])
}
