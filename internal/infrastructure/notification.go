package infrastructure

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

// NotificationService sends desktop notifications for terminal job states
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// NotifyJobCompleted announces a finished job
func (n *NotificationService) NotifyJobCompleted(job *domain.Job) {
	title := "Fetch complete"
	if job.Kind == domain.KindPlaylist {
		title = "Playlist fetch complete"
	}
	n.send(title, job.DisplayName)
}

// NotifyJobFailed announces a failed job
func (n *NotificationService) NotifyJobFailed(job *domain.Job) {
	n.send("Fetch failed", fmt.Sprintf("%s: %s", job.URL, job.ErrorMessage))
}

func (n *NotificationService) send(title, message string) {
	if !n.config.Enabled {
		return
	}

	var cmd *exec.Cmd
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		cmd = exec.Command("osascript", "-e", script)
	case "notify-send":
		cmd = exec.Command("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return
	}

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
	}
}
