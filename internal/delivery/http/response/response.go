package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports the state of each backing store.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// DeadLetter is a crawl job that was given up on.
type DeadLetter struct {
	URL           string    `json:"url"`
	DiscoveredAt  time.Time `json:"discoveredAt"`
	Attempts      int       `json:"attempts"`
	FailureReason string    `json:"failureReason"`
	Permanent     bool      `json:"permanent"`
	FailedAt      time.Time `json:"failedAt"`
}

func NewDeadLetter(dl *entity.DeadLetter) DeadLetter {
	return DeadLetter{
		URL:           dl.URL,
		DiscoveredAt:  dl.DiscoveredAt,
		Attempts:      dl.Attempts,
		FailureReason: dl.FailureReason,
		Permanent:     dl.Permanent,
		FailedAt:      dl.FailedAt,
	}
}

type DeadLetterList struct {
	Data []DeadLetter `json:"data"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// Error writes an ErrorResponse.
func Error(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, ErrorResponse{Error: message})
}
