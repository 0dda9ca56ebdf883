package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"
)

// New builds the snapshot publisher selected by cfg.Kind. It returns nil
// without error when publishing is disabled.
func New(cfg models.MPublishConfig, log *logger.Logger) (interfaces.ISnapshotSink, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "redis":
		return NewRedisPublisher(cfg, log), nil
	case "kafka":
		return NewKafkaPublisher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown publisher kind %q", cfg.Kind)
	}
}

func encode(s models.MSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}
