package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// Topics observed by the back office. Each is provisioned with multiple
// partitions so consumers can scale out while per-aggregate order holds.
const (
	TopicAppointmentEvents = "appointment-events"
	TopicPatientEvents     = "patient-events"
	TopicClinicalAlerts    = "clinical-alerts"
)

const topicPartitions = 3

// EnsureTopics creates the event topics if they do not exist. Existing topics
// are left untouched.
func EnsureTopics(ctx context.Context, adm *kadm.Client) error {
	resps, err := adm.CreateTopics(ctx, topicPartitions, 1, nil,
		TopicAppointmentEvents,
		TopicPatientEvents,
		TopicClinicalAlerts,
	)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
