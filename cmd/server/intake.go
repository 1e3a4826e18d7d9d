package main

import (
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/config"
	"github.com/tbourn/go-notification-backend/internal/intake"
	"github.com/tbourn/go-notification-backend/internal/livepush"
	"github.com/tbourn/go-notification-backend/internal/orderclient"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// buildConsumers wires the event consumer and the dead-letter monitor.
func buildConsumers(db *gorm.DB, push *livepush.Registry, cfg config.Config) []*intake.Consumer {
	policy := intake.RetryPolicy{
		MaxAttempts:      cfg.Intake.MaxAttempts,
		Backoff:          cfg.Intake.Backoff,
		DeadLetterSuffix: ".dlq",
	}

	kc := intake.KafkaConfig{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.GroupID}
	sink := intake.NewKafkaSink(kc)

	ctrl := &intake.Controller{
		Owners:        orderclient.New(cfg.OrderServiceURL),
		Settings:      &services.SettingService{DB: db},
		Templates:     &services.TemplateRenderer{DB: db},
		Notifications: services.NewNotificationService(db, cfg.RecentLimit),
		Push:          push,
		Policy:        policy,
		DeadLetters:   sink,
	}

	events := &intake.Consumer{
		Processor:     ctrl,
		Sink:          sink,
		Buffer:        cfg.Intake.WorkerBuffer,
		CommitTimeout: 5 * time.Second,
	}
	for _, topic := range intake.Topics {
		events.Sources = append(events.Sources, intake.NewKafkaSource(kc, topic))
	}

	dlc := intake.KafkaConfig{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.DLQGroupID}
	monitor := &intake.Consumer{Processor: intake.DeadLetterLogger{}}
	for _, topic := range intake.Topics {
		monitor.Sources = append(monitor.Sources, intake.NewKafkaSource(dlc, policy.DeadLetterTopic(topic)))
	}

	return []*intake.Consumer{events, monitor}
}
