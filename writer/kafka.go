package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "sectorflow/config"
	"sectorflow/logger"
	"sectorflow/models"
)

// KafkaSink publishes finished daily rows to a topic, one message per row,
// keyed by sector so a partition always sees a sector's rows in date order.
type KafkaSink struct {
	writer *kafka.Writer
	log    *logger.Log
}

// dailyMessage is the wire form of one daily row. Missing numeric values
// become JSON nulls; NaN itself is not representable in JSON.
type dailyMessage struct {
	Sector        string   `json:"sector"`
	Policy        string   `json:"policy"`
	Version       string   `json:"version"`
	Date          string   `json:"date"`
	IsTradingDay  bool     `json:"is_trading_day"`
	Price         *float64 `json:"price"`
	Return        *float64 `json:"return"`
	Sign          *float64 `json:"sign"`
	ReturnNextDay *float64 `json:"return_next_day"`
	SignNextDay   *float64 `json:"sign_next_day"`
	AvgPositive   *float64 `json:"avg_positive"`
	AvgNeutral    *float64 `json:"avg_neutral"`
	AvgNegative   *float64 `json:"avg_negative"`
	HeadlineCount *float64 `json:"n"`
	SentIndex     *float64 `json:"sent_index"`
}

func nullable(v float64) *float64 {
	if models.IsMissing(v) {
		return nil
	}
	return &v
}

func NewKafkaSink(cfg *appconfig.Config) (*KafkaSink, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	ks := &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: logger.GetLogger(),
	}
	ks.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("kafka sink initialized")
	return ks, nil
}

// PublishDaily sends every row of the dataset. Rows are batched into a single
// WriteMessages call so the broker sees them atomically per dataset.
func (ks *KafkaSink) PublishDaily(ctx context.Context, ds DailyDataset) error {
	msgs := make([]kafka.Message, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		m := dailyMessage{
			Sector:        ds.Sector,
			Policy:        ds.Policy.Slug(),
			Version:       ds.Policy.Version(),
			Date:          r.Date.Format("2006-01-02"),
			IsTradingDay:  r.IsTradingDay,
			Price:         nullable(r.Price),
			Return:        nullable(r.Return),
			Sign:          nullable(r.Sign),
			ReturnNextDay: nullable(r.ReturnNextDay),
			SignNextDay:   nullable(r.SignNextDay),
			AvgPositive:   nullable(r.AvgPositive),
			AvgNeutral:    nullable(r.AvgNeutral),
			AvgNegative:   nullable(r.AvgNegative),
			HeadlineCount: nullable(r.HeadlineCount),
			SentIndex:     nullable(r.SentIndex),
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal daily row: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ds.Sector),
			Value: data,
			Time:  time.Now(),
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := ks.writer.WriteMessages(ctx, msgs...); err != nil {
		ks.log.WithComponent("kafka_sink").WithError(err).Warn("failed to publish daily rows")
		return err
	}
	ks.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"sector": ds.Sector,
		"policy": ds.Policy.Slug(),
		"rows":   len(msgs),
	}).Debug("daily rows published")
	return nil
}

func (ks *KafkaSink) Close() error {
	return ks.writer.Close()
}
