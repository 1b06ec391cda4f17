package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/pkg/utils"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName = "news_analysis_exchange"
	QueueName    = "news_analysis_queue"
	RoutingKey   = QueueName

	defaultConfirmTimeout = 10 * time.Second
)

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("broker did not confirm message")

// AnalysisMessage is the JSON body delivered to the analysis queue.
type AnalysisMessage struct {
	Header    string `json:"header"`
	Subheader string `json:"subheader"`
	Content   string `json:"content"`
	URL       string `json:"url"`
	CrawledAt string `json:"crawled_at"`
}

// NewAnalysisMessage projects an article onto the analysis message.
func NewAnalysisMessage(article *entity.Article, crawledAt time.Time) AnalysisMessage {
	return AnalysisMessage{
		Header:    article.Header,
		Subheader: article.Subheader,
		Content:   article.Content,
		URL:       article.URL,
		CrawledAt: crawledAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Publisher publishes articles to RabbitMQ with publisher confirms.
// A single channel is shared; publishes are serialized.
type Publisher struct {
	url            string
	confirmTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

var _ repository.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to the broker and declares the exchange, queue and binding.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{
		url:            url,
		confirmTimeout: defaultConfirmTimeout,
		logger:         logger.Named("publisher"),
		now:            time.Now,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect (re)opens the connection and channel. Callers hold mu or own p exclusively.
func (p *Publisher) connect() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	p.channel = ch
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends the article as a persistent JSON message and waits for the broker's confirm.
func (p *Publisher) Publish(ctx context.Context, article *entity.Article) error {
	body, err := json.Marshal(NewAnalysisMessage(article, p.now()))
	if err != nil {
		return fmt.Errorf("encode analysis message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	confirmCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(confirmCtx,
		ExchangeName, RoutingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    utils.HashURL(article.URL),
			Timestamp:    p.now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", article.URL, err)
	}

	acked, err := confirmation.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", article.URL, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, article.URL)
	}

	p.logger.Info("article published", zap.String("url", article.URL), zap.String("exchange", ExchangeName))
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
