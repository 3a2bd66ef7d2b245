package messenger

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/dapmarket/marketplace-ledger/internal/config"
	"go.uber.org/zap"
)

type MessageService interface {
	SendMessage(queue Queue, body []byte) error
	PollMessages(queue Queue, messages chan<- *sqs.Message)
	DeleteMessage(queue Queue, message *sqs.Message) error
}

type Messenger struct {
	sqs       *sqs.SQS
	queueUrls map[Queue]string
}

type Queue string

var (
	MarketplaceEvents Queue = "marketplace.events"
)

func (q Queue) name() string {
	return fmt.Sprintf("%s-%s", config.Get().Index, string(q))
}

func NewMessenger() (MessageService, error) {
	cfg := config.Get().Aws

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		return nil, err
	}

	return &Messenger{sqs: sqs.New(sess), queueUrls: make(map[Queue]string)}, nil
}

func (m *Messenger) SendMessage(queue Queue, body []byte) error {
	queueUrl, err := m.queueUrl(queue)
	if err != nil {
		return err
	}

	_, err = m.sqs.SendMessage(&sqs.SendMessageInput{
		QueueUrl:    aws.String(queueUrl),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", queue.name())).Error("Messenger: Failed to send message")
		return err
	}

	return nil
}

// PollMessages long-polls the queue and forwards messages to the channel
// until the channel is closed by the consumer.
func (m *Messenger) PollMessages(queue Queue, messages chan<- *sqs.Message) {
	queueUrl, err := m.queueUrl(queue)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("queue", queue.name())).Error("Messenger: Failed to resolve queue")
		return
	}

	for {
		output, err := m.sqs.ReceiveMessage(&sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueUrl),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(15),
		})
		if err != nil {
			zap.L().With(zap.Error(err), zap.String("queue", queue.name())).Error("Messenger: Failed to receive messages")
			continue
		}

		for _, message := range output.Messages {
			messages <- message
		}
	}
}

func (m *Messenger) DeleteMessage(queue Queue, message *sqs.Message) error {
	queueUrl, err := m.queueUrl(queue)
	if err != nil {
		return err
	}

	_, err = m.sqs.DeleteMessage(&sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueUrl),
		ReceiptHandle: message.ReceiptHandle,
	})

	return err
}

func (m *Messenger) queueUrl(queue Queue) (string, error) {
	if url, ok := m.queueUrls[queue]; ok {
		return url, nil
	}

	if url := config.Get().Aws.QueueUrl; url != "" {
		m.queueUrls[queue] = url
		return url, nil
	}

	output, err := m.sqs.GetQueueUrl(&sqs.GetQueueUrlInput{
		QueueName: aws.String(queue.name()),
	})
	if err != nil {
		return "", err
	}

	m.queueUrls[queue] = *output.QueueUrl

	return m.queueUrls[queue], nil
}
