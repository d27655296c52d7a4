package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisQueue Redis邮件队列实现
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// MailMessage 队列中的邮件消息
type MailMessage struct {
	ID      string `json:"id"`
	To      string `json:"to"`      // 收件人
	Subject string `json:"subject"` // 主题
	HTML    string `json:"html"`    // HTML正文
	Created int64  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "frly:mail"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping() error {
	ctx := context.Background()
	return q.client.Ping(ctx).Err()
}

// GetClient 获取底层Redis客户端
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

func (q *RedisQueue) queueKey() string {
	return q.prefix + ":outbox"
}

// EnqueueMail 将邮件加入发送队列
func (q *RedisQueue) EnqueueMail(to, subject, html string) error {
	ctx := context.Background()

	message := MailMessage{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		HTML:    html,
		Created: time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化邮件消息失败: %v", err)
	}

	return q.client.LPush(ctx, q.queueKey(), data).Err()
}

// DequeueMail 阻塞式取出一封待发邮件，超时返回nil
func (q *RedisQueue) DequeueMail(timeout time.Duration) (*MailMessage, error) {
	ctx := context.Background()

	result, err := q.client.BRPop(ctx, timeout, q.queueKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	// BRPOP返回 [key, value]
	if len(result) < 2 {
		return nil, nil
	}

	var message MailMessage
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("解析邮件消息失败: %v", err)
	}

	return &message, nil
}

// Size 当前队列长度
func (q *RedisQueue) Size() (int64, error) {
	ctx := context.Background()
	return q.client.LLen(ctx, q.queueKey()).Result()
}
