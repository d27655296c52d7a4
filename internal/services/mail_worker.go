package services

import (
	"sync"
	"time"

	"frly/pkg/logger"
	"frly/pkg/mailer"
	"frly/pkg/queue"

	"github.com/sirupsen/logrus"
)

// MailWorker 邮件发送工作器
//
// 从Redis队列阻塞取件，逐封交给SMTP发送器。
// 发送失败只记日志不重试入队，邮件本身是尽力而为的通道，
// 站内通知和邀请列表才是可靠入口。
type MailWorker struct {
	queue  *queue.RedisQueue
	sender mailer.Sender
	log    *logrus.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMailWorker 创建邮件工作器
func NewMailWorker(q *queue.RedisQueue, sender mailer.Sender) *MailWorker {
	return &MailWorker{
		queue:  q,
		sender: sender,
		log:    logger.GetLogger(),
		stopCh: make(chan struct{}),
	}
}

// Start 启动后台发送循环
func (w *MailWorker) Start() {
	w.wg.Add(1)
	go w.loop()
	w.log.Info("邮件工作器已启动")
}

// Stop 停止工作器，等待当前这封发完
func (w *MailWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("邮件工作器已停止")
}

func (w *MailWorker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		// 短超时轮询，保证Stop能及时生效
		message, err := w.queue.DequeueMail(3 * time.Second)
		if err != nil {
			w.log.Errorf("从邮件队列取件失败: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if message == nil {
			continue
		}

		if err := w.sender.SendHTML(message.To, message.Subject, message.HTML); err != nil {
			w.log.WithFields(logrus.Fields{
				"mail_id": message.ID,
				"to":      message.To,
			}).Errorf("发送邮件失败: %v", err)
			continue
		}

		w.log.WithField("mail_id", message.ID).Debug("邮件发送成功")
	}
}
